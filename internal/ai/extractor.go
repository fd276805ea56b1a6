package ai

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlasfleet/dispatch-cli/internal/model"
	"github.com/atlasfleet/dispatch-cli/pkg/anthropic"
)

const extractSystemPrompt = `You extract structured transport-order data from dispatcher emails.
Read the email and return a JSON object with these fields (empty string when absent):

{
  "loading_address": "full pickup address as written, including company name if given",
  "unloading_address": "full delivery address as written",
  "loading_date": "pickup date/time as written",
  "unloading_date": "delivery date/time as written",
  "cargo_description": "what is being shipped",
  "weight": "weight with unit as written",
  "vehicle_type": "requested vehicle or trailer type",
  "special_requirements": "ADR, temperature, tail lift, etc.",
  "reference_number": "order or booking reference"
}

Copy values verbatim from the email. Never invent, translate, or normalize
addresses. Respond with the JSON object only.`

// Extractor pulls a structured order draft out of a classified email.
type Extractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewExtractor creates an Extractor backed by the given Anthropic client.
func NewExtractor(client anthropic.Client, aiModel string, maxTokens int64) *Extractor {
	return &Extractor{client: client, model: aiModel, maxTokens: maxTokens}
}

// Extract builds an OrderDraft from the message content. The returned draft
// carries only extracted fields; provenance is filled by the caller.
func (e *Extractor) Extract(ctx context.Context, msg model.Message) (*model.OrderDraft, error) {
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System:    []anthropic.SystemBlock{{Text: extractSystemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: msg.Content()},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: create message")
	}
	resp.Usage.LogCost(e.model, "extract")

	var draft model.OrderDraft
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &draft); err != nil {
		return nil, eris.Wrap(err, "extract: parse response")
	}

	zap.L().Debug("extract: draft built",
		zap.String("message_id", msg.ID),
		zap.String("loading_address", draft.LoadingAddress),
		zap.String("unloading_address", draft.UnloadingAddress),
	)
	return &draft, nil
}
