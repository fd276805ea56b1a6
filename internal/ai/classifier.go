package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlasfleet/dispatch-cli/internal/model"
	"github.com/atlasfleet/dispatch-cli/pkg/anthropic"
)

const classifySystemPrompt = `You are an email triage assistant for a road freight dispatcher.
Classify the email into exactly one category:

- ORDER: a transport order or booking request (cargo to move from A to B)
- INVOICE: an invoice, payment reminder, or billing document
- OTHER: anything else (newsletters, status updates, spam, replies without a new order)

Respond with a JSON object only, no prose:
{"category": "ORDER" | "INVOICE" | "OTHER", "confidence": 0.0-1.0}`

// Classifier assigns a category to an inbound email.
type Classifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClassifier creates a Classifier backed by the given Anthropic client.
func NewClassifier(client anthropic.Client, aiModel string, maxTokens int64) *Classifier {
	return &Classifier{client: client, model: aiModel, maxTokens: maxTokens}
}

// Classify categorizes a message. A service failure returns OTHER together
// with the error so the caller can abort and retry the message later; a
// response that parses but makes no sense fails closed to OTHER without error.
func (c *Classifier) Classify(ctx context.Context, msg model.Message) (model.Classification, error) {
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.SystemBlock{{Text: classifySystemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: msg.Content()},
		},
	})
	if err != nil {
		return model.ClassificationOther, eris.Wrap(err, "classify: create message")
	}
	resp.Usage.LogCost(c.model, "classify")

	cls, confidence := parseClassification(resp.Text())
	zap.L().Debug("classify: message categorized",
		zap.String("message_id", msg.ID),
		zap.String("classification", string(cls)),
		zap.Float64("confidence", confidence),
	)
	return cls, nil
}

func parseClassification(text string) (model.Classification, float64) {
	var result struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}

	if err := json.Unmarshal([]byte(cleanJSON(text)), &result); err != nil {
		return model.ClassificationOther, 0
	}

	switch model.Classification(strings.ToUpper(strings.TrimSpace(result.Category))) {
	case model.ClassificationOrder:
		return model.ClassificationOrder, result.Confidence
	case model.ClassificationInvoice:
		return model.ClassificationInvoice, result.Confidence
	default:
		return model.ClassificationOther, result.Confidence
	}
}
