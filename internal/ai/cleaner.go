package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/atlasfleet/dispatch-cli/pkg/anthropic"
)

const cleanSystemPrompt = `You normalize freight addresses for geocoding.
Given a raw address from an email, return the address reduced to its
geographic parts: street and number, postal code, city, country. Drop
facility descriptions, dock numbers, opening hours, and contact details.
Keep the company name only if nothing else identifies the street.

Respond with a JSON object only:
{"cleaned": "<the cleaned address>"}`

// Cleaner rewrites a raw address into a geocoder-friendly form. It is an
// optional enhancement in front of the geocoding waterfall; callers fall
// back to the raw address on any failure.
type Cleaner struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewCleaner creates a Cleaner backed by the given Anthropic client.
func NewCleaner(client anthropic.Client, aiModel string, maxTokens int64) *Cleaner {
	return &Cleaner{client: client, model: aiModel, maxTokens: maxTokens}
}

// Clean returns a normalized form of the raw address. An empty cleaned
// result is treated as a failure so the raw address stays in use.
func (c *Cleaner) Clean(ctx context.Context, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", eris.New("clean: empty address")
	}

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.SystemBlock{{Text: cleanSystemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: raw},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "clean: create message")
	}
	resp.Usage.LogCost(c.model, "clean")

	var result struct {
		Cleaned string `json:"cleaned"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &result); err != nil {
		return "", eris.Wrap(err, "clean: parse response")
	}

	cleaned := strings.TrimSpace(result.Cleaned)
	if cleaned == "" {
		return "", eris.New("clean: model returned empty address")
	}
	return cleaned, nil
}
