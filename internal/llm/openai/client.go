package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/llm"
)

// Complete implements llm.Model with a chat/completions call in JSON mode. It returns the
// first choice's message content; on an undecodable envelope the raw body is returned
// alongside the error.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) ([]byte, error) {
	start := time.Now()

	messages := []map[string]any{
		{"role": "system", "content": req.System},
		{"role": "user", "content": req.User + "\n\nReturn ONLY JSON that matches the provided schema."},
	}
	if req.Schema != nil {
		messages = append(messages, map[string]any{"role": "system", "content": "JSON Schema:\n" + mustJSON(req.Schema)})
	}
	body := map[string]any{
		"model":           req.Model,
		"temperature":     req.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	raw, err := c.endpoint.Post(ctx, body)
	if err != nil {
		attrs := []any{"model", req.Model, "page", common.PageIndexFromContext(ctx), "error", err, "elapsed_ms", time.Since(start).Milliseconds()}
		var he *llm.HTTPError
		if errors.As(err, &he) {
			attrs = append(attrs, "status", he.Status, "transient", he.Transient())
		}
		c.logger.Warn("llm.openai.http_error", attrs...)
		return nil, fmt.Errorf("openai: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return raw, fmt.Errorf("no choices in openai response")
	}

	choice := cc.Choices[0]
	c.logger.Debug("llm.openai.ok",
		"model", req.Model,
		"page", common.PageIndexFromContext(ctx),
		"finish_reason", choice.FinishReason,
		"content_len", len(choice.Message.Content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return []byte(strings.TrimSpace(choice.Message.Content)), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
