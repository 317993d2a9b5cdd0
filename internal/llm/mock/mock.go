// Package mock is a deterministic engine for offline development and
// tests: it echoes the last user message and honors JSON-schema requests
// with a fixed shape.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/blockbridge-backend/internal/llm"
)

type Engine struct{}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) GenerateText(ctx context.Context, model string, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	_ = ctx
	_ = model

	if opts.JSONSchema != nil {
		obj := map[string]any{
			"ok":     true,
			"schema": opts.JSONSchema.Name,
		}
		b, _ := json.Marshal(obj)
		return string(b), nil
	}

	var user string
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			user = messages[i].Content
			break
		}
	}
	if strings.TrimSpace(user) == "" {
		return "mock: ok", nil
	}
	return fmt.Sprintf("mock: %s", user), nil
}

func (e *Engine) StreamText(ctx context.Context, model string, messages []llm.Message, opts llm.GenerateOptions, onDelta func(delta string)) (string, error) {
	full, err := e.GenerateText(ctx, model, messages, opts)
	if err != nil {
		return "", err
	}
	if onDelta == nil {
		return full, nil
	}
	const chunk = 16
	for i := 0; i < len(full); i += chunk {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		end := i + chunk
		if end > len(full) {
			end = len(full)
		}
		onDelta(full[i:end])
	}
	return full, nil
}
