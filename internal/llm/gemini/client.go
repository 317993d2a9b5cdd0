// Package gemini adapts Google's hosted Gemini models to the llm.Engine
// interface. It is the fallback for deployments that cannot run a local
// model server.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/blockbridge-backend/internal/config"
	"github.com/yungbote/blockbridge-backend/internal/llm"
)

type Engine struct {
	client     *genai.Client
	maxRetries int
}

func New(ctx context.Context, cfg config.LLMConfig) (*Engine, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("gemini: api key required (set GEMINI_API_KEY)")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	maxRetries := cfg.JSONSchema.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	return &Engine{client: cl, maxRetries: maxRetries}, nil
}

func (e *Engine) Close() error {
	return e.client.Close()
}

func (e *Engine) GenerateText(ctx context.Context, model string, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	attempts := 1
	if opts.JSONSchema != nil && opts.JSONSchema.Strict {
		attempts = 1 + e.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		m, last, err := e.prepare(model, messages, opts)
		if err != nil {
			return "", err
		}
		resp, err := m.GenerateContent(ctx, genai.Text(last))
		if err != nil {
			lastErr = err
			continue
		}
		text := joinResponseText(resp)
		if strings.TrimSpace(text) == "" {
			lastErr = errors.New("empty gemini completion")
			continue
		}
		if opts.JSONSchema != nil && opts.JSONSchema.Strict {
			clean := stripFences(text)
			var v any
			if err := json.Unmarshal([]byte(clean), &v); err != nil {
				lastErr = fmt.Errorf("invalid json: %w", err)
				continue
			}
			return clean, nil
		}
		return text, nil
	}
	if lastErr == nil {
		lastErr = errors.New("generation failed")
	}
	return "", lastErr
}

func (e *Engine) StreamText(ctx context.Context, model string, messages []llm.Message, opts llm.GenerateOptions, onDelta func(delta string)) (string, error) {
	m, last, err := e.prepare(model, messages, opts)
	if err != nil {
		return "", err
	}

	iter := m.GenerateContentStream(ctx, genai.Text(last))
	var full strings.Builder
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return "", err
		}
		delta := joinResponseText(resp)
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	return full.String(), nil
}

// prepare builds a configured model handle and collapses the conversation:
// system messages become the system instruction, everything else is joined
// into the prompt (Gemini roles are handled upstream of this engine).
func (e *Engine) prepare(model string, messages []llm.Message, opts llm.GenerateOptions) (*genai.GenerativeModel, string, error) {
	m := e.client.GenerativeModel(strings.TrimSpace(model))
	if m == nil {
		return nil, "", fmt.Errorf("gemini: unknown model %q", model)
	}

	cfg := genai.GenerationConfig{}
	if opts.Temperature > 0 {
		cfg.Temperature = ptrFloat32(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = ptrInt32(int32(opts.MaxTokens))
	}
	if opts.JSONSchema != nil {
		cfg.ResponseMIMEType = "application/json"
	}
	m.GenerationConfig = cfg

	var system, prompt strings.Builder
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		if strings.EqualFold(msg.Role, "system") {
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(content)
			continue
		}
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(strings.ToUpper(msg.Role))
		prompt.WriteString(": ")
		prompt.WriteString(content)
	}
	if opts.JSONSchema != nil && opts.JSONSchema.Schema != nil {
		if b, err := json.Marshal(opts.JSONSchema.Schema); err == nil {
			system.WriteString("\nReturn ONLY JSON conforming to this schema:\n")
			system.Write(b)
		}
	}
	if system.Len() > 0 {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system.String())},
		}
	}
	if prompt.Len() == 0 {
		return nil, "", errors.New("no messages")
	}
	return m, prompt.String(), nil
}

func joinResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	firstNL := strings.IndexByte(s, '\n')
	if firstNL == -1 {
		return strings.TrimSpace(strings.Trim(s, "`"))
	}
	s = s[firstNL+1:]
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32       { return &v }
