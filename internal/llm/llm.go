// Package llm defines the text-generation engine interface the tutor
// speaks to. Implementations live in subpackages: oaihttp (any
// OpenAI-compatible server, e.g. a local LM Studio), gemini (hosted
// fallback), and mock (offline development and tests).
package llm

import "context"

type Message struct {
	Role    string
	Content string
}

type JSONSchema struct {
	Name   string
	Schema map[string]any
	Strict bool
}

type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	JSONSchema  *JSONSchema
}

type Engine interface {
	GenerateText(ctx context.Context, model string, messages []Message, opts GenerateOptions) (string, error)
	StreamText(ctx context.Context, model string, messages []Message, opts GenerateOptions, onDelta func(delta string)) (full string, err error)
}
