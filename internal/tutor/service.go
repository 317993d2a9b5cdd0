// Package tutor turns a recognized program into kid-facing feedback: a
// structured next-step suggestion, streamed encouragement and idea text,
// and a short contextual chat. Replies come from a language model when one
// is reachable and from a deterministic rule table otherwise; both paths
// share a cache keyed by program signature, so a classroom converging on
// similar programs mostly reads cached replies.
package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/yungbote/blockbridge-backend/internal/config"
	"github.com/yungbote/blockbridge-backend/internal/llm"
	"github.com/yungbote/blockbridge-backend/internal/makecode"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

const (
	kindSuggestion    = "suggestion"
	kindEncouragement = "encouragement"
	kindIdea          = "idea"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 200
	retryTemperature   = 0.1
)

type Service interface {
	// Suggestions returns encouragement plus one validated next-step idea.
	Suggestions(ctx context.Context, code string) (Suggestion, error)

	// StreamEncouragement, StreamIdea and StreamChat feed reply text to
	// onDelta as it is generated and return the full text. Cached replies
	// are replayed in chunks so the client still sees a stream.
	StreamEncouragement(ctx context.Context, code string, onDelta func(string)) (string, error)
	StreamIdea(ctx context.Context, code string, onDelta func(string)) (string, error)
	StreamChat(ctx context.Context, code string, history []llm.Message, onDelta func(string)) (string, error)

	CacheStats(ctx context.Context) Stats
}

type service struct {
	log       *logger.Logger
	engine    llm.Engine
	catalog   *makecode.Catalog
	cache     Cache
	model     string
	temp      float64
	maxTokens int
}

func NewService(engine llm.Engine, catalog *makecode.Catalog, cache Cache, llmCfg config.LLMConfig, tutorCfg config.TutorConfig, log *logger.Logger) Service {
	temp := tutorCfg.Temperature
	if temp <= 0 {
		temp = defaultTemperature
	}
	maxTokens := tutorCfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &service{
		log:       log.With("service", "TutorService"),
		engine:    engine,
		catalog:   catalog,
		cache:     cache,
		model:     llmCfg.Model,
		temp:      temp,
		maxTokens: maxTokens,
	}
}

func (s *service) Suggestions(ctx context.Context, code string) (Suggestion, error) {
	analysis := Analyze(code)
	sig := analysis.Signature()

	if raw, ok := s.cache.Get(ctx, kindSuggestion, sig); ok {
		var cached Suggestion
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	sugg, err := s.modelSuggestion(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return Suggestion{}, ctx.Err()
		}
		s.log.Warn("model suggestion unavailable, using rules", "err", err)
		sugg = ruleSuggestion(analysis)
	}

	if raw, err := json.Marshal(sugg); err == nil {
		s.cache.Set(ctx, kindSuggestion, sig, raw)
	}
	return sugg, nil
}

var errInvalidSuggestion = errors.New("tutor: model reply failed block validation twice")

// modelSuggestion asks the engine for a structured reply and gives it one
// corrective retry at a lower temperature before reporting failure.
func (s *service) modelSuggestion(ctx context.Context, code string) (Suggestion, error) {
	triggers, actions := Labels(s.catalog)
	messages := suggestionMessages(triggers, actions, code)
	opts := llm.GenerateOptions{
		Temperature: s.temp,
		MaxTokens:   s.maxTokens,
		JSONSchema:  suggestionSchema(),
	}

	raw, err := s.engine.GenerateText(ctx, s.model, messages, opts)
	if err != nil {
		return Suggestion{}, err
	}
	if sugg, ok := s.buildSuggestion(raw); ok {
		return sugg, nil
	}

	s.log.Debug("suggestion failed validation, retrying", "reply", raw)
	retry := append(messages, llm.Message{Role: "assistant", Content: raw}, fixMessage())
	opts.Temperature = retryTemperature
	raw, err = s.engine.GenerateText(ctx, s.model, retry, opts)
	if err != nil {
		return Suggestion{}, err
	}
	if sugg, ok := s.buildSuggestion(raw); ok {
		return sugg, nil
	}
	return Suggestion{}, errInvalidSuggestion
}

// buildSuggestion parses a model reply and derives the block list from the
// idea's parenthesized mentions. ok is false when the reply is not the
// expected JSON or the mentioned blocks do not form one trigger plus one
// or two actions.
func (s *service) buildSuggestion(raw string) (Suggestion, bool) {
	var reply struct {
		Encouragement string `json:"encouragement"`
		Idea          string `json:"idea"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return Suggestion{}, false
	}
	idea := s.cleanIdea(reply.Idea)
	encouragement := strings.TrimSpace(reply.Encouragement)
	if idea == "" || encouragement == "" {
		return Suggestion{}, false
	}
	blocks := ExtractBlocks(s.catalog, idea)
	if !ValidateBlocks(s.catalog, blocks) {
		return Suggestion{}, false
	}
	return Suggestion{Encouragement: encouragement, Idea: idea, Blocks: blocks}, true
}

var ideaPrefixPat = regexp.MustCompile(`(?i)^\s*(idea to try|try this|idea|suggestion)\s*[:\-]\s*`)

// cleanIdea strips boilerplate prefixes models like to add, unwraps
// parentheses around tokens that are not catalog blocks so the UI only
// highlights real ones, and collapses whitespace.
func (s *service) cleanIdea(raw string) string {
	idea := ideaPrefixPat.ReplaceAllString(strings.TrimSpace(raw), "")
	idea = parenPat.ReplaceAllStringFunc(idea, func(group string) string {
		token := group[1 : len(group)-1]
		if _, ok := resolveLabel(s.catalog, token); ok {
			return group
		}
		return token
	})
	return strings.Join(strings.Fields(idea), " ")
}

func (s *service) StreamEncouragement(ctx context.Context, code string, onDelta func(string)) (string, error) {
	analysis := Analyze(code)
	sig := analysis.Signature()

	if raw, ok := s.cache.Get(ctx, kindEncouragement, sig); ok {
		text := string(raw)
		if err := replay(ctx, text, onDelta); err != nil {
			return "", err
		}
		return text, nil
	}

	opts := llm.GenerateOptions{Temperature: s.temp, MaxTokens: s.maxTokens}
	text, err := s.engine.StreamText(ctx, s.model, encouragementMessages(code), opts, onDelta)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.log.Warn("encouragement stream failed, using rules", "err", err)
		text = ruleEncouragement(analysis)
		if rerr := replay(ctx, text, onDelta); rerr != nil {
			return "", rerr
		}
	}
	text = strings.TrimSpace(text)
	if text != "" {
		s.cache.Set(ctx, kindEncouragement, sig, []byte(text))
	}
	return text, nil
}

// StreamIdea caches the cleaned text while live deltas stream as
// generated, so only replays see the cleaned form.
func (s *service) StreamIdea(ctx context.Context, code string, onDelta func(string)) (string, error) {
	analysis := Analyze(code)
	sig := analysis.Signature()

	if raw, ok := s.cache.Get(ctx, kindIdea, sig); ok {
		text := string(raw)
		if err := replay(ctx, text, onDelta); err != nil {
			return "", err
		}
		return text, nil
	}

	triggers, actions := Labels(s.catalog)
	opts := llm.GenerateOptions{Temperature: s.temp, MaxTokens: s.maxTokens}
	text, err := s.engine.StreamText(ctx, s.model, ideaMessages(triggers, actions, code), opts, onDelta)
	switch {
	case err == nil:
		text = s.cleanIdea(text)
	case ctx.Err() != nil:
		return "", ctx.Err()
	default:
		s.log.Warn("idea stream failed, using rules", "err", err)
		text = ruleSuggestion(analysis).Idea
		if rerr := replay(ctx, text, onDelta); rerr != nil {
			return "", rerr
		}
	}
	if text != "" {
		s.cache.Set(ctx, kindIdea, sig, []byte(text))
	}
	return text, nil
}

const chatFallback = "Hmm, my thinking cap slipped off. Ask me again in a moment!"

// StreamChat is not cached: replies depend on the whole conversation, not
// just the program signature.
func (s *service) StreamChat(ctx context.Context, code string, history []llm.Message, onDelta func(string)) (string, error) {
	opts := llm.GenerateOptions{Temperature: s.temp, MaxTokens: s.maxTokens}
	text, err := s.engine.StreamText(ctx, s.model, chatMessages(code, history), opts, onDelta)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.log.Warn("chat stream failed", "err", err)
		text = chatFallback
		if rerr := replay(ctx, text, onDelta); rerr != nil {
			return "", rerr
		}
	}
	return text, nil
}

func (s *service) CacheStats(ctx context.Context) Stats {
	return s.cache.Stats(ctx)
}

const replayChunkRunes = 16

// replay feeds previously generated text to onDelta in small chunks so a
// cached reply still renders as a stream on the client.
func replay(ctx context.Context, text string, onDelta func(string)) error {
	if onDelta == nil {
		return nil
	}
	runes := []rune(text)
	for start := 0; start < len(runes); start += replayChunkRunes {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + replayChunkRunes
		if end > len(runes) {
			end = len(runes)
		}
		onDelta(string(runes[start:end]))
	}
	return nil
}
