package tutor

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/blockbridge-backend/internal/config"
	"github.com/yungbote/blockbridge-backend/internal/llm"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

// stubEngine scripts replies: GenerateText pops from generateReplies,
// StreamText always sends streamText in one delta.
type stubEngine struct {
	generateReplies []string
	generateErr     error
	generateCalls   int

	streamText  string
	streamErr   error
	streamCalls int

	lastMessages []llm.Message
}

func (e *stubEngine) GenerateText(_ context.Context, _ string, messages []llm.Message, _ llm.GenerateOptions) (string, error) {
	e.generateCalls++
	e.lastMessages = messages
	if e.generateErr != nil {
		return "", e.generateErr
	}
	if len(e.generateReplies) == 0 {
		return "", errors.New("stub: no scripted reply")
	}
	reply := e.generateReplies[0]
	e.generateReplies = e.generateReplies[1:]
	return reply, nil
}

func (e *stubEngine) StreamText(_ context.Context, _ string, messages []llm.Message, _ llm.GenerateOptions, onDelta func(string)) (string, error) {
	e.streamCalls++
	e.lastMessages = messages
	if e.streamErr != nil {
		return "", e.streamErr
	}
	if onDelta != nil {
		onDelta(e.streamText)
	}
	return e.streamText, nil
}

func newTestService(t *testing.T, engine llm.Engine) Service {
	t.Helper()
	return NewService(engine, testCatalog(t), NewMemoryCache(time.Minute),
		config.LLMConfig{Model: "test-model"}, config.TutorConfig{}, logger.NewNop())
}

func TestSuggestionsFromModel(t *testing.T) {
	engine := &stubEngine{generateReplies: []string{
		`{"encouragement":"Nice button work!","idea":"What if shaking it (ON SHAKE) played a giggle (PLAY SOUND GIGGLE)?"}`,
	}}
	svc := newTestService(t, engine)
	code := "input.onButtonPressed(Button.A, function () {\n})\n"

	got, err := svc.Suggestions(context.Background(), code)
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if got.Encouragement != "Nice button work!" {
		t.Errorf("Encouragement = %q", got.Encouragement)
	}
	if want := []string{"ON SHAKE", "PLAY SOUND GIGGLE"}; !reflect.DeepEqual(got.Blocks, want) {
		t.Errorf("Blocks = %v, want %v", got.Blocks, want)
	}

	again, err := svc.Suggestions(context.Background(), code)
	if err != nil {
		t.Fatalf("Suggestions (cached): %v", err)
	}
	if engine.generateCalls != 1 {
		t.Errorf("generateCalls = %d, want 1: second call should hit the cache", engine.generateCalls)
	}
	if !reflect.DeepEqual(again, got) {
		t.Errorf("cached suggestion %+v differs from original %+v", again, got)
	}
}

func TestSuggestionsCorrectiveRetry(t *testing.T) {
	engine := &stubEngine{generateReplies: []string{
		`{"encouragement":"Nice!","idea":"What if you used magic sparkles?"}`,
		`{"encouragement":"Nice!","idea":"What if button B (ON BUTTON B) showed a sad face (SHOW ICON SAD)?"}`,
	}}
	svc := newTestService(t, engine)

	got, err := svc.Suggestions(context.Background(), "basic.pause(100)\n")
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if engine.generateCalls != 2 {
		t.Errorf("generateCalls = %d, want 2", engine.generateCalls)
	}
	if want := []string{"ON BUTTON B", "SHOW ICON SAD"}; !reflect.DeepEqual(got.Blocks, want) {
		t.Errorf("Blocks = %v, want %v", got.Blocks, want)
	}
}

func TestSuggestionsEngineErrorFallsBackToRules(t *testing.T) {
	engine := &stubEngine{generateErr: errors.New("connection refused")}
	svc := newTestService(t, engine)

	got, err := svc.Suggestions(context.Background(), "basic.showString(\"HI\")\n")
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if got.Idea == "" || len(got.Blocks) == 0 {
		t.Fatalf("fallback produced empty suggestion: %+v", got)
	}
	if !ValidateBlocks(testCatalog(t), got.Blocks) {
		t.Errorf("fallback blocks %v fail validation", got.Blocks)
	}
}

func TestSuggestionsInvalidTwiceFallsBackToRules(t *testing.T) {
	engine := &stubEngine{generateReplies: []string{"not json", "still not json"}}
	svc := newTestService(t, engine)

	got, err := svc.Suggestions(context.Background(), "basic.pause(100)\n")
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if engine.generateCalls != 2 {
		t.Errorf("generateCalls = %d, want 2", engine.generateCalls)
	}
	if !ValidateBlocks(testCatalog(t), got.Blocks) {
		t.Errorf("fallback blocks %v fail validation", got.Blocks)
	}
}

func TestStreamEncouragementCachesAndReplays(t *testing.T) {
	engine := &stubEngine{streamText: "You made the screen glow with a heart!"}
	svc := newTestService(t, engine)
	code := "basic.showIcon(IconNames.Heart)\n"

	var first strings.Builder
	text, err := svc.StreamEncouragement(context.Background(), code, func(d string) { first.WriteString(d) })
	if err != nil {
		t.Fatalf("StreamEncouragement: %v", err)
	}
	if text != engine.streamText || first.String() != engine.streamText {
		t.Errorf("text = %q, deltas = %q, want %q", text, first.String(), engine.streamText)
	}

	var second strings.Builder
	replayed, err := svc.StreamEncouragement(context.Background(), code, func(d string) { second.WriteString(d) })
	if err != nil {
		t.Fatalf("StreamEncouragement (cached): %v", err)
	}
	if engine.streamCalls != 1 {
		t.Errorf("streamCalls = %d, want 1: second call should replay the cache", engine.streamCalls)
	}
	if replayed != text || second.String() != text {
		t.Errorf("replay = %q, deltas = %q, want %q", replayed, second.String(), text)
	}
}

func TestStreamEncouragementFallsBackToRules(t *testing.T) {
	engine := &stubEngine{streamErr: errors.New("engine down")}
	svc := newTestService(t, engine)

	var got strings.Builder
	text, err := svc.StreamEncouragement(context.Background(), "basic.showIcon(IconNames.Heart)\n", func(d string) { got.WriteString(d) })
	if err != nil {
		t.Fatalf("StreamEncouragement: %v", err)
	}
	if !strings.Contains(text, "drawing icons") {
		t.Errorf("fallback text = %q, want it to name the icon work", text)
	}
	if got.String() != text {
		t.Errorf("deltas = %q, want %q", got.String(), text)
	}
}

func TestStreamIdeaCleansBeforeCaching(t *testing.T) {
	engine := &stubEngine{streamText: "Idea to try: What  if (ON SHAKE) played a sound (PLAY SOUND HAPPY)? (so fun)"}
	svc := newTestService(t, engine)
	code := "basic.pause(100)\n"
	want := "What if (ON SHAKE) played a sound (PLAY SOUND HAPPY)? so fun"

	text, err := svc.StreamIdea(context.Background(), code, nil)
	if err != nil {
		t.Fatalf("StreamIdea: %v", err)
	}
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}

	var replayed strings.Builder
	again, err := svc.StreamIdea(context.Background(), code, func(d string) { replayed.WriteString(d) })
	if err != nil {
		t.Fatalf("StreamIdea (cached): %v", err)
	}
	if engine.streamCalls != 1 {
		t.Errorf("streamCalls = %d, want 1", engine.streamCalls)
	}
	if again != want || replayed.String() != want {
		t.Errorf("replay = %q, deltas = %q, want %q", again, replayed.String(), want)
	}
}

func TestStreamChatEmbedsProgramContext(t *testing.T) {
	engine := &stubEngine{streamText: "A heart lights up on the screen."}
	svc := newTestService(t, engine)
	history := []llm.Message{{Role: "user", Content: "What does my program do?"}}

	text, err := svc.StreamChat(context.Background(), "basic.showIcon(IconNames.Heart)", history, nil)
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	if text != engine.streamText {
		t.Errorf("text = %q, want %q", text, engine.streamText)
	}

	msgs := engine.lastMessages
	if len(msgs) != 2 || msgs[0].Role != "system" {
		t.Fatalf("messages = %+v, want system prompt plus history", msgs)
	}
	if !strings.Contains(msgs[0].Content, "basic.showIcon(IconNames.Heart)") {
		t.Error("system prompt should embed the current program")
	}
	if msgs[1] != history[0] {
		t.Errorf("history message = %+v, want %+v", msgs[1], history[0])
	}
}

func TestCacheStatsCountsKinds(t *testing.T) {
	engine := &stubEngine{
		generateReplies: []string{`{"encouragement":"Go!","idea":"What if (ON SHAKE) played (PLAY SOUND HAPPY)?"}`},
		streamText:      "Nice work!",
	}
	svc := newTestService(t, engine)
	ctx := context.Background()

	if _, err := svc.Suggestions(ctx, "basic.pause(100)"); err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if _, err := svc.StreamEncouragement(ctx, "basic.pause(100)", nil); err != nil {
		t.Fatalf("StreamEncouragement: %v", err)
	}

	st := svc.CacheStats(ctx)
	if st.Entries != 2 {
		t.Errorf("Entries = %d, want 2", st.Entries)
	}
	if st.ByKind[kindSuggestion] != 1 || st.ByKind[kindEncouragement] != 1 {
		t.Errorf("ByKind = %v", st.ByKind)
	}
}
