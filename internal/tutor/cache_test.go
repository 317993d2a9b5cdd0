package tutor

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/blockbridge-backend/internal/config"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)

	if _, ok := c.Get(ctx, kindSuggestion, "sig-a"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Set(ctx, kindSuggestion, "sig-a", []byte("reply"))

	got, ok := c.Get(ctx, kindSuggestion, "sig-a")
	if !ok || string(got) != "reply" {
		t.Fatalf("Get = %q, %v; want %q, true", got, ok, "reply")
	}
	if _, ok := c.Get(ctx, kindIdea, "sig-a"); ok {
		t.Fatal("kinds must not share entries")
	}

	st := c.Stats(ctx)
	if st.Hits != 1 || st.Misses != 2 {
		t.Errorf("Stats = %+v, want 1 hit and 2 misses", st)
	}
	if st.Entries != 1 || st.ByKind[kindSuggestion] != 1 {
		t.Errorf("Stats = %+v, want one suggestion entry", st)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Millisecond)

	c.Set(ctx, kindIdea, "sig", []byte("stale"))
	time.Sleep(10 * time.Millisecond)

	if _, ok := c.Get(ctx, kindIdea, "sig"); ok {
		t.Fatal("expired entry served")
	}
	if st := c.Stats(ctx); st.Entries != 0 {
		t.Errorf("Entries = %d after expiry, want 0", st.Entries)
	}
}

func TestNewCacheDefaultsToMemory(t *testing.T) {
	c, err := NewCache(config.TutorConfig{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if _, ok := c.(*memoryCache); !ok {
		t.Errorf("NewCache returned %T, want *memoryCache", c)
	}
}

func TestNewCacheRejectsUnknownBackend(t *testing.T) {
	if _, err := NewCache(config.TutorConfig{CacheBackend: "memcached"}, logger.NewNop()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
