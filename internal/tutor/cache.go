package tutor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/blockbridge-backend/internal/config"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

// Stats reports cache effectiveness for the tutor admin endpoint.
type Stats struct {
	Hits    int64            `json:"hits"`
	Misses  int64            `json:"misses"`
	Entries int64            `json:"entries"`
	ByKind  map[string]int64 `json:"by_kind"`
}

// Cache stores tutor replies keyed by response kind ("suggestion",
// "encouragement", "idea") and program signature. A classroom of thirty
// students converges on a handful of signatures fast, so even a small
// cache absorbs most model calls.
type Cache interface {
	Get(ctx context.Context, kind, signature string) ([]byte, bool)
	Set(ctx context.Context, kind, signature string, value []byte)
	Stats(ctx context.Context) Stats
}

const defaultCacheTTL = time.Hour

// NewCache builds the backend named by cfg: in-process memory by default,
// redis when several server replicas should share replies.
func NewCache(cfg config.TutorConfig, log *logger.Logger) (Cache, error) {
	ttl := cfg.CacheTTL.Duration
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	switch cfg.CacheBackend {
	case "", "memory":
		return NewMemoryCache(ttl), nil
	case "redis":
		return NewRedisCache(ttl, log)
	default:
		return nil, fmt.Errorf("tutor: unknown cache backend %q", cfg.CacheBackend)
	}
}

type memoryEntry struct {
	value   []byte
	kind    string
	expires time.Time
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMemoryCache keeps entries in process memory with lazy TTL eviction.
func NewMemoryCache(ttl time.Duration) Cache {
	return &memoryCache{entries: make(map[string]memoryEntry), ttl: ttl}
}

func cacheKey(kind, signature string) string { return kind + ":" + signature }

func (c *memoryCache) Get(_ context.Context, kind, signature string) ([]byte, bool) {
	key := cacheKey(kind, signature)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expires) {
		c.hits.Add(1)
		return e.value, true
	}
	if ok {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	}
	c.misses.Add(1)
	return nil, false
}

func (c *memoryCache) Set(_ context.Context, kind, signature string, value []byte) {
	c.mu.Lock()
	c.entries[cacheKey(kind, signature)] = memoryEntry{
		value:   value,
		kind:    kind,
		expires: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

func (c *memoryCache) Stats(_ context.Context) Stats {
	st := Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), ByKind: map[string]int64{}}
	now := time.Now()
	c.mu.RLock()
	for _, e := range c.entries {
		if now.Before(e.expires) {
			st.Entries++
			st.ByKind[e.kind]++
		}
	}
	c.mu.RUnlock()
	return st
}

type redisCache struct {
	log    *logger.Logger
	client *goredis.Client
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCache connects to the redis named by REDIS_ADDR. Entry counts in
// Stats are shared across replicas; hit and miss counters are per-process.
func NewRedisCache(ttl time.Duration, log *logger.Logger) (Cache, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &redisCache{
		log:    log.With("component", "TutorCache"),
		client: client,
		ttl:    ttl,
	}, nil
}

// redisKey hashes the signature: signatures embed free-form trigger and
// action lists, and hashing keeps keys short and delimiter-safe.
func redisKey(kind, signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return "tutor:" + kind + ":" + hex.EncodeToString(sum[:16])
}

func (c *redisCache) Get(ctx context.Context, kind, signature string) ([]byte, bool) {
	val, err := c.client.Get(ctx, redisKey(kind, signature)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("cache get failed", "kind", kind, "err", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return val, true
}

func (c *redisCache) Set(ctx context.Context, kind, signature string, value []byte) {
	if err := c.client.Set(ctx, redisKey(kind, signature), value, c.ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "kind", kind, "err", err)
	}
}

func (c *redisCache) Stats(ctx context.Context) Stats {
	st := Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), ByKind: map[string]int64{}}
	iter := c.client.Scan(ctx, 0, "tutor:*", 0).Iterator()
	for iter.Next(ctx) {
		st.Entries++
		parts := strings.SplitN(iter.Val(), ":", 3)
		if len(parts) == 3 {
			st.ByKind[parts[1]]++
		}
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("cache scan failed", "err", err)
	}
	return st
}
