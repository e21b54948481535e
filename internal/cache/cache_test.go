package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap/zaptest"

	"github.com/openscout/orchestrator/internal/agents"
	"github.com/openscout/orchestrator/internal/aggregation"
	"github.com/openscout/orchestrator/internal/circuitbreaker"
	"github.com/openscout/orchestrator/internal/coordinator"
)

func newRedisCache(t *testing.T, cfg Config) (*ResultCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	wrapper := circuitbreaker.NewRedisWrapper(client, zaptest.NewLogger(t))
	return New(wrapper, cfg, zaptest.NewLogger(t)), mr
}

func round(topic string) *coordinator.Result {
	return &coordinator.Result{
		Topic:   topic,
		Status:  agents.StatusSuccess,
		Content: &aggregation.Content{Summary: topic + " summary", Confidence: 0.7},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := newRedisCache(t, Config{})
	ctx := context.Background()
	rctx := agents.ResearchContext{UserLevel: "beginner"}

	if _, ok := c.Get(ctx, "quantum computing", 0, rctx); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	c.Set(ctx, "quantum computing", 0, rctx, round("quantum computing"))

	got, ok := c.Get(ctx, "quantum computing", 0, rctx)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got.Content.Summary != "quantum computing summary" {
		t.Errorf("wrong cached round: %q", got.Content.Summary)
	}

	// Different depth and different options are distinct entries.
	if _, ok := c.Get(ctx, "quantum computing", 1, rctx); ok {
		t.Error("depth should be part of the cache key")
	}
	if _, ok := c.Get(ctx, "quantum computing", 0, agents.ResearchContext{UserLevel: "advanced"}); ok {
		t.Error("options should be part of the cache key")
	}
}

func TestCacheRedisTierSurvivesLocalEviction(t *testing.T) {
	c, _ := newRedisCache(t, Config{LocalCapacity: 2})
	ctx := context.Background()
	rctx := agents.ResearchContext{}

	for i := 0; i < 5; i++ {
		topic := fmt.Sprintf("topic %d", i)
		c.Set(ctx, topic, 0, rctx, round(topic))
	}

	// topic 0 was evicted locally but must come back from Redis.
	got, ok := c.Get(ctx, "topic 0", 0, rctx)
	if !ok {
		t.Fatal("expected redis-tier hit after local eviction")
	}
	if got.Topic != "topic 0" {
		t.Errorf("wrong round from redis tier: %q", got.Topic)
	}
}

func TestCacheInvalidate(t *testing.T) {
	c, _ := newRedisCache(t, Config{})
	ctx := context.Background()
	rctx := agents.ResearchContext{}

	c.Set(ctx, "quantum computing", 0, rctx, round("quantum computing"))
	c.Set(ctx, "quantum computing", 1, rctx, round("quantum computing"))
	c.Set(ctx, "other topic", 0, rctx, round("other topic"))

	c.Invalidate(ctx, "quantum computing")

	if _, ok := c.Get(ctx, "quantum computing", 0, rctx); ok {
		t.Error("depth-0 entry survived invalidation")
	}
	if _, ok := c.Get(ctx, "quantum computing", 1, rctx); ok {
		t.Error("depth-1 entry survived invalidation")
	}
	if _, ok := c.Get(ctx, "other topic", 0, rctx); !ok {
		t.Error("unrelated topic was invalidated")
	}
}

func TestCacheInvalidateIsCaseInsensitive(t *testing.T) {
	// Keys hash the lowercased topic, so lookups ignore case; the local
	// sweep must drop entries on the same terms or they outlive the redis
	// keys and keep serving stale rounds.
	c, _ := newRedisCache(t, Config{})
	ctx := context.Background()
	rctx := agents.ResearchContext{}

	c.Set(ctx, "Quantum Computing", 0, rctx, round("Quantum Computing"))

	c.Invalidate(ctx, "quantum computing")

	if _, ok := c.Get(ctx, "Quantum Computing", 0, rctx); ok {
		t.Error("entry survived invalidation under a differently-cased topic")
	}
	if _, ok := c.Get(ctx, "quantum computing", 0, rctx); ok {
		t.Error("lowercased lookup still served the invalidated entry")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c, mr := newRedisCache(t, Config{TTL: 50 * time.Millisecond})
	ctx := context.Background()
	rctx := agents.ResearchContext{}

	c.Set(ctx, "quantum computing", 0, rctx, round("quantum computing"))

	time.Sleep(80 * time.Millisecond)
	mr.FastForward(100 * time.Millisecond)

	if _, ok := c.Get(ctx, "quantum computing", 0, rctx); ok {
		t.Error("entry survived past its TTL")
	}
}

func TestCacheLocalOnlyDegradation(t *testing.T) {
	// No redis wrapper at all: the cache still memoizes locally.
	c := New(nil, Config{}, zaptest.NewLogger(t))
	ctx := context.Background()
	rctx := agents.ResearchContext{}

	c.Set(ctx, "quantum computing", 0, rctx, round("quantum computing"))
	if _, ok := c.Get(ctx, "quantum computing", 0, rctx); !ok {
		t.Fatal("local-only cache lost its entry")
	}
	c.Invalidate(ctx, "quantum computing")
	if _, ok := c.Get(ctx, "quantum computing", 0, rctx); ok {
		t.Fatal("local-only invalidation did not remove the entry")
	}
}

func TestCacheSurvivesRedisOutage(t *testing.T) {
	c, mr := newRedisCache(t, Config{})
	ctx := context.Background()
	rctx := agents.ResearchContext{}

	c.Set(ctx, "quantum computing", 0, rctx, round("quantum computing"))
	mr.Close()

	// Reads keep working from the local tier and writes do not error.
	if _, ok := c.Get(ctx, "quantum computing", 0, rctx); !ok {
		t.Error("local tier lost the entry during the outage")
	}
	c.Set(ctx, "another topic", 0, rctx, round("another topic"))
	if _, ok := c.Get(ctx, "another topic", 0, rctx); !ok {
		t.Error("writes during the outage should land in the local tier")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(nil, Config{LocalCapacity: 16}, zaptest.NewLogger(t))
	ctx := context.Background()
	rctx := agents.ResearchContext{}

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				topic := fmt.Sprintf("topic %d", (g+i)%20)
				c.Set(ctx, topic, 0, rctx, round(topic))
				c.Get(ctx, topic, 0, rctx)
				if i%10 == 0 {
					c.Invalidate(ctx, topic)
				}
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
