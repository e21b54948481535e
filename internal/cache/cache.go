// Package cache memoizes coordination results so repeated research of the
// same topic is served without re-running the agents. Redis is the shared
// tier; a small local LRU sits in front and keeps the cache useful when
// Redis is down.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openscout/orchestrator/internal/agents"
	"github.com/openscout/orchestrator/internal/circuitbreaker"
	"github.com/openscout/orchestrator/internal/coordinator"
	ometrics "github.com/openscout/orchestrator/internal/metrics"
)

// Config tunes the result cache.
type Config struct {
	TTL           time.Duration // entry lifetime, default 1h
	LocalCapacity int           // local LRU size, default 128
	KeyPrefix     string        // redis key namespace
}

// DefaultConfig returns the standard cache knobs.
func DefaultConfig() Config {
	return Config{
		TTL:           time.Hour,
		LocalCapacity: 128,
		KeyPrefix:     "openscout:research",
	}
}

type localEntry struct {
	key     string
	topic   string
	res     *coordinator.Result
	expires time.Time
}

// ResultCache is safe for concurrent Get/Set/Invalidate. The redis wrapper
// may be nil for a local-only cache.
type ResultCache struct {
	redis  *circuitbreaker.RedisWrapper
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	local map[string]*list.Element
	lru   *list.List // front = most recently used
}

// New creates a result cache. Pass a nil redis wrapper to run local-only.
func New(redis *circuitbreaker.RedisWrapper, cfg Config, logger *zap.Logger) *ResultCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.LocalCapacity <= 0 {
		cfg.LocalCapacity = DefaultConfig().LocalCapacity
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCache{
		redis:  redis,
		cfg:    cfg,
		logger: logger,
		local:  make(map[string]*list.Element),
		lru:    list.New(),
	}
}

// Get returns the memoized round for (topic, depth, options), if present
// and unexpired. The local tier is consulted first.
func (c *ResultCache) Get(ctx context.Context, topic string, depth int, rctx agents.ResearchContext) (*coordinator.Result, bool) {
	key := c.key(topic, depth, rctx)

	if res, ok := c.getLocal(key); ok {
		ometrics.CacheHits.WithLabelValues("local").Inc()
		return res, true
	}

	if c.redis != nil && !c.redis.IsCircuitBreakerOpen() {
		data, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			var res coordinator.Result
			if err := json.Unmarshal(data, &res); err != nil {
				c.logger.Warn("Discarding undecodable cache entry",
					zap.String("key", key),
					zap.Error(err),
				)
			} else {
				c.putLocal(key, topic, &res)
				ometrics.CacheHits.WithLabelValues("redis").Inc()
				return &res, true
			}
		}
	}

	ometrics.CacheMisses.Inc()
	return nil, false
}

// Set memoizes a round in both tiers. Redis write failures are logged and
// otherwise ignored: the local tier still holds the entry.
func (c *ResultCache) Set(ctx context.Context, topic string, depth int, rctx agents.ResearchContext, res *coordinator.Result) {
	if res == nil {
		return
	}
	key := c.key(topic, depth, rctx)
	c.putLocal(key, topic, res)

	if c.redis == nil || c.redis.IsCircuitBreakerOpen() {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("Failed to encode round for caching", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cfg.TTL).Err(); err != nil {
		c.logger.Warn("Redis cache write failed, entry held locally only",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// Invalidate drops every cached round for a topic, at any depth or option
// set, from both tiers.
func (c *ResultCache) Invalidate(ctx context.Context, topic string) {
	ometrics.CacheInvalidations.Inc()

	c.mu.Lock()
	// Keys hash the lowercased topic, so the sweep must match it the same
	// way; entries store the topic lowercased.
	want := strings.ToLower(topic)
	for key, elem := range c.local {
		if elem.Value.(*localEntry).topic == want {
			c.lru.Remove(elem)
			delete(c.local, key)
		}
	}
	ometrics.CacheLocalSize.Set(float64(len(c.local)))
	c.mu.Unlock()

	if c.redis == nil || c.redis.IsCircuitBreakerOpen() {
		return
	}
	pattern := fmt.Sprintf("%s:%s:*", c.cfg.KeyPrefix, slug(topic))
	keys, err := c.redis.Keys(ctx, pattern).Result()
	if err != nil {
		c.logger.Warn("Cache invalidation scan failed",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}
	if len(keys) > 0 {
		if err := c.redis.Del(ctx, keys...).Err(); err != nil {
			c.logger.Warn("Cache invalidation delete failed",
				zap.String("topic", topic),
				zap.Error(err),
			)
		}
	}
}

func (c *ResultCache) getLocal(key string) (*coordinator.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.local[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*localEntry)
	if time.Now().After(entry.expires) {
		c.lru.Remove(elem)
		delete(c.local, key)
		ometrics.CacheLocalSize.Set(float64(len(c.local)))
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return entry.res, true
}

func (c *ResultCache) putLocal(key, topic string, res *coordinator.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.local[key]; ok {
		entry := elem.Value.(*localEntry)
		entry.res = res
		entry.expires = time.Now().Add(c.cfg.TTL)
		c.lru.MoveToFront(elem)
		return
	}

	for len(c.local) >= c.cfg.LocalCapacity {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.lru.Remove(oldest)
		delete(c.local, oldest.Value.(*localEntry).key)
	}

	c.local[key] = c.lru.PushFront(&localEntry{
		key:     key,
		topic:   strings.ToLower(topic),
		res:     res,
		expires: time.Now().Add(c.cfg.TTL),
	})
	ometrics.CacheLocalSize.Set(float64(len(c.local)))
}

// key derives the redis key for one (topic, depth, options) combination.
// The topic slug stays visible in the key so Invalidate can pattern-match
// it; the hash covers everything that varies a round's output.
func (c *ResultCache) key(topic string, depth int, rctx agents.ResearchContext) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s",
		strings.ToLower(topic), depth,
		rctx.UserLevel, rctx.LearningStyle,
		strings.Join(rctx.ContentTypes, ","), rctx.Language)
	return fmt.Sprintf("%s:%s:%s", c.cfg.KeyPrefix, slug(topic), hex.EncodeToString(h.Sum(nil))[:16])
}

// slug reduces a topic to redis-key-safe characters so it cannot smuggle
// glob metacharacters into Keys patterns.
func slug(topic string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(topic) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "topic"
	}
	return b.String()
}
