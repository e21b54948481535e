package health

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openscout/orchestrator/internal/circuitbreaker"
)

// SearxNGChecker probes the search service. Critical: without search there
// is no research.
type SearxNGChecker struct {
	BaseURL string
	Client  *http.Client
}

func (c *SearxNGChecker) Name() string     { return "searxng" }
func (c *SearxNGChecker) IsCritical() bool { return true }

func (c *SearxNGChecker) Check(ctx context.Context) error {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("searxng unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("searxng status %d", resp.StatusCode)
	}
	return nil
}

// RedisChecker probes the cache backend. Non-critical: the cache degrades
// to its local tier.
type RedisChecker struct {
	Wrapper *circuitbreaker.RedisWrapper
}

func (c *RedisChecker) Name() string     { return "redis" }
func (c *RedisChecker) IsCritical() bool { return false }

func (c *RedisChecker) Check(ctx context.Context) error {
	if c.Wrapper == nil {
		return nil
	}
	if c.Wrapper.IsCircuitBreakerOpen() {
		return fmt.Errorf("redis circuit breaker open")
	}
	return c.Wrapper.Ping(ctx).Err()
}
