package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/openscout/orchestrator/internal/searxng"
)

func newTestHandler(t *testing.T, policy Policy) (*Handler, *[]time.Duration) {
	h := NewHandler(policy, zaptest.NewLogger(t))
	var delays []time.Duration
	h.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return h, &delays
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	h, delays := newTestHandler(t, DefaultPolicy())

	calls := 0
	err := h.Do(context.Background(), "search", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return searxng.NewError(searxng.KindConnection, "refused", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if len(*delays) != 2 {
		t.Errorf("Expected 2 backoff sleeps, got %d", len(*delays))
	}
}

func TestRetryNonRetryableFailsImmediately(t *testing.T) {
	h, delays := newTestHandler(t, DefaultPolicy())

	calls := 0
	cause := searxng.NewError(searxng.KindInvalidQuery, "bad query", nil)
	err := h.Do(context.Background(), "search", func(ctx context.Context) error {
		calls++
		return cause
	})
	if !errors.Is(err, cause) {
		t.Fatalf("Expected the original error, got %v", err)
	}
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		t.Error("Non-retryable failure must not be reported as exhaustion")
	}
	if calls != 1 {
		t.Errorf("Expected exactly 1 call, got %d", calls)
	}
	if len(*delays) != 0 {
		t.Errorf("Expected no sleeps, got %d", len(*delays))
	}
}

func TestRetryExhaustionReportedDistinctly(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxAttempts = 3
	h, _ := newTestHandler(t, policy)

	calls := 0
	err := h.Do(context.Background(), "search", func(ctx context.Context) error {
		calls++
		return searxng.NewError(searxng.KindTimeout, "deadline", nil)
	})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("Expected ExhaustedError, got %v", err)
	}
	if ex.Attempts != 3 || calls != 3 {
		t.Errorf("Expected 3 attempts, got attempts=%d calls=%d", ex.Attempts, calls)
	}
	if searxng.KindOf(err) != searxng.KindTimeout {
		t.Error("ExhaustedError must unwrap to the last cause")
	}
}

func TestRetryDelaysNonDecreasingUpToMax(t *testing.T) {
	policy := Policy{
		MaxAttempts: 6,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    400 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      0, // deterministic for the schedule check
	}
	h, delays := newTestHandler(t, policy)

	_ = h.Do(context.Background(), "search", func(ctx context.Context) error {
		return searxng.NewError(searxng.KindServer, "500", nil)
	})

	if len(*delays) != 5 {
		t.Fatalf("Expected 5 sleeps, got %d", len(*delays))
	}
	for i := 1; i < len(*delays); i++ {
		if (*delays)[i] < (*delays)[i-1] {
			t.Errorf("Delays must be non-decreasing: %v", *delays)
		}
	}
	for _, d := range *delays {
		if d > policy.MaxDelay {
			t.Errorf("Delay %v exceeds MaxDelay %v", d, policy.MaxDelay)
		}
	}
}

func TestRetryJitterStaysWithinBounds(t *testing.T) {
	policy := DefaultPolicy()
	policy.BaseDelay = 100 * time.Millisecond
	policy.MaxDelay = time.Hour
	h := NewHandler(policy, zaptest.NewLogger(t))

	for i := 0; i < 200; i++ {
		d := h.delayFor(2)
		lo := time.Duration(float64(200*time.Millisecond) * 0.5)
		hi := time.Duration(float64(200*time.Millisecond) * 1.5)
		if d < lo || d > hi {
			t.Fatalf("Jittered delay %v outside [%v, %v]", d, lo, hi)
		}
	}
}

func TestRetryContextCancelAbortsBackoff(t *testing.T) {
	h := NewHandler(DefaultPolicy(), zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Do(ctx, "search", func(ctx context.Context) error {
		return searxng.NewError(searxng.KindConnection, "refused", nil)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
