// Package retry provides exponential-backoff retry for transient failures of
// the external search dependency. Non-retryable errors propagate on the
// first attempt; exhaustion is reported distinctly from the last cause.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// retryable is implemented by errors that know whether they are transient.
// The searxng error type implements it.
type retryable interface {
	Retryable() bool
}

// ExhaustedError wraps the final cause after all attempts failed.
type ExhaustedError struct {
	Attempts int
	Cause    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error { return e.Cause }

// Policy configures the backoff schedule.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64 // multiplicative jitter fraction, 0.5 means +-50%
}

// DefaultPolicy is the search-layer policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.5,
	}
}

// Handler executes operations under a retry policy.
type Handler struct {
	policy Policy
	logger *zap.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewHandler creates a handler with the given policy.
func NewHandler(policy Policy, logger *zap.Logger) *Handler {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 2.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		policy: policy,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Do runs op, retrying on retryable errors up to MaxAttempts. The context
// aborts both the operation (it is passed through) and the backoff sleep.
func (h *Handler) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= h.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == h.policy.MaxAttempts {
			break
		}

		delay := h.delayFor(attempt)
		h.logger.Warn("Retrying operation",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := h.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: h.policy.MaxAttempts, Cause: lastErr}
}

// delayFor computes the backoff for a completed attempt (1-based) with
// multiplicative jitter.
func (h *Handler) delayFor(attempt int) time.Duration {
	base := float64(h.policy.BaseDelay) * math.Pow(h.policy.Multiplier, float64(attempt-1))
	if max := float64(h.policy.MaxDelay); h.policy.MaxDelay > 0 && base > max {
		base = max
	}
	if h.policy.Jitter > 0 {
		// Uniform in [1-jitter, 1+jitter].
		factor := 1 + h.policy.Jitter*(2*rand.Float64()-1)
		base *= factor
	}
	return time.Duration(base)
}

// IsRetryable reports whether err is worth another attempt. Errors carrying
// their own classification win; context errors never retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	// Unclassified errors are treated as transient; the attempt cap bounds
	// the damage.
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
