/*
Package retry implements the three layers of failure handling the
scheduling engine needs around a cloud API call: bounded exponential
backoff for transient RPC errors, a circuit breaker per (account, region,
service) so a persistently failing partition stops being hammered, and the
bisect-retry pattern that isolates a poisoned resource id within an
otherwise-healthy batch.
*/
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffConfig bounds the exponential backoff retry loop.
type BackoffConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultBackoff mirrors the AWS SDK's own default retry posture: a handful
// of attempts, capped delay, full jitter.
var DefaultBackoff = BackoffConfig{MaxAttempts: 5, BaseDelay: 200 * time.Millisecond, MaxDelay: 10 * time.Second}

// Retryable classifies an error as transient (rate-limit, throttling,
// server 5xx) versus terminal. Callers pass in the predicate because what
// counts as transient is cloud-SDK-specific.
type Retryable func(error) bool

// WithBackoff runs fn, retrying on transient errors with bounded
// exponential backoff and full jitter. It stops retrying once ctx is
// canceled or MaxAttempts is exhausted, returning the last error.
func WithBackoff(ctx context.Context, cfg BackoffConfig, isTransient Retryable, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		delay := backoffDelay(cfg, attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func backoffDelay(cfg BackoffConfig, attempt int) time.Duration {
	exp := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
	capped := math.Min(exp, float64(cfg.MaxDelay))
	return time.Duration(rand.Int63n(int64(capped) + 1))
}
