// Package collab provides the shared rate-limit and retry-budget
// discipline an external-source collaborator (a fetcher, an
// object-store client) embeds. The collaborators themselves — HTTP
// fetchers, cloud SDK clients — are out of scope; this package is the
// reusable contract the core hands them.
package collab

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/forecastbench/forecastbench/pkg/bench/berrors"
)

// Limiter wraps golang.org/x/time/rate to cap concurrency per
// external host.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter builds a limiter allowing ratePerSec steady-state
// requests with a burst of burst.
func NewLimiter(ratePerSec float64, burst int) *Limiter {
	return &Limiter{rl: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}

// RetryPolicy bounds a collaborator's exponential-backoff retry
// budget for a single external call.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Budget      time.Duration // wall-clock ceiling across all attempts
}

// DefaultRetryPolicy gives every HTTP-fetch collaborator a ~5 minute
// bounded retry budget before surfacing an availability error.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 6,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
		Budget:      5 * time.Minute,
	}
}

// backoff computes the delay after failed attempt n (1-indexed),
// before the next attempt starts, with full
// jitter so a large collaborator fleet does not retry in lockstep.
func (p RetryPolicy) backoff(n int) time.Duration {
	d := p.BaseBackoff * time.Duration(math.Pow(2, float64(n-1)))
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// RetryableFunc is a collaborator operation that returns whether the
// error is worth retrying alongside the error itself.
type RetryableFunc func(ctx context.Context, attempt int) (retriable bool, err error)

// Do runs fn under p's retry policy. It returns the last error once
// attempts or the time budget is exhausted, wrapped so the caller can
// recognize it as an availability failure via pkg/bench/berrors.
func Do(ctx context.Context, p RetryPolicy, fn RetryableFunc) error {
	deadline := time.Now().Add(p.Budget)
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if time.Now().After(deadline) {
			return berrors.NewAvailability("collab.Do", attempt-1, fmt.Errorf("retry budget exhausted: %w", lastErr))
		}
		retriable, err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retriable {
			return fmt.Errorf("collab: non-retriable failure on attempt %d: %w", attempt, err)
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}
	return berrors.NewAvailability("collab.Do", p.MaxAttempts, lastErr)
}

// RespectRetryAfter parses an HTTP Retry-After header value (seconds
// form only — the date form is not produced by any source this
// benchmark targets) and returns the wait duration, or zero if absent
// or unparseable.
func RespectRetryAfter(headerValue string) time.Duration {
	var seconds int
	if _, err := fmt.Sscanf(headerValue, "%d", &seconds); err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
