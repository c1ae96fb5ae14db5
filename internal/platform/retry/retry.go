// Package retry bounds remote calls: Do retries one operation with exponential
// backoff and jitter, and Pacer spaces consecutive per-item calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"study_sync/internal/common"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64 // randomization factor in [0, 1]
}

func (p Policy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0 // attempts bound the loop, not wall time
	b.Reset()

	maxRetries := uint64(0)
	if p.MaxAttempts > 1 {
		maxRetries = uint64(p.MaxAttempts - 1)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
}

// Notify is called before each backoff sleep with the failed attempt number.
type Notify func(attempt int, err error, wait time.Duration)

// Do runs op until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. Exhaustion yields an error wrapping common.ErrTransient and
// the last failure.
func Do(ctx context.Context, p Policy, retryable func(error) bool, op func(attempt int) error, notify Notify) error {
	attempt := 0
	var last error

	err := backoff.RetryNotify(func() error {
		attempt++
		err := op(attempt)
		if err == nil {
			return nil
		}
		last = err
		if retryable != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.newBackOff(ctx), func(err error, wait time.Duration) {
		if notify != nil {
			notify(attempt, err, wait)
		}
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if retryable != nil && !retryable(last) {
		return err
	}
	return fmt.Errorf("%w: giving up after %d attempts: %w", common.ErrTransient, attempt, last)
}

// Pacer enforces a minimum gap between consecutive calls to Wait.
type Pacer struct {
	limiter *rate.Limiter
}

func NewPacer(delay time.Duration) *Pacer {
	if delay <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
