// Package retry applies bounded exponential backoff around a single network
// call. The delay before retry n (1-based) is base^n units.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"tenderscrape/internal/scrapeerr"
	"time"

	"github.com/sethvargo/go-retry"
)

type Policy struct {
	MaxAttempts int
	BackoffBase float64
	// Unit scales every delay, it is time.Second outside of tests.
	Unit time.Duration
	// Retryable decides whether a failure is worth another attempt, it
	// defaults to scrapeerr.IsRetryable.
	Retryable func(error) bool
	Logger    *slog.Logger
}

func New(maxAttempts int, backoffBase float64) (Policy, error) {
	p := Policy{
		MaxAttempts: maxAttempts,
		BackoffBase: backoffBase,
		Unit:        time.Second,
	}
	return p, p.Validate()
}

func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BackoffBase <= 1 {
		return fmt.Errorf("retry: backoff base must be greater than 1, got %v", p.BackoffBase)
	}
	return nil
}

func (p Policy) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return scrapeerr.IsRetryable(err)
	}
	return p.Retryable(err)
}

// Delay is the wait after the given failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	unit := p.Unit
	if unit == 0 {
		unit = time.Second
	}
	return time.Duration(math.Pow(p.BackoffBase, float64(attempt)) * float64(unit))
}

// Schedule lists the delays between consecutive attempts when every attempt fails.
func (p Policy) Schedule() []time.Duration {
	var out []time.Duration
	for attempt := 1; attempt < p.MaxAttempts; attempt++ {
		out = append(out, p.Delay(attempt))
	}
	return out
}

func (p Policy) backoff() retry.Backoff {
	attempt := 0
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return p.Delay(attempt), false
	})
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), next)
}

// Do runs fn until it succeeds, fails with a non retryable error or the
// attempts run out. Exhaustion is reported as *scrapeerr.RetryExhaustedError
// wrapping the last failure. Cancelling ctx interrupts the wait between attempts.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	log := p.logger().With("op", op)

	attempt := 0
	exhausted := false
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		log.Debug("attempt", "attempt", attempt, "max_attempts", p.MaxAttempts)

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !p.retryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			exhausted = true
			return retry.RetryableError(err)
		}

		log.Warn(
			"attempt failed, retrying",
			"attempt", attempt,
			"delay", p.Delay(attempt),
			"err", err,
		)
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}
	if exhausted {
		log.Error("retries exhausted", "attempts", attempt, "err", err)
		return &scrapeerr.RetryExhaustedError{Op: op, Attempts: attempt, Cause: err}
	}
	return err
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
