package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dimitrije/teamforge/internal/metrics"
	"github.com/dimitrije/teamforge/internal/store"
)

// errStale marks a conditional write that lost its race.
var errStale = errors.New("stale read")

// retrier drives read-modify-write loops over conditional store writes.
type retrier struct {
	attempts int
	initial  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func (r retrier) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.initial),
		backoff.WithMaxInterval(250*time.Millisecond),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(r.attempts-1, 0))), ctx)
}

// conditional runs fn until it succeeds, fails for a reason other than a
// lost race, or runs out of attempts. fn must re-read whatever it writes
// and report a lost race as errStale.
func (r retrier) conditional(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := backoff.RetryNotify(func() error {
		err := fn(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errStale):
			return err
		default:
			return backoff.Permanent(err)
		}
	}, r.policy(ctx), func(err error, wait time.Duration) {
		r.metrics.ContentionRetry(op)
		r.logger.Debug("conditional write lost race", "operation", op, "retry_in", wait)
	})

	if errors.Is(err, errStale) {
		r.logger.Warn("conditional write exhausted retries", "operation", op, "attempts", r.attempts)
		return ErrContention.With("", err)
	}
	return err
}

// stale converts a lost-race store error into errStale and leaves every
// other error alone.
func stale(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errStale
	}
	return err
}
