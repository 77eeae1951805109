package usecase

import (
	"context"
	"time"

	"cinema-ticketing/pkg/apperror"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// retrier bounds how often a transient persistence fault is retried.
type retrier struct {
	retries int
	backoff time.Duration
	log     *zap.Logger
}

func (r retrier) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.backoff),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.2),
		backoff.WithMaxInterval(max(r.backoff*8, time.Millisecond)),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(max(r.retries, 0))), ctx)
}

// withRetry calls fn until it succeeds, fails with a non-retryable error or
// the retries are used up. Only errors apperror.IsRetryable accepts are
// retried; everything else is returned on the first attempt.
func withRetry[T any](ctx context.Context, r retrier, op string, fn func() (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryNotifyWithData(
		func() (T, error) {
			v, err := fn()
			if err != nil && !apperror.IsRetryable(err) {
				return v, backoff.Permanent(err)
			}
			return v, err
		},
		r.policy(ctx),
		func(err error, wait time.Duration) {
			attempt++
			r.log.Warn("Transient persistence failure, retrying",
				zap.Error(err),
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
			)
		},
	)
}

// withRetryErr is withRetry for calls that only return an error.
func withRetryErr(ctx context.Context, r retrier, op string, fn func() error) error {
	_, err := withRetry(ctx, r, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
