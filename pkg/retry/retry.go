package retry

import (
	"context"
	"errors"
	"time"
)

// Retry runs fn up to attempts times, sleeping between tries. It stops early
// when the context is cancelled and returns the last error.
func Retry(ctx context.Context, attempts int, sleep time.Duration, fn func() error) error {
	return If(ctx, attempts, sleep, fn, func(err error) bool {
		return err != nil
	})
}

func IfErrorIs(ctx context.Context, attempts int, sleep time.Duration, fn func() error, target error) error {
	return If(ctx, attempts, sleep, fn, func(err error) bool {
		return errors.Is(err, target)
	})
}

// If retries fn while predicate says the error is retryable.
func If(ctx context.Context, attempts int, sleep time.Duration, fn func() error, predicate func(error) bool) (err error) {
	for i := range attempts {
		if err = fn(); err == nil {
			return nil
		}
		if !predicate(err) || i >= attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(sleep):
		}
	}
	return err
}
