package chat

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy retries a failing call with exponential backoff. The zero
// value makes exactly one attempt.
type RetryPolicy struct {
	Retries         int
	InitialInterval time.Duration
}

// Do runs fn until it succeeds, the retries are spent or ctx is done.
// It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	b.MaxElapsedTime = 0

	retries := p.Retries
	if retries < 0 {
		retries = 0
	}

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		if err := fn(ctx); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx))
	return attempts, err
}
