package session

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// RetryPolicy decides whether a transaction that lost a compare-and-set race
// is re-driven. Only ErrTransactionConflict is retried; every other failure is
// returned at once. The zero value makes a single attempt.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NoRetry makes every transaction a single attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// DefaultRetryPolicy retries a few times with jittered exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

func (p RetryPolicy) attempts() uint {
	if p.MaxAttempts == 0 {
		return 1
	}
	return p.MaxAttempts
}

// run calls op until it succeeds, fails with something other than a
// conflict, or runs out of attempts.
func run[T any](ctx context.Context, p RetryPolicy, name string, op func() (T, error)) (T, error) {
	if p.attempts() == 1 {
		return op()
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !errors.Is(err, ErrTransactionConflict) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.attempts()),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug().
				Err(err).
				Str("operation", name).
				Dur("retry_in", next).
				Msg("transaction conflict, retrying")
		}),
	)
}
