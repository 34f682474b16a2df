package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultConflictRetries bounds how many times a conflicting write is attempted.
const DefaultConflictRetries = 4

// RetryConflicts runs op until it succeeds, fails with an error for which
// isConflict is false, or the attempt budget is spent. Adapters use it for
// serialization failures and busy databases, which are safe to replay
// because each op is a single atomic statement.
func RetryConflicts[T any](ctx context.Context, isConflict func(error) bool, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !isConflict(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(DefaultConflictRetries),
	)
}
