// Package retry implements the retry discipline described in spec.md §5:
// RPCs and object-store reads retry with randomized exponential backoff
// (base B, factor F, bounded attempts N); retriable error classes are
// configurable per call-site, and non-retriable errors surface
// immediately. It is a thin wrapper over cenkalti/backoff so call sites
// stay free of hand-rolled backoff loops while still getting bounded,
// cancellable retries.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sandialabs/firewheel-core/pkg/config"
)

// Retriable reports whether err should trigger another attempt. A nil
// Retriable treats every error as retriable.
type Retriable func(error) bool

// Do runs fn, retrying on failure per cfg until MaxAttempts is spent or
// ctx is done. A call whose error fails isRetriable (when non-nil)
// returns immediately without further attempts.
func Do(ctx context.Context, cfg config.Retry, isRetriable Retriable, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.Base
	eb.Multiplier = cfg.Factor
	eb.MaxElapsedTime = 0 // bounded by attempt count below, not wall time

	bo := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries(cfg.MaxAttempts))), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if isRetriable != nil && !isRetriable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

func maxRetries(maxAttempts int) int {
	if maxAttempts <= 1 {
		return 0
	}
	return maxAttempts - 1
}

// Sleep blocks for d or until ctx is cancelled, whichever comes first.
// Suspension points in the schedule executor (spec.md §5) use this so
// every wait is cancellable.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
