// Package retry implements bounded-attempt retry with exponential backoff.
// The retryable/fatal classification is data-driven: callers register the
// error kinds that warrant another attempt, everything else propagates
// immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Classifier reports whether an error is transient and worth retrying.
type Classifier func(error) bool

// Policy configures bounded retry behavior. Sleep is injectable so tests
// run without waiting on wall-clock delays.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   Classifier
	Sleep       func(time.Duration)
}

// New returns a Policy with real sleeping and the given classifier.
func New(maxAttempts int, baseDelay time.Duration, retryable Classifier) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Retryable:   retryable,
		Sleep:       func(d time.Duration) { time.Sleep(d) },
	}
}

// Is builds a Classifier matching any of the given sentinel errors.
func Is(kinds ...error) Classifier {
	return func(err error) bool {
		for _, kind := range kinds {
			if errors.Is(err, kind) {
				return true
			}
		}
		return false
	}
}

// Do invokes fn up to MaxAttempts times. Delay doubles after each failed
// attempt starting from BaseDelay. Fatal errors and context cancellation
// stop immediately; exhausting attempts wraps the last error with the
// attempt count.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: max attempts %d < 1", p.MaxAttempts)
	}

	delay := p.BaseDelay
	var last error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}

		if p.Retryable == nil || !p.Retryable(last) {
			return last
		}

		if attempt < p.MaxAttempts {
			p.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("exhausted %d attempts: %w", p.MaxAttempts, last)
}
