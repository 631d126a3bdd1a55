package oracle

import "errors"

// Transport failure kinds. Retryable kinds are consumed by the retry
// policy's classifier; the rest propagate immediately.
var (
	ErrRateLimited = errors.New("oracle rate limited")
	ErrTimeout     = errors.New("oracle call timed out")
	ErrTransport   = errors.New("oracle transport failure")
	ErrMalformed   = errors.New("oracle returned unparsable output")
)

// RetryableKinds lists the transient failure sentinels in one place so
// the retry policy stays data-driven rather than per-call-site.
func RetryableKinds() []error {
	return []error{ErrRateLimited, ErrTimeout, ErrTransport}
}
