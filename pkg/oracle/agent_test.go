package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"deadline exceeded", fmt.Errorf("chat: %w", context.DeadlineExceeded), ErrTimeout},
		{"http 429", errors.New("provider returned 429 Too Many Requests"), ErrRateLimited},
		{"rate limit text", errors.New("Rate limit exceeded for deployment"), ErrRateLimited},
		{"net error", timeoutErr{}, ErrTransport},
		{"connection refused", errors.New("dial tcp 127.0.0.1:443: connection refused"), ErrTransport},
		{"bad gateway", errors.New("unexpected status 502 from provider"), ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classify(%v) = %v, want wrapping %v", tt.err, got, tt.want)
			}
			if !errors.Is(got, tt.err) && !errors.Is(got, context.DeadlineExceeded) {
				t.Errorf("classify(%v) = %v, original cause lost", tt.err, got)
			}
		})
	}
}

func TestClassifyLeavesFatalErrorsUntouched(t *testing.T) {
	fatal := errors.New("invalid api key")
	if got := classify(fatal); got != fatal {
		t.Errorf("classify(%v) = %v, want unchanged", fatal, got)
	}
}

func TestRetryableKindsCoverTransientSentinels(t *testing.T) {
	kinds := RetryableKinds()
	for _, want := range []error{ErrRateLimited, ErrTimeout, ErrTransport} {
		found := false
		for _, k := range kinds {
			if errors.Is(k, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("RetryableKinds() missing %v", want)
		}
	}
	for _, k := range kinds {
		if errors.Is(k, ErrMalformed) {
			t.Error("RetryableKinds() must not include ErrMalformed")
		}
	}
}

func TestNewAgentKeepsTimeout(t *testing.T) {
	a := NewAgent(gaconfig.DefaultAgentConfig(), 90*time.Second)
	if a.timeout != 90*time.Second {
		t.Errorf("timeout = %v, want 90s", a.timeout)
	}
}
