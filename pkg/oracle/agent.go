package oracle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/attestd/attest/pkg/formatting"
)

type fieldsResponse struct {
	Fields []Field `json:"fields"`
}

// Agent is an Extractor backed by a go-agents language model client.
// A fresh agent is created per call so concurrent extractions never share
// client state.
type Agent struct {
	cfg     gaconfig.AgentConfig
	timeout time.Duration
}

// NewAgent creates an oracle client from a finalized agent configuration.
// Every call carries the given timeout.
func NewAgent(cfg gaconfig.AgentConfig, timeout time.Duration) *Agent {
	return &Agent{cfg: cfg, timeout: timeout}
}

// Extract sends one chunk to the model and parses its structured response.
// Vision is used when page images are present, chat otherwise.
func (a *Agent) Extract(ctx context.Context, req Request) ([]Field, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ag, err := agent.New(&a.cfg)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	var content string
	if len(req.Images) > 0 {
		resp, err := ag.Vision(ctx, req.Prompt+"\n\n"+req.Text, req.Images)
		if err != nil {
			return nil, classify(err)
		}
		content = resp.Content()
	} else {
		resp, err := ag.Chat(ctx, req.Prompt+"\n\n"+req.Text)
		if err != nil {
			return nil, classify(err)
		}
		content = resp.Content()
	}

	parsed, err := formatting.Parse[fieldsResponse](content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return parsed.Fields, nil
}

// classify maps transport-level failures onto the package sentinels so
// the retry policy can distinguish transient from fatal without
// inspecting provider-specific error types.
func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case isRateLimit(err):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case isTransient(err):
		return fmt.Errorf("%w: %w", ErrTransport, err)
	default:
		return err
	}
}

func isRateLimit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503")
}
