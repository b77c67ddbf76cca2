package middleware

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/errors"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// DefaultTimeout bounds a single request when none is configured.
const DefaultTimeout = 120 * time.Second

// TimeoutDecorator wraps an agent with timeout protection.
//
// The wrapped agent runs in its own goroutine so agents that ignore
// context cancellation still return control to the caller on time.
//
// Example:
//
//	guarded := middleware.NewTimeoutDecorator(triageAgent, 60*time.Second)
//	_, err := guarded.Process(ctx, message)
//	var timeout *errors.AgentTimeoutError
//	if errors.As(err, &timeout) { ... }
type TimeoutDecorator struct {
	agent   decisionkit.Agent
	timeout time.Duration
}

var _ decisionkit.Agent = (*TimeoutDecorator)(nil)

// NewTimeoutDecorator creates a new timeout decorator.
func NewTimeoutDecorator(agent decisionkit.Agent, timeout time.Duration) *TimeoutDecorator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TimeoutDecorator{agent: agent, timeout: timeout}
}

// Name returns the name of the underlying agent.
func (t *TimeoutDecorator) Name() string {
	return t.agent.Name()
}

// Capabilities returns the capabilities of the underlying agent.
func (t *TimeoutDecorator) Capabilities() []string {
	return t.agent.Capabilities()
}

// Process implements the Agent interface with timeout protection.
func (t *TimeoutDecorator) Process(ctx context.Context, message *decisionkit.Message) (*decisionkit.Message, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		msg *decisionkit.Message
		err error
	}
	// Buffered so the goroutine never blocks after a timeout.
	done := make(chan result, 1)

	go func() {
		msg, err := t.agent.Process(timeoutCtx, message)
		done <- result{msg, err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, apperrors.NewAgentTimeoutError(t.Name(), t.timeout.Seconds())
		}
		return res.msg, res.err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewAgentTimeoutError(t.Name(), t.timeout.Seconds())
	}
}
