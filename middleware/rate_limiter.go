package middleware

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// RateLimiterConfig configures rate limiter behavior.
type RateLimiterConfig struct {
	// Interval is the minimum spacing between requests. It takes precedence
	// over Rate when set.
	Interval time.Duration

	// Rate is the number of requests allowed per second.
	// Default: 10
	Rate float64

	// Burst is the maximum number of requests allowed at once.
	// Default: 1
	Burst int
}

// RateLimitError is returned when a request cannot be admitted before the
// caller's deadline.
type RateLimitError struct {
	AgentName string
	Cause     error
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for agent '%s': %v", e.AgentName, e.Cause)
}

func (e *RateLimitError) Unwrap() error {
	return e.Cause
}

// RateLimiterDecorator spaces calls to the wrapped agent with a token
// bucket. Requests wait for a token rather than failing.
//
// Example:
//
//	// At most one model completion every two seconds.
//	limited := middleware.NewRateLimiterDecorator(llmAgent, middleware.RateLimiterConfig{
//	    Interval: 2 * time.Second,
//	})
type RateLimiterDecorator struct {
	agent   decisionkit.Agent
	limiter *rate.Limiter
}

var _ decisionkit.Agent = (*RateLimiterDecorator)(nil)

// NewRateLimiterDecorator creates a new rate limiter decorator.
func NewRateLimiterDecorator(agent decisionkit.Agent, config RateLimiterConfig) *RateLimiterDecorator {
	limit := rate.Limit(config.Rate)
	if config.Interval > 0 {
		limit = rate.Every(config.Interval)
	} else if config.Rate <= 0 {
		limit = rate.Limit(10)
	}
	if config.Burst < 1 {
		config.Burst = 1
	}
	return &RateLimiterDecorator{
		agent:   agent,
		limiter: rate.NewLimiter(limit, config.Burst),
	}
}

// Name returns the name of the underlying agent.
func (r *RateLimiterDecorator) Name() string {
	return r.agent.Name()
}

// Capabilities returns the capabilities of the underlying agent.
func (r *RateLimiterDecorator) Capabilities() []string {
	return r.agent.Capabilities()
}

// Process waits for a token and then forwards the message.
func (r *RateLimiterDecorator) Process(ctx context.Context, message *decisionkit.Message) (*decisionkit.Message, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{AgentName: r.Name(), Cause: err}
	}
	return r.agent.Process(ctx, message)
}
