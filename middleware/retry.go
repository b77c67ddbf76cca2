// Package middleware provides agent decorators: retry, timeout, rate
// limiting and response caching.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/errors"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial attempt).
	// Default: 3
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	// Default: 500ms
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	// Default: 10s
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	// Default: 2.0
	BackoffMultiplier float64

	// ShouldRetry determines if an error should trigger a retry.
	// If nil, IsTransient is used.
	ShouldRetry func(error) bool
}

// DefaultRetryConfig returns the retry policy used for model calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// IsTransient reports whether err is worth retrying: upstream model
// failures and timeouts are, while caller cancellation and invalid input
// are not.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var invalid *apperrors.InvalidQueryError
	if errors.As(err, &invalid) {
		return false
	}
	var unknown *apperrors.UnknownDomainError
	return !errors.As(err, &unknown)
}

// RetryDecorator wraps an agent with retry logic.
type RetryDecorator struct {
	agent  decisionkit.Agent
	config RetryConfig
}

var _ decisionkit.Agent = (*RetryDecorator)(nil)

// NewRetryDecorator creates a new retry decorator.
func NewRetryDecorator(agent decisionkit.Agent, config RetryConfig) *RetryDecorator {
	defaults := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = defaults.BackoffMultiplier
	}
	if config.ShouldRetry == nil {
		config.ShouldRetry = IsTransient
	}

	return &RetryDecorator{
		agent:  agent,
		config: config,
	}
}

// Name returns the name of the underlying agent.
func (r *RetryDecorator) Name() string {
	return r.agent.Name()
}

// Capabilities returns the capabilities of the underlying agent.
func (r *RetryDecorator) Capabilities() []string {
	return r.agent.Capabilities()
}

// Process implements the Agent interface with exponential backoff between
// attempts. Non-transient errors are returned immediately.
func (r *RetryDecorator) Process(ctx context.Context, message *decisionkit.Message) (*decisionkit.Message, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.config.InitialBackoff
	policy.MaxInterval = r.config.MaxBackoff
	policy.Multiplier = r.config.BackoffMultiplier
	policy.RandomizationFactor = 0.1
	policy.MaxElapsedTime = 0

	var (
		response *decisionkit.Message
		attempts int
		lastErr  error
	)
	operation := func() error {
		attempts++
		resp, err := r.agent.Process(ctx, message)
		if err != nil {
			lastErr = err
			if !r.config.ShouldRetry(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		response = resp
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.config.MaxAttempts-1)), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		if ctx.Err() != nil && lastErr != nil {
			return nil, fmt.Errorf("retry cancelled after %d attempts: %w", attempts, ctx.Err())
		}
		if lastErr != nil && !r.config.ShouldRetry(lastErr) {
			return nil, lastErr
		}
		return nil, fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, err)
	}
	if attempts > 1 {
		response.WithMetadata("retry_attempts", attempts)
	}
	return response, nil
}
