package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/errors"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestRetrySuccess(t *testing.T) {
	agent := &FailingAgent{failCount: 2}
	retry := NewRetryDecorator(agent, fastRetry(3))

	response, err := retry.Process(context.Background(), decisionkit.NewMessage("user", "q"))
	if err != nil {
		t.Fatalf("Expected success after retries, got error: %v", err)
	}
	if response.Content != "ok: q" {
		t.Errorf("Unexpected content %q", response.Content)
	}
	if agent.Attempts() != 3 {
		t.Errorf("Expected 3 attempts, got %d", agent.Attempts())
	}
	if response.Metadata["retry_attempts"] != 3 {
		t.Errorf("Expected retry_attempts 3, got %v", response.Metadata["retry_attempts"])
	}
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	agent := &FailingAgent{failCount: 10}
	retry := NewRetryDecorator(agent, fastRetry(3))

	_, err := retry.Process(context.Background(), decisionkit.NewMessage("user", "q"))
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "max retry attempts (3) exceeded") {
		t.Errorf("Unexpected error: %v", err)
	}
	if agent.Attempts() != 3 {
		t.Errorf("Expected 3 attempts, got %d", agent.Attempts())
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	agent := &FailingAgent{failCount: 10, err: apperrors.NewInvalidQueryError("Query is required")}
	retry := NewRetryDecorator(agent, fastRetry(5))

	_, err := retry.Process(context.Background(), decisionkit.NewMessage("user", ""))
	var invalid *apperrors.InvalidQueryError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidQueryError, got %v", err)
	}
	if agent.Attempts() != 1 {
		t.Errorf("Expected a single attempt, got %d", agent.Attempts())
	}
}

func TestRetryContextCancelled(t *testing.T) {
	agent := &FailingAgent{failCount: 10}
	retry := NewRetryDecorator(agent, RetryConfig{MaxAttempts: 5, InitialBackoff: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := retry.Process(ctx, decisionkit.NewMessage("user", "q"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{apperrors.NewUpstreamError("openai", errors.New("503")), true},
		{errors.New("boom"), true},
		{context.Canceled, false},
		{apperrors.NewUnknownDomainError("hr", "q"), false},
	}
	for _, c := range cases {
		if got := IsTransient(c.err); got != c.want {
			t.Errorf("IsTransient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
