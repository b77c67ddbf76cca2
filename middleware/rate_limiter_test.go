package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

func TestRateLimiterSpacesRequests(t *testing.T) {
	limited := NewRateLimiterDecorator(&FailingAgent{}, RateLimiterConfig{Interval: 30 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := limited.Process(ctx, decisionkit.NewMessage("user", "q")); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	// The first request uses the initial token; two more wait one interval each.
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected requests to be spaced, took %v", elapsed)
	}
}

func TestRateLimiterBurst(t *testing.T) {
	limited := NewRateLimiterDecorator(&FailingAgent{}, RateLimiterConfig{Rate: 1, Burst: 5})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if _, err := limited.Process(ctx, decisionkit.NewMessage("user", "q")); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Burst requests should not wait, took %v", elapsed)
	}
}

func TestRateLimiterDeadline(t *testing.T) {
	limited := NewRateLimiterDecorator(&FailingAgent{}, RateLimiterConfig{Interval: time.Hour})
	ctx := context.Background()
	if _, err := limited.Process(ctx, decisionkit.NewMessage("user", "q")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err := limited.Process(ctx, decisionkit.NewMessage("user", "q"))

	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if rlErr.AgentName != "failing-agent" {
		t.Errorf("Unexpected agent name %q", rlErr.AgentName)
	}
}
