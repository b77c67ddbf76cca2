package middleware

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// FailingAgent fails a specified number of times before succeeding.
type FailingAgent struct {
	failCount int
	err       error
	attempts  int32
}

func (f *FailingAgent) Name() string           { return "failing-agent" }
func (f *FailingAgent) Capabilities() []string { return []string{"test"} }

func (f *FailingAgent) Process(ctx context.Context, message *decisionkit.Message) (*decisionkit.Message, error) {
	n := atomic.AddInt32(&f.attempts, 1)
	if int(n) <= f.failCount {
		if f.err != nil {
			return nil, f.err
		}
		return nil, errors.New("temporary failure")
	}
	return decisionkit.NewMessage("agent", "ok: "+message.Content), nil
}

func (f *FailingAgent) Attempts() int { return int(atomic.LoadInt32(&f.attempts)) }

// SlowAgent sleeps without honouring its context.
type SlowAgent struct {
	delay time.Duration
}

func (s *SlowAgent) Name() string           { return "slow-agent" }
func (s *SlowAgent) Capabilities() []string { return nil }

func (s *SlowAgent) Process(ctx context.Context, message *decisionkit.Message) (*decisionkit.Message, error) {
	time.Sleep(s.delay)
	return decisionkit.NewMessage("agent", "done"), nil
}
