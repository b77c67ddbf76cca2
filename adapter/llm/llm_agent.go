package llm

import (
	"context"
	"fmt"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// Defaults applied by LLMAgent unless overridden.
const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 4000
)

// LLMAgent adapts an LLM into a decisionkit.Agent. Each Process call sends
// the system prompt followed by the incoming message.
type LLMAgent struct {
	name         string
	llm          LLM
	systemPrompt string
	options      []CallOption
}

// NewLLMAgent creates an agent with the default temperature and token
// limit; opts are applied after the defaults.
func NewLLMAgent(name string, model LLM, systemPrompt string, opts ...CallOption) *LLMAgent {
	options := []CallOption{WithTemperature(DefaultTemperature), WithMaxTokens(DefaultMaxTokens)}
	return &LLMAgent{
		name:         name,
		llm:          model,
		systemPrompt: systemPrompt,
		options:      append(options, opts...),
	}
}

// Name implements decisionkit.Agent.
func (a *LLMAgent) Name() string { return a.name }

// Capabilities implements decisionkit.Agent.
func (a *LLMAgent) Capabilities() []string {
	return []string{"llm", "completion"}
}

// Model returns the underlying model identifier.
func (a *LLMAgent) Model() string { return a.llm.Model() }

// Process implements decisionkit.Agent.
func (a *LLMAgent) Process(ctx context.Context, message *decisionkit.Message) (*decisionkit.Message, error) {
	messages := make([]*decisionkit.Message, 0, 2)
	if a.systemPrompt != "" {
		messages = append(messages, decisionkit.NewMessage("system", a.systemPrompt))
	}
	messages = append(messages, message)

	response, err := a.llm.Complete(ctx, messages, a.options...)
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", a.name, err)
	}
	return response.WithMetadata("agent", a.name), nil
}
