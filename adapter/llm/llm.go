// Package llm adapts hosted language models (OpenAI, Gemini, Bedrock) and a
// scripted offline model to one completion interface.
package llm

import (
	"context"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// LLM completes a conversation.
//
//	model := NewOpenAILLM(apiKey, "gpt-4o", "")
//	reply, err := model.Complete(ctx, []*decisionkit.Message{
//	    decisionkit.NewMessage("system", "You are a sales analyst."),
//	    decisionkit.NewMessage("user", "How did Product A do last quarter?"),
//	}, WithTemperature(0.2), WithStop("\nObservation:"))
type LLM interface {
	// Complete returns one reply with role "agent". Its metadata carries the
	// model name and token usage when the provider reports them.
	Complete(ctx context.Context, messages []*decisionkit.Message, opts ...CallOption) (*decisionkit.Message, error)

	// Model is the provider's model id.
	Model() string
}

// CallOptions are per-call sampling settings. Nil fields keep the provider
// default.
type CallOptions struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64

	// Extra holds settings only some providers read, such as "stop".
	Extra map[string]interface{}
}

// CallOption sets one field of CallOptions.
type CallOption func(*CallOptions)

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) CallOption {
	return func(opts *CallOptions) {
		opts.Temperature = &temperature
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(maxTokens int) CallOption {
	return func(opts *CallOptions) {
		opts.MaxTokens = &maxTokens
	}
}

// WithTopP sets nucleus sampling.
func WithTopP(topP float64) CallOption {
	return func(opts *CallOptions) {
		opts.TopP = &topP
	}
}

// WithStop ends the reply at any of the given sequences.
func WithStop(stop ...string) CallOption {
	return WithExtra("stop", stop)
}

// WithExtra sets a provider-specific option.
func WithExtra(key string, value interface{}) CallOption {
	return func(opts *CallOptions) {
		if opts.Extra == nil {
			opts.Extra = make(map[string]interface{})
		}
		opts.Extra[key] = value
	}
}

// BuildCallOptions applies opts in order; later options win.
func BuildCallOptions(opts ...CallOption) *CallOptions {
	options := &CallOptions{
		Extra: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// stopSequences returns the "stop" extra option, if any.
func (o *CallOptions) stopSequences() []string {
	stop, _ := o.Extra["stop"].([]string)
	return stop
}
