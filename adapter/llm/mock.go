package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// ErrScriptExhausted is returned by MockLLM when every scripted reply has
// been used and no responder is set.
var ErrScriptExhausted = errors.New("mock llm: script exhausted")

// Responder produces a reply from the messages of one call.
type Responder func(messages []*decisionkit.Message) (string, error)

// MockLLM is a deterministic LLM. It returns its scripted replies in order
// and then falls back to its responder.
//
// Example:
//
//	model := NewMockLLM("mock",
//	    "Thought: need data\nAction: get_sales_metrics\nAction Input: {}",
//	    "Final Answer: Revenue is 2.5M",
//	)
type MockLLM struct {
	mu        sync.Mutex
	model     string
	script    []string
	next      int
	responder Responder
	calls     [][]*decisionkit.Message
}

// NewMockLLM creates a mock with the given scripted replies.
func NewMockLLM(model string, script ...string) *MockLLM {
	if model == "" {
		model = "mock"
	}
	return &MockLLM{model: model, script: script}
}

// WithResponder sets the fallback used once the script runs out.
func (m *MockLLM) WithResponder(r Responder) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = r
	return m
}

// Model returns the model identifier.
func (m *MockLLM) Model() string {
	return m.model
}

// Complete returns the next scripted reply.
func (m *MockLLM) Complete(ctx context.Context, messages []*decisionkit.Message, opts ...CallOption) (*decisionkit.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, messages)
	var (
		reply     string
		scripted  bool
		responder = m.responder
	)
	if m.next < len(m.script) {
		reply = m.script[m.next]
		m.next++
		scripted = true
	}
	m.mu.Unlock()

	if !scripted {
		if responder == nil {
			return nil, ErrScriptExhausted
		}
		var err error
		if reply, err = responder(messages); err != nil {
			return nil, err
		}
	}

	response := decisionkit.NewMessage("agent", reply)
	response.Metadata["model"] = m.model
	return response, nil
}

// Calls returns the number of Complete calls made so far.
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Call returns the messages passed to the i-th Complete call.
func (m *MockLLM) Call(i int) []*decisionkit.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.calls) {
		return nil
	}
	return m.calls[i]
}

// OfflineResponder drives the tool loop without a hosted model. It calls
// the first listed tool once and then reports that tool's observation as
// the final answer. Only the transcript after the last "Question:" marker
// is inspected for observations.
func OfflineResponder(messages []*decisionkit.Message) (string, error) {
	if len(messages) == 0 {
		return "Final Answer: No question was provided.", nil
	}
	prompt := messages[len(messages)-1].Content
	transcript := prompt
	if i := strings.LastIndex(prompt, "Question:"); i >= 0 {
		transcript = prompt[i:]
	}

	if i := strings.LastIndex(transcript, "Observation:"); i >= 0 && i > strings.LastIndex(transcript, "Action:") {
		obs := strings.TrimSpace(transcript[i+len("Observation:"):])
		return "Thought: I now know the final answer\nFinal Answer: " + obs, nil
	}

	var all strings.Builder
	for _, msg := range messages {
		all.WriteString(msg.Content)
		all.WriteString("\n")
	}
	if tool := firstListedTool(all.String()); tool != "" {
		return fmt.Sprintf("Thought: I should look at the data\nAction: %s\nAction Input: {}", tool), nil
	}
	return "Final Answer: Offline mode is active and no language model is configured.", nil
}

// firstListedTool finds the first "- name: description" line after an
// "Available tools:" heading.
func firstListedTool(prompt string) string {
	_, rest, ok := strings.Cut(prompt, "Available tools:")
	if !ok {
		return ""
	}
	for _, line := range strings.Split(rest, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		name, _, ok := strings.Cut(strings.TrimPrefix(line, "- "), ":")
		if ok && name != "" && !strings.Contains(name, " ") {
			return name
		}
	}
	return ""
}
