// Package decisionkit provides core interfaces and types for the decision
// assistant: messages, agents, tools and business domains.
package decisionkit

import (
	"context"
	"fmt"
	"time"
)

// Message is one turn of a conversation: a user question, a specialist
// reply, a reasoning step or a tool observation.
type Message struct {
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewMessage stamps a message with the current UTC time. It does not
// validate; call Validate on input received from clients.
func NewMessage(role, content string) *Message {
	return &Message{
		Role:      role,
		Content:   content,
		Metadata:  make(map[string]interface{}),
		Timestamp: time.Now().UTC(),
	}
}

// WithMetadata sets one metadata key and returns m.
func (m *Message) WithMetadata(key string, value interface{}) *Message {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	m.Metadata[key] = value
	return m
}

// MetadataString returns a string metadata value, or "" when absent.
func (m *Message) MetadataString(key string) string {
	if m == nil || m.Metadata == nil {
		return ""
	}
	s, _ := m.Metadata[key].(string)
	return s
}

const (
	maxContentSize  = 1 << 20
	maxMetadataKeys = 100
)

var allowedRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
	"tool":      true,
	"agent":     true,
}

// Validate enforces the role set, the 1 MiB content cap and the metadata key
// limit.
func (m *Message) Validate() error {
	switch {
	case m.Role == "":
		return fmt.Errorf("message role is empty")
	case !allowedRoles[m.Role]:
		return fmt.Errorf("unsupported message role %q (want user, assistant, system, tool or agent)", m.Role)
	case len(m.Content) > maxContentSize:
		return fmt.Errorf("message content is %d bytes, limit is %d", len(m.Content), maxContentSize)
	case len(m.Metadata) > maxMetadataKeys:
		return fmt.Errorf("message metadata has %d keys, limit is %d", len(m.Metadata), maxMetadataKeys)
	}
	return nil
}

// ToolResult is what a tool hands back to the reasoning loop. Failed
// results are rendered to the model as {"error": ...}.
type ToolResult struct {
	Success  bool                   `json:"success"`
	Data     interface{}            `json:"data,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata"`
}

// NewToolResult wraps data in a successful result.
func NewToolResult(data interface{}) *ToolResult {
	return &ToolResult{
		Success:  true,
		Data:     data,
		Metadata: make(map[string]interface{}),
	}
}

// NewToolError builds a failed result carrying a message for the model.
func NewToolError(err string) *ToolResult {
	return &ToolResult{
		Success:  false,
		Error:    err,
		Metadata: make(map[string]interface{}),
	}
}

// Agent is the core interface implemented by the triage agent, the domain
// specialists and every middleware decorator.
type Agent interface {
	// Name is the display name reported in routing metadata and status.
	Name() string

	// Process answers one message.
	Process(ctx context.Context, message *Message) (*Message, error)

	// Capabilities lists tags such as "routing" or the specialist's domain.
	Capabilities() []string
}

// Tool is a data lookup a specialist can call from its reasoning loop.
type Tool interface {
	// Name is the action name the model writes after "Action:".
	Name() string

	// Description is listed to the model under "Available tools:".
	Description() string

	// Execute runs the lookup with the decoded Action Input object.
	Execute(ctx context.Context, params map[string]interface{}) (*ToolResult, error)
}
