// Package tools provides the tool registry and helpers used by the domain
// specialists to expose dataset lookups to the language model.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// ToolRegistry manages available tools for an agent.
type ToolRegistry struct {
	tools map[string]decisionkit.Tool
}

// NewToolRegistry creates a new tool registry.
func NewToolRegistry(tools ...decisionkit.Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{
		tools: make(map[string]decisionkit.Tool),
	}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool to the registry.
func (r *ToolRegistry) Register(tool decisionkit.Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	if tool.Name() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool '%s' is already registered", tool.Name())
	}
	r.tools[tool.Name()] = tool
	return nil
}

// Get retrieves a tool by name.
func (r *ToolRegistry) Get(name string) (decisionkit.Tool, bool) {
	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tool names in sorted order.
func (r *ToolRegistry) List() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	return len(r.tools)
}

// GetToolDescriptions returns a formatted description of all available tools.
func (r *ToolRegistry) GetToolDescriptions() string {
	if len(r.tools) == 0 {
		return "No tools available."
	}

	var sb strings.Builder
	for i, name := range r.List() {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("- %s: %s", name, r.tools[name].Description()))
	}
	return sb.String()
}

// Execute runs the named tool. An unknown tool is an error; a tool that
// reports failure is returned as an unsuccessful ToolResult.
func (r *ToolRegistry) Execute(ctx context.Context, name string, params map[string]interface{}) (*decisionkit.ToolResult, error) {
	tool, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("tool '%s' not found (available: %s)", name, strings.Join(r.List(), ", "))
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	return tool.Execute(ctx, params)
}
