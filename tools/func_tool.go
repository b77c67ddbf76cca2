package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// Param documents one tool parameter for the prompt.
type Param struct {
	Name        string
	Description string
	Default     string
}

// Result is the map shape returned by dataset tools. A result carrying an
// "error" key is reported to the model as a failed tool call.
type Result = map[string]interface{}

// ErrorResult builds a Result carrying only an error message.
func ErrorResult(format string, args ...interface{}) Result {
	return Result{"error": fmt.Sprintf(format, args...)}
}

// Func is the signature of a dataset tool implementation.
type Func func(ctx context.Context, params Params) Result

// FuncTool adapts a Func into a decisionkit.Tool.
type FuncTool struct {
	name        string
	description string
	params      []Param
	fn          Func
}

// Verify that FuncTool implements Tool interface.
var _ decisionkit.Tool = (*FuncTool)(nil)

// NewFuncTool creates a tool from a function.
func NewFuncTool(name, description string, params []Param, fn Func) *FuncTool {
	return &FuncTool{
		name:        name,
		description: description,
		params:      params,
		fn:          fn,
	}
}

// Name returns the tool name.
func (t *FuncTool) Name() string {
	return t.name
}

// Description returns the tool description including its parameters.
func (t *FuncTool) Description() string {
	if len(t.params) == 0 {
		return t.description
	}
	parts := make([]string, 0, len(t.params))
	for _, p := range t.params {
		s := p.Name
		if p.Default != "" {
			s += "=" + p.Default
		}
		if p.Description != "" {
			s += " (" + p.Description + ")"
		}
		parts = append(parts, s)
	}
	return fmt.Sprintf("%s Parameters: %s", t.description, strings.Join(parts, "; "))
}

// Params returns the documented parameters.
func (t *FuncTool) Params() []Param {
	return t.params
}

// Execute runs the function. A Result with an "error" key becomes a failed ToolResult.
func (t *FuncTool) Execute(ctx context.Context, params map[string]interface{}) (*decisionkit.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := t.fn(ctx, Params(params))
	if msg, ok := result["error"].(string); ok && len(result) == 1 {
		return decisionkit.NewToolError(msg), nil
	}
	return decisionkit.NewToolResult(result), nil
}
