// Package specialists implements the domain specialist agents. Each one
// drives a text tool loop (Thought / Action / Action Input / Observation /
// Final Answer) over a reasoning agent and a set of data tools.
package specialists

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/tools"
)

// DefaultMaxSteps bounds the number of reasoning turns per query.
const DefaultMaxSteps = 6

// HistoryKey is the message metadata key holding prior conversation turns
// as preformatted text.
const HistoryKey = "history"

// Step is one turn of the tool loop.
type Step struct {
	Thought     string                 `json:"thought,omitempty"`
	Action      string                 `json:"action,omitempty"`
	ActionInput map[string]interface{} `json:"action_input,omitempty"`
	RawInput    string                 `json:"-"`
	Observation string                 `json:"observation,omitempty"`
	Answer      string                 `json:"answer,omitempty"`
	IsFinal     bool                   `json:"is_final"`
}

// StopReason records why the loop ended.
type StopReason string

const (
	StopReasonFinalAnswer StopReason = "final_answer"
	StopReasonNoAction    StopReason = "no_action"
	StopReasonMaxSteps    StopReason = "max_steps"
)

// Config configures a ReActAgent.
type Config struct {
	// Name is reported by Name() and in response metadata.
	Name string
	// Domain is recorded in response metadata; empty for the general agent.
	Domain decisionkit.Domain
	// Reasoner produces each turn. It usually wraps an LLM with the domain
	// instructions as system prompt.
	Reasoner decisionkit.Agent
	Tools    []decisionkit.Tool
	MaxSteps int
	Logger   *slog.Logger
}

// ReActAgent is a specialist running the text tool loop. It is safe for
// concurrent use.
type ReActAgent struct {
	name     string
	domain   decisionkit.Domain
	reasoner decisionkit.Agent
	registry *tools.ToolRegistry
	maxSteps int
	preamble string
	logger   *slog.Logger
}

var _ decisionkit.Agent = (*ReActAgent)(nil)

// NewReActAgent validates cfg and builds the agent.
func NewReActAgent(cfg Config) (*ReActAgent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if cfg.Reasoner == nil {
		return nil, fmt.Errorf("reasoner is required")
	}
	if len(cfg.Tools) == 0 {
		return nil, fmt.Errorf("at least one tool is required")
	}
	registry, err := tools.NewToolRegistry(cfg.Tools...)
	if err != nil {
		return nil, fmt.Errorf("invalid tools for %s: %w", cfg.Name, err)
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReActAgent{
		name:     cfg.Name,
		domain:   cfg.Domain,
		reasoner: cfg.Reasoner,
		registry: registry,
		maxSteps: maxSteps,
		preamble: buildPreamble(registry),
		logger:   logger.With("agent", cfg.Name),
	}, nil
}

func buildPreamble(registry *tools.ToolRegistry) string {
	return fmt.Sprintf(`Answer the question using the business data tools below.

Available tools:
%s

Use the following format:

Thought: think about what to do next
Action: the tool name
Action Input: a JSON object of tool parameters, e.g. {"campaign_id": "cam-001"}, or {} for none
Observation: the tool result will be provided

... (repeat Thought/Action/Action Input/Observation as needed)

Thought: I now know the final answer
Final Answer: the answer for the manager, citing the data points used

Begin!`, registry.GetToolDescriptions())
}

// Name implements decisionkit.Agent.
func (r *ReActAgent) Name() string { return r.name }

// Domain returns the specialist's domain.
func (r *ReActAgent) Domain() decisionkit.Domain { return r.domain }

// Capabilities implements decisionkit.Agent.
func (r *ReActAgent) Capabilities() []string {
	caps := []string{"reasoning", "tool-use", "react"}
	if r.domain != "" {
		caps = append(caps, string(r.domain))
	}
	return caps
}

// ToolNames lists the registered tools.
func (r *ReActAgent) ToolNames() []string { return r.registry.List() }

// Process runs the loop for one question.
func (r *ReActAgent) Process(ctx context.Context, message *decisionkit.Message) (*decisionkit.Message, error) {
	if message == nil {
		return nil, fmt.Errorf("message cannot be nil")
	}

	transcript := []string{r.preamble}
	if history := message.MetadataString(HistoryKey); history != "" {
		transcript = append(transcript, "\nConversation so far:\n"+history)
	}
	transcript = append(transcript, "\nQuestion: "+message.Content)

	var steps []Step
	for i := 0; i < r.maxSteps; i++ {
		prompt := decisionkit.NewMessage("user", strings.Join(transcript, "\n"))
		reply, err := r.reasoner.Process(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("%s reasoning failed: %w", r.name, err)
		}

		step := ParseStep(reply.Content)
		if step.IsFinal {
			steps = append(steps, step)
			return r.respond(step.Answer, StopReasonFinalAnswer, steps), nil
		}
		if step.Action == "" {
			steps = append(steps, step)
			return r.respond(strings.TrimSpace(reply.Content), StopReasonNoAction, steps), nil
		}

		step.Observation = r.observe(ctx, step)
		steps = append(steps, step)
		transcript = append(transcript, FormatStep(step))
	}

	r.logger.WarnContext(ctx, "tool loop reached max steps", "max_steps", r.maxSteps)
	return r.respond(maxStepsAnswer(steps), StopReasonMaxSteps, steps), nil
}

// observe runs the requested tool and renders its result as JSON text.
func (r *ReActAgent) observe(ctx context.Context, step Step) string {
	if step.ActionInput == nil {
		return observationError(fmt.Sprintf("Action Input is not a JSON object: %s", step.RawInput))
	}
	if _, ok := r.registry.Get(step.Action); !ok {
		return observationError(fmt.Sprintf("Tool '%s' not found. Available tools: %s",
			step.Action, strings.Join(r.registry.List(), ", ")))
	}

	r.logger.DebugContext(ctx, "executing tool", "tool", step.Action, "input", step.RawInput)
	result, err := r.registry.Execute(ctx, step.Action, step.ActionInput)
	if err != nil {
		r.logger.ErrorContext(ctx, "tool execution failed", "tool", step.Action, "error", err)
		return observationError(err.Error())
	}
	if !result.Success {
		return observationError(result.Error)
	}
	raw, err := json.Marshal(result.Data)
	if err != nil {
		return observationError(fmt.Sprintf("failed to encode tool result: %v", err))
	}
	return string(raw)
}

func observationError(msg string) string {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return string(raw)
}

func (r *ReActAgent) respond(answer string, reason StopReason, steps []Step) *decisionkit.Message {
	if answer == "" {
		answer = "No final answer provided"
	}
	used := make([]string, 0, len(steps))
	for _, s := range steps {
		if s.Action != "" {
			used = append(used, s.Action)
		}
	}
	msg := decisionkit.NewMessage("agent", answer).
		WithMetadata("agent", r.name).
		WithMetadata("stop_reason", string(reason)).
		WithMetadata("steps", len(steps)).
		WithMetadata("tools_used", used)
	if r.domain != "" {
		msg.WithMetadata("domain", string(r.domain))
	}
	return msg
}

func maxStepsAnswer(steps []Step) string {
	answer := "I could not complete the analysis within the allowed number of steps."
	if n := len(steps); n > 0 && steps[n-1].Observation != "" {
		answer += "\nLast observation: " + steps[n-1].Observation
	}
	return answer
}

// ParseStep reads one reasoning turn. Everything after "Final Answer:" is
// the answer. Action Input is decoded as the first JSON value following the
// marker; an empty input means no parameters.
func ParseStep(text string) Step {
	var step Step
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Final Answer:"):
			rest := strings.TrimPrefix(trimmed, "Final Answer:")
			if i+1 < len(lines) {
				rest += "\n" + strings.Join(lines[i+1:], "\n")
			}
			step.Answer = strings.TrimSpace(rest)
			step.IsFinal = true
			return step
		case strings.HasPrefix(trimmed, "Thought:") && step.Thought == "":
			step.Thought = strings.TrimSpace(strings.TrimPrefix(trimmed, "Thought:"))
		case strings.HasPrefix(trimmed, "Action Input:"):
			rest := strings.TrimPrefix(trimmed, "Action Input:")
			if i+1 < len(lines) {
				rest += "\n" + strings.Join(lines[i+1:], "\n")
			}
			if cut, _, found := strings.Cut(rest, "\nObservation:"); found {
				rest = cut
			}
			step.RawInput = strings.TrimSpace(rest)
			step.ActionInput = parseActionInput(step.RawInput)
			return step
		case strings.HasPrefix(trimmed, "Action:") && step.Action == "":
			step.Action = strings.Trim(strings.TrimSpace(strings.TrimPrefix(trimmed, "Action:")), "`[]")
		}
	}
	if step.Action != "" && step.ActionInput == nil {
		step.ActionInput = map[string]interface{}{}
	}
	return step
}

// parseActionInput returns nil when the input is present but not an object.
func parseActionInput(raw string) map[string]interface{} {
	raw = strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "`"))
	raw = strings.TrimPrefix(raw, "json")
	if raw == "" || raw == "None" || raw == "null" {
		return map[string]interface{}{}
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var params map[string]interface{}
	if err := dec.Decode(&params); err != nil {
		return nil
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	return params
}

// FormatStep renders a step back into transcript text.
func FormatStep(step Step) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Thought: %s", step.Thought)
	if step.Action != "" {
		fmt.Fprintf(&sb, "\nAction: %s\nAction Input: %s", step.Action, step.RawInput)
	}
	if step.Observation != "" {
		fmt.Fprintf(&sb, "\nObservation: %s", step.Observation)
	}
	return sb.String()
}
