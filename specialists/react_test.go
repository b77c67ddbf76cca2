package specialists

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/llm"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/data"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

func newTestAgent(t *testing.T, domain decisionkit.Domain, model llm.LLM) *ReActAgent {
	t.Helper()
	agent, err := New(domain, Options{LLM: model, Provider: data.NewManager()})
	require.NoError(t, err)
	return agent
}

func TestParseStep(t *testing.T) {
	t.Run("action with JSON input", func(t *testing.T) {
		step := ParseStep("Thought: check ROI\nAction: calculate_marketing_roi\nAction Input: {\"campaign_id\": \"cam-001\"}")
		assert.Equal(t, "check ROI", step.Thought)
		assert.Equal(t, "calculate_marketing_roi", step.Action)
		assert.Equal(t, "cam-001", step.ActionInput["campaign_id"])
		assert.False(t, step.IsFinal)
	})

	t.Run("multi-line input stops at observation", func(t *testing.T) {
		step := ParseStep("Action: get_sales_metrics\nAction Input: {\n  \"time_period\": \"last_month\"\n}\nObservation: made up")
		assert.Equal(t, "last_month", step.ActionInput["time_period"])
	})

	t.Run("empty input", func(t *testing.T) {
		step := ParseStep("Thought: look\nAction: get_marketing_metrics\nAction Input:")
		assert.NotNil(t, step.ActionInput)
		assert.Empty(t, step.ActionInput)
	})

	t.Run("missing input line", func(t *testing.T) {
		step := ParseStep("Action: get_marketing_metrics")
		assert.NotNil(t, step.ActionInput)
	})

	t.Run("non-object input", func(t *testing.T) {
		step := ParseStep("Action: get_marketing_metrics\nAction Input: brand_awareness_score")
		assert.Nil(t, step.ActionInput)
		assert.Equal(t, "brand_awareness_score", step.RawInput)
	})

	t.Run("multi-line final answer", func(t *testing.T) {
		step := ParseStep("Thought: done\nFinal Answer: Revenue is up.\nProduct A leads.")
		assert.True(t, step.IsFinal)
		assert.Equal(t, "Revenue is up.\nProduct A leads.", step.Answer)
	})
}

func TestReActAgentRunsToolThenAnswers(t *testing.T) {
	model := llm.NewMockLLM("test",
		"Thought: compute ROI\nAction: calculate_marketing_roi\nAction Input: {\"campaign_id\": \"cam-001\"}",
		"Thought: I now know the final answer\nFinal Answer: Summer Promotion returned 177.78%.",
	)
	agent := newTestAgent(t, decisionkit.DomainMarketing, model)

	resp, err := agent.Process(context.Background(), decisionkit.NewMessage("user", "What is the ROI of cam-001?"))
	require.NoError(t, err)

	assert.Equal(t, "Summer Promotion returned 177.78%.", resp.Content)
	assert.Equal(t, "Marketing Agent", resp.MetadataString("agent"))
	assert.Equal(t, "marketing", resp.MetadataString("domain"))
	assert.Equal(t, string(StopReasonFinalAnswer), resp.MetadataString("stop_reason"))
	assert.Equal(t, []string{"calculate_marketing_roi"}, resp.Metadata["tools_used"])

	require.Equal(t, 2, model.Calls())
	second := model.Call(1)
	require.Len(t, second, 2)
	assert.Equal(t, "system", second[0].Role)
	assert.Contains(t, second[0].Content, "marketing specialist")
	assert.Contains(t, second[1].Content, `"roi_percent":"177.78%"`)
}

func TestReActAgentUnknownToolIsObservation(t *testing.T) {
	model := llm.NewMockLLM("test",
		"Thought: try\nAction: get_weather\nAction Input: {}",
		"Final Answer: done",
	)
	agent := newTestAgent(t, decisionkit.DomainSales, model)

	resp, err := agent.Process(context.Background(), decisionkit.NewMessage("user", "sales?"))
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Contains(t, model.Call(1)[1].Content, `Observation: {"error":"Tool 'get_weather' not found.`)
}

func TestReActAgentToolErrorIsObservation(t *testing.T) {
	model := llm.NewMockLLM("test",
		"Action: get_sales_metrics\nAction Input: {\"time_period\": \"ytd\"}",
		"Final Answer: no ytd data",
	)
	agent := newTestAgent(t, decisionkit.DomainSales, model)

	_, err := agent.Process(context.Background(), decisionkit.NewMessage("user", "ytd sales?"))
	require.NoError(t, err)
	assert.Contains(t, model.Call(1)[1].Content, `{"error":"Time period 'ytd' not found in sales data"}`)
}

func TestReActAgentReplyWithoutActionIsAnswer(t *testing.T) {
	model := llm.NewMockLLM("test", "Sales look healthy overall.")
	agent := newTestAgent(t, decisionkit.DomainSales, model)

	resp, err := agent.Process(context.Background(), decisionkit.NewMessage("user", "sales?"))
	require.NoError(t, err)
	assert.Equal(t, "Sales look healthy overall.", resp.Content)
	assert.Equal(t, string(StopReasonNoAction), resp.MetadataString("stop_reason"))
}

func TestReActAgentMaxSteps(t *testing.T) {
	loop := "Action: evaluate_supply_chain\nAction Input: {}"
	model := llm.NewMockLLM("test").WithResponder(func([]*decisionkit.Message) (string, error) {
		return loop, nil
	})
	agent, err := New(decisionkit.DomainLogistics, Options{LLM: model, Provider: data.NewManager(), MaxSteps: 3})
	require.NoError(t, err)

	resp, err := agent.Process(context.Background(), decisionkit.NewMessage("user", "supply chain?"))
	require.NoError(t, err)
	assert.Equal(t, 3, model.Calls())
	assert.Equal(t, string(StopReasonMaxSteps), resp.MetadataString("stop_reason"))
	assert.Contains(t, resp.Content, "efficiency_score")
}

func TestReActAgentReasonerError(t *testing.T) {
	model := llm.NewMockLLM("test").WithResponder(func([]*decisionkit.Message) (string, error) {
		return "", errors.New("rate limited")
	})
	agent := newTestAgent(t, decisionkit.DomainCollection, model)

	_, err := agent.Process(context.Background(), decisionkit.NewMessage("user", "overdue?"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Collection Agent reasoning failed")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestReActAgentIncludesHistory(t *testing.T) {
	model := llm.NewMockLLM("test", "Final Answer: ok")
	agent := newTestAgent(t, decisionkit.DomainSales, model)

	msg := decisionkit.NewMessage("user", "and last month?").
		WithMetadata(HistoryKey, "User: How is revenue?\nAssistant: 2.5M")
	_, err := agent.Process(context.Background(), msg)
	require.NoError(t, err)

	prompt := model.Call(0)[1].Content
	assert.Less(t, strings.Index(prompt, "Conversation so far:"), strings.Index(prompt, "Question: and last month?"))
}

func TestOfflineModeAnswersFromData(t *testing.T) {
	model := llm.NewMockLLM("offline").WithResponder(llm.OfflineResponder)
	agent := newTestAgent(t, decisionkit.DomainSales, model)

	resp, err := agent.Process(context.Background(), decisionkit.NewMessage("user", "How is revenue?"))
	require.NoError(t, err)
	assert.Equal(t, string(StopReasonFinalAnswer), resp.MetadataString("stop_reason"))
	assert.Contains(t, resp.Content, `"total_revenue":2500000`)
	assert.Equal(t, []string{"analyze_sales_performance"}, resp.Metadata["tools_used"])
}

func TestNewValidation(t *testing.T) {
	_, err := New(decisionkit.DomainSales, Options{Provider: data.NewManager()})
	assert.Error(t, err)

	_, err = New(decisionkit.DomainSales, Options{LLM: llm.NewMockLLM("m")})
	assert.Error(t, err)

	_, err = New(decisionkit.Domain("hr"), Options{LLM: llm.NewMockLLM("m"), Provider: data.NewManager()})
	assert.Error(t, err)

	_, err = NewReActAgent(Config{Name: "x", Reasoner: llm.NewLLMAgent("x", llm.NewMockLLM("m"), "")})
	assert.Error(t, err)
}

func TestNewAllAndDecorate(t *testing.T) {
	decorated := 0
	agents, err := NewAll(Options{
		LLM:      llm.NewMockLLM("m"),
		Provider: data.NewManager(),
		Decorate: func(a decisionkit.Agent) decisionkit.Agent {
			decorated++
			return a
		},
	})
	require.NoError(t, err)
	assert.Len(t, agents, 4)
	assert.Equal(t, 4, decorated)

	for domain, agent := range agents {
		ra := agent.(*ReActAgent)
		assert.Equal(t, domain, ra.Domain())
		assert.Len(t, ra.ToolNames(), 3)
	}

	general := newTestAgent(t, decisionkit.DomainUnknown, llm.NewMockLLM("m"))
	assert.Equal(t, GeneralAgentName, general.Name())
	assert.Len(t, general.ToolNames(), 4)
}
