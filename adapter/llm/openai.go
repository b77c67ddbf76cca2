package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	apperrors "github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/errors"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o"

// OpenAILLM is an adapter for OpenAI chat models.
//
// A non-empty baseURL points the client at any OpenAI compatible endpoint.
//
// Example:
//
//	model := NewOpenAILLM("sk-...", "gpt-4o", "")
//	response, err := model.Complete(ctx, messages, WithMaxTokens(4000))
type OpenAILLM struct {
	client *openai.Client
	model  string
}

// NewOpenAILLM creates a new OpenAI LLM adapter.
func NewOpenAILLM(apiKey, model, baseURL string) *OpenAILLM {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAILLM{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Model returns the model identifier.
func (o *OpenAILLM) Model() string {
	return o.model
}

// Complete generates a completion.
//
// The response metadata includes model, usage (prompt, completion and
// total tokens), finish_reason and id.
func (o *OpenAILLM) Complete(ctx context.Context, messages []*decisionkit.Message, opts ...CallOption) (*decisionkit.Message, error) {
	options := BuildCallOptions(opts...)

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: o.convertMessages(messages),
	}

	if options.Temperature != nil {
		req.Temperature = float32(*options.Temperature)
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
	}
	if options.TopP != nil {
		req.TopP = float32(*options.TopP)
	}
	if fp, ok := options.Extra["frequency_penalty"].(float64); ok {
		req.FrequencyPenalty = float32(fp)
	}
	if pp, ok := options.Extra["presence_penalty"].(float64); ok {
		req.PresencePenalty = float32(pp)
	}
	if stop := options.stopSequences(); len(stop) > 0 {
		req.Stop = stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, apperrors.NewUpstreamError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.NewUpstreamError("openai", errors.New("no choices returned"))
	}

	response := decisionkit.NewMessage("agent", resp.Choices[0].Message.Content)
	response.Metadata["model"] = resp.Model
	response.Metadata["usage"] = map[string]interface{}{
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"total_tokens":      resp.Usage.TotalTokens,
	}
	response.Metadata["finish_reason"] = string(resp.Choices[0].FinishReason)
	response.Metadata["id"] = resp.ID

	return response, nil
}

// convertMessages maps roles onto OpenAI's system/user/assistant/tool set.
func (o *OpenAILLM) convertMessages(messages []*decisionkit.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case "system", "user":
			role = msg.Role
		case "tool":
			// Tool observations travel as plain user turns in the text protocol.
			role = openai.ChatMessageRoleUser
		default:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return out
}
