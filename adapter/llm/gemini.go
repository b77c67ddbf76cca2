package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	apperrors "github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/errors"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiLLM is an adapter for Google's Gemini models.
//
// System messages become the model's system instruction; the remaining
// turns are replayed as chat history.
//
// Example:
//
//	model, err := NewGeminiLLM(ctx, "your-api-key", "gemini-2.0-flash")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
type GeminiLLM struct {
	client *genai.Client
	model  string
}

// NewGeminiLLM creates a new Gemini LLM adapter.
func NewGeminiLLM(ctx context.Context, apiKey, model string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiLLM{
		client: client,
		model:  model,
	}, nil
}

// Model returns the model identifier.
func (g *GeminiLLM) Model() string {
	return g.model
}

// Complete generates a completion from Gemini.
func (g *GeminiLLM) Complete(ctx context.Context, messages []*decisionkit.Message, opts ...CallOption) (*decisionkit.Message, error) {
	if len(messages) == 0 {
		return nil, errors.New("gemini: no messages to send")
	}
	options := BuildCallOptions(opts...)

	model := g.client.GenerativeModel(g.model)
	g.configureModel(model, options)

	system, history, last := g.convertMessages(messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, last...)
	if err != nil {
		return nil, apperrors.NewUpstreamError("gemini", err)
	}

	response := decisionkit.NewMessage("agent", g.extractContent(resp))
	response.Metadata["model"] = g.model

	if resp.UsageMetadata != nil {
		response.Metadata["usage"] = map[string]interface{}{
			"prompt_tokens":     resp.UsageMetadata.PromptTokenCount,
			"completion_tokens": resp.UsageMetadata.CandidatesTokenCount,
			"total_tokens":      resp.UsageMetadata.TotalTokenCount,
		}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != 0 {
		response.Metadata["finish_reason"] = resp.Candidates[0].FinishReason.String()
	}

	return response, nil
}

// convertMessages splits messages into the joined system instruction, the
// chat history and the parts of the final turn.
func (g *GeminiLLM) convertMessages(messages []*decisionkit.Message) (string, []*genai.Content, []genai.Part) {
	var (
		system  []string
		history []*genai.Content
	)
	turns := make([]*decisionkit.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}
	if len(turns) == 0 {
		return strings.Join(system, "\n\n"), nil, []genai.Part{genai.Text("")}
	}

	for _, msg := range turns[:len(turns)-1] {
		history = append(history, &genai.Content{
			Role:  g.mapRole(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	last := turns[len(turns)-1]
	return strings.Join(system, "\n\n"), history, []genai.Part{genai.Text(last.Content)}
}

// mapRole maps message roles onto Gemini's user/model pair.
func (g *GeminiLLM) mapRole(role string) string {
	switch role {
	case "user", "tool":
		return "user"
	default:
		return "model"
	}
}

// configureModel applies call options to the model.
func (g *GeminiLLM) configureModel(model *genai.GenerativeModel, options *CallOptions) {
	if options.Temperature != nil {
		temp := float32(*options.Temperature)
		model.Temperature = &temp
	}
	if options.MaxTokens != nil {
		maxTokens := int32(*options.MaxTokens)
		model.MaxOutputTokens = &maxTokens
	}
	if options.TopP != nil {
		topP := float32(*options.TopP)
		model.TopP = &topP
	}
	if topK, ok := options.Extra["top_k"].(int); ok {
		k := int32(topK)
		model.TopK = &k
	}
	if stop := options.stopSequences(); len(stop) > 0 {
		model.StopSequences = stop
	}
}

// extractContent concatenates the text parts of the first candidate.
func (g *GeminiLLM) extractContent(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// Close closes the Gemini client.
func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
