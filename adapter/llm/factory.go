package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
	ProviderMock    = "mock"
)

// Config selects and configures a provider.
type Config struct {
	Provider string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	GeminiAPIKey string
	GeminiModel  string

	Bedrock BedrockConfig
}

// New creates the configured provider. An empty provider means openai.
func New(ctx context.Context, cfg Config) (LLM, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is not set")
		}
		return NewOpenAILLM(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	case ProviderGemini:
		return NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case ProviderBedrock:
		return NewBedrockLLM(ctx, cfg.Bedrock)
	case ProviderMock:
		return NewMockLLM("offline").WithResponder(OfflineResponder), nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q (valid: openai, gemini, bedrock, mock)", cfg.Provider)
}
