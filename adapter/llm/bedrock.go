package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	apperrors "github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/errors"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// DefaultBedrockModel is used when no model ID is configured.
const DefaultBedrockModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"

// converser is the slice of the Bedrock runtime client the adapter uses.
type converser interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockLLM is an adapter for Amazon Bedrock foundation models using the
// Converse API.
//
// Credentials follow the standard AWS chain unless explicit keys or a
// profile are configured.
//
// Example:
//
//	model, err := NewBedrockLLM(ctx, BedrockConfig{Region: "us-west-2"})
type BedrockLLM struct {
	client  converser
	modelID string
}

// BedrockConfig holds configuration for creating a Bedrock LLM adapter.
type BedrockConfig struct {
	// ModelID is the Bedrock model identifier.
	ModelID string

	// Region is the AWS region (default: us-east-1)
	Region string

	// Profile is the AWS profile name (optional)
	Profile string

	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// EndpointURL is a custom endpoint URL for VPC endpoints (optional)
	EndpointURL string
}

// NewBedrockLLM creates a new Bedrock LLM adapter.
func NewBedrockLLM(ctx context.Context, cfg BedrockConfig) (*BedrockLLM, error) {
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultBedrockModel
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	configOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*bedrockruntime.Options)
	if cfg.EndpointURL != "" {
		clientOpts = append(clientOpts, func(o *bedrockruntime.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		})
	}

	return &BedrockLLM{
		client:  bedrockruntime.NewFromConfig(awsConfig, clientOpts...),
		modelID: cfg.ModelID,
	}, nil
}

// Model returns the model identifier.
func (b *BedrockLLM) Model() string {
	return b.modelID
}

// Complete generates a completion from Bedrock.
func (b *BedrockLLM) Complete(ctx context.Context, messages []*decisionkit.Message, opts ...CallOption) (*decisionkit.Message, error) {
	options := BuildCallOptions(opts...)

	bedrockMessages, systemPrompts := b.convertMessages(messages)

	inferenceConfig := &types.InferenceConfiguration{}
	if options.Temperature != nil {
		inferenceConfig.Temperature = aws.Float32(float32(*options.Temperature))
	}
	maxTokens := 4096
	if options.MaxTokens != nil {
		maxTokens = *options.MaxTokens
	}
	inferenceConfig.MaxTokens = aws.Int32(int32(maxTokens))
	if options.TopP != nil {
		inferenceConfig.TopP = aws.Float32(float32(*options.TopP))
	}
	if stop := options.stopSequences(); len(stop) > 0 {
		inferenceConfig.StopSequences = stop
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(b.modelID),
		Messages:        bedrockMessages,
		InferenceConfig: inferenceConfig,
	}
	if len(systemPrompts) > 0 {
		input.System = systemPrompts
	}

	output, err := b.client.Converse(ctx, input)
	if err != nil {
		return nil, apperrors.NewUpstreamError("bedrock", err)
	}

	var content strings.Builder
	if msg, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if text, ok := block.(*types.ContentBlockMemberText); ok {
				content.WriteString(text.Value)
			}
		}
	}

	response := decisionkit.NewMessage("agent", content.String())
	response.Metadata["model"] = b.modelID
	if output.Usage != nil {
		response.Metadata["usage"] = map[string]interface{}{
			"prompt_tokens":     aws.ToInt32(output.Usage.InputTokens),
			"completion_tokens": aws.ToInt32(output.Usage.OutputTokens),
			"total_tokens":      aws.ToInt32(output.Usage.TotalTokens),
		}
	}
	if output.StopReason != "" {
		response.Metadata["stop_reason"] = string(output.StopReason)
	}

	return response, nil
}

// convertMessages converts messages to Converse format. System messages are
// returned separately and consecutive turns of the same role are merged,
// since Converse requires alternating user and assistant turns.
func (b *BedrockLLM) convertMessages(messages []*decisionkit.Message) ([]types.Message, []types.SystemContentBlock) {
	var (
		out    []types.Message
		system []types.SystemContentBlock
	)
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, &types.SystemContentBlockMemberText{Value: msg.Content})
			continue
		}

		role := types.ConversationRoleAssistant
		if msg.Role == "user" || msg.Role == "tool" {
			role = types.ConversationRoleUser
		}
		block := &types.ContentBlockMemberText{Value: msg.Content}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, block)
			continue
		}
		out = append(out, types.Message{Role: role, Content: []types.ContentBlock{block}})
	}
	return out, system
}
