package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ainoobmenpg/cc-gateway/internal/agent/toolconv"
	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// OpenAIProvider implements agent.Provider for the OpenAI-compatible
// dialect: bearer auth, a flat role-tagged message array (system included),
// tool_calls/tool_call_id, and a finish_reason drawn from
// {stop, tool_calls, length, content_filter}.
type OpenAIProvider struct {
	BaseProvider

	client       *openai.Client
	defaultModel string
}

// OpenAIConfig holds configuration parameters for creating an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// NewOpenAIProvider creates a new OpenAI-compatible provider instance. An
// empty API key produces a provider that errors on Complete, allowing
// delayed configuration.
func NewOpenAIProvider(config OpenAIConfig) *OpenAIProvider {
	if config.DefaultModel == "" {
		config.DefaultModel = "gpt-4o"
	}
	p := &OpenAIProvider{
		BaseProvider: NewBaseProvider("openai", config.MaxRetries, config.RetryDelay),
		defaultModel: config.DefaultModel,
	}
	if config.APIKey == "" {
		return p
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if strings.TrimSpace(config.BaseURL) != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	p.client = openai.NewClientWithConfig(clientConfig)
	return p
}

// Name returns the provider identifier used for routing and logging.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// SupportsTools indicates whether this provider can receive a tool manifest.
func (p *OpenAIProvider) SupportsTools() bool {
	return true
}

// Complete sends one turn to the chat completions endpoint and returns the
// full response, retrying transient failures with the configured backoff.
func (p *OpenAIProvider) Complete(ctx context.Context, req *models.ProviderRequest) (*models.ProviderResponse, error) {
	if p.client == nil {
		return nil, errors.New("openai: API key not configured")
	}

	chatReq, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	var resp openai.ChatCompletionResponse
	err = p.Retry(ctx, p.isRetryableError, func() error {
		r, callErr := p.client.CreateChatCompletion(ctx, chatReq)
		if callErr != nil {
			return callErr
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, p.wrapError(err, chatReq.Model)
	}

	return openaiToProviderResponse(resp), nil
}

func (p *OpenAIProvider) buildRequest(req *models.ProviderRequest) (openai.ChatCompletionRequest, error) {
	messages, err := convertMessagesToOpenAI(req.Messages, req.System)
	if err != nil {
		return openai.ChatCompletionRequest{}, fmt.Errorf("openai: failed to convert messages: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    p.getModel(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}
	if len(req.StopSequences) > 0 {
		chatReq.Stop = req.StopSequences
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toolconv.ToOpenAITools(req.Tools)
	}

	return chatReq, nil
}

// convertMessagesToOpenAI converts the dialect-agnostic message log to
// OpenAI's flat role-tagged array, injecting the system prompt as the first
// message (OpenAI has no separate system field).
func convertMessagesToOpenAI(messages []models.Message, system string) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Text(),
			})

		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Text(),
			}
			for _, block := range msg.ToolUses() {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   block.ToolUseID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      block.ToolUseName,
						Arguments: string(block.ToolUseInput),
					},
				})
			}
			result = append(result, oaiMsg)

		case models.RoleToolResult:
			for _, block := range msg.Content {
				if block.Kind != models.BlockToolResult {
					continue
				}
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    block.ToolResultOutput,
					ToolCallID: block.ToolUseID,
				})
			}

		default: // RoleUser
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Text(),
			})
		}
	}

	return result, nil
}

// openaiToProviderResponse converts a chat completion response into the
// dialect-agnostic ProviderResponse. Only the first choice is used; the
// driver never requests n>1.
func openaiToProviderResponse(resp openai.ChatCompletionResponse) *models.ProviderResponse {
	if len(resp.Choices) == 0 {
		return &models.ProviderResponse{StopReason: models.StopReasonEndTurn}
	}

	choice := resp.Choices[0]
	var blocks []models.ContentBlock
	if choice.Message.Content != "" {
		blocks = append(blocks, models.Text(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		blocks = append(blocks, models.ToolUse(tc.ID, tc.Function.Name, json.RawMessage(tc.Function.Arguments)))
	}

	return &models.ProviderResponse{
		Content:    blocks,
		StopReason: openaiStopReason(string(choice.FinishReason)),
		Usage: models.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
}

func openaiStopReason(reason string) models.StopReason {
	switch reason {
	case "tool_calls":
		return models.StopReasonToolUse
	case "length":
		return models.StopReasonMaxTokens
	case "content_filter":
		return models.StopReasonStopSequence
	default:
		return models.StopReasonEndTurn
	}
}

func (p *OpenAIProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func (p *OpenAIProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if providerErr, ok := GetProviderError(err); ok {
		return providerErr.Reason.IsRetryable()
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "rate limit"), strings.Contains(errMsg, "429"):
		return true
	case strings.Contains(errMsg, "500"), strings.Contains(errMsg, "502"), strings.Contains(errMsg, "503"), strings.Contains(errMsg, "504"):
		return true
	case strings.Contains(errMsg, "timeout"), strings.Contains(errMsg, "deadline exceeded"):
		return true
	default:
		return false
	}
}

func (p *OpenAIProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		providerErr := &ProviderError{
			Provider: "openai",
			Model:    model,
			Cause:    err,
			Reason:   FailoverUnknown,
		}
		providerErr = providerErr.WithStatus(apiErr.HTTPStatusCode)
		if apiErr.Message != "" {
			providerErr = providerErr.WithMessage(apiErr.Message)
		}
		if code, ok := apiErr.Code.(string); ok && code != "" {
			providerErr = providerErr.WithCode(code)
		}
		return providerErr
	}

	return NewProviderError("openai", model, err)
}
