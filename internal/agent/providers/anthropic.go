// Package providers implements the wire-level LLM provider clients: the
// Anthropic-native dialect and the OpenAI-compatible dialect (spec §4.2).
// Both clients speak one-shot send/response — a Complete call blocks until
// the provider returns a full turn, never a partial delta.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ainoobmenpg/cc-gateway/internal/agent/toolconv"
	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// AnthropicProvider implements agent.Provider for Anthropic's Messages API.
//
// Requests carry the system prompt as a top-level field (not a message),
// tool use/result as content blocks, and a stop_reason drawn from
// {end_turn, tool_use, max_tokens, stop_sequence}.
type AnthropicProvider struct {
	BaseProvider

	client anthropic.Client

	defaultModel string
}

// AnthropicConfig holds configuration parameters for creating an AnthropicProvider.
type AnthropicConfig struct {
	// APIKey is the Anthropic API authentication key (required).
	APIKey string

	// BaseURL overrides the default Anthropic API base URL.
	BaseURL string

	// MaxRetries sets the maximum retry attempts for transient failures.
	// Default: 3
	MaxRetries int

	// RetryDelay sets the base delay between retry attempts.
	// Default: 1 second
	RetryDelay time.Duration

	// DefaultModel sets the model to use when a request doesn't specify one.
	DefaultModel string
}

// NewAnthropicProvider creates a new Anthropic provider instance.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}

	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		BaseProvider: NewBaseProvider("anthropic", config.MaxRetries, config.RetryDelay),
		client:       client,
		defaultModel: config.DefaultModel,
	}, nil
}

// Name returns the provider identifier used for routing and logging.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// SupportsTools indicates whether this provider can receive a tool manifest.
func (p *AnthropicProvider) SupportsTools() bool {
	return true
}

// Complete sends one turn to Claude and returns the full response, retrying
// transient failures (rate limits, 5xx, timeouts) with the configured
// backoff. Non-retryable failures (auth, validation) return immediately.
func (p *AnthropicProvider) Complete(ctx context.Context, req *models.ProviderRequest) (*models.ProviderResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	var message *anthropic.Message
	err = p.Retry(ctx, p.isRetryableError, func() error {
		m, callErr := p.client.Messages.New(ctx, params)
		if callErr != nil {
			return callErr
		}
		message = m
		return nil
	})
	if err != nil {
		return nil, p.wrapError(err, string(params.Model))
	}

	return anthropicToProviderResponse(message), nil
}

func (p *AnthropicProvider) buildParams(req *models.ProviderRequest) (anthropic.MessageNewParams, error) {
	messages, err := convertMessagesToAnthropic(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.getModel(req.Model)),
		Messages:  messages,
		MaxTokens: int64(p.getMaxTokens(req.MaxTokens)),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	if len(req.Tools) > 0 {
		tools, err := toolconv.ToAnthropicTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = tools
	}

	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}

	if req.EnableThinking {
		budget := int64(req.ThinkingBudgetTokens)
		if budget < 1024 {
			budget = 10000
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}

	return params, nil
}

// convertMessagesToAnthropic converts the dialect-agnostic message log to
// Anthropic's array-of-content-blocks message format. System-role messages
// are skipped; the system prompt travels in params.System instead.
func convertMessagesToAnthropic(messages []models.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		for _, block := range msg.Content {
			switch block.Kind {
			case models.BlockText:
				if block.Text != "" {
					content = append(content, anthropic.NewTextBlock(block.Text))
				}
			case models.BlockToolResult:
				content = append(content, anthropic.NewToolResultBlock(block.ToolUseID, block.ToolResultOutput, block.ToolResultIsError))
			case models.BlockToolUse:
				var input map[string]any
				if len(block.ToolUseInput) > 0 {
					if err := json.Unmarshal(block.ToolUseInput, &input); err != nil {
						return nil, fmt.Errorf("invalid tool use input for %s: %w", block.ToolUseName, err)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(block.ToolUseID, input, block.ToolUseName))
			case models.BlockThinking:
				// Thinking blocks are carried but Anthropic's Messages API
				// doesn't accept opaque thinking back as input; drop it.
			}
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, nil
}

// anthropicToProviderResponse converts a non-streaming Messages API response
// into the dialect-agnostic ProviderResponse.
func anthropicToProviderResponse(msg *anthropic.Message) *models.ProviderResponse {
	blocks := make([]models.ContentBlock, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text := block.AsText()
			blocks = append(blocks, models.Text(text.Text))
		case "tool_use":
			toolUse := block.AsToolUse()
			blocks = append(blocks, models.ToolUse(toolUse.ID, toolUse.Name, json.RawMessage(toolUse.Input)))
		case "thinking":
			thinking := block.AsThinking()
			blocks = append(blocks, models.ThinkingBlock(thinking.Thinking))
		}
	}

	return &models.ProviderResponse{
		Content:    blocks,
		StopReason: anthropicStopReason(string(msg.StopReason)),
		Usage: models.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
}

func anthropicStopReason(reason string) models.StopReason {
	switch reason {
	case "tool_use":
		return models.StopReasonToolUse
	case "max_tokens":
		return models.StopReasonMaxTokens
	case "stop_sequence":
		return models.StopReasonStopSequence
	default:
		return models.StopReasonEndTurn
	}
}

// getModel returns the model ID to use, falling back to the provider default.
func (p *AnthropicProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

// getMaxTokens returns the max tokens to generate, defaulting to 4096.
func (p *AnthropicProvider) getMaxTokens(maxTokens int) int {
	if maxTokens <= 0 {
		return 4096
	}
	return maxTokens
}

func (p *AnthropicProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if providerErr, ok := GetProviderError(err); ok {
		return providerErr.Reason.IsRetryable()
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "rate_limit"), strings.Contains(errMsg, "429"), strings.Contains(errMsg, "too many requests"):
		return true
	case strings.Contains(errMsg, "500"), strings.Contains(errMsg, "502"), strings.Contains(errMsg, "503"), strings.Contains(errMsg, "504"),
		strings.Contains(errMsg, "internal server error"), strings.Contains(errMsg, "bad gateway"),
		strings.Contains(errMsg, "service unavailable"), strings.Contains(errMsg, "gateway timeout"):
		return true
	case strings.Contains(errMsg, "timeout"), strings.Contains(errMsg, "deadline exceeded"):
		return true
	case strings.Contains(errMsg, "connection reset"), strings.Contains(errMsg, "connection refused"), strings.Contains(errMsg, "no such host"):
		return true
	default:
		return false
	}
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func (p *AnthropicProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		providerErr := &ProviderError{
			Provider: "anthropic",
			Model:    model,
			Cause:    err,
			Reason:   FailoverUnknown,
		}
		providerErr = providerErr.WithStatus(apiErr.StatusCode)

		message := ""
		code := ""
		requestID := apiErr.RequestID

		if raw := apiErr.RawJSON(); raw != "" {
			var payload anthropicErrorPayload
			if json.Unmarshal([]byte(raw), &payload) == nil {
				if payload.Error.Message != "" {
					message = payload.Error.Message
				}
				if payload.Error.Type != "" {
					code = payload.Error.Type
				}
				if payload.RequestID != "" {
					requestID = payload.RequestID
				}
			}
		}

		if message != "" {
			providerErr = providerErr.WithMessage(message)
		} else if providerErr.Message == "" {
			providerErr.Message = "anthropic request failed"
		}
		if code != "" {
			providerErr = providerErr.WithCode(code)
		}
		if requestID != "" {
			providerErr = providerErr.WithRequestID(requestID)
		}
		return providerErr
	}

	return NewProviderError("anthropic", model, err)
}
