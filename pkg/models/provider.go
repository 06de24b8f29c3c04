package models

// ProviderRequest is the internal, dialect-agnostic request shape. The
// Provider Client serializes this into whichever wire dialect (Anthropic or
// OpenAI-compatible) its configuration selects.
type ProviderRequest struct {
	Model                string         `json:"model"`
	System               string         `json:"system,omitempty"`
	Messages             []Message      `json:"messages"`
	Tools                []ToolDescriptor `json:"tools,omitempty"`
	MaxTokens            int            `json:"max_tokens,omitempty"`
	Temperature          float64        `json:"temperature,omitempty"`
	StopSequences        []string       `json:"stop_sequences,omitempty"`
	EnableThinking       bool           `json:"enable_thinking,omitempty"`
	ThinkingBudgetTokens int            `json:"thinking_budget_tokens,omitempty"`
}

// Usage carries token accounting for one provider call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ProviderResponse is the internal, dialect-agnostic response shape: an
// ordered list of content blocks plus a stop reason and usage counters.
type ProviderResponse struct {
	Content    []ContentBlock `json:"content"`
	StopReason StopReason     `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}
