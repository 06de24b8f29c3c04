package agent

import (
	"context"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// Provider is the dialect-agnostic interface to an upstream chat-completion
// endpoint. Both supported dialects (Anthropic-style and OpenAI-compatible)
// implement this against the same internal request/response shapes; the
// Agent Driver never sees dialect-specific wire types.
//
// Replies are emitted per turn, not per token: Complete blocks until the
// provider returns a full turn (text, tool uses, or both) rather than
// streaming deltas back to the caller.
type Provider interface {
	// Complete sends one turn of the conversation and returns the
	// provider's full response.
	Complete(ctx context.Context, req *models.ProviderRequest) (*models.ProviderResponse, error)

	// Name identifies the provider for logging, audit, and routing
	// ("anthropic", "openai").
	Name() string

	// SupportsTools reports whether the provider dialect can receive a
	// tool manifest and return tool-use content blocks.
	SupportsTools() bool
}

// ToolEventStore persists tool calls and results for audit and replay,
// independent of the session's message log. Optional: if nil, tool events
// are visible only as ContentBlocks within persisted messages.
type ToolEventStore interface {
	AddToolCall(ctx context.Context, sessionID, messageID string, call *models.ToolCall) error
	AddToolResult(ctx context.Context, sessionID, messageID string, call *models.ToolCall, result *models.ToolOutput) error
}

// ResponseChunk is one unit of the runtime's outward-facing event stream —
// consumed by channel adapters to render progress (e.g. "running bash...")
// without exposing per-token provider deltas, which are out of scope.
type ResponseChunk struct {
	Text       string               `json:"text,omitempty"`
	ToolOutput *models.ToolOutput   `json:"tool_output,omitempty"`
	ToolEvent  *models.ToolEvent    `json:"tool_event,omitempty"`
	Event      *models.RuntimeEvent `json:"event,omitempty"`
	Final      bool                 `json:"final,omitempty"`
	Error      error                `json:"-"`
}
