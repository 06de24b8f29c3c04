package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
	RoleSystem     Role = "system"
)

// StopReason mirrors the provider's terminal signal for an assistant message.
type StopReason string

const (
	StopReasonEndTurn      StopReason = "end_turn"
	StopReasonToolUse      StopReason = "tool_use"
	StopReasonMaxTokens    StopReason = "max_tokens"
	StopReasonStopSequence StopReason = "stop_sequence"
)

// BlockKind discriminates the variants of ContentBlock.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
	BlockThinking   BlockKind = "thinking"
)

// ContentBlock is the sum type Text | ToolUse | ToolResult | Thinking. Both
// provider dialects (Anthropic-native and OpenAI-compatible) map onto this
// one representation so the Agent Driver stays dialect-agnostic.
//
// Exactly one group of payload fields is populated, selected by Kind.
// Thinking blocks are persisted verbatim but are otherwise opaque — the
// driver never acts on their content, it only carries them through.
type ContentBlock struct {
	Kind BlockKind `json:"kind"`

	// Text payload, Kind == BlockText.
	Text string `json:"text,omitempty"`

	// ToolUse payload, Kind == BlockToolUse. ID is opaque and must be
	// echoed verbatim in the matching ToolResult block.
	ToolUseID    string          `json:"tool_use_id,omitempty"`
	ToolUseName  string          `json:"tool_use_name,omitempty"`
	ToolUseInput json.RawMessage `json:"tool_use_input,omitempty"`

	// ToolResult payload, Kind == BlockToolResult. ToolUseID must reference
	// a ToolUse block that appeared earlier in the same session.
	ToolResultOutput  string `json:"tool_result_output,omitempty"`
	ToolResultIsError bool   `json:"tool_result_is_error,omitempty"`

	// Thinking payload, Kind == BlockThinking.
	Thinking string `json:"thinking,omitempty"`
}

// Text builds a Text content block.
func Text(s string) ContentBlock { return ContentBlock{Kind: BlockText, Text: s} }

// ToolUse builds a ToolUse content block.
func ToolUse(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Kind: BlockToolUse, ToolUseID: id, ToolUseName: name, ToolUseInput: input}
}

// ToolResultBlock builds a ToolResult content block.
func ToolResultBlock(toolUseID, output string, isError bool) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ToolUseID: toolUseID, ToolResultOutput: output, ToolResultIsError: isError}
}

// ThinkingBlock builds an opaque Thinking content block.
func ThinkingBlock(s string) ContentBlock { return ContentBlock{Kind: BlockThinking, Thinking: s} }

// Message is one entry in a session's ordered log. A single message may
// interleave multiple content blocks, e.g. an assistant message carrying
// both leading text and one or more ToolUse blocks.
//
// Invariant: every ToolResult.ToolUseID appearing in a message must match a
// ToolUse.ID that appeared earlier in the same session (turn linearity).
type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Seq       int64          `json:"seq"`
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`

	// StopReason is set on assistant messages only; empty otherwise.
	StopReason StopReason `json:"stop_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasToolUse reports whether the message carries any ToolUse blocks.
func (m *Message) HasToolUse() bool {
	for _, b := range m.Content {
		if b.Kind == BlockToolUse {
			return true
		}
	}
	return false
}

// Text concatenates all Text blocks in the message, in order.
func (m *Message) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Kind == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns the ToolUse blocks in the message, in original order.
func (m *Message) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Kind == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}
