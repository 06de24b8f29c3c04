package models

import (
	"encoding/json"
	"time"
)

// ToolOutcome is the terminal state of a ToolCall.
type ToolOutcome string

const (
	ToolOutcomeOK      ToolOutcome = "ok"
	ToolOutcomeError   ToolOutcome = "error"
	ToolOutcomeDenied  ToolOutcome = "denied"
	ToolOutcomeTimeout ToolOutcome = "timeout"
)

// ToolCall is the runtime record of one tool invocation, written to the
// Audit Log regardless of outcome.
type ToolCall struct {
	ID             string          `json:"id"`
	ToolName       string          `json:"tool_name"`
	Input          json.RawMessage `json:"input"`
	SessionID      string          `json:"session_id"`
	Sensitivity    int             `json:"sensitivity"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Outcome        ToolOutcome     `json:"outcome"`
	ApprovalResult Decision        `json:"approval_result,omitempty"`
}

// ToolDescriptor is the manifest entry sent to the provider, and the
// identity record held by the Tool Registry. Name is a stable, unique,
// ASCII identifier; InputSchema must be a JSON-Schema object of
// "type":"object".
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
	Sensitivity int             `json:"sensitivity"`
}

// ToolSummary is the metadata describing a tool exposed to a provider,
// including its MCP namespace and canonical (unprefixed) name.
type ToolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
	Source      string          `json:"source"`
	Namespace   string          `json:"namespace"`
	Canonical   string          `json:"canonical"`
}

// ToolOutput is the result of Registry.execute: the text fed back to the
// provider as a ToolResult block, and whether it represents an error.
type ToolOutput struct {
	Text    string `json:"text"`
	IsError bool   `json:"is_error"`
}
