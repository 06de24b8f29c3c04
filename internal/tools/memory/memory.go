// Package memory implements the keyed memory store tools, backed by a
// sessions.Store so values persist across turns within a namespace.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ainoobmenpg/cc-gateway/internal/sessions"
	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

func toolError(message string) *models.ToolOutput {
	return &models.ToolOutput{Text: message, IsError: true}
}

// PutTool writes a value under a namespace/key pair in the memory store.
type PutTool struct {
	store sessions.Store
}

// NewPutTool creates a memory_put tool backed by store.
func NewPutTool(store sessions.Store) *PutTool {
	return &PutTool{store: store}
}

// Name returns the tool name.
func (t *PutTool) Name() string { return "memory_put" }

// Sensitivity reports the tool's fixed sensitivity level.
func (t *PutTool) Sensitivity() int { return 2 }

// Description returns the tool description.
func (t *PutTool) Description() string {
	return "Store a value under a namespace/key pair in the keyed memory store, persisting it across turns."
}

// Schema returns the JSON schema for the tool parameters.
func (t *PutTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace": map[string]interface{}{
				"type":        "string",
				"description": "Memory namespace to write under, e.g. the session key.",
			},
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Key to store the value under within the namespace.",
			},
			"value": map[string]interface{}{
				"type":        "string",
				"description": "Value to store.",
			},
		},
		"required": []string{"namespace", "key", "value"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute stores the value.
func (t *PutTool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolOutput, error) {
	var input struct {
		Namespace string `json:"namespace"`
		Key       string `json:"key"`
		Value     string `json:"value"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Namespace) == "" {
		return toolError("namespace is required"), nil
	}
	if strings.TrimSpace(input.Key) == "" {
		return toolError("key is required"), nil
	}

	if err := t.store.MemoryPut(ctx, input.Namespace, input.Key, input.Value); err != nil {
		return toolError(fmt.Sprintf("store value: %v", err)), nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"namespace": input.Namespace,
		"key":       input.Key,
		"stored":    true,
	})
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &models.ToolOutput{Text: string(payload)}, nil
}

// GetTool reads a value from the memory store by namespace/key.
type GetTool struct {
	store sessions.Store
}

// NewGetTool creates a memory_get tool backed by store.
func NewGetTool(store sessions.Store) *GetTool {
	return &GetTool{store: store}
}

// Name returns the tool name.
func (t *GetTool) Name() string { return "memory_get" }

// Sensitivity reports the tool's fixed sensitivity level.
func (t *GetTool) Sensitivity() int { return 1 }

// Description returns the tool description.
func (t *GetTool) Description() string {
	return "Read a value previously stored under a namespace/key pair in the keyed memory store."
}

// Schema returns the JSON schema for the tool parameters.
func (t *GetTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace": map[string]interface{}{
				"type":        "string",
				"description": "Memory namespace to read from, e.g. the session key.",
			},
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Key to read within the namespace.",
			},
		},
		"required": []string{"namespace", "key"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute reads the stored value, if any.
func (t *GetTool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolOutput, error) {
	var input struct {
		Namespace string `json:"namespace"`
		Key       string `json:"key"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Namespace) == "" {
		return toolError("namespace is required"), nil
	}
	if strings.TrimSpace(input.Key) == "" {
		return toolError("key is required"), nil
	}

	value, found, err := t.store.MemoryGet(ctx, input.Namespace, input.Key)
	if err != nil {
		return toolError(fmt.Sprintf("read value: %v", err)), nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"namespace": input.Namespace,
		"key":       input.Key,
		"found":     found,
		"value":     value,
	})
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &models.ToolOutput{Text: string(payload)}, nil
}
