package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// LsTool lists the contents of a workspace directory.
type LsTool struct {
	resolver Resolver
	root     string
}

// NewLsTool creates an ls tool scoped to the workspace.
func NewLsTool(cfg Config) *LsTool {
	root := strings.TrimSpace(cfg.Workspace)
	if root == "" {
		root = "."
	}
	return &LsTool{resolver: Resolver{Root: root}, root: root}
}

// Name returns the tool name.
func (t *LsTool) Name() string { return "ls" }

// Sensitivity reports the tool's fixed sensitivity level.
func (t *LsTool) Sensitivity() int { return 1 }

// Description returns the tool description.
func (t *LsTool) Description() string {
	return "List the entries of a directory in the workspace."
}

// Schema returns the JSON schema for the tool parameters.
func (t *LsTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to list (relative to workspace, default: workspace root).",
			},
		},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

type lsEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// Execute lists one directory's immediate entries.
func (t *LsTool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolOutput, error) {
	var input struct {
		Path string `json:"path"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
		}
	}

	dir := t.root
	if input.Path != "" {
		resolved, err := t.resolver.Resolve(input.Path)
		if err != nil {
			return toolError(err.Error()), nil
		}
		dir = resolved
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return toolError(fmt.Sprintf("read directory: %v", err)), nil
	}

	out := make([]lsEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		var size int64
		if err == nil {
			size = info.Size()
		}
		out = append(out, lsEntry{Name: e.Name(), IsDir: e.IsDir(), Size: size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	rel, err := filepath.Rel(t.root, dir)
	if err != nil {
		rel = input.Path
	}
	payload, err := json.MarshalIndent(map[string]interface{}{
		"path":    filepath.ToSlash(rel),
		"entries": out,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &models.ToolOutput{Text: string(payload)}, nil
}
