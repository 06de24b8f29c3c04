package files

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// GlobTool finds files in the workspace matching a shell glob pattern.
type GlobTool struct {
	resolver  Resolver
	root      string
	maxResult int
}

// NewGlobTool creates a glob tool scoped to the workspace.
func NewGlobTool(cfg Config) *GlobTool {
	root := strings.TrimSpace(cfg.Workspace)
	if root == "" {
		root = "."
	}
	return &GlobTool{resolver: Resolver{Root: root}, root: root, maxResult: 1000}
}

// Name returns the tool name.
func (t *GlobTool) Name() string { return "glob" }

// Sensitivity reports the tool's fixed sensitivity level.
func (t *GlobTool) Sensitivity() int { return 1 }

// Description returns the tool description.
func (t *GlobTool) Description() string {
	return "Find files under the workspace whose path matches a glob pattern (supports ** for recursive matching)."
}

// Schema returns the JSON schema for the tool parameters.
func (t *GlobTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Glob pattern relative to the workspace, e.g. \"**/*.go\".",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to search under (default: workspace root).",
			},
		},
		"required": []string{"pattern"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute walks the workspace and returns paths matching the pattern.
func (t *GlobTool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolOutput, error) {
	var input struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return toolError("pattern is required"), nil
	}

	searchDir := t.root
	if input.Path != "" {
		resolved, err := t.resolver.Resolve(input.Path)
		if err != nil {
			return toolError(err.Error()), nil
		}
		searchDir = resolved
	}

	var matches []string
	err := filepath.WalkDir(searchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(searchDir, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matchGlob(input.Pattern, rel) {
			matches = append(matches, rel)
		}
		if len(matches) >= t.maxResult {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && err != fs.SkipAll {
		return toolError(fmt.Sprintf("walk workspace: %v", err)), nil
	}
	sort.Strings(matches)

	payload, err := json.MarshalIndent(map[string]interface{}{
		"matches":   matches,
		"truncated": len(matches) >= t.maxResult,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &models.ToolOutput{Text: string(payload)}, nil
}

// matchGlob supports "**" as a path-spanning wildcard on top of
// filepath.Match's single-segment patterns, since the stdlib glob has no
// recursive form on its own.
func matchGlob(pattern, path string) bool {
	if !strings.Contains(pattern, "**") {
		ok, _ := filepath.Match(pattern, path)
		return ok
	}

	segments := strings.Split(pattern, "**")
	pathSegs := strings.Split(path, "/")

	return matchGlobSegments(segments, pathSegs)
}

func matchGlobSegments(patternParts []string, path []string) bool {
	if len(patternParts) == 1 {
		candidate := strings.Join(path, "/")
		ok, _ := filepath.Match(strings.Trim(patternParts[0], "/"), candidate)
		if ok {
			return true
		}
		// A single trailing/leading "**" segment may leave an empty part,
		// meaning "anything"; fall back to suffix/prefix matching.
		return matchesTrimmedPattern(patternParts[0], candidate)
	}

	head := strings.TrimSuffix(patternParts[0], "/")
	rest := patternParts[1:]

	for i := 0; i <= len(path); i++ {
		prefix := path[:i]
		suffix := path[i:]
		if head != "" {
			ok, _ := filepath.Match(head, strings.Join(prefix, "/"))
			if !ok {
				continue
			}
		}
		if matchGlobSegments(rest, suffix) {
			return true
		}
	}
	return false
}

func matchesTrimmedPattern(pattern, candidate string) bool {
	pattern = strings.Trim(pattern, "/")
	if pattern == "" {
		return true
	}
	ok, _ := filepath.Match(pattern, filepath.Base(candidate))
	return ok
}
