package files

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// GrepTool searches file contents under the workspace for a regular
// expression, reporting matching lines grouped by file.
type GrepTool struct {
	resolver   Resolver
	root       string
	maxMatches int
}

// NewGrepTool creates a grep tool scoped to the workspace.
func NewGrepTool(cfg Config) *GrepTool {
	root := strings.TrimSpace(cfg.Workspace)
	if root == "" {
		root = "."
	}
	return &GrepTool{resolver: Resolver{Root: root}, root: root, maxMatches: 500}
}

// Name returns the tool name.
func (t *GrepTool) Name() string { return "grep" }

// Sensitivity reports the tool's fixed sensitivity level.
func (t *GrepTool) Sensitivity() int { return 1 }

// Description returns the tool description.
func (t *GrepTool) Description() string {
	return "Search file contents under the workspace for lines matching a regular expression."
}

// Schema returns the JSON schema for the tool parameters.
func (t *GrepTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "RE2 regular expression to search for.",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory or file to search (default: workspace root).",
			},
			"glob": map[string]interface{}{
				"type":        "string",
				"description": "Optional glob restricting which filenames are searched, e.g. \"*.go\".",
			},
			"case_insensitive": map[string]interface{}{
				"type":        "boolean",
				"description": "Match case-insensitively (default: false).",
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

type grepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Execute searches matching files line by line for the pattern.
func (t *GrepTool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolOutput, error) {
	var input struct {
		Pattern         string `json:"pattern"`
		Path            string `json:"path"`
		Glob            string `json:"glob"`
		CaseInsensitive bool   `json:"case_insensitive"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return toolError("pattern is required"), nil
	}

	exprSrc := input.Pattern
	if input.CaseInsensitive {
		exprSrc = "(?i)" + exprSrc
	}
	expr, err := regexp.Compile(exprSrc)
	if err != nil {
		return toolError(fmt.Sprintf("invalid pattern: %v", err)), nil
	}

	searchDir := t.root
	if input.Path != "" {
		resolved, err := t.resolver.Resolve(input.Path)
		if err != nil {
			return toolError(err.Error()), nil
		}
		searchDir = resolved
	}

	var matches []grepMatch
	truncated := false
	err = filepath.WalkDir(searchDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if input.Glob != "" {
			ok, _ := filepath.Match(input.Glob, d.Name())
			if !ok {
				return nil
			}
		}
		rel, relErr := filepath.Rel(t.root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		fileMatches, err := grepFile(path, expr, t.maxMatches-len(matches))
		if err != nil {
			return nil
		}
		for _, m := range fileMatches {
			matches = append(matches, grepMatch{Path: rel, Line: m.Line, Text: m.Text})
		}
		if len(matches) >= t.maxMatches {
			truncated = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && err != fs.SkipAll {
		return toolError(fmt.Sprintf("search workspace: %v", err)), nil
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Path != matches[j].Path {
			return matches[i].Path < matches[j].Path
		}
		return matches[i].Line < matches[j].Line
	})

	payload, err := json.MarshalIndent(map[string]interface{}{
		"matches":   matches,
		"truncated": truncated,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &models.ToolOutput{Text: string(payload)}, nil
}

func grepFile(path string, expr *regexp.Regexp, limit int) ([]grepMatch, error) {
	if limit <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []grepMatch
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if expr.MatchString(line) {
			out = append(out, grepMatch{Line: lineNum, Text: line})
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
