package agent

import (
	"regexp"
	"strings"

	"github.com/ainoobmenpg/cc-gateway/internal/tools/policy"
	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// ToolResultGuard controls how tool output is redacted before it is
// persisted to the session's message log. It runs after a tool call
// finishes and before the ToolResult content block is written.
type ToolResultGuard struct {
	Enabled        bool
	MaxChars       int
	Denylist       []string
	RedactPatterns []string
	RedactionText  string
	TruncateSuffix string
}

func (g ToolResultGuard) active() bool {
	return g.Enabled || g.MaxChars > 0 || len(g.Denylist) > 0 || len(g.RedactPatterns) > 0 || g.RedactionText != "" || g.TruncateSuffix != ""
}

// Apply redacts or truncates a tool's output according to the guard's rules.
func (g ToolResultGuard) Apply(toolName string, output models.ToolOutput, resolver *policy.Resolver) models.ToolOutput {
	if !g.active() {
		return output
	}

	redaction := strings.TrimSpace(g.RedactionText)
	if redaction == "" {
		redaction = "[redacted]"
	}
	truncateSuffix := strings.TrimSpace(g.TruncateSuffix)
	if truncateSuffix == "" {
		truncateSuffix = "...[truncated]"
	}

	if len(g.Denylist) > 0 && matchesToolPatterns(g.Denylist, toolName, resolver) {
		output.Text = redaction
		return output
	}

	if len(g.RedactPatterns) > 0 && output.Text != "" {
		content := output.Text
		for _, pattern := range g.RedactPatterns {
			pattern = strings.TrimSpace(pattern)
			if pattern == "" {
				continue
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				continue
			}
			content = re.ReplaceAllString(content, redaction)
		}
		output.Text = content
	}

	if g.MaxChars > 0 && len(output.Text) > g.MaxChars {
		cutoff := g.MaxChars
		if cutoff < 0 {
			cutoff = 0
		}
		if cutoff > len(output.Text) {
			cutoff = len(output.Text)
		}
		output.Text = output.Text[:cutoff] + truncateSuffix
	}

	return output
}
