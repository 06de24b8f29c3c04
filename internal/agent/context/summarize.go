package context

import (
	"context"
	"fmt"
	"strings"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// SummarizationConfig configures the compaction behavior (spec §4.5).
type SummarizationConfig struct {
	// MaxMsgsBeforeSummary is the message-count threshold that triggers
	// compaction. Default: 30.
	MaxMsgsBeforeSummary int

	// KeepRecentMessages is how many of the most recent messages are left
	// untouched, outside the replaced range. Default: 10.
	KeepRecentMessages int

	// MaxSummaryLength is the target length for summaries in characters.
	// Default: 2000.
	MaxSummaryLength int
}

// DefaultSummarizationConfig returns sensible defaults.
func DefaultSummarizationConfig() SummarizationConfig {
	return SummarizationConfig{
		MaxMsgsBeforeSummary: 30,
		KeepRecentMessages:   10,
		MaxSummaryLength:     2000,
	}
}

// SummaryProvider generates a prose summary of a message range. The Agent
// Driver typically implements this by issuing a provider call with an empty
// tool manifest and BuildSummarizationPrompt as the user turn.
type SummaryProvider interface {
	Summarize(ctx context.Context, messages []*models.Message, maxLength int) (string, error)
}

// Summarizer decides when a session's history needs compacting and builds
// the replacement message. It does not touch the session store itself —
// the caller applies the result via sessions.Store.ReplaceMessageRange.
type Summarizer struct {
	provider SummaryProvider
	config   SummarizationConfig
}

// NewSummarizer creates a new summarizer with the given provider and config.
func NewSummarizer(provider SummaryProvider, config SummarizationConfig) *Summarizer {
	if config.MaxMsgsBeforeSummary <= 0 {
		config.MaxMsgsBeforeSummary = 30
	}
	if config.KeepRecentMessages <= 0 {
		config.KeepRecentMessages = 10
	}
	if config.MaxSummaryLength <= 0 {
		config.MaxSummaryLength = 2000
	}
	return &Summarizer{provider: provider, config: config}
}

// ShouldSummarize reports whether history has grown past the threshold.
func (s *Summarizer) ShouldSummarize(history []*models.Message) bool {
	return len(history) > s.config.MaxMsgsBeforeSummary
}

// CompactionPlan describes the message range to fold into a summary.
type CompactionPlan struct {
	FromSeq int64
	ToSeq   int64
	Summary *models.Message
}

// Plan generates a compaction plan for the given history, or nil if no
// compaction is needed. The range [FromSeq, ToSeq] covers every message
// except the most recent KeepRecentMessages; the caller replaces that range
// with Summary via sessions.Store.ReplaceMessageRange.
func (s *Summarizer) Plan(ctx context.Context, sessionID string, history []*models.Message) (*CompactionPlan, error) {
	if !s.ShouldSummarize(history) {
		return nil, nil
	}

	cut := len(history) - s.config.KeepRecentMessages
	if cut <= 0 {
		return nil, nil
	}
	toSummarize := history[:cut]
	if len(toSummarize) == 0 {
		return nil, nil
	}

	summaryText, err := s.provider.Summarize(ctx, toSummarize, s.config.MaxSummaryLength)
	if err != nil {
		return nil, fmt.Errorf("generate summary: %w", err)
	}

	summaryMsg := &models.Message{
		SessionID: sessionID,
		Role:      models.RoleSystem,
		Content:   []models.ContentBlock{models.Text(summaryText)},
	}

	return &CompactionPlan{
		FromSeq: toSummarize[0].Seq,
		ToSeq:   toSummarize[len(toSummarize)-1].Seq,
		Summary: summaryMsg,
	}, nil
}

// BuildSummarizationPrompt creates the prompt for summarizing messages.
// This is used by LLM-based summary providers.
func BuildSummarizationPrompt(messages []*models.Message, maxLength int) string {
	var sb strings.Builder

	sb.WriteString("Please summarize the following conversation concisely. ")
	fmt.Fprintf(&sb, "Keep the summary under %d characters. ", maxLength)
	sb.WriteString("Focus on:\n")
	sb.WriteString("- Key topics discussed\n")
	sb.WriteString("- Important decisions or conclusions\n")
	sb.WriteString("- Any pending tasks or questions\n")
	sb.WriteString("- Tool executions and their outcomes\n\n")
	sb.WriteString("Conversation:\n\n")

	for _, m := range messages {
		if m == nil {
			continue
		}

		fmt.Fprintf(&sb, "[%s]: ", m.Role)

		if text := m.Text(); text != "" {
			sb.WriteString(text)
		}

		for _, b := range m.ToolUses() {
			fmt.Fprintf(&sb, "\n  [Called tool: %s]", b.ToolUseName)
		}

		for _, b := range m.Content {
			if b.Kind != models.BlockToolResult {
				continue
			}
			content := b.ToolResultOutput
			if len(content) > 200 {
				content = content[:200] + "..."
			}
			status := "success"
			if b.ToolResultIsError {
				status = "error"
			}
			fmt.Fprintf(&sb, "\n  [Tool result (%s): %s]", status, content)
		}

		sb.WriteString("\n\n")
	}

	sb.WriteString("---\nProvide a concise summary:")
	return sb.String()
}
