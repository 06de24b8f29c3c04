package agent

import (
	"context"
	"fmt"

	agentctx "github.com/ainoobmenpg/cc-gateway/internal/agent/context"
	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// CompactionStore is the slice of sessions.Store the compactor needs:
// reading history to decide whether to compact, and atomically folding a
// range of it into a summary message.
type CompactionStore interface {
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
	ReplaceMessageRange(ctx context.Context, sessionID string, fromSeq, toSeq int64, replacement *models.Message) error
}

// Compactor applies a context.Summarizer's plan to the session store. The
// Agent Driver calls MaybeCompact once per turn, before packing the request,
// so a compacted history is what gets sent to the provider (spec §4.5).
type Compactor struct {
	summarizer *agentctx.Summarizer
	store      CompactionStore
}

// NewCompactor creates a compactor backed by the given summarizer and store.
func NewCompactor(summarizer *agentctx.Summarizer, store CompactionStore) *Compactor {
	return &Compactor{summarizer: summarizer, store: store}
}

// MaybeCompact checks whether sessionID's history has grown past the
// summarizer's threshold and, if so, replaces the oldest run of messages
// with a single synthetic summary. Returns true if compaction ran.
func (c *Compactor) MaybeCompact(ctx context.Context, sessionID string, history []*models.Message) (bool, error) {
	if c == nil || c.summarizer == nil || c.store == nil {
		return false, nil
	}
	if !c.summarizer.ShouldSummarize(history) {
		return false, nil
	}

	plan, err := c.summarizer.Plan(ctx, sessionID, history)
	if err != nil {
		return false, fmt.Errorf("plan compaction: %w", err)
	}
	if plan == nil {
		return false, nil
	}

	if err := c.store.ReplaceMessageRange(ctx, sessionID, plan.FromSeq, plan.ToSeq, plan.Summary); err != nil {
		return false, fmt.Errorf("replace message range: %w", err)
	}
	return true, nil
}

// ProviderSummarizer adapts a Provider to agentctx.SummaryProvider by
// issuing a single Complete call with an empty tool manifest, enforcing
// spec §9's "max_iterations=1 via an empty manifest" resolution.
type ProviderSummarizer struct {
	Provider Provider
}

// Summarize asks the provider to summarize messages in prose, with no tools
// offered so the call cannot recurse into another tool-use iteration.
func (s *ProviderSummarizer) Summarize(ctx context.Context, messages []*models.Message, maxLength int) (string, error) {
	prompt := agentctx.BuildSummarizationPrompt(messages, maxLength)
	req := &models.ProviderRequest{
		Messages: []models.Message{
			{Role: models.RoleUser, Content: []models.ContentBlock{models.Text(prompt)}},
		},
		Tools: nil,
	}
	resp, err := s.Provider.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summarize via provider: %w", err)
	}
	summary := &models.Message{Content: resp.Content}
	return summary.Text(), nil
}
