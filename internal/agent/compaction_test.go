package agent

import (
	"context"
	"errors"
	"testing"

	agentctx "github.com/ainoobmenpg/cc-gateway/internal/agent/context"
	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

type stubSummaryProvider struct {
	text string
	err  error
}

func (s *stubSummaryProvider) Summarize(ctx context.Context, messages []*models.Message, maxLength int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type stubCompactionStore struct {
	replaced bool
	fromSeq  int64
	toSeq    int64
	summary  *models.Message
}

func (s *stubCompactionStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	return nil, nil
}

func (s *stubCompactionStore) ReplaceMessageRange(ctx context.Context, sessionID string, fromSeq, toSeq int64, replacement *models.Message) error {
	s.replaced = true
	s.fromSeq = fromSeq
	s.toSeq = toSeq
	s.summary = replacement
	return nil
}

func buildHistory(n int) []*models.Message {
	history := make([]*models.Message, n)
	for i := 0; i < n; i++ {
		history[i] = &models.Message{
			SessionID: "sess-1",
			Seq:       int64(i + 1),
			Role:      models.RoleUser,
			Content:   []models.ContentBlock{models.Text("message")},
		}
	}
	return history
}

func TestCompactor_MaybeCompact_BelowThreshold(t *testing.T) {
	cfg := agentctx.DefaultSummarizationConfig()
	summarizer := agentctx.NewSummarizer(&stubSummaryProvider{text: "summary"}, cfg)
	store := &stubCompactionStore{}
	c := NewCompactor(summarizer, store)

	history := buildHistory(5)
	compacted, err := c.MaybeCompact(context.Background(), "sess-1", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if compacted {
		t.Fatal("expected no compaction below threshold")
	}
	if store.replaced {
		t.Fatal("store should not have been touched")
	}
}

func TestCompactor_MaybeCompact_AboveThreshold(t *testing.T) {
	cfg := agentctx.SummarizationConfig{MaxMsgsBeforeSummary: 10, KeepRecentMessages: 3, MaxSummaryLength: 500}
	summarizer := agentctx.NewSummarizer(&stubSummaryProvider{text: "folded summary"}, cfg)
	store := &stubCompactionStore{}
	c := NewCompactor(summarizer, store)

	history := buildHistory(15)
	compacted, err := c.MaybeCompact(context.Background(), "sess-1", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !compacted {
		t.Fatal("expected compaction above threshold")
	}
	if !store.replaced {
		t.Fatal("expected ReplaceMessageRange to be called")
	}
	if store.fromSeq != history[0].Seq || store.toSeq != history[11].Seq {
		t.Errorf("unexpected range [%d,%d]", store.fromSeq, store.toSeq)
	}
	if store.summary == nil || store.summary.Text() != "folded summary" {
		t.Errorf("unexpected summary message: %+v", store.summary)
	}
	if store.summary.Role != models.RoleSystem {
		t.Errorf("expected summary role system, got %s", store.summary.Role)
	}
}

func TestCompactor_MaybeCompact_NilReceiverIsNoop(t *testing.T) {
	var c *Compactor
	compacted, err := c.MaybeCompact(context.Background(), "sess-1", buildHistory(100))
	if err != nil || compacted {
		t.Fatalf("expected no-op on nil compactor, got compacted=%v err=%v", compacted, err)
	}
}

type stubProvider struct {
	content []models.ContentBlock
	err     error
}

func (p *stubProvider) Complete(ctx context.Context, req *models.ProviderRequest) (*models.ProviderResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	if len(req.Tools) != 0 {
		return nil, errors.New("provider summarization call must not carry a tool manifest")
	}
	return &models.ProviderResponse{Content: p.content, StopReason: models.StopReasonEndTurn}, nil
}

func (p *stubProvider) Name() string        { return "stub" }
func (p *stubProvider) SupportsTools() bool { return true }

func TestProviderSummarizer_Summarize(t *testing.T) {
	provider := &stubProvider{content: []models.ContentBlock{models.Text("this happened")}}
	s := &ProviderSummarizer{Provider: provider}

	got, err := s.Summarize(context.Background(), buildHistory(3), 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "this happened" {
		t.Errorf("got %q, want %q", got, "this happened")
	}
}
