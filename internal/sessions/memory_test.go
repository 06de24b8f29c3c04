package sessions

import (
	"context"
	"testing"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

func TestInMemoryStore_GetOrCreateIsIdempotent(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "discord", "guild:1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := store.GetOrCreate(ctx, "discord", "guild:1")
	if err != nil {
		t.Fatalf("GetOrCreate (repeat): %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected same session, got %s and %s", first.ID, second.ID)
	}
}

func TestInMemoryStore_AppendMessageAssignsSeq(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	session, err := store.GetOrCreate(ctx, "slack", "chan:1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	for i := 0; i < 3; i++ {
		msg := &models.Message{Role: models.RoleUser, Content: []models.ContentBlock{models.Text("hi")}}
		if err := store.AppendMessage(ctx, session.ID, msg); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
		if msg.Seq != int64(i+1) {
			t.Errorf("message %d: Seq = %d, want %d", i, msg.Seq, i+1)
		}
	}

	history, err := store.GetHistory(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
}

func TestInMemoryStore_MemoryRoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if err := store.MemoryPut(ctx, "ns", "k", "v"); err != nil {
		t.Fatalf("MemoryPut: %v", err)
	}
	value, ok, err := store.MemoryGet(ctx, "ns", "k")
	if err != nil || !ok || value != "v" {
		t.Errorf("MemoryGet = (%q, %v, %v)", value, ok, err)
	}
	if err := store.MemoryDelete(ctx, "ns", "k"); err != nil {
		t.Fatalf("MemoryDelete: %v", err)
	}
	if _, ok, _ := store.MemoryGet(ctx, "ns", "k"); ok {
		t.Error("expected key to be gone after delete")
	}
}

func TestInMemoryStore_ApprovalDecisionIsFinal(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	req := &models.ApprovalRequest{ToolCallID: "call-1", ToolName: "bash", Sensitivity: 7}
	if err := store.SaveApproval(ctx, req); err != nil {
		t.Fatalf("SaveApproval: %v", err)
	}

	if _, err := store.DecideApproval(ctx, req.ID, models.DecisionAllow, "admin"); err != nil {
		t.Fatalf("DecideApproval: %v", err)
	}
	second, err := store.DecideApproval(ctx, req.ID, models.DecisionDeny, "other")
	if err != nil {
		t.Fatalf("DecideApproval (second): %v", err)
	}
	if second.Decision != models.DecisionAllow {
		t.Errorf("expected decision to stay allow, got %q", second.Decision)
	}
}

func TestInMemoryStore_GetUnknownSessionReturnsNotFound(t *testing.T) {
	store := NewInMemoryStore()
	if _, err := store.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
