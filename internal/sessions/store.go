// Package sessions implements the durable Session Store and Memory Store
// (spec §4.5): a single-file embedded relational database holding
// sessions, their append-only message log, the memory key/value table, and
// pending approval requests.
package sessions

import (
	"context"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// Store is the interface for session, message, memory, and
// approval-request persistence. Implementations must serialize writers per
// session id (spec §5); readers see a consistent snapshot of committed
// messages.
type Store interface {
	// Session CRUD
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error

	// GetByKey looks up a session by (channel_kind, channel_scope) key.
	GetByKey(ctx context.Context, kind models.ChannelKind, scope string) (*models.Session, error)
	// GetOrCreate atomically finds or creates a session for a channel scope.
	GetOrCreate(ctx context.Context, kind models.ChannelKind, scope string) (*models.Session, error)
	List(ctx context.Context, opts ListOptions) ([]*models.Session, error)

	// Touch updates the session's last-touched time.
	Touch(ctx context.Context, sessionID string) error

	// Message history. AppendMessage assigns Seq and persists fsync-durable
	// before returning (spec §5).
	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
	// ReplaceMessageRange atomically removes messages with seq in
	// [fromSeq, toSeq] and inserts replacement in their place, used by
	// compaction (spec §4.5).
	ReplaceMessageRange(ctx context.Context, sessionID string, fromSeq, toSeq int64, replacement *models.Message) error

	// Memory Store: durable (namespace, key) -> value.
	MemoryPut(ctx context.Context, namespace, key, value string) error
	MemoryGet(ctx context.Context, namespace, key string) (string, bool, error)
	MemoryDelete(ctx context.Context, namespace, key string) error

	// Pending approvals, for ApprovalStore (spec §4.4).
	SaveApproval(ctx context.Context, req *models.ApprovalRequest) error
	GetApproval(ctx context.Context, id string) (*models.ApprovalRequest, error)
	DecideApproval(ctx context.Context, id string, decision models.Decision, decidedBy string) (*models.ApprovalRequest, error)

	Close() error
}

// ListOptions configures session listing.
type ListOptions struct {
	Channel models.ChannelKind
	Limit   int
	Offset  int
}

// SessionKey builds the (channel_kind, channel_scope) lookup key.
func SessionKey(kind models.ChannelKind, scope string) string {
	return string(kind) + ":" + scope
}
