package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("sessions: not found")

// SQLiteConfig configures the embedded single-file store.
type SQLiteConfig struct {
	// Path is the database file path. A portable, single-file deployment
	// per spec §6 ("Sessions database file at configured path (single
	// file, portable)").
	Path string
}

// DefaultSQLiteConfig returns sane defaults for local development.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{Path: "gateway.db"}
}

// SQLiteStore is the durable Session Store and Memory Store, backed by a
// single-file, pure-Go sqlite database (no cgo). Statement shape — grouped
// prepared statements keyed by operation — mirrors the teacher's Postgres
// store, translated from "$N" to "?" placeholders.
type SQLiteStore struct {
	db *sql.DB

	stmtInsertSession     *sql.Stmt
	stmtGetSession        *sql.Stmt
	stmtGetSessionByKey   *sql.Stmt
	stmtUpdateSession     *sql.Stmt
	stmtDeleteSession     *sql.Stmt
	stmtTouchSession      *sql.Stmt
	stmtListSessions      *sql.Stmt
	stmtInsertMessage     *sql.Stmt
	stmtMaxSeq            *sql.Stmt
	stmtGetHistory        *sql.Stmt
	stmtDeleteMessageRange *sql.Stmt
	stmtMemoryUpsert      *sql.Stmt
	stmtMemoryGet         *sql.Stmt
	stmtMemoryDelete      *sql.Stmt
	stmtApprovalInsert    *sql.Stmt
	stmtApprovalGet       *sql.Stmt
	stmtApprovalDecide    *sql.Stmt
}

// NewSQLiteStore opens (creating if absent) the database at cfg.Path,
// applies the schema, and prepares all statements.
func NewSQLiteStore(ctx context.Context, cfg SQLiteConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sessions: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer file store; avoid SQLITE_BUSY under our own lock

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions: ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions: apply schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	channel_kind TEXT NOT NULL,
	channel_scope TEXT NOT NULL,
	system_prompt TEXT,
	tool_allowlist_json TEXT,
	admin_identities_json TEXT,
	created_at TIMESTAMP NOT NULL,
	touched_at TIMESTAMP NOT NULL,
	UNIQUE(channel_kind, channel_scope)
);

CREATE TABLE IF NOT EXISTS messages (
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	content_json TEXT NOT NULL,
	stop_reason TEXT,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, seq)
);

CREATE TABLE IF NOT EXISTS memory (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (namespace, key)
);

CREATE TABLE IF NOT EXISTS pending_approvals (
	id TEXT PRIMARY KEY,
	tool_call_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	sensitivity INTEGER NOT NULL,
	rendered_preview TEXT,
	session_id TEXT NOT NULL,
	requires_identity INTEGER NOT NULL,
	deadline TIMESTAMP NOT NULL,
	decision TEXT NOT NULL,
	decided_by TEXT,
	decided_at TIMESTAMP
);
`

func (s *SQLiteStore) prepareStatements(ctx context.Context) error {
	prep := func(query string) (*sql.Stmt, error) {
		return s.db.PrepareContext(ctx, query)
	}
	var err error
	if s.stmtInsertSession, err = prep(`INSERT INTO sessions (id, channel_kind, channel_scope, system_prompt, tool_allowlist_json, admin_identities_json, created_at, touched_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return err
	}
	if s.stmtGetSession, err = prep(`SELECT id, channel_kind, channel_scope, system_prompt, tool_allowlist_json, admin_identities_json, created_at, touched_at FROM sessions WHERE id = ?`); err != nil {
		return err
	}
	if s.stmtGetSessionByKey, err = prep(`SELECT id, channel_kind, channel_scope, system_prompt, tool_allowlist_json, admin_identities_json, created_at, touched_at FROM sessions WHERE channel_kind = ? AND channel_scope = ?`); err != nil {
		return err
	}
	if s.stmtUpdateSession, err = prep(`UPDATE sessions SET system_prompt = ?, tool_allowlist_json = ?, admin_identities_json = ?, touched_at = ? WHERE id = ?`); err != nil {
		return err
	}
	if s.stmtDeleteSession, err = prep(`DELETE FROM sessions WHERE id = ?`); err != nil {
		return err
	}
	if s.stmtTouchSession, err = prep(`UPDATE sessions SET touched_at = ? WHERE id = ?`); err != nil {
		return err
	}
	if s.stmtListSessions, err = prep(`SELECT id, channel_kind, channel_scope, system_prompt, tool_allowlist_json, admin_identities_json, created_at, touched_at FROM sessions WHERE (? = '' OR channel_kind = ?) ORDER BY touched_at DESC LIMIT ? OFFSET ?`); err != nil {
		return err
	}
	if s.stmtInsertMessage, err = prep(`INSERT INTO messages (session_id, seq, role, content_json, stop_reason, created_at) VALUES (?, ?, ?, ?, ?, ?)`); err != nil {
		return err
	}
	if s.stmtMaxSeq, err = prep(`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE session_id = ?`); err != nil {
		return err
	}
	if s.stmtGetHistory, err = prep(`SELECT session_id, seq, role, content_json, stop_reason, created_at FROM messages WHERE session_id = ? ORDER BY seq ASC LIMIT ?`); err != nil {
		return err
	}
	if s.stmtDeleteMessageRange, err = prep(`DELETE FROM messages WHERE session_id = ? AND seq >= ? AND seq <= ?`); err != nil {
		return err
	}
	if s.stmtMemoryUpsert, err = prep(`INSERT INTO memory (namespace, key, value, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`); err != nil {
		return err
	}
	if s.stmtMemoryGet, err = prep(`SELECT value FROM memory WHERE namespace = ? AND key = ?`); err != nil {
		return err
	}
	if s.stmtMemoryDelete, err = prep(`DELETE FROM memory WHERE namespace = ? AND key = ?`); err != nil {
		return err
	}
	if s.stmtApprovalInsert, err = prep(`INSERT INTO pending_approvals (id, tool_call_id, tool_name, sensitivity, rendered_preview, session_id, requires_identity, deadline, decision) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
		return err
	}
	if s.stmtApprovalGet, err = prep(`SELECT id, tool_call_id, tool_name, sensitivity, rendered_preview, session_id, requires_identity, deadline, decision, decided_by, decided_at FROM pending_approvals WHERE id = ?`); err != nil {
		return err
	}
	if s.stmtApprovalDecide, err = prep(`UPDATE pending_approvals SET decision = ?, decided_by = ?, decided_at = ? WHERE id = ? AND decision = 'pending'`); err != nil {
		return err
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.TouchedAt = session.CreatedAt

	allowlist, err := marshalOrNil(session.ToolAllowlist)
	if err != nil {
		return err
	}
	admins, err := marshalOrNil(session.AdminIdentity)
	if err != nil {
		return err
	}
	_, err = s.stmtInsertSession.ExecContext(ctx, session.ID, session.ChannelKind, session.ChannelScope,
		nullableString(session.SystemPrompt), allowlist, admins, session.CreatedAt, session.TouchedAt)
	if err != nil {
		return fmt.Errorf("sessions: create: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Session, error) {
	return scanSession(s.stmtGetSession.QueryRowContext(ctx, id))
}

func (s *SQLiteStore) GetByKey(ctx context.Context, kind models.ChannelKind, scope string) (*models.Session, error) {
	return scanSession(s.stmtGetSessionByKey.QueryRowContext(ctx, kind, scope))
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, kind models.ChannelKind, scope string) (*models.Session, error) {
	existing, err := s.GetByKey(ctx, kind, scope)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	session := &models.Session{ChannelKind: kind, ChannelScope: scope}
	if err := s.Create(ctx, session); err != nil {
		// Lost a create race against another writer; re-fetch.
		if existing, getErr := s.GetByKey(ctx, kind, scope); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return session, nil
}

func (s *SQLiteStore) Update(ctx context.Context, session *models.Session) error {
	allowlist, err := marshalOrNil(session.ToolAllowlist)
	if err != nil {
		return err
	}
	admins, err := marshalOrNil(session.AdminIdentity)
	if err != nil {
		return err
	}
	session.TouchedAt = time.Now().UTC()
	res, err := s.stmtUpdateSession.ExecContext(ctx, nullableString(session.SystemPrompt), allowlist, admins, session.TouchedAt, session.ID)
	if err != nil {
		return fmt.Errorf("sessions: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.stmtDeleteSession.ExecContext(ctx, id)
	return err
}

func (s *SQLiteStore) Touch(ctx context.Context, sessionID string) error {
	_, err := s.stmtTouchSession.ExecContext(ctx, time.Now().UTC(), sessionID)
	return err
}

func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*models.Session, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.stmtListSessions.QueryContext(ctx, string(opts.Channel), string(opts.Channel), limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		sess, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	var maxSeq int64
	if err := s.stmtMaxSeq.QueryRowContext(ctx, sessionID).Scan(&maxSeq); err != nil {
		return fmt.Errorf("sessions: max seq: %w", err)
	}
	msg.SessionID = sessionID
	msg.Seq = maxSeq + 1
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	content, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("sessions: marshal content: %w", err)
	}
	if _, err := s.stmtInsertMessage.ExecContext(ctx, sessionID, msg.Seq, msg.Role, string(content), nullableString(string(msg.StopReason)), msg.CreatedAt); err != nil {
		return fmt.Errorf("sessions: append message: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(FULL)`); err != nil {
		// Best-effort durability hint; sqlite in non-WAL mode already
		// fsyncs on commit, so a checkpoint failure is not fatal.
		_ = err
	}
	return s.Touch(ctx, sessionID)
}

func (s *SQLiteStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := s.stmtGetHistory.QueryContext(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var (
			msg         models.Message
			contentJSON string
			stopReason  sql.NullString
		)
		if err := rows.Scan(&msg.SessionID, &msg.Seq, &msg.Role, &contentJSON, &stopReason, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(contentJSON), &msg.Content); err != nil {
			return nil, fmt.Errorf("sessions: unmarshal content: %w", err)
		}
		msg.StopReason = models.StopReason(stopReason.String)
		out = append(out, &msg)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ReplaceMessageRange(ctx context.Context, sessionID string, fromSeq, toSeq int64, replacement *models.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.StmtContext(ctx, s.stmtDeleteMessageRange).ExecContext(ctx, sessionID, fromSeq, toSeq); err != nil {
		return fmt.Errorf("sessions: delete range: %w", err)
	}

	content, err := json.Marshal(replacement.Content)
	if err != nil {
		return err
	}
	if replacement.ID == "" {
		replacement.ID = uuid.NewString()
	}
	if replacement.CreatedAt.IsZero() {
		replacement.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.StmtContext(ctx, s.stmtInsertMessage).ExecContext(ctx, sessionID, fromSeq, replacement.Role, string(content), nullableString(string(replacement.StopReason)), replacement.CreatedAt); err != nil {
		return fmt.Errorf("sessions: insert replacement: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) MemoryPut(ctx context.Context, namespace, key, value string) error {
	_, err := s.stmtMemoryUpsert.ExecContext(ctx, namespace, key, value, time.Now().UTC())
	return err
}

func (s *SQLiteStore) MemoryGet(ctx context.Context, namespace, key string) (string, bool, error) {
	var value string
	err := s.stmtMemoryGet.QueryRowContext(ctx, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLiteStore) MemoryDelete(ctx context.Context, namespace, key string) error {
	_, err := s.stmtMemoryDelete.ExecContext(ctx, namespace, key)
	return err
}

func (s *SQLiteStore) SaveApproval(ctx context.Context, req *models.ApprovalRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Decision == "" {
		req.Decision = models.DecisionPending
	}
	_, err := s.stmtApprovalInsert.ExecContext(ctx, req.ID, req.ToolCallID, req.ToolName, req.Sensitivity,
		nullableString(req.RenderedPreview), req.SessionID, boolToInt(req.RequiresIdentity), req.Deadline, req.Decision)
	return err
}

func (s *SQLiteStore) GetApproval(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	var (
		req              models.ApprovalRequest
		preview          sql.NullString
		requiresIdentity int
		decidedBy        sql.NullString
		decidedAt        sql.NullTime
	)
	err := s.stmtApprovalGet.QueryRowContext(ctx, id).Scan(&req.ID, &req.ToolCallID, &req.ToolName, &req.Sensitivity,
		&preview, &req.SessionID, &requiresIdentity, &req.Deadline, &req.Decision, &decidedBy, &decidedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	req.RenderedPreview = preview.String
	req.RequiresIdentity = requiresIdentity != 0
	req.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		req.DecidedAt = decidedAt.Time
	}
	return &req, nil
}

// DecideApproval applies a decision exactly once: the UPDATE predicate
// requires the row still be "pending", so a concurrent duplicate decision
// (e.g. two approver replies racing) loses and gets back the row as
// already-decided rather than clobbering it.
func (s *SQLiteStore) DecideApproval(ctx context.Context, id string, decision models.Decision, decidedBy string) (*models.ApprovalRequest, error) {
	now := time.Now().UTC()
	res, err := s.stmtApprovalDecide.ExecContext(ctx, decision, decidedBy, now, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either unknown id or already decided; return current state.
		return s.GetApproval(ctx, id)
	}
	return s.GetApproval(ctx, id)
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var (
		sess       models.Session
		kind       string
		sysPrompt  sql.NullString
		allowlist  sql.NullString
		admins     sql.NullString
	)
	err := row.Scan(&sess.ID, &kind, &sess.ChannelScope, &sysPrompt, &allowlist, &admins, &sess.CreatedAt, &sess.TouchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.ChannelKind = models.ChannelKind(kind)
	sess.SystemPrompt = sysPrompt.String
	if allowlist.Valid && allowlist.String != "" {
		_ = json.Unmarshal([]byte(allowlist.String), &sess.ToolAllowlist)
	}
	if admins.Valid && admins.String != "" {
		_ = json.Unmarshal([]byte(admins.String), &sess.AdminIdentity)
	}
	return &sess, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSessionRow(row rowScanner) (*models.Session, error) {
	var (
		sess      models.Session
		kind      string
		sysPrompt sql.NullString
		allowlist sql.NullString
		admins    sql.NullString
	)
	if err := row.Scan(&sess.ID, &kind, &sess.ChannelScope, &sysPrompt, &allowlist, &admins, &sess.CreatedAt, &sess.TouchedAt); err != nil {
		return nil, err
	}
	sess.ChannelKind = models.ChannelKind(kind)
	sess.SystemPrompt = sysPrompt.String
	if allowlist.Valid && allowlist.String != "" {
		_ = json.Unmarshal([]byte(allowlist.String), &sess.ToolAllowlist)
	}
	if admins.Valid && admins.String != "" {
		_ = json.Unmarshal([]byte(admins.String), &sess.AdminIdentity)
	}
	return &sess, nil
}

func marshalOrNil(v []string) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
