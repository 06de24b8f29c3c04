package sessions

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a lock could not be acquired before the
// configured timeout elapsed.
var ErrLockTimeout = errors.New("sessions: lock timeout")

// ApprovalLockerConfig configures the DB-backed cross-process lock used to
// give a single gateway process ownership of deciding a pending approval
// (spec §4.4): when multiple gateway replicas share one database, only the
// replica that received the approver's reply should act on it.
type ApprovalLockerConfig struct {
	OwnerID         string
	TTL             time.Duration
	RefreshInterval time.Duration
	AcquireTimeout  time.Duration
	PollInterval    time.Duration
}

// DefaultApprovalLockerConfig returns default settings for ApprovalLocker.
func DefaultApprovalLockerConfig() ApprovalLockerConfig {
	return ApprovalLockerConfig{
		TTL:             2 * time.Minute,
		RefreshInterval: 30 * time.Second,
		AcquireTimeout:  10 * time.Second,
		PollInterval:    200 * time.Millisecond,
	}
}

// ApprovalLocker implements a DB-backed lease lock keyed by approval id,
// structured like the teacher's session-lock table but scoped to
// approval-decision ownership rather than turn ownership (turn ownership is
// handled by the in-process refcounted lock in the Agent Driver).
type ApprovalLocker struct {
	db     *sql.DB
	config ApprovalLockerConfig

	mu     sync.Mutex
	renew  map[string]context.CancelFunc
	closed bool
}

// NewApprovalLocker creates a new DB-backed approval locker and ensures its
// backing table exists.
func NewApprovalLocker(ctx context.Context, db *sql.DB, cfg ApprovalLockerConfig) (*ApprovalLocker, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if cfg.OwnerID == "" {
		return nil, errors.New("owner id is required")
	}
	defaults := DefaultApprovalLockerConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaults.RefreshInterval
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defaults.AcquireTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS approval_locks (
			approval_id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			acquired_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)
	`); err != nil {
		return nil, err
	}

	return &ApprovalLocker{
		db:     db,
		config: cfg,
		renew:  make(map[string]context.CancelFunc),
	}, nil
}

// Lock attempts to acquire a lease on approvalID, retrying until
// AcquireTimeout elapses.
func (l *ApprovalLocker) Lock(ctx context.Context, approvalID string) error {
	if l == nil {
		return errors.New("approval locker unavailable")
	}
	if strings.TrimSpace(approvalID) == "" {
		return errors.New("approval_id is required")
	}

	deadline := time.Now().Add(l.config.AcquireTimeout)
	for {
		ok, err := l.tryAcquire(ctx, approvalID)
		if err != nil {
			return err
		}
		if ok {
			l.startRenew(approvalID)
			return nil
		}

		if time.Now().After(deadline) {
			return ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.config.PollInterval):
		}
	}
}

// Unlock releases the lease on approvalID.
func (l *ApprovalLocker) Unlock(approvalID string) {
	if l == nil {
		return
	}
	l.stopRenew(approvalID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := l.db.ExecContext(ctx, `
		DELETE FROM approval_locks
		WHERE approval_id = ? AND owner_id = ?
	`, approvalID, l.config.OwnerID); err != nil {
		// Best-effort unlock; if this fails, the lease expires via TTL.
		_ = err
	}
}

// Close stops all renew loops.
func (l *ApprovalLocker) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	for _, cancel := range l.renew {
		cancel()
	}
	l.renew = make(map[string]context.CancelFunc)
	l.mu.Unlock()
	return nil
}

func (l *ApprovalLocker) tryAcquire(ctx context.Context, approvalID string) (bool, error) {
	now := time.Now()
	expiresAt := now.Add(l.config.TTL)

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO approval_locks (approval_id, owner_id, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(approval_id) DO UPDATE SET
			owner_id = excluded.owner_id,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE approval_locks.expires_at < ? OR approval_locks.owner_id = excluded.owner_id
	`, approvalID, l.config.OwnerID, now, expiresAt, now)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	var owner string
	if err := l.db.QueryRowContext(ctx, `SELECT owner_id FROM approval_locks WHERE approval_id = ?`, approvalID).Scan(&owner); err != nil {
		return false, err
	}
	return owner == l.config.OwnerID, nil
}

func (l *ApprovalLocker) startRenew(approvalID string) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	if _, ok := l.renew[approvalID]; ok {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.renew[approvalID] = cancel
	l.mu.Unlock()

	go l.renewLoop(ctx, approvalID)
}

func (l *ApprovalLocker) stopRenew(approvalID string) {
	l.mu.Lock()
	cancel, ok := l.renew[approvalID]
	if ok {
		delete(l.renew, approvalID)
	}
	l.mu.Unlock()
	if ok {
		cancel()
	}
}

func (l *ApprovalLocker) renewLoop(ctx context.Context, approvalID string) {
	ticker := time.NewTicker(l.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !l.extendLease(ctx, approvalID) {
				l.stopRenew(approvalID)
				return
			}
		}
	}
}

func (l *ApprovalLocker) extendLease(ctx context.Context, approvalID string) bool {
	expiresAt := time.Now().Add(l.config.TTL)
	result, err := l.db.ExecContext(ctx, `
		UPDATE approval_locks
		SET expires_at = ?
		WHERE approval_id = ? AND owner_id = ?
	`, expiresAt, approvalID, l.config.OwnerID)
	if err != nil {
		return false
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false
	}
	return rows > 0
}
