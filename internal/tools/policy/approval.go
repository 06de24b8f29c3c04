// Package policy provides tool authorization and access control.
// This file implements the sensitivity-level approval gate (spec §4.4).
package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

var (
	ErrApprovalDenied  = errors.New("approval denied")
	ErrApprovalExpired = errors.New("approval timed out")
)

// GateOutcome is the result of a sensitivity gate evaluation.
type GateOutcome string

const (
	GateAllow          GateOutcome = "allow"
	GateDeniedByPolicy GateOutcome = "denied_by_policy"
	GateDeniedByUser   GateOutcome = "denied_by_user"
	GateTimedOut       GateOutcome = "timed_out"
)

// SensitivityMode is the gate behavior assigned to a sensitivity level.
type SensitivityMode int

const (
	// ModeAutoAllow lets the call through with no human in the loop.
	ModeAutoAllow SensitivityMode = iota
	// ModeDMConfirm requires a yes/no reply over the session's own channel.
	ModeDMConfirm
	// ModeExplicitOK requires a reply from an identity on the session's
	// admin list.
	ModeExplicitOK
)

// DefaultSensitivityGates is the level-to-mode mapping defined by spec §4.4.
// Levels 1-3 auto-allow, 4-5 require a DM confirm, 6-9 require explicit OK
// from an admin identity.
var DefaultSensitivityGates = map[int]SensitivityMode{
	1: ModeAutoAllow,
	2: ModeAutoAllow,
	3: ModeAutoAllow,
	4: ModeDMConfirm,
	5: ModeDMConfirm,
	6: ModeExplicitOK,
	7: ModeExplicitOK,
	8: ModeExplicitOK,
	9: ModeExplicitOK,
}

// Notifier delivers an ApprovalRequest out of band: over the session's own
// channel when it's DM-capable, else over a configured approver channel.
type Notifier interface {
	Notify(ctx context.Context, req *models.ApprovalRequest) error
}

// Store persists pending approval requests across process restarts.
// internal/sessions.Store satisfies this with a pending_approvals table.
type Store interface {
	SaveApproval(ctx context.Context, req *models.ApprovalRequest) error
	GetApproval(ctx context.Context, id string) (*models.ApprovalRequest, error)
	DecideApproval(ctx context.Context, id string, decision models.Decision, decidedBy string) (*models.ApprovalRequest, error)
}

// Gate evaluates tool calls against the sensitivity table and, for tools
// above level 3, blocks until a decision arrives or approval_timeout
// elapses (spec §4.4).
type Gate struct {
	Gates   map[int]SensitivityMode
	Timeout time.Duration

	Store    Store
	Notifier Notifier

	// pollInterval controls how often wait re-reads the store while
	// blocking for a decision. Exposed for tests; default 200ms.
	pollInterval time.Duration
}

// NewGate creates a sensitivity gate with the default level table and a
// 5-minute approval timeout.
func NewGate(store Store, notifier Notifier) *Gate {
	return &Gate{
		Gates:        DefaultSensitivityGates,
		Timeout:      5 * time.Minute,
		Store:        store,
		Notifier:     notifier,
		pollInterval: 200 * time.Millisecond,
	}
}

func (g *Gate) modeFor(sensitivity int) SensitivityMode {
	if mode, ok := g.Gates[sensitivity]; ok {
		return mode
	}
	if sensitivity >= 6 {
		return ModeExplicitOK
	}
	if sensitivity >= 4 {
		return ModeDMConfirm
	}
	return ModeAutoAllow
}

// Check runs the gate for one tool call. On ModeAutoAllow it returns
// immediately. On ModeDMConfirm/ModeExplicitOK it creates an
// ApprovalRequest, notifies out of band, and blocks for up to g.Timeout
// for a decision to land in the Store.
func (g *Gate) Check(ctx context.Context, call models.ToolCall, session *models.Session, preview string) (GateOutcome, *models.ApprovalRequest, error) {
	mode := g.modeFor(call.Sensitivity)
	if mode == ModeAutoAllow {
		return GateAllow, nil, nil
	}

	req := &models.ApprovalRequest{
		ID:               uuid.NewString(),
		ToolCallID:       call.ID,
		ToolName:         call.ToolName,
		Sensitivity:      call.Sensitivity,
		RenderedPreview:  preview,
		SessionID:        call.SessionID,
		RequiresIdentity: mode == ModeExplicitOK,
		Deadline:         time.Now().Add(g.Timeout),
		Decision:         models.DecisionPending,
	}

	if g.Store != nil {
		if err := g.Store.SaveApproval(ctx, req); err != nil {
			return GateDeniedByPolicy, nil, fmt.Errorf("save approval request: %w", err)
		}
	}
	if g.Notifier != nil {
		if err := g.Notifier.Notify(ctx, req); err != nil {
			return GateDeniedByPolicy, nil, fmt.Errorf("notify approver: %w", err)
		}
	}

	decided, err := g.wait(ctx, req.ID, req.Deadline)
	if err != nil {
		return GateDeniedByPolicy, nil, err
	}

	switch decided.Decision {
	case models.DecisionAllow:
		if mode == ModeExplicitOK && decided.RequiresIdentity && !isAdmin(session, decided.DecidedBy) {
			return GateDeniedByUser, decided, nil
		}
		return GateAllow, decided, nil
	case models.DecisionDeny:
		return GateDeniedByUser, decided, nil
	default:
		return GateTimedOut, decided, nil
	}
}

// wait polls the store until the request is decided or the deadline
// passes. A real deployment would push decisions through a channel keyed
// by request ID; polling the durable store keeps this correct across
// process restarts with no extra in-memory state.
func (g *Gate) wait(ctx context.Context, requestID string, deadline time.Time) (*models.ApprovalRequest, error) {
	interval := g.pollInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if g.Store != nil {
			req, err := g.Store.GetApproval(ctx, requestID)
			if err != nil {
				return nil, err
			}
			if req != nil && req.Decision != models.DecisionPending {
				return req, nil
			}
		}
		if time.Now().After(deadline) {
			if g.Store != nil {
				return g.Store.DecideApproval(ctx, requestID, models.DecisionTimeout, "")
			}
			return &models.ApprovalRequest{ID: requestID, Decision: models.DecisionTimeout}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func isAdmin(session *models.Session, identity string) bool {
	if session == nil || identity == "" {
		return false
	}
	for _, admin := range session.AdminIdentity {
		if strings.EqualFold(admin, identity) {
			return true
		}
	}
	return false
}
