package agent

import (
	"context"

	"github.com/ainoobmenpg/cc-gateway/internal/tools/policy"
	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// ApprovalChecker is the Agent Driver's handle on the sensitivity gate
// (spec §4.4): it decides, per tool call, between auto-allow, DM-confirm,
// and explicit-OK, blocking on the latter two until a decision lands or
// the approval timeout elapses.
type ApprovalChecker struct {
	gate *policy.Gate
}

// NewApprovalChecker wraps a sensitivity gate backed by the given store and
// out-of-band notifier.
func NewApprovalChecker(store policy.Store, notifier policy.Notifier) *ApprovalChecker {
	return &ApprovalChecker{gate: policy.NewGate(store, notifier)}
}

// Check runs the gate for one tool call and renders a ToolOutput when the
// outcome isn't Allow, so the caller can feed it straight back to the model
// as a non-fatal tool error (spec §4.4's failure semantics).
func (c *ApprovalChecker) Check(ctx context.Context, call models.ToolCall, session *models.Session, preview string) (policy.GateOutcome, *models.ToolOutput) {
	if c == nil || c.gate == nil {
		return policy.GateAllow, nil
	}

	outcome, _, err := c.gate.Check(ctx, call, session, preview)
	if err != nil {
		return policy.GateDeniedByPolicy, &models.ToolOutput{
			Text:    "approval gate error: " + err.Error(),
			IsError: true,
		}
	}

	switch outcome {
	case policy.GateAllow:
		return outcome, nil
	case policy.GateTimedOut:
		return outcome, &models.ToolOutput{
			Text:    "tool call " + call.ToolName + " timed out waiting for approval",
			IsError: true,
		}
	case policy.GateDeniedByUser:
		return outcome, &models.ToolOutput{
			Text:    "tool call " + call.ToolName + " was denied",
			IsError: true,
		}
	default:
		return outcome, &models.ToolOutput{
			Text:    "tool call " + call.ToolName + " denied by policy",
			IsError: true,
		}
	}
}
