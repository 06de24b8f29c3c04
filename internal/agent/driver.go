package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	agentctx "github.com/ainoobmenpg/cc-gateway/internal/agent/context"
	"github.com/ainoobmenpg/cc-gateway/internal/agent/providers"
	"github.com/ainoobmenpg/cc-gateway/internal/audit"
	"github.com/ainoobmenpg/cc-gateway/internal/sessions"
	"github.com/ainoobmenpg/cc-gateway/internal/tools/policy"
	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// historyLimit bounds how much of a session's stored history RunTurn loads
// per iteration before packing. Packer.Pack trims further to its own
// char/message budget; this is just the store-read ceiling.
const historyLimit = 200

// maxProviderAttempts bounds how many times RunTurn retries a single
// provider call after a transport failure, independent of the provider's
// own internal retry (BaseProvider.Retry covers one HTTP round trip; this
// covers the driver deciding whether to try the provider again at all).
const maxProviderAttempts = 3

// TurnOutcome is the result of one RunTurn call: either a completed turn
// (AssistantMessage set, Err nil) or a turn that failed before producing a
// final assistant message (Err set, AssistantMessage may still be nil).
type TurnOutcome struct {
	AssistantMessage *models.Message
	Iterations       int
	ToolCallsRun     int
	StopReason       models.StopReason
	Compacted        bool
	Err              *DriverError
}

// Driver runs one turn of the agent loop (spec §4.1): pack context, call
// the provider, dispatch any requested tools, and repeat until the
// provider stops requesting tools or the turn's resources are exhausted.
// A Driver is safe for concurrent use across sessions; within one session,
// RunTurn serializes via an in-process refcounted lock so two callers never
// race on the same session's history.
type Driver struct {
	provider  Provider
	registry  *ToolRegistry
	executor  *Executor
	store     sessions.Store
	compactor *Compactor
	packer    *agentctx.Packer
	audit     *audit.Logger
	opts      RuntimeOptions

	locksMu sync.Mutex
	locks   map[string]*turnLock
}

type turnLock struct {
	ch   chan struct{}
	refs int
}

// NewDriver wires a Driver from its prerequisites. compactor and auditLogger
// may be nil (compaction and audit logging are both optional). opts is
// merged over DefaultRuntimeOptions.
func NewDriver(provider Provider, registry *ToolRegistry, store sessions.Store, compactor *Compactor, packer *agentctx.Packer, auditLogger *audit.Logger, opts RuntimeOptions) *Driver {
	merged := mergeRuntimeOptions(DefaultRuntimeOptions(), opts)
	if registry == nil {
		registry = NewToolRegistry()
	}
	if packer == nil {
		packer = agentctx.NewPacker(agentctx.DefaultPackOptions())
	}

	execConfig := DefaultExecutorConfig()
	if merged.ToolParallelism > 0 {
		execConfig.MaxConcurrency = merged.ToolParallelism
	}
	if merged.ToolTimeout > 0 {
		execConfig.DefaultTimeout = merged.ToolTimeout
	}
	if merged.ToolMaxAttempts > 0 {
		execConfig.DefaultRetries = merged.ToolMaxAttempts - 1
	}
	if merged.ToolRetryBackoff > 0 {
		execConfig.RetryBackoff = merged.ToolRetryBackoff
	}

	return &Driver{
		provider:  provider,
		registry:  registry,
		executor:  NewExecutor(registry, execConfig),
		store:     store,
		compactor: compactor,
		packer:    packer,
		audit:     auditLogger,
		opts:      merged,
		locks:     make(map[string]*turnLock),
	}
}

// RunTurn appends userMessage to the session's history and drives the
// iteration loop until the provider produces a final (non tool_use)
// response, a tool-use iteration fails fatally, or the iteration budget is
// exhausted. The returned TurnOutcome is non-nil even on failure; Err
// distinguishes success from failure.
func (d *Driver) RunTurn(ctx context.Context, session *models.Session, userMessage *models.Message) (*TurnOutcome, error) {
	if d.provider == nil {
		return nil, &DriverError{State: StateFailed, Category: ErrCategoryStoreUnavailable, Message: "no provider configured"}
	}
	if d.store == nil {
		return nil, &DriverError{State: StateFailed, Category: ErrCategoryStoreUnavailable, Message: "no session store configured"}
	}
	if session == nil || userMessage == nil {
		return nil, &DriverError{State: StateFailed, Category: ErrCategoryProviderProtocol, Message: "session and message are required"}
	}

	release, err := d.acquireTurnLock(ctx, session.ID)
	if err != nil {
		return nil, &DriverError{State: StateReady, Category: ErrCategoryCancelled, Cause: err}
	}
	defer release()

	sessionKey := session.Key()

	if userMessage.Role == "" {
		userMessage.Role = models.RoleUser
	}
	userMessage.SessionID = session.ID
	if userMessage.CreatedAt.IsZero() {
		userMessage.CreatedAt = time.Now()
	}
	if err := d.store.AppendMessage(ctx, session.ID, userMessage); err != nil {
		return nil, &DriverError{State: StateReady, Category: ErrCategoryStoreUnavailable, Cause: err}
	}

	outcome := &TurnOutcome{}

	for iteration := 1; iteration <= d.opts.MaxIterations; iteration++ {
		outcome.Iterations = iteration

		select {
		case <-ctx.Done():
			derr := &DriverError{State: StateCancelled, Iteration: iteration, Category: ErrCategoryCancelled, Cause: ctx.Err()}
			d.logTurnFailed(ctx, session, sessionKey, iteration, derr)
			outcome.Err = derr
			return outcome, derr
		default:
		}

		history, err := d.store.GetHistory(ctx, session.ID, historyLimit)
		if err != nil {
			derr := &DriverError{State: StateBuildingRequest, Iteration: iteration, Category: ErrCategoryStoreUnavailable, Cause: err}
			d.logTurnFailed(ctx, session, sessionKey, iteration, derr)
			outcome.Err = derr
			return outcome, derr
		}

		if compacted, err := d.compactor.MaybeCompact(ctx, session.ID, history); err == nil && compacted {
			outcome.Compacted = true
			if d.audit != nil {
				before := len(history)
				history, err = d.store.GetHistory(ctx, session.ID, historyLimit)
				if err == nil {
					d.audit.LogSessionCompact(ctx, session.ID, sessionKey, before, len(history), 0, "oldest-run-summary")
				}
			} else {
				history, _ = d.store.GetHistory(ctx, session.ID, historyLimit)
			}
		}

		packed := d.packer.Pack(history, nil)
		req := d.buildRequest(session, packed)

		resp, perr := d.completeWithRetry(ctx, req)
		if perr != nil {
			derr := d.classifyProviderError(perr, iteration)
			d.logTurnFailed(ctx, session, sessionKey, iteration, derr)
			outcome.Err = derr
			return outcome, derr
		}

		if d.audit != nil {
			d.audit.LogTurnBoundary(ctx, audit.EventTurnEnd, session.ID, sessionKey, audit.TurnBoundaryDetails{
				Iteration:    iteration,
				StopReason:   string(resp.StopReason),
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
			})
		}

		assistantMsg := &models.Message{
			SessionID:  session.ID,
			Role:       models.RoleAssistant,
			Content:    resp.Content,
			StopReason: resp.StopReason,
			CreatedAt:  time.Now(),
		}
		if err := d.store.AppendMessage(ctx, session.ID, assistantMsg); err != nil {
			derr := &DriverError{State: StateFinal, Iteration: iteration, Category: ErrCategoryStoreUnavailable, Cause: err}
			outcome.Err = derr
			return outcome, derr
		}

		outcome.AssistantMessage = assistantMsg
		outcome.StopReason = resp.StopReason

		toolUses := assistantMsg.ToolUses()
		if resp.StopReason != models.StopReasonToolUse || len(toolUses) == 0 {
			return outcome, nil
		}

		if d.opts.MaxToolCalls > 0 && outcome.ToolCallsRun+len(toolUses) > d.opts.MaxToolCalls {
			derr := &DriverError{
				State:     StateDispatchingTools,
				Iteration: iteration,
				Category:  ErrCategoryIterationBudget,
				Message:   fmt.Sprintf("tool calls exceed budget of %d for this turn", d.opts.MaxToolCalls),
			}
			d.logTurnFailed(ctx, session, sessionKey, iteration, derr)
			outcome.Err = derr
			return outcome, derr
		}
		outcome.ToolCallsRun += len(toolUses)

		resultBlocks, err := d.dispatchTools(ctx, session, assistantMsg.ID, sessionKey, toolUses)
		if err != nil {
			derr := &DriverError{State: StateDispatchingTools, Iteration: iteration, Category: ErrCategoryToolExecution, Cause: err}
			outcome.Err = derr
			return outcome, derr
		}

		toolResultMsg := &models.Message{
			SessionID: session.ID,
			Role:      models.RoleToolResult,
			Content:   resultBlocks,
			CreatedAt: time.Now(),
		}
		if err := d.store.AppendMessage(ctx, session.ID, toolResultMsg); err != nil {
			derr := &DriverError{State: StateAwaitingTools, Iteration: iteration, Category: ErrCategoryStoreUnavailable, Cause: err}
			outcome.Err = derr
			return outcome, derr
		}
	}

	derr := &DriverError{
		State:     StateFailed,
		Iteration: d.opts.MaxIterations,
		Category:  ErrCategoryIterationBudget,
		Message:   fmt.Sprintf("reached max iterations: %d", d.opts.MaxIterations),
	}
	d.logTurnFailed(ctx, session, sessionKey, d.opts.MaxIterations, derr)
	outcome.Err = derr
	return outcome, derr
}

// buildRequest turns packed history into a ProviderRequest, filtering the
// tool manifest to the session's allowlist when one is set.
func (d *Driver) buildRequest(session *models.Session, packed []*models.Message) *models.ProviderRequest {
	messages := make([]models.Message, len(packed))
	for i, m := range packed {
		messages[i] = *m
	}

	manifest := d.registry.Manifest()
	if len(session.ToolAllowlist) > 0 {
		filtered := make([]models.ToolDescriptor, 0, len(manifest))
		for _, t := range manifest {
			if matchesToolPatterns(session.ToolAllowlist, t.Name, nil) {
				filtered = append(filtered, t)
			}
		}
		manifest = filtered
	}

	return &models.ProviderRequest{
		System:   session.SystemPrompt,
		Messages: messages,
		Tools:    manifest,
	}
}

// completeWithRetry retries a provider call a bounded number of times when
// the failure classifies as a transport error; protocol/rejection errors
// return immediately.
func (d *Driver) completeWithRetry(ctx context.Context, req *models.ProviderRequest) (*models.ProviderResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= maxProviderAttempts; attempt++ {
		resp, err := d.provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !providers.IsRetryable(err) || attempt == maxProviderAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// classifyProviderError maps a provider-call failure to the driver's error
// taxonomy (spec §7's propagation table): transport failures stay
// retryable-flagged even though the driver already gave up retrying them;
// everything else is a protocol/rejection failure, both turn-fatal.
func (d *Driver) classifyProviderError(err error, iteration int) *DriverError {
	category := ErrCategoryProviderProtocol
	if providers.IsRetryable(err) {
		category = ErrCategoryProviderTransport
	} else if pe, ok := providers.GetProviderError(err); ok && pe.Status >= 400 && pe.Status < 500 {
		category = ErrCategoryProviderRejected
	}
	return &DriverError{State: StateAwaitingProvider, Iteration: iteration, Category: category, Cause: err}
}

// dispatchTools runs policy/approval gating and execution for one
// iteration's tool-use blocks, returning ToolResult content blocks in the
// same order the model requested them.
func (d *Driver) dispatchTools(ctx context.Context, session *models.Session, assistantMsgID, sessionKey string, toolUses []models.ContentBlock) ([]models.ContentBlock, error) {
	calls := make([]models.ToolCall, len(toolUses))
	for i, b := range toolUses {
		tool, _ := d.registry.Get(b.ToolUseName)
		sensitivity := 0
		if tool != nil {
			sensitivity = tool.Sensitivity()
		}
		calls[i] = models.ToolCall{
			ID:          b.ToolUseID,
			ToolName:    b.ToolUseName,
			Input:       b.ToolUseInput,
			SessionID:   session.ID,
			Sensitivity: sensitivity,
			StartedAt:   time.Now(),
		}
		if d.audit != nil {
			d.audit.LogToolInvocation(ctx, calls[i].ToolName, calls[i].ID, calls[i].Input, sessionKey)
		}
		if d.opts.ToolEvents != nil {
			_ = d.opts.ToolEvents.AddToolCall(ctx, session.ID, assistantMsgID, &calls[i])
		}
	}

	outputs := make([]*models.ToolOutput, len(calls))
	runnable := make([]models.ToolCall, 0, len(calls))
	runnableIdx := make([]int, 0, len(calls))

	for i, call := range calls {
		if d.opts.ApprovalChecker != nil {
			preview := call.ToolName
			if len(call.Input) > 0 {
				preview = fmt.Sprintf("%s %s", call.ToolName, truncate(string(call.Input), 200))
			}
			outcome, denial := d.opts.ApprovalChecker.Check(ctx, call, session, preview)
			if outcome != policy.GateAllow {
				outputs[i] = denial
				if d.audit != nil {
					d.audit.LogToolDenied(ctx, call.ToolName, call.ID, denial.Text, string(outcome), sessionKey)
				}
				continue
			}
		} else if matchesToolPatterns(d.opts.RequireApproval, call.ToolName, nil) {
			outputs[i] = &models.ToolOutput{Text: "approval required for tool: " + call.ToolName, IsError: true}
			if d.audit != nil {
				d.audit.LogToolDenied(ctx, call.ToolName, call.ID, outputs[i].Text, "require_approval", sessionKey)
			}
			continue
		}
		runnable = append(runnable, call)
		runnableIdx = append(runnableIdx, i)
	}

	if len(runnable) > 0 {
		execResults := d.executor.ExecuteAll(ctx, runnable)
		for j, res := range execResults {
			idx := runnableIdx[j]
			call := calls[idx]
			switch {
			case res.Error != nil:
				outputs[idx] = &models.ToolOutput{Text: res.Error.Error(), IsError: true}
			case res.Output != nil:
				outputs[idx] = res.Output
			default:
				outputs[idx] = &models.ToolOutput{Text: "tool produced no output", IsError: true}
			}
			if d.audit != nil {
				d.audit.LogToolCompletion(ctx, call.ToolName, call.ID, !outputs[idx].IsError, outputs[idx].Text, res.Duration, sessionKey)
			}
		}
	}

	blocks := make([]models.ContentBlock, len(calls))
	for i, call := range calls {
		out := outputs[i]
		if out == nil {
			out = &models.ToolOutput{Text: "tool call skipped", IsError: true}
		}
		guarded := guardToolResult(d.opts.ToolResultGuard, call.ToolName, *out, nil)
		blocks[i] = models.ToolResultBlock(call.ID, guarded.Text, guarded.IsError)
		if d.opts.ToolEvents != nil {
			_ = d.opts.ToolEvents.AddToolResult(ctx, session.ID, assistantMsgID, &call, &guarded)
		}
	}
	return blocks, nil
}

func (d *Driver) logTurnFailed(ctx context.Context, session *models.Session, sessionKey string, iteration int, derr *DriverError) {
	if d.audit == nil {
		return
	}
	d.audit.LogTurnBoundary(ctx, audit.EventTurnFailed, session.ID, sessionKey, audit.TurnBoundaryDetails{
		Iteration:   iteration,
		FailureKind: string(derr.Category),
	})
}

// acquireTurnLock blocks until sessionID's in-process lock is free or ctx
// is cancelled, refcounting so the map entry is cleaned up once the last
// holder releases it. This is the in-process turn-ownership lock that
// sessions.ApprovalLocker's own documentation defers to; ApprovalLocker
// guards cross-process approval-decision ownership only.
func (d *Driver) acquireTurnLock(ctx context.Context, sessionID string) (func(), error) {
	d.locksMu.Lock()
	lock, ok := d.locks[sessionID]
	if !ok {
		lock = &turnLock{ch: make(chan struct{}, 1)}
		d.locks[sessionID] = lock
	}
	lock.refs++
	d.locksMu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		d.releaseTurnLockRef(sessionID)
		return nil, ctx.Err()
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		<-lock.ch
		d.releaseTurnLockRef(sessionID)
	}
	return release, nil
}

func (d *Driver) releaseTurnLockRef(sessionID string) {
	d.locksMu.Lock()
	defer d.locksMu.Unlock()
	lock, ok := d.locks[sessionID]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs <= 0 {
		delete(d.locks, sessionID)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
