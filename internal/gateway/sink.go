// Package gateway wires the Agent Driver, tool registry, and policy gate
// into a runnable process: the daemon binary owns one of these, drives a
// channel's inbound turns through it, and routes replies and approval
// prompts back out through small interfaces a channel adapter implements.
package gateway

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// ReplySink delivers an assistant turn's rendered text back to whatever
// collaborator owns the session's channel scope. Channel adapters (out of
// scope here) implement this against their own transport; the built-in
// console channel implements it directly against stdout.
type ReplySink interface {
	Reply(ctx context.Context, session *models.Session, text string) error
}

// ApprovalSink requests a human decision for a pending ApprovalRequest and
// is the out-of-process half of the spec's "request_decision" contract —
// the in-process half is policy.Gate, which blocks until a Store record
// changes or the deadline passes. A sink only has to get the request in
// front of a human; it doesn't itself decide.
type ApprovalSink interface {
	RequestDecision(ctx context.Context, req *models.ApprovalRequest) error
}

// ConsoleReplySink writes assistant replies to an io.Writer, prefixed with
// the session key so a multi-session console run stays readable.
type ConsoleReplySink struct {
	Out io.Writer
}

// Reply writes text to the sink's writer.
func (s *ConsoleReplySink) Reply(ctx context.Context, session *models.Session, text string) error {
	key := "session"
	if session != nil {
		key = session.Key()
	}
	_, err := fmt.Fprintf(s.Out, "[%s] %s\n", key, text)
	return err
}

// ConsoleApprovalNotifier satisfies policy.Notifier by logging the pending
// request and pointing the operator at the CLI command that decides it,
// rather than delivering the prompt over a channel the console doesn't
// have (there's no DM-capable peer on the other end of stdin).
type ConsoleApprovalNotifier struct {
	Logger *slog.Logger
}

// Notify logs the approval request and the ccgatewayctl command that
// resolves it.
func (n *ConsoleApprovalNotifier) Notify(ctx context.Context, req *models.ApprovalRequest) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("approval requested",
		"approval_id", req.ID,
		"tool", req.ToolName,
		"sensitivity", req.Sensitivity,
		"preview", req.RenderedPreview,
		"deadline", req.Deadline,
		"respond_with", fmt.Sprintf("ccgatewayctl approval respond %s --allow|--deny", req.ID),
	)
	return nil
}

// readLines scans newline-delimited input, handing each non-empty trimmed
// line to fn until the reader is exhausted, ctx is cancelled, or fn returns
// an error.
func readLines(ctx context.Context, r io.Reader, fn func(ctx context.Context, line string) error) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := fn(ctx, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
