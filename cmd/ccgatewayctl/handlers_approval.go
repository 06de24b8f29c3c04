package main

import (
	"context"
	"fmt"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
	"github.com/spf13/cobra"
)

func runApprovalShow(cmd *cobra.Command, configPath, approvalID string) error {
	store, closeStore, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer closeStore()

	req, err := store.GetApproval(context.Background(), approvalID)
	if err != nil {
		return fmt.Errorf("get approval: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:          %s\n", req.ID)
	fmt.Fprintf(out, "tool:        %s\n", req.ToolName)
	fmt.Fprintf(out, "sensitivity: %d\n", req.Sensitivity)
	fmt.Fprintf(out, "session:     %s\n", req.SessionID)
	fmt.Fprintf(out, "preview:     %s\n", req.RenderedPreview)
	fmt.Fprintf(out, "deadline:    %s\n", req.Deadline.Format("2006-01-02T15:04:05"))
	fmt.Fprintf(out, "decision:    %s\n", req.Decision)
	return nil
}

func runApprovalRespond(cmd *cobra.Command, configPath, approvalID string, allow bool, decidedBy string) error {
	store, closeStore, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer closeStore()

	decision := models.DecisionDeny
	if allow {
		decision = models.DecisionAllow
	}

	req, err := store.DecideApproval(context.Background(), approvalID, decision, decidedBy)
	if err != nil {
		return fmt.Errorf("decide approval: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "approval %s decided: %s (by %s)\n", req.ID, req.Decision, decidedBy)
	return nil
}
