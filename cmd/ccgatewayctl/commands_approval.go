package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildApprovalCmd creates the "approval" command group.
func buildApprovalCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Inspect and decide pending tool approvals",
	}
	cmd.AddCommand(buildApprovalShowCmd(configPath), buildApprovalRespondCmd(configPath))
	return cmd
}

func buildApprovalShowCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <approval-id>",
		Short: "Show a pending approval request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprovalShow(cmd, *configPath, args[0])
		},
	}
	return cmd
}

func buildApprovalRespondCmd(configPath *string) *cobra.Command {
	var allow, deny bool
	var decidedBy string

	cmd := &cobra.Command{
		Use:   "respond <approval-id>",
		Short: "Allow or deny a pending approval request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if allow == deny {
				return fmt.Errorf("specify exactly one of --allow or --deny")
			}
			return runApprovalRespond(cmd, *configPath, args[0], allow, decidedBy)
		},
	}
	cmd.Flags().BoolVar(&allow, "allow", false, "Allow the tool call")
	cmd.Flags().BoolVar(&deny, "deny", false, "Deny the tool call")
	cmd.Flags().StringVar(&decidedBy, "by", "operator", "Identity recorded as the decider")
	return cmd
}
