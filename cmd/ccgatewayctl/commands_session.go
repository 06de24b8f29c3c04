package main

import (
	"github.com/spf13/cobra"
)

// buildSessionCmd creates the "session" command group.
func buildSessionCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect sessions and their message history",
	}
	cmd.AddCommand(buildSessionListCmd(configPath), buildSessionInspectCmd(configPath))
	return cmd
}

func buildSessionListCmd(configPath *string) *cobra.Command {
	var channel string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, optionally filtered by channel kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionList(cmd, *configPath, channel, limit)
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "Filter by channel kind (e.g. console)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum sessions to list")
	return cmd
}

func buildSessionInspectCmd(configPath *string) *cobra.Command {
	var historyLimit int

	cmd := &cobra.Command{
		Use:   "inspect <session-id>",
		Short: "Show a session's metadata and recent message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionInspect(cmd, *configPath, args[0], historyLimit)
		},
	}
	cmd.Flags().IntVar(&historyLimit, "history", 20, "Number of recent messages to show")
	return cmd
}
