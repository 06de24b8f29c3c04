package main

import (
	"github.com/spf13/cobra"
)

// buildAuditCmd creates the "audit" command group.
func buildAuditCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the daemon's audit log",
	}
	cmd.AddCommand(buildAuditTailCmd(configPath))
	return cmd
}

func buildAuditTailCmd(configPath *string) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the most recent audit log entries, optionally following new ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditTail(cmd, *configPath, lines, follow)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of recent entries to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing entries as they're appended")
	return cmd
}
