// Package main provides the operator CLI for cc-gateway: inspecting
// sessions, responding to pending approvals, and tailing the audit log.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "ccgatewayctl",
		Short:        "Operator CLI for the cc-gateway daemon",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ccgatewayd.yaml",
		"Path to the daemon's YAML configuration file (shared state lives at the paths it names)")

	rootCmd.AddCommand(
		buildSessionCmd(&configPath),
		buildApprovalCmd(&configPath),
		buildAuditCmd(&configPath),
	)
	return rootCmd
}
