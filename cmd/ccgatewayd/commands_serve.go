package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the daemon.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway daemon",
		Long: `Start the gateway daemon: load configuration, initialize the LLM
provider, the session store, the builtin tool registry, and the Agent
Driver, then serve turns over the built-in console channel until a
SIGINT/SIGTERM asks for graceful shutdown.`,
		Example: `  # Start with default config
  ccgatewayd serve

  # Start with a specific config file and debug logging
  ccgatewayd serve --config /etc/ccgatewayd/config.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "ccgatewayd.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging")

	return cmd
}
