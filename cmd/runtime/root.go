package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/morezero/script-runtime/internal/config"
	"github.com/morezero/script-runtime/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "script-runtime",
	Short: "Function dispatch runtime for script namespaces",
	Long: `script-runtime - Serve script namespaces (file, ...) over NATS and HTTP.

Without a command it starts the server. Calls can also be made locally with
"call", and the optional Postgres journal is managed with "migrate",
"ensure-db" and "journal".

Environment: COMMS_URL, RUNTIME_INVOKE_SUBJECT, RUNTIME_PLUGIN_MANIFEST,
DATABASE_URL, MIGRATION_PATH, RUNTIME_HTTP_ADDR, LOG_LEVEL. See README.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "script-runtime: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level for CLI commands: debug, info, warn, error (default: LOG_LEVEL or warn)")
}

// setupCLILogging sends logs to stderr so command output on stdout stays parseable.
func setupCLILogging(cmd *cobra.Command, cfg *config.Config) {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" && cfg != nil && cfg.LogLevel != "info" {
		level = cfg.LogLevel
	}
	if level == "" {
		level = "warn"
	}
	server.SetupLogging(cmd.ErrOrStderr(), level)
}

// loadDBConfig loads configuration and checks DATABASE_URL for the database commands.
func loadDBConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupCLILogging(cmd, cfg)
	if err := cfg.ValidateForDB(); err != nil {
		return nil, err
	}
	return cfg, nil
}
