package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/morezero/script-runtime/pkg/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the journal schema (DATABASE_URL, MIGRATION_PATH)",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Explain how to roll back (migrations are forward-only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return db.MigrationDown(cmd.OutOrStdout())
	},
}

var ensureDBCmd = &cobra.Command{
	Use:   "ensure-db [name]",
	Short: "Create the database if missing, on the DATABASE_URL host",
	Long: `Create the database if missing. With a name, the database path of DATABASE_URL
is replaced (user, host and query such as sslmode are kept), which is handy for
creating a test database before running integration tests.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnsureDB,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd, ensureDBCmd)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, err := loadDBConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	n, err := db.RunMigrations(ctx, pool, migrations)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", n)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadDBConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return db.MigrationStatus(ctx, pool, cfg.MigrationPath, cmd.OutOrStdout())
}

func runEnsureDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadDBConfig(cmd)
	if err != nil {
		return err
	}
	target, err := databaseURLFor(cfg.DatabaseURL, args)
	if err != nil {
		return err
	}
	name, err := db.DatabaseName(target)
	if err != nil {
		return err
	}
	if err := db.EnsureDatabase(cmd.Context(), target); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Database %q is ready.\n", name)
	return nil
}

// databaseURLFor returns base with its database path replaced by args[0], if given.
func databaseURLFor(base string, args []string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return base, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + args[0]
	return u.String(), nil
}
