// Package db persists the invocation and download journal in Postgres via pgx.
package db

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

// NewPool creates a new pgx connection pool from the given database URL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to database", logPrefix))

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}

	// The journal is write-mostly from one process.
	config.MaxConns = 8
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Database connection established", logPrefix))
	return pool, nil
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name     TEXT PRIMARY KEY,
    applied  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunMigrations applies the migrations not yet recorded in schema_migrations, in order,
// each in its own transaction. It returns the number applied.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) (int, error) {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return 0, fmt.Errorf("%s - failed to create schema_migrations: %w", logPrefix, err)
	}
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return 0, err
	}

	todo := pending(migrations, applied)
	slog.Info(fmt.Sprintf("%s - Running %d of %d migrations", logPrefix, len(todo), len(migrations)))

	for _, m := range todo {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return 0, fmt.Errorf("%s - failed to begin migration %s: %w", logPrefix, m.Name, err)
		}
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("%s - migration %s failed: %w", logPrefix, m.Name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING`, m.Name); err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("%s - failed to record migration %s: %w", logPrefix, m.Name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("%s - failed to commit migration %s: %w", logPrefix, m.Name, err)
		}
		slog.Info(fmt.Sprintf("%s - Applied %s", logPrefix, m.Name))
	}

	slog.Info(fmt.Sprintf("%s - Migrations complete", logPrefix))
	return len(todo), nil
}

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read schema_migrations: %w", logPrefix, err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%s - failed to scan migration name: %w", logPrefix, err)
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// MigrationStatus writes one line per migration file, marking it applied or pending.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, migrationPath string, w io.Writer) error {
	const statusLogPrefix = "db:MigrationStatus"

	files, err := LoadMigrationFiles(migrationPath)
	if err != nil {
		return fmt.Errorf("%s - load migration list: %w", statusLogPrefix, err)
	}

	var exists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'schema_migrations')`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s - failed to check schema: %w", statusLogPrefix, err)
	}

	applied := map[string]bool{}
	if exists {
		if applied, err = appliedMigrations(ctx, pool); err != nil {
			return err
		}
	}
	writeStatus(w, files, applied)
	return nil
}

func writeStatus(w io.Writer, files []Migration, applied map[string]bool) {
	for _, m := range files {
		state := "pending"
		if applied[m.Name] {
			state = "applied"
		}
		fmt.Fprintf(w, "%-8s %s\n", state, m.Name)
	}
	if n := len(pending(files, applied)); n > 0 {
		fmt.Fprintf(w, "%d pending (run 'script-runtime migrate up')\n", n)
	}
}

// MigrationDown reports that migrations are forward-only; it changes nothing.
func MigrationDown(w io.Writer) error {
	fmt.Fprintln(w, "Migration down: not supported (migrations are forward-only). Use a database backup to roll back.")
	return nil
}
