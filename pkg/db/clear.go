package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearJournal truncates the invocations and downloads tables. The schema and the
// migration history are preserved.
func ClearJournal(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing journal tables", clearLogPrefix))

	_, err := pool.Exec(ctx, `TRUNCATE TABLE invocations, downloads RESTART IDENTITY`)
	if err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Journal cleared", clearLogPrefix))
	return nil
}
