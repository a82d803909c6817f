package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

const defaultListLimit = 50

// Repository reads and writes the journal tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertInvocation appends an invocation row and returns its id.
func (r *Repository) InsertInvocation(ctx context.Context, rec *InvocationRecord) (int64, error) {
	slog.Debug(fmt.Sprintf("%s - InsertInvocation %s.%s code=%s", repoLogPrefix, rec.Namespace, rec.Operation, rec.Code))

	started := rec.Started
	if started.IsZero() {
		started = time.Now().UTC()
	}
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO invocations (request_id, namespace, operation, signature, arity, code, error, duration_ms, started)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		rec.RequestID, rec.Namespace, rec.Operation, rec.Signature, rec.Arity,
		rec.Code, rec.Error, rec.DurationMs, started).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s - InsertInvocation failed: %w", repoLogPrefix, err)
	}
	return id, nil
}

// InsertDownload appends a download row and returns its id.
func (r *Repository) InsertDownload(ctx context.Context, rec *DownloadRecord) (int64, error) {
	slog.Debug(fmt.Sprintf("%s - InsertDownload url=%s status=%s", repoLogPrefix, rec.URL, rec.Status))

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO downloads (request_id, namespace, url, path, proxy, status, error, bytes, url_index)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		rec.RequestID, rec.Namespace, rec.URL, rec.Path, rec.Proxy,
		rec.Status, rec.Error, rec.Bytes, rec.Index).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s - InsertDownload failed: %w", repoLogPrefix, err)
	}
	return id, nil
}

// ListInvocations returns the newest invocations matching params.
func (r *Repository) ListInvocations(ctx context.Context, params ListInvocationsParams) ([]InvocationRecord, error) {
	query := `SELECT id, request_id, namespace, operation, signature, arity, code, error, duration_ms, started, created
	          FROM invocations WHERE 1=1`
	args := []interface{}{}
	argIdx := 1
	add := func(column, val string) {
		if val == "" {
			return
		}
		query += fmt.Sprintf(` AND %s = $%d`, column, argIdx)
		args = append(args, val)
		argIdx++
	}
	add("namespace", params.Namespace)
	add("operation", params.Operation)
	add("code", params.Code)
	add("request_id", params.RequestID)

	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(params.Limit))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s - ListInvocations query failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []InvocationRecord
	for rows.Next() {
		var rec InvocationRecord
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Namespace, &rec.Operation, &rec.Signature,
			&rec.Arity, &rec.Code, &rec.Error, &rec.DurationMs, &rec.Started, &rec.Created); err != nil {
			return nil, fmt.Errorf("%s - ListInvocations scan failed: %w", repoLogPrefix, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListDownloads returns the newest downloads matching params.
func (r *Repository) ListDownloads(ctx context.Context, params ListDownloadsParams) ([]DownloadRecord, error) {
	query := `SELECT id, request_id, namespace, url, path, proxy, status, error, bytes, url_index, created
	          FROM downloads WHERE 1=1`
	args := []interface{}{}
	argIdx := 1
	if params.RequestID != "" {
		query += fmt.Sprintf(` AND request_id = $%d`, argIdx)
		args = append(args, params.RequestID)
		argIdx++
	}
	if params.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, params.Status)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(params.Limit))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s - ListDownloads query failed: %w", repoLogPrefix, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (DownloadRecord, error) {
		var rec DownloadRecord
		err := row.Scan(&rec.ID, &rec.RequestID, &rec.Namespace, &rec.URL, &rec.Path, &rec.Proxy,
			&rec.Status, &rec.Error, &rec.Bytes, &rec.Index, &rec.Created)
		return rec, err
	})
}

// CountByCode returns invocation counts keyed by result code.
func (r *Repository) CountByCode(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, COUNT(*) FROM invocations GROUP BY code`)
	if err != nil {
		return nil, fmt.Errorf("%s - CountByCode failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var code string
		var n int64
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("%s - CountByCode scan failed: %w", repoLogPrefix, err)
		}
		counts[code] = n
	}
	return counts, rows.Err()
}

// PurgeBefore deletes journal rows created before cutoff and returns how many went.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	slog.Info(fmt.Sprintf("%s - PurgeBefore %s", repoLogPrefix, cutoff.Format(time.RFC3339)))

	var total int64
	for _, table := range []string{"invocations", "downloads"} {
		tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE created < $1`, table), cutoff)
		if err != nil {
			return total, fmt.Errorf("%s - PurgeBefore %s failed: %w", repoLogPrefix, table, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func limitOrDefault(n int) int {
	if n < 1 {
		return defaultListLimit
	}
	return n
}
