// Package store persists scan jobs in PostgreSQL and carries the
// LISTEN/NOTIFY signalling between the API and the worker.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CZERTAINLY/Prospector/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no job exists under the requested id.
var ErrNotFound = errors.New("job not found")

const schema = `
CREATE TABLE IF NOT EXISTS scan_jobs (
    id                 UUID PRIMARY KEY,
    repo_url           TEXT NOT NULL,
    ref                TEXT NOT NULL DEFAULT '',
    tool               TEXT NOT NULL DEFAULT 'both',
    status             TEXT NOT NULL DEFAULT 'QUEUED',
    detected_language  TEXT,
    raw_findings       TEXT,
    inventory_document TEXT,
    score              INT,
    error_message      TEXT,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS scan_jobs_status_idx ON scan_jobs (status);
`

const jobColumns = `id, repo_url, ref, tool, status, detected_language,
	raw_findings, inventory_document, score, error_message, created_at, updated_at`

type Store struct {
	Pool *pgxpool.Pool
}

// Connect opens a pool against url and bootstraps the schema. The
// schema statements are idempotent so every instance may run them.
func Connect(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() { s.Pool.Close() }

// CreateQueued inserts a new job in the QUEUED state and returns it.
func (s *Store) CreateQueued(ctx context.Context, repoURL, ref string, tool model.Tool) (model.Job, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO scan_jobs (id, repo_url, ref, tool, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+jobColumns,
		uuid.New(), repoURL, ref, string(tool), string(model.StatusQueued))
	return scanJob(row)
}

// Find returns the job under id or ErrNotFound.
func (s *Store) Find(ctx context.Context, id uuid.UUID) (model.Job, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM scan_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Job{}, ErrNotFound
	}
	return job, err
}

// ClaimQueued transitions one job from QUEUED to RUNNING. The guard in
// the WHERE clause makes the claim atomic: when two workers race over
// the same notification exactly one sees the row.
func (s *Store) ClaimQueued(ctx context.Context, id uuid.UUID) (model.Job, bool, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE scan_jobs
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+jobColumns,
		id, string(model.StatusRunning), string(model.StatusQueued))
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Job{}, false, nil
	}
	if err != nil {
		return model.Job{}, false, err
	}
	return job, true, nil
}

// Complete stores the outcome and moves the job to COMPLETED. Only a
// RUNNING job can complete; a late write after a concurrent terminal
// transition hits zero rows and reports an error instead of clobbering.
func (s *Store) Complete(ctx context.Context, id uuid.UUID, outcome model.Outcome) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE scan_jobs
		SET status = $2,
		    detected_language = $3,
		    raw_findings = $4,
		    inventory_document = $5,
		    score = $6,
		    error_message = NULL,
		    updated_at = now()
		WHERE id = $1 AND status = $7`,
		id, string(model.StatusCompleted),
		outcome.DetectedLanguage, outcome.RawFindings, outcome.InventoryDocument, outcome.Score,
		string(model.StatusRunning))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: not running, refusing to complete", id)
	}
	return nil
}

// Fail moves a RUNNING job to FAILED, records the reason and keeps
// whatever partial outcome the run produced before it broke.
func (s *Store) Fail(ctx context.Context, id uuid.UUID, outcome model.Outcome, reason string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE scan_jobs
		SET status = $2,
		    detected_language = $3,
		    raw_findings = $4,
		    inventory_document = $5,
		    score = $6,
		    error_message = $7,
		    updated_at = now()
		WHERE id = $1 AND status = $8`,
		id, string(model.StatusFailed),
		outcome.DetectedLanguage, outcome.RawFindings, outcome.InventoryDocument, outcome.Score,
		reason, string(model.StatusRunning))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: not running, refusing to fail", id)
	}
	return nil
}

// QueuedIDs lists jobs still waiting to be claimed, oldest first. The
// dispatcher sweeps these to recover notifications lost while no
// worker was listening.
func (s *Store) QueuedIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id FROM scan_jobs WHERE status = $1 ORDER BY created_at`,
		string(model.StatusQueued))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Notify publishes the job id on channel.
func (s *Store) Notify(ctx context.Context, channel string, id uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `SELECT pg_notify($1, $2)`, channel, id.String())
	return err
}

func scanJob(row pgx.Row) (model.Job, error) {
	var job model.Job
	var tool, status string
	err := row.Scan(
		&job.ID, &job.RepoURL, &job.Ref, &tool, &status,
		&job.DetectedLanguage, &job.RawFindings, &job.InventoryDocument,
		&job.Score, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return model.Job{}, err
	}
	job.Tool = model.Tool(tool)
	job.Status = model.Status(status)
	return job, nil
}
