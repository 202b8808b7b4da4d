package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kestrelhq/portal/internal/domain"
)

// PostgresCronRepository implements domain.CronRepository using PostgreSQL
type PostgresCronRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresCronRepository creates a new cron job repository
func NewPostgresCronRepository(db *sql.DB, logger *slog.Logger) *PostgresCronRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCronRepository{
		db:     db,
		logger: logger,
	}
}

// List returns jobs grouped-ready: ordered by bot then name
func (r *PostgresCronRepository) List(ctx context.Context) ([]*domain.CronJob, error) {
	query := `
		SELECT id, bot, name, schedule, command, enabled, last_run_at, last_status, next_run_at, synced_at
		FROM cron_jobs
		ORDER BY bot, name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cron jobs: %w", err)
	}
	defer rows.Close()

	var out []*domain.CronJob
	for rows.Next() {
		j := &domain.CronJob{}
		var lastRun, nextRun sql.NullTime
		if err := rows.Scan(&j.ID, &j.Bot, &j.Name, &j.Schedule, &j.Command, &j.Enabled,
			&lastRun, &j.LastStatus, &nextRun, &j.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cron job: %w", err)
		}
		j.LastRunAt = nullTime(lastRun)
		j.NextRunAt = nullTime(nextRun)
		out = append(out, j)
	}

	return out, rows.Err()
}

// Upsert writes every job in one transaction keyed by id
func (r *PostgresCronRepository) Upsert(ctx context.Context, jobs []*domain.CronJob) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cron_jobs (id, bot, name, schedule, command, enabled, last_run_at, last_status, next_run_at, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			bot = EXCLUDED.bot,
			name = EXCLUDED.name,
			schedule = EXCLUDED.schedule,
			command = EXCLUDED.command,
			enabled = EXCLUDED.enabled,
			last_run_at = EXCLUDED.last_run_at,
			last_status = EXCLUDED.last_status,
			next_run_at = EXCLUDED.next_run_at,
			synced_at = EXCLUDED.synced_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cron upsert: %w", err)
	}
	defer stmt.Close()

	for _, j := range jobs {
		if _, err := stmt.ExecContext(ctx, j.ID, j.Bot, j.Name, j.Schedule, j.Command, j.Enabled,
			j.LastRunAt, j.LastStatus, j.NextRunAt, j.SyncedAt); err != nil {
			r.logger.Error("failed to upsert cron job",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("failed to upsert cron job %s: %w", j.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cron upsert: %w", err)
	}

	return nil
}
