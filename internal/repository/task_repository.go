package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kestrelhq/portal/internal/domain"
)

// PostgresTaskRepository implements domain.TaskRepository using PostgreSQL.
// Blockers live in a JSONB column on the task row.
type PostgresTaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTaskRepository creates a new task repository
func NewPostgresTaskRepository(db *sql.DB, logger *slog.Logger) *PostgresTaskRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskRepository{
		db:     db,
		logger: logger,
	}
}

const taskColumns = `id, title, description, status, position, assignee, priority, blockers, created_at, updated_at`

func scanTask(row rowScanner) (*domain.Task, error) {
	t := &domain.Task{}
	var status string
	var blockers []byte
	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &t.Position, &t.Assignee, &t.Priority,
		&blockers, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TaskStatus(status)
	t.Blockers = []domain.Blocker{}
	if len(blockers) > 0 {
		if err := json.Unmarshal(blockers, &t.Blockers); err != nil {
			return nil, fmt.Errorf("failed to decode blockers: %w", err)
		}
	}
	return t, nil
}

func encodeBlockers(b []domain.Blocker) ([]byte, error) {
	if b == nil {
		b = []domain.Blocker{}
	}
	return json.Marshal(b)
}

// List returns every task ordered by column and position
func (r *PostgresTaskRepository) List(ctx context.Context) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY status, position, created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, t)
	}

	return out, rows.Err()
}

// GetByID retrieves a task by ID
func (r *PostgresTaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	if !isUUID(id) {
		return nil, &domain.NotFoundError{What: "task"}
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{What: "task"}
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return t, nil
}

// Create inserts a task and fills in its id and timestamps
func (r *PostgresTaskRepository) Create(ctx context.Context, t *domain.Task) error {
	blockers, err := encodeBlockers(t.Blockers)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (title, description, status, position, assignee, priority, blockers)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		t.Title, t.Description, string(t.Status), t.Position, t.Assignee, t.Priority, blockers,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create task",
			slog.String("title", t.Title),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// Update rewrites every mutable column of the task
func (r *PostgresTaskRepository) Update(ctx context.Context, t *domain.Task) error {
	blockers, err := encodeBlockers(t.Blockers)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, position = $4, assignee = $5,
		    priority = $6, blockers = $7, updated_at = now()
		WHERE id = $8
		RETURNING updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		t.Title, t.Description, string(t.Status), t.Position, t.Assignee, t.Priority, blockers, t.ID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.NotFoundError{What: "task"}
		}
		return fmt.Errorf("failed to update task: %w", err)
	}

	return nil
}

// Delete removes a task
func (r *PostgresTaskRepository) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return &domain.NotFoundError{What: "task"}
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.NotFoundError{What: "task"}
	}

	return nil
}

// SetPositions applies a board reorder in one transaction
func (r *PostgresTaskRepository) SetPositions(ctx context.Context, moves map[string]domain.TaskPlacement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE tasks SET status = $1, position = $2, updated_at = now() WHERE id = $3`)
	if err != nil {
		return fmt.Errorf("failed to prepare reorder: %w", err)
	}
	defer stmt.Close()

	for id, p := range moves {
		if _, err := stmt.ExecContext(ctx, string(p.Status), p.Position, id); err != nil {
			return fmt.Errorf("failed to move task %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}

	return nil
}
