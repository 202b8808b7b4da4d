package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/kestrelhq/portal/internal/domain"
)

// PostgresEmployeeRepository implements domain.EmployeeRepository using PostgreSQL
type PostgresEmployeeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresEmployeeRepository creates a new employee repository
func NewPostgresEmployeeRepository(db *sql.DB, logger *slog.Logger) *PostgresEmployeeRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresEmployeeRepository{
		db:     db,
		logger: logger,
	}
}

const employeeColumns = `id, first_name, last_name, email, phone, created_at, archived_at, archive_reason,
	confirmation_email_sent_at, confirmation_email_opened_at`

func scanEmployee(row rowScanner) (*domain.Employee, error) {
	e := &domain.Employee{}
	var archivedAt, sentAt, openedAt sql.NullTime
	err := row.Scan(
		&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Phone, &e.CreatedAt,
		&archivedAt, &e.ArchiveReason, &sentAt, &openedAt,
	)
	if err != nil {
		return nil, err
	}
	e.ArchivedAt = nullTime(archivedAt)
	e.ConfirmationEmailSentAt = nullTime(sentAt)
	e.ConfirmationEmailOpenedAt = nullTime(openedAt)
	return e, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// UpsertByEmail inserts the employee or returns the existing row for the same email.
// The no-op DO UPDATE makes RETURNING yield the existing row.
func (r *PostgresEmployeeRepository) UpsertByEmail(ctx context.Context, e *domain.Employee) (*domain.Employee, error) {
	query := `
		INSERT INTO employees (first_name, last_name, email, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING ` + employeeColumns

	out, err := scanEmployee(r.db.QueryRowContext(ctx, query, e.FirstName, e.LastName, e.Email, e.Phone))
	if err != nil {
		r.logger.Error("failed to upsert employee",
			slog.String("email", e.Email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to upsert employee: %w", err)
	}

	return out, nil
}

// GetByID retrieves an employee by ID, archived or not
func (r *PostgresEmployeeRepository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	if !isUUID(id) {
		return nil, &domain.NotFoundError{What: "employee"}
	}
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`

	e, err := scanEmployee(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{What: "employee"}
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	return e, nil
}

// List lists employees newest first
func (r *PostgresEmployeeRepository) List(ctx context.Context, includeArchived bool) ([]*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	if !includeArchived {
		query += ` WHERE archived_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to list employees", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []*domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

// LinkBusiness records the employee-business association; existing links are left alone
func (r *PostgresEmployeeRepository) LinkBusiness(ctx context.Context, link *domain.EmployeeBusiness) error {
	query := `
		INSERT INTO employee_businesses (employee_id, business_id, hire_date, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (employee_id, business_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, link.EmployeeID, link.BusinessID, link.HireDate, link.Active); err != nil {
		return fmt.Errorf("failed to link employee to business: %w", err)
	}

	return nil
}

// ListBusinessLinks lists the businesses an employee belongs to
func (r *PostgresEmployeeRepository) ListBusinessLinks(ctx context.Context, employeeID string) ([]*domain.EmployeeBusiness, error) {
	query := `
		SELECT employee_id, business_id, hire_date, active
		FROM employee_businesses
		WHERE employee_id = $1
		ORDER BY hire_date
	`

	rows, err := r.db.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list business links: %w", err)
	}
	defer rows.Close()

	var out []*domain.EmployeeBusiness
	for rows.Next() {
		link := &domain.EmployeeBusiness{}
		if err := rows.Scan(&link.EmployeeID, &link.BusinessID, &link.HireDate, &link.Active); err != nil {
			return nil, fmt.Errorf("failed to scan business link: %w", err)
		}
		out = append(out, link)
	}

	return out, rows.Err()
}

// Archive soft-deletes the given employees and returns how many rows changed
func (r *PostgresEmployeeRepository) Archive(ctx context.Context, ids []string, reason string, at time.Time) (int, error) {
	valid := ids[:0:0]
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}
	ids = valid

	query := `
		UPDATE employees
		SET archived_at = $1, archive_reason = $2
		WHERE id = ANY($3) AND archived_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, at, reason, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to archive employees: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return int(rows), nil
}

// Restore clears the archive markers
func (r *PostgresEmployeeRepository) Restore(ctx context.Context, id string) error {
	if !isUUID(id) {
		return &domain.NotFoundError{What: "employee"}
	}
	query := `UPDATE employees SET archived_at = NULL, archive_reason = '' WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to restore employee: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.NotFoundError{What: "employee"}
	}

	return nil
}

// MarkConfirmationSent stamps the confirmation email send time
func (r *PostgresEmployeeRepository) MarkConfirmationSent(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE employees SET confirmation_email_sent_at = $1 WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to mark confirmation sent: %w", err)
	}

	return nil
}

// MarkConfirmationOpened records the first open; returns false when already set
func (r *PostgresEmployeeRepository) MarkConfirmationOpened(ctx context.Context, id string, at time.Time) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	query := `
		UPDATE employees
		SET confirmation_email_opened_at = $1
		WHERE id = $2 AND confirmation_email_opened_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark confirmation opened: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rows > 0, nil
}
