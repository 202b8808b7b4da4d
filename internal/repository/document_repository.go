package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kestrelhq/portal/internal/domain"
)

// PostgresDocumentRepository implements domain.DocumentRepository using PostgreSQL
type PostgresDocumentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresDocumentRepository creates a new employee document repository
func NewPostgresDocumentRepository(db *sql.DB, logger *slog.Logger) *PostgresDocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresDocumentRepository{
		db:     db,
		logger: logger,
	}
}

const documentColumns = `d.id, d.employee_id, d.business_id, d.document_type_id, d.version, d.status,
	d.signature_url, d.file_url, d.pdf_url, d.signed_at, d.ip_address, d.created_at, d.updated_at`

func scanDocument(row rowScanner, extra ...any) (*domain.EmployeeDocument, error) {
	d := &domain.EmployeeDocument{}
	var status string
	var signedAt sql.NullTime
	dest := []any{
		&d.ID, &d.EmployeeID, &d.BusinessID, &d.DocumentTypeID, &d.Version, &status,
		&d.SignaturePath, &d.FilePath, &d.PDFPath, &signedAt, &d.IPAddress, &d.CreatedAt, &d.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	d.Status = domain.DocumentStatus(status)
	d.SignedAt = nullTime(signedAt)
	return d, nil
}

// Insert creates a document row and fills in its generated id and timestamps
func (r *PostgresDocumentRepository) Insert(ctx context.Context, doc *domain.EmployeeDocument) error {
	query := `
		INSERT INTO employee_documents (employee_id, business_id, document_type_id, version, status, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		doc.EmployeeID,
		doc.BusinessID,
		doc.DocumentTypeID,
		doc.Version,
		string(doc.Status),
		doc.IPAddress,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to insert employee document",
			slog.String("employee_id", doc.EmployeeID),
			slog.String("document_type_id", doc.DocumentTypeID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to insert employee document: %w", err)
	}

	return nil
}

// MarkArtifactsUploaded advances a pending row and records its storage paths
func (r *PostgresDocumentRepository) MarkArtifactsUploaded(ctx context.Context, id string, paths domain.ArtifactPaths) error {
	query := `
		UPDATE employee_documents
		SET status = $1, signature_url = $2, file_url = $3, pdf_url = $4, updated_at = now()
		WHERE id = $5 AND status = $6
	`

	return r.transition(ctx, query, id,
		string(domain.DocumentArtifactUploaded), paths.SignaturePath, paths.FilePath, paths.PDFPath,
		id, string(domain.DocumentPending),
	)
}

// MarkComplete finishes a row whose artifacts are uploaded
func (r *PostgresDocumentRepository) MarkComplete(ctx context.Context, id string, signedAt time.Time) error {
	query := `
		UPDATE employee_documents
		SET status = $1, signed_at = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`

	return r.transition(ctx, query, id,
		string(domain.DocumentComplete), signedAt, id, string(domain.DocumentArtifactUploaded),
	)
}

// MarkDiscarded abandons a pending row
func (r *PostgresDocumentRepository) MarkDiscarded(ctx context.Context, id string) error {
	query := `
		UPDATE employee_documents
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`

	return r.transition(ctx, query, id, string(domain.DocumentDiscarded), id, string(domain.DocumentPending))
}

func (r *PostgresDocumentRepository) transition(ctx context.Context, query, id string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update employee document",
			slog.String("document_id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to update employee document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.NotFoundError{What: "document in expected status"}
	}

	return nil
}

// ListByEmployee returns an employee's full document history, newest first
func (r *PostgresDocumentRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*domain.EmployeeDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM employee_documents d WHERE d.employee_id = $1 ORDER BY d.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var out []*domain.EmployeeDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, d)
	}

	return out, rows.Err()
}

// ListCompleted returns complete documents for one employee and business with their type
func (r *PostgresDocumentRepository) ListCompleted(ctx context.Context, employeeID, businessID string) ([]*domain.CompletedDocument, error) {
	query := `
		SELECT ` + documentColumns + `, dt.name, dt.step_type
		FROM employee_documents d
		JOIN document_types dt ON dt.id = d.document_type_id
		WHERE d.employee_id = $1 AND d.business_id = $2 AND d.status = $3
		ORDER BY d.signed_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, employeeID, businessID, string(domain.DocumentComplete))
	if err != nil {
		return nil, fmt.Errorf("failed to list completed documents: %w", err)
	}
	defer rows.Close()

	var out []*domain.CompletedDocument
	for rows.Next() {
		var name, stepType string
		d, err := scanDocument(rows, &name, &stepType)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completed document: %w", err)
		}
		out = append(out, &domain.CompletedDocument{Document: d, DocumentName: name, StepType: domain.StepType(stepType)})
	}

	return out, rows.Err()
}

// ListStale returns rows stuck in status since before the cutoff
func (r *PostgresDocumentRepository) ListStale(ctx context.Context, status domain.DocumentStatus, before time.Time) ([]*domain.EmployeeDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM employee_documents d WHERE d.status = $1 AND d.updated_at < $2 ORDER BY d.updated_at LIMIT 100`

	rows, err := r.db.QueryContext(ctx, query, string(status), before)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale documents: %w", err)
	}
	defer rows.Close()

	var out []*domain.EmployeeDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, d)
	}

	return out, rows.Err()
}
