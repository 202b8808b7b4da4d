package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kestrelhq/portal/internal/domain"
)

// PostgresBusinessRepository implements domain.BusinessRepository using PostgreSQL
type PostgresBusinessRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresBusinessRepository creates a new business repository
func NewPostgresBusinessRepository(db *sql.DB, logger *slog.Logger) *PostgresBusinessRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresBusinessRepository{
		db:     db,
		logger: logger,
	}
}

const businessColumns = `id, name, slug, location, welcome_copy, logo_url, active`

// GetActiveBySlug retrieves an active business by slug
func (r *PostgresBusinessRepository) GetActiveBySlug(ctx context.Context, slug string) (*domain.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE slug = $1 AND active = true`

	b := &domain.Business{}
	err := r.db.QueryRowContext(ctx, query, slug).Scan(
		&b.ID, &b.Name, &b.Slug, &b.Location, &b.WelcomeCopy, &b.LogoURL, &b.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{What: "business"}
		}
		r.logger.Error("failed to get business by slug",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get business: %w", err)
	}

	return b, nil
}

// ListActive lists every active business by name
func (r *PostgresBusinessRepository) ListActive(ctx context.Context) ([]*domain.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE active = true ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	defer rows.Close()

	var out []*domain.Business
	for rows.Next() {
		b := &domain.Business{}
		if err := rows.Scan(&b.ID, &b.Name, &b.Slug, &b.Location, &b.WelcomeCopy, &b.LogoURL, &b.Active); err != nil {
			return nil, fmt.Errorf("failed to scan business: %w", err)
		}
		out = append(out, b)
	}

	return out, rows.Err()
}

const documentTypeColumns = `dt.id, dt.name, dt.slug, dt.step_type, dt.requires_signature, dt.requires_file_upload,
	dt.current_version, dt.content, dt.content_url, dt.app_store_url, dt.play_store_url, dt.active`

type rowScanner interface {
	Scan(dest ...any) error
}

// isUUID guards lookups so a malformed id reads as missing rather than a driver error
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanDocumentType(row rowScanner) (*domain.DocumentType, error) {
	dt := &domain.DocumentType{}
	var stepType string
	err := row.Scan(
		&dt.ID, &dt.Name, &dt.Slug, &stepType, &dt.RequiresSignature, &dt.RequiresFileUpload,
		&dt.CurrentVersion, &dt.Content, &dt.ContentURL, &dt.AppStoreURL, &dt.PlayStoreURL, &dt.Active,
	)
	if err != nil {
		return nil, err
	}
	dt.StepType = domain.StepType(stepType)
	return dt, nil
}

// GetActiveDocumentType retrieves an active document type by id
func (r *PostgresBusinessRepository) GetActiveDocumentType(ctx context.Context, id string) (*domain.DocumentType, error) {
	if !isUUID(id) {
		return nil, &domain.NotFoundError{What: "document type"}
	}
	query := `SELECT ` + documentTypeColumns + ` FROM document_types dt WHERE dt.id = $1 AND dt.active = true`

	dt, err := scanDocumentType(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{What: "document type"}
		}
		return nil, fmt.Errorf("failed to get document type: %w", err)
	}

	return dt, nil
}

// ListRequiredDocumentTypes returns a business's required steps in display order
func (r *PostgresBusinessRepository) ListRequiredDocumentTypes(ctx context.Context, businessID string) ([]*domain.DocumentType, error) {
	query := `
		SELECT ` + documentTypeColumns + `
		FROM business_document_requirements req
		JOIN document_types dt ON dt.id = req.document_type_id
		WHERE req.business_id = $1 AND req.required = true AND dt.active = true
		ORDER BY req.display_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, businessID)
	if err != nil {
		r.logger.Error("failed to list requirements",
			slog.String("business_id", businessID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list requirements: %w", err)
	}
	defer rows.Close()

	var out []*domain.DocumentType
	for rows.Next() {
		dt, err := scanDocumentType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document type: %w", err)
		}
		out = append(out, dt)
	}

	return out, rows.Err()
}
