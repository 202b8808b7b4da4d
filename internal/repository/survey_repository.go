package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kestrelhq/portal/internal/domain"
)

// PostgresSurveyRepository implements domain.SurveyRepository using PostgreSQL
type PostgresSurveyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSurveyRepository creates a new survey repository
func NewPostgresSurveyRepository(db *sql.DB, logger *slog.Logger) *PostgresSurveyRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSurveyRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores a survey; empty employee or business ids are written as NULL
func (r *PostgresSurveyRepository) Insert(ctx context.Context, s *domain.OnboardingSurvey) error {
	query := `
		INSERT INTO onboarding_surveys (employee_id, business_id, first_name, last_name, rating, was_clear, feedback)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	var wasClear sql.NullBool
	if s.WasClear != nil {
		wasClear = sql.NullBool{Bool: *s.WasClear, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		nullString(s.EmployeeID),
		nullString(s.BusinessID),
		s.FirstName,
		s.LastName,
		s.Rating,
		wasClear,
		s.Feedback,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		r.logger.Error("failed to insert survey",
			slog.String("employee_id", s.EmployeeID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to insert survey: %w", err)
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
