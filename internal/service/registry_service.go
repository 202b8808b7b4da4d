package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/pkg/cache"
)

const planCacheTTL = time.Minute

// RegistryService resolves businesses and their required onboarding steps
type RegistryService struct {
	repo   domain.BusinessRepository
	plans  *cache.Cache[*domain.OnboardingPlan]
	logger *slog.Logger
}

// NewRegistryService creates a registry with a short-lived plan cache
func NewRegistryService(repo domain.BusinessRepository, logger *slog.Logger) *RegistryService {
	if logger == nil {
		logger = slog.Default()
	}

	return &RegistryService{
		repo:   repo,
		plans:  cache.New[*domain.OnboardingPlan](),
		logger: logger,
	}
}

// Plan returns the active business for slug with its required document types in display order
func (s *RegistryService) Plan(ctx context.Context, slug string) (*domain.OnboardingPlan, error) {
	if plan, ok := s.plans.Get(slug); ok {
		return plan, nil
	}

	business, err := s.repo.GetActiveBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	types, err := s.repo.ListRequiredDocumentTypes(ctx, business.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load requirements: %w", err)
	}
	if types == nil {
		types = []*domain.DocumentType{}
	}

	plan := &domain.OnboardingPlan{Business: business, DocumentTypes: types}
	s.plans.Set(slug, plan, planCacheTTL)
	return plan, nil
}

// Business resolves an active business by slug
func (s *RegistryService) Business(ctx context.Context, slug string) (*domain.Business, error) {
	if plan, ok := s.plans.Get(slug); ok {
		return plan.Business, nil
	}
	return s.repo.GetActiveBySlug(ctx, slug)
}

// DocumentType resolves an active document type by id
func (s *RegistryService) DocumentType(ctx context.Context, id string) (*domain.DocumentType, error) {
	return s.repo.GetActiveDocumentType(ctx, id)
}

// Requirements returns the required document types for a business
func (s *RegistryService) Requirements(ctx context.Context, businessID string) ([]*domain.DocumentType, error) {
	return s.repo.ListRequiredDocumentTypes(ctx, businessID)
}

// Businesses lists every active business
func (s *RegistryService) Businesses(ctx context.Context) ([]*domain.Business, error) {
	return s.repo.ListActive(ctx)
}

