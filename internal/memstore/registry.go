// Package memstore holds in-process implementations of the repository ports.
// It backs the memory store driver and the service and handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrelhq/portal/internal/domain"
)

// BusinessRepository is an in-memory domain.BusinessRepository
type BusinessRepository struct {
	mu           sync.RWMutex
	businesses   map[string]*domain.Business
	types        map[string]*domain.DocumentType
	requirements []domain.Requirement
}

var _ domain.BusinessRepository = (*BusinessRepository)(nil)

func NewBusinessRepository() *BusinessRepository {
	return &BusinessRepository{
		businesses: make(map[string]*domain.Business),
		types:      make(map[string]*domain.DocumentType),
	}
}

// AddBusiness stores b, assigning an id when empty
func (r *BusinessRepository) AddBusiness(b *domain.Business) *domain.Business {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	cp := *b
	r.businesses[b.ID] = &cp
	return b
}

// AddDocumentType stores dt, assigning an id when empty
func (r *BusinessRepository) AddDocumentType(dt *domain.DocumentType) *domain.DocumentType {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dt.ID == "" {
		dt.ID = uuid.NewString()
	}
	cp := *dt
	r.types[dt.ID] = &cp
	return dt
}

// Require assigns a document type to a business
func (r *BusinessRepository) Require(req domain.Requirement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requirements = append(r.requirements, req)
}

func (r *BusinessRepository) GetActiveBySlug(ctx context.Context, slug string) (*domain.Business, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.businesses {
		if b.Slug == slug && b.Active {
			cp := *b
			return &cp, nil
		}
	}
	return nil, &domain.NotFoundError{What: "business"}
}

func (r *BusinessRepository) ListActive(ctx context.Context) ([]*domain.Business, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Business
	for _, b := range r.businesses {
		if b.Active {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *BusinessRepository) GetActiveDocumentType(ctx context.Context, id string) (*domain.DocumentType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dt, ok := r.types[id]
	if !ok || !dt.Active {
		return nil, &domain.NotFoundError{What: "document type"}
	}
	cp := *dt
	return &cp, nil
}

func (r *BusinessRepository) ListRequiredDocumentTypes(ctx context.Context, businessID string) ([]*domain.DocumentType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reqs := make([]domain.Requirement, 0, len(r.requirements))
	for _, req := range r.requirements {
		if req.BusinessID == businessID && req.Required {
			reqs = append(reqs, req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].DisplayOrder < reqs[j].DisplayOrder })

	var out []*domain.DocumentType
	for _, req := range reqs {
		if dt, ok := r.types[req.DocumentTypeID]; ok && dt.Active {
			cp := *dt
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *BusinessRepository) documentType(id string) (*domain.DocumentType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dt, ok := r.types[id]
	return dt, ok
}
