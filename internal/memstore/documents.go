package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelhq/portal/internal/domain"
)

// DocumentRepository is an in-memory domain.DocumentRepository
type DocumentRepository struct {
	mu       sync.RWMutex
	docs     map[string]*domain.EmployeeDocument
	registry *BusinessRepository
	now      func() time.Time
}

var _ domain.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository joins completed documents against registry for their names
func NewDocumentRepository(registry *BusinessRepository) *DocumentRepository {
	return &DocumentRepository{docs: make(map[string]*domain.EmployeeDocument), registry: registry, now: time.Now}
}

func (r *DocumentRepository) Insert(ctx context.Context, doc *domain.EmployeeDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc.ID = uuid.NewString()
	doc.CreatedAt = r.now()
	doc.UpdatedAt = doc.CreatedAt
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *DocumentRepository) transition(id string, from domain.DocumentStatus, apply func(d *domain.EmployeeDocument)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.Status != from {
		return &domain.NotFoundError{What: "document in expected status"}
	}
	apply(d)
	d.UpdatedAt = r.now()
	return nil
}

func (r *DocumentRepository) MarkArtifactsUploaded(ctx context.Context, id string, paths domain.ArtifactPaths) error {
	return r.transition(id, domain.DocumentPending, func(d *domain.EmployeeDocument) {
		d.Status = domain.DocumentArtifactUploaded
		d.SignaturePath = paths.SignaturePath
		d.FilePath = paths.FilePath
		d.PDFPath = paths.PDFPath
	})
}

func (r *DocumentRepository) MarkComplete(ctx context.Context, id string, signedAt time.Time) error {
	return r.transition(id, domain.DocumentArtifactUploaded, func(d *domain.EmployeeDocument) {
		d.Status = domain.DocumentComplete
		t := signedAt
		d.SignedAt = &t
	})
}

func (r *DocumentRepository) MarkDiscarded(ctx context.Context, id string) error {
	return r.transition(id, domain.DocumentPending, func(d *domain.EmployeeDocument) {
		d.Status = domain.DocumentDiscarded
	})
}

func (r *DocumentRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*domain.EmployeeDocument, error) {
	return r.filter(func(d *domain.EmployeeDocument) bool { return d.EmployeeID == employeeID }, true), nil
}

func (r *DocumentRepository) ListCompleted(ctx context.Context, employeeID, businessID string) ([]*domain.CompletedDocument, error) {
	docs := r.filter(func(d *domain.EmployeeDocument) bool {
		return d.EmployeeID == employeeID && d.BusinessID == businessID && d.Status == domain.DocumentComplete
	}, false)

	out := make([]*domain.CompletedDocument, 0, len(docs))
	for _, d := range docs {
		cd := &domain.CompletedDocument{Document: d}
		if dt, ok := r.registry.documentType(d.DocumentTypeID); ok {
			cd.DocumentName = dt.Name
			cd.StepType = dt.StepType
		}
		out = append(out, cd)
	}
	return out, nil
}

func (r *DocumentRepository) ListStale(ctx context.Context, status domain.DocumentStatus, before time.Time) ([]*domain.EmployeeDocument, error) {
	return r.filter(func(d *domain.EmployeeDocument) bool {
		return d.Status == status && d.UpdatedAt.Before(before)
	}, false), nil
}

// All returns every stored row, oldest first
func (r *DocumentRepository) All() []*domain.EmployeeDocument {
	return r.filter(func(*domain.EmployeeDocument) bool { return true }, false)
}

func (r *DocumentRepository) filter(keep func(d *domain.EmployeeDocument) bool, newestFirst bool) []*domain.EmployeeDocument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.EmployeeDocument
	for _, d := range r.docs {
		if keep(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// SurveyRepository is an in-memory domain.SurveyRepository
type SurveyRepository struct {
	mu      sync.RWMutex
	surveys []*domain.OnboardingSurvey
	now     func() time.Time
}

var _ domain.SurveyRepository = (*SurveyRepository)(nil)

func NewSurveyRepository() *SurveyRepository {
	return &SurveyRepository{now: time.Now}
}

func (r *SurveyRepository) Insert(ctx context.Context, s *domain.OnboardingSurvey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.NewString()
	s.CreatedAt = r.now()
	cp := *s
	r.surveys = append(r.surveys, &cp)
	return nil
}

// All returns the stored surveys in insertion order
func (r *SurveyRepository) All() []*domain.OnboardingSurvey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.OnboardingSurvey, len(r.surveys))
	copy(out, r.surveys)
	return out
}
