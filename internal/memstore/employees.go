package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelhq/portal/internal/domain"
)

// EmployeeRepository is an in-memory domain.EmployeeRepository
type EmployeeRepository struct {
	mu        sync.RWMutex
	employees map[string]*domain.Employee
	links     []*domain.EmployeeBusiness
	now       func() time.Time
}

var _ domain.EmployeeRepository = (*EmployeeRepository)(nil)

func NewEmployeeRepository() *EmployeeRepository {
	return &EmployeeRepository{employees: make(map[string]*domain.Employee), now: time.Now}
}

func (r *EmployeeRepository) UpsertByEmail(ctx context.Context, e *domain.Employee) (*domain.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.employees {
		if strings.EqualFold(existing.Email, e.Email) {
			cp := *existing
			return &cp, nil
		}
	}
	stored := *e
	stored.ID = uuid.NewString()
	stored.CreatedAt = r.now()
	r.employees[stored.ID] = &stored
	cp := stored
	return &cp, nil
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.employees[id]
	if !ok {
		return nil, &domain.NotFoundError{What: "employee"}
	}
	cp := *e
	return &cp, nil
}

func (r *EmployeeRepository) List(ctx context.Context, includeArchived bool) ([]*domain.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Employee
	for _, e := range r.employees {
		if e.Archived() && !includeArchived {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *EmployeeRepository) LinkBusiness(ctx context.Context, link *domain.EmployeeBusiness) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.EmployeeID == link.EmployeeID && l.BusinessID == link.BusinessID {
			return nil
		}
	}
	cp := *link
	r.links = append(r.links, &cp)
	return nil
}

func (r *EmployeeRepository) ListBusinessLinks(ctx context.Context, employeeID string) ([]*domain.EmployeeBusiness, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.EmployeeBusiness
	for _, l := range r.links {
		if l.EmployeeID == employeeID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *EmployeeRepository) Archive(ctx context.Context, ids []string, reason string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		e, ok := r.employees[id]
		if !ok || e.Archived() {
			continue
		}
		t := at
		e.ArchivedAt = &t
		e.ArchiveReason = reason
		n++
	}
	return n, nil
}

func (r *EmployeeRepository) Restore(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.employees[id]
	if !ok {
		return &domain.NotFoundError{What: "employee"}
	}
	e.ArchivedAt = nil
	e.ArchiveReason = ""
	return nil
}

func (r *EmployeeRepository) MarkConfirmationSent(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.employees[id]; ok {
		t := at
		e.ConfirmationEmailSentAt = &t
	}
	return nil
}

func (r *EmployeeRepository) MarkConfirmationOpened(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.employees[id]
	if !ok || e.ConfirmationEmailOpenedAt != nil {
		return false, nil
	}
	t := at
	e.ConfirmationEmailOpenedAt = &t
	return true, nil
}

// Count returns the number of stored employees, archived included
func (r *EmployeeRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.employees)
}
