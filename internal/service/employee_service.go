package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/internal/observability/metrics"
)

// EmployeeService backs the hq employee roster
type EmployeeService struct {
	registry  *RegistryService
	employees domain.EmployeeRepository
	documents domain.DocumentRepository
	now       domain.Clock
	logger    *slog.Logger
}

func NewEmployeeService(registry *RegistryService, employees domain.EmployeeRepository, documents domain.DocumentRepository, logger *slog.Logger) *EmployeeService {
	if logger == nil {
		logger = slog.Default()
	}

	return &EmployeeService{
		registry:  registry,
		employees: employees,
		documents: documents,
		now:       time.Now,
		logger:    logger,
	}
}

// BusinessProgress is an employee's completion count for one business
type BusinessProgress struct {
	BusinessID   string    `json:"businessId"`
	BusinessName string    `json:"businessName"`
	Slug         string    `json:"slug"`
	HireDate     time.Time `json:"hireDate"`
	Completed    int       `json:"completed"`
	Required     int       `json:"required"`
}

// Done reports whether every required step is complete
func (p BusinessProgress) Done() bool {
	return p.Required > 0 && p.Completed >= p.Required
}

// RosterEntry is one employee in the roster listing
type RosterEntry struct {
	*domain.Employee
	Businesses []BusinessProgress `json:"businesses"`
}

// RosterSummary counts the employees a roster lists
type RosterSummary struct {
	Total              int `json:"total"`
	Active             int `json:"active"`
	Archived           int `json:"archived"`
	FullyOnboarded     int `json:"fullyOnboarded"`
	ConfirmationOpened int `json:"confirmationOpened"`
}

type Roster struct {
	Employees []RosterEntry `json:"employees"`
	Summary   RosterSummary `json:"summary"`
}

// EmployeeDetail is an employee with their full document history
type EmployeeDetail struct {
	Employee   *domain.Employee           `json:"employee"`
	Businesses []BusinessProgress         `json:"businesses"`
	Documents  []*domain.EmployeeDocument `json:"documents"`
}

// ArchiveInput names the employees to archive
type ArchiveInput struct {
	IDs    []string `json:"ids"`
	Reason string   `json:"reason"`
}

// EmailEvent is one provider webhook event
type EmailEvent struct {
	Event      string `json:"event"`
	EmployeeID string `json:"employee_id"`
	Email      string `json:"email"`
	Timestamp  int64  `json:"timestamp"`
}

type progressLookup struct {
	s          *EmployeeService
	businesses map[string]*domain.Business
	required   map[string]int
}

func (s *EmployeeService) newLookup(ctx context.Context) (*progressLookup, error) {
	businesses, err := s.registry.Businesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	l := &progressLookup{s: s, businesses: map[string]*domain.Business{}, required: map[string]int{}}
	for _, b := range businesses {
		l.businesses[b.ID] = b
	}
	return l, nil
}

func (l *progressLookup) progress(ctx context.Context, employeeID string, docs []*domain.EmployeeDocument) ([]BusinessProgress, error) {
	links, err := l.s.employees.ListBusinessLinks(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list business links: %w", err)
	}

	done := map[string]map[string]bool{}
	for _, d := range docs {
		if d.Status != domain.DocumentComplete {
			continue
		}
		if done[d.BusinessID] == nil {
			done[d.BusinessID] = map[string]bool{}
		}
		done[d.BusinessID][d.DocumentTypeID] = true
	}

	out := make([]BusinessProgress, 0, len(links))
	for _, link := range links {
		p := BusinessProgress{BusinessID: link.BusinessID, HireDate: link.HireDate, Completed: len(done[link.BusinessID])}
		if b, ok := l.businesses[link.BusinessID]; ok {
			p.BusinessName, p.Slug = b.Name, b.Slug
		}
		required, ok := l.required[link.BusinessID]
		if !ok {
			types, err := l.s.registry.Requirements(ctx, link.BusinessID)
			if err != nil {
				return nil, fmt.Errorf("failed to list requirements: %w", err)
			}
			required = len(types)
			l.required[link.BusinessID] = required
		}
		p.Required = required
		out = append(out, p)
	}
	return out, nil
}

// Roster lists employees newest first with per-business progress
func (s *EmployeeService) Roster(ctx context.Context, includeArchived bool) (*Roster, error) {
	all, err := s.employees.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}

	lookup, err := s.newLookup(ctx)
	if err != nil {
		return nil, err
	}

	roster := &Roster{Employees: []RosterEntry{}}
	for _, e := range all {
		if e.Archived() && !includeArchived {
			continue
		}
		docs, err := s.documents.ListByEmployee(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		progress, err := lookup.progress(ctx, e.ID, docs)
		if err != nil {
			return nil, err
		}

		roster.Summary.Total++
		if e.Archived() {
			roster.Summary.Archived++
		} else {
			roster.Summary.Active++
		}
		if e.ConfirmationEmailOpenedAt != nil {
			roster.Summary.ConfirmationOpened++
		}
		if len(progress) > 0 && allDone(progress) {
			roster.Summary.FullyOnboarded++
		}

		roster.Employees = append(roster.Employees, RosterEntry{Employee: e, Businesses: progress})
	}

	return roster, nil
}

func allDone(progress []BusinessProgress) bool {
	for _, p := range progress {
		if !p.Done() {
			return false
		}
	}
	return true
}

// Detail returns one employee, archived or not, with every document row
func (s *EmployeeService) Detail(ctx context.Context, id string) (*EmployeeDetail, error) {
	employee, err := s.employees.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.ListByEmployee(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if docs == nil {
		docs = []*domain.EmployeeDocument{}
	}

	lookup, err := s.newLookup(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := lookup.progress(ctx, id, docs)
	if err != nil {
		return nil, err
	}

	return &EmployeeDetail{Employee: employee, Businesses: progress, Documents: docs}, nil
}

// Archive soft-deletes a single employee. Archiving an archived employee is a no-op.
func (s *EmployeeService) Archive(ctx context.Context, id, reason string) (*domain.Employee, error) {
	if _, err := s.employees.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if _, err := s.employees.Archive(ctx, []string{id}, strings.TrimSpace(reason), s.now()); err != nil {
		return nil, err
	}
	s.logger.Info("employee archived", slog.String("employee_id", id))
	return s.employees.GetByID(ctx, id)
}

// ArchiveMany soft-deletes every listed employee and returns how many changed
func (s *EmployeeService) ArchiveMany(ctx context.Context, in ArchiveInput) (int, error) {
	ids := make([]string, 0, len(in.IDs))
	for _, id := range in.IDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, domain.NewValidationError("At least one employee id is required")
	}

	n, err := s.employees.Archive(ctx, ids, strings.TrimSpace(in.Reason), s.now())
	if err != nil {
		return 0, err
	}
	s.logger.Info("employees archived", slog.Int("requested", len(ids)), slog.Int("archived", n))
	return n, nil
}

// Restore clears an employee's archive markers
func (s *EmployeeService) Restore(ctx context.Context, id string) (*domain.Employee, error) {
	if err := s.employees.Restore(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info("employee restored", slog.String("employee_id", id))
	return s.employees.GetByID(ctx, id)
}

// RecordEmailEvents applies provider open events and returns how many opens were newly recorded
func (s *EmployeeService) RecordEmailEvents(ctx context.Context, events []EmailEvent) (int, error) {
	recorded := 0
	for _, ev := range events {
		if ev.Event != "open" || ev.EmployeeID == "" {
			continue
		}
		if _, err := uuid.Parse(ev.EmployeeID); err != nil {
			continue
		}
		at := s.now()
		if ev.Timestamp > 0 {
			at = time.Unix(ev.Timestamp, 0)
		}
		first, err := s.employees.MarkConfirmationOpened(ctx, ev.EmployeeID, at)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return recorded, fmt.Errorf("failed to record email open: %w", err)
		}
		if first {
			recorded++
			metrics.ObserveEmailOpen()
		}
	}
	return recorded, nil
}
