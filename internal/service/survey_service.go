package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelhq/portal/internal/domain"
)

// SurveyInput is the final onboarding survey
type SurveyInput struct {
	Slug       string
	EmployeeID string
	FirstName  string
	LastName   string
	Rating     *int
	WasClear   *bool
	Feedback   string
}

// SurveyService stores surveys and queues the staff and employee emails they trigger
type SurveyService struct {
	registry   *RegistryService
	employees  domain.EmployeeRepository
	documents  domain.DocumentRepository
	surveys    domain.SurveyRepository
	queue      domain.NotificationQueue
	links      *FileLinks
	staffEmail string
	notify     bool
	now        domain.Clock
	logger     *slog.Logger
}

// NewSurveyService creates a survey service. Notifications are only queued when notify is set.
func NewSurveyService(
	registry *RegistryService,
	employees domain.EmployeeRepository,
	documents domain.DocumentRepository,
	surveys domain.SurveyRepository,
	queue domain.NotificationQueue,
	links *FileLinks,
	staffEmail string,
	notify bool,
	logger *slog.Logger,
) *SurveyService {
	if logger == nil {
		logger = slog.Default()
	}

	return &SurveyService{
		registry:   registry,
		employees:  employees,
		documents:  documents,
		surveys:    surveys,
		queue:      queue,
		links:      links,
		staffEmail: staffEmail,
		notify:     notify,
		now:        time.Now,
		logger:     logger,
	}
}

// Submit records the survey. Notification problems are logged, never returned.
func (s *SurveyService) Submit(ctx context.Context, in SurveyInput) error {
	if in.Rating == nil || *in.Rating < 1 || *in.Rating > 5 {
		return domain.NewValidationError("Rating must be between 1 and 5")
	}

	business, err := s.registry.Business(ctx, in.Slug)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to resolve business: %w", err)
		}
		business = nil
	}

	survey := &domain.OnboardingSurvey{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Rating:    *in.Rating,
		WasClear:  in.WasClear,
		Feedback:  strings.TrimSpace(in.Feedback),
	}
	if id := strings.TrimSpace(in.EmployeeID); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			survey.EmployeeID = id
		}
	}
	if business != nil {
		survey.BusinessID = business.ID
	}

	if err := s.surveys.Insert(ctx, survey); err != nil {
		return fmt.Errorf("failed to save survey: %w", err)
	}

	if s.notify && business != nil {
		s.dispatch(context.WithoutCancel(ctx), business, survey)
	}
	return nil
}

func (s *SurveyService) dispatch(ctx context.Context, business *domain.Business, survey *domain.OnboardingSurvey) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.enqueueStaff(ctx, business, survey); err != nil {
			s.logger.Error("failed to queue staff survey email",
				slog.String("business", business.Slug),
				slog.String("error", err.Error()),
			)
		}
	}()

	if survey.EmployeeID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.enqueueConfirmation(ctx, business, survey); err != nil {
				s.logger.Error("failed to queue employee confirmation",
					slog.String("employee_id", survey.EmployeeID),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	wg.Wait()
}

func (s *SurveyService) enqueueStaff(ctx context.Context, business *domain.Business, survey *domain.OnboardingSurvey) error {
	if s.staffEmail == "" {
		return nil
	}
	subject, html, err := StaffSurveyEmail(business, survey)
	if err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, &domain.Notification{
		ID:        uuid.NewString(),
		Kind:      domain.NotifySurveyStaff,
		To:        []string{s.staffEmail},
		Subject:   subject,
		HTML:      html,
		CreatedAt: s.now(),
	})
}

func (s *SurveyService) enqueueConfirmation(ctx context.Context, business *domain.Business, survey *domain.OnboardingSurvey) error {
	var (
		employee     *domain.Employee
		completed    []*domain.CompletedDocument
		requirements []*domain.DocumentType
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		employee, err = s.employees.GetByID(gctx, survey.EmployeeID)
		return err
	})
	g.Go(func() error {
		var err error
		completed, err = s.documents.ListCompleted(gctx, survey.EmployeeID, business.ID)
		return err
	})
	g.Go(func() error {
		var err error
		requirements, err = s.registry.Requirements(gctx, business.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	if employee.Email == "" || len(completed) == 0 {
		return nil
	}

	data := ConfirmationData{
		FirstName: employee.FirstName,
		Business:  business.Name,
		Steps:     completedSteps(completed, requirements),
	}
	if key := latestPolicyPDF(completed); key != "" && s.links != nil {
		link, err := s.links.Link(key, ConfirmationLinkTTL)
		if err != nil {
			s.logger.Warn("confirmation sent without policy link", slog.String("error", err.Error()))
		} else {
			data.PolicyURL = link
		}
	}

	subject, html, err := ConfirmationEmail(data)
	if err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, &domain.Notification{
		ID:         uuid.NewString(),
		Kind:       domain.NotifyEmployeeConfirmation,
		To:         []string{employee.Email},
		Subject:    subject,
		HTML:       html,
		EmployeeID: employee.ID,
		CreatedAt:  s.now(),
	})
}

// completedSteps lists each completed document type once, in the business's display order
func completedSteps(completed []*domain.CompletedDocument, requirements []*domain.DocumentType) []CompletedStep {
	order := make(map[string]int, len(requirements))
	for i, dt := range requirements {
		order[dt.ID] = i
	}

	seen := map[string]bool{}
	unique := make([]*domain.CompletedDocument, 0, len(completed))
	for _, c := range completed {
		if seen[c.Document.DocumentTypeID] {
			continue
		}
		seen[c.Document.DocumentTypeID] = true
		unique = append(unique, c)
	}

	rank := func(c *domain.CompletedDocument) int {
		if i, ok := order[c.Document.DocumentTypeID]; ok {
			return i
		}
		return len(order)
	}
	sort.SliceStable(unique, func(i, j int) bool { return rank(unique[i]) < rank(unique[j]) })

	steps := make([]CompletedStep, 0, len(unique))
	for _, c := range unique {
		steps = append(steps, CompletedStep{Icon: StepIcon(c.StepType), Name: c.DocumentName})
	}
	return steps
}

func latestPolicyPDF(completed []*domain.CompletedDocument) string {
	var key string
	var at time.Time
	for _, c := range completed {
		if c.StepType != domain.StepSignature || c.Document.PDFPath == "" {
			continue
		}
		signed := c.Document.UpdatedAt
		if c.Document.SignedAt != nil {
			signed = *c.Document.SignedAt
		}
		if key == "" || signed.After(at) {
			key, at = c.Document.PDFPath, signed
		}
	}
	return key
}
