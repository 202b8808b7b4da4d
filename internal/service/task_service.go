package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelhq/portal/internal/domain"
)

// Board event types
const (
	BoardTaskCreated = "task_created"
	BoardTaskUpdated = "task_updated"
	BoardTaskDeleted = "task_deleted"
	BoardReordered   = "board_reordered"
)

// BoardEvent is broadcast to live board subscribers after every mutation
type BoardEvent struct {
	Type   string         `json:"type"`
	Task   *domain.Task   `json:"task,omitempty"`
	TaskID string         `json:"taskId,omitempty"`
	Tasks  []*domain.Task `json:"tasks,omitempty"`
}

// BoardPublisher fans board events out to subscribers
type BoardPublisher interface {
	Publish(ev BoardEvent)
}

// TaskService runs the hq kanban board
type TaskService struct {
	repo      domain.TaskRepository
	publisher BoardPublisher
	now       domain.Clock
	logger    *slog.Logger
}

func NewTaskService(repo domain.TaskRepository, publisher BoardPublisher, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskService{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
		logger:    logger,
	}
}

// TaskInput is a create or partial update; nil fields are left unchanged
type TaskInput struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Status      *domain.TaskStatus `json:"status"`
	Assignee    *string            `json:"assignee"`
	Priority    *string            `json:"priority"`
}

// MoveInput places a task in a column at an index
type MoveInput struct {
	Status   domain.TaskStatus `json:"status"`
	Position int               `json:"position"`
}

// BlockerInput describes a new blocker
type BlockerInput struct {
	Type        domain.BlockerType `json:"type"`
	Description string             `json:"description"`
	CreatedBy   string             `json:"createdBy"`
}

func (s *TaskService) publish(ev BoardEvent) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
}

func (in TaskInput) validate(creating bool) error {
	v := &domain.ValidationError{}
	if (in.Title != nil && strings.TrimSpace(*in.Title) == "") || (creating && in.Title == nil) {
		v.FieldError("title", "Title is required")
	}
	if in.Status != nil && !in.Status.Valid() {
		v.FieldError("status", "Unknown status")
	}
	if in.Priority != nil && !domain.ValidPriority(*in.Priority) {
		v.FieldError("priority", "Priority must be low, medium, high, or urgent")
	}
	if !v.Empty() {
		return v
	}
	return nil
}

// Board returns every task grouped by column in board order
func (s *TaskService) Board(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	sortBoard(tasks)
	return tasks, nil
}

func sortBoard(tasks []*domain.Task) {
	column := make(map[domain.TaskStatus]int, len(domain.TaskStatuses))
	for i, st := range domain.TaskStatuses {
		column[st] = i
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if column[a.Status] != column[b.Status] {
			return column[a.Status] < column[b.Status]
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func columnLen(tasks []*domain.Task, status domain.TaskStatus) int {
	n := 0
	for _, t := range tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

// Create adds a task at the bottom of its column
func (s *TaskService) Create(ctx context.Context, in TaskInput) (*domain.Task, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	t := &domain.Task{
		Title:    strings.TrimSpace(*in.Title),
		Status:   domain.TaskBacklog,
		Priority: domain.PriorityMedium,
		Blockers: []domain.Blocker{},
	}
	applyTaskInput(t, in)

	tasks, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	t.Position = columnLen(tasks, t.Status)

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("task created", slog.String("task_id", t.ID), slog.String("status", string(t.Status)))
	s.publish(BoardEvent{Type: BoardTaskCreated, Task: t})
	return t, nil
}

func applyTaskInput(t *domain.Task, in TaskInput) {
	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Assignee != nil {
		t.Assignee = strings.TrimSpace(*in.Assignee)
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
}

// Update applies a partial update. A status change moves the task to the bottom of the new column.
func (s *TaskService) Update(ctx context.Context, id string, in TaskInput) (*domain.Task, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prev := t.Status
	applyTaskInput(t, in)
	if t.Status != prev {
		tasks, err := s.repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}
		t.Position = columnLen(tasks, t.Status)
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	s.publish(BoardEvent{Type: BoardTaskUpdated, Task: t})
	return t, nil
}

// Delete removes a task
func (s *TaskService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("task deleted", slog.String("task_id", id))
	s.publish(BoardEvent{Type: BoardTaskDeleted, TaskID: id})
	return nil
}

// Move places a task at position within status, renumbers the affected columns
// and returns the reconciled board
func (s *TaskService) Move(ctx context.Context, id string, in MoveInput) ([]*domain.Task, error) {
	if !in.Status.Valid() {
		return nil, domain.NewValidationError("Unknown status")
	}

	tasks, err := s.Board(ctx)
	if err != nil {
		return nil, err
	}

	var moving *domain.Task
	columns := map[domain.TaskStatus][]*domain.Task{}
	for _, t := range tasks {
		if t.ID == id {
			moving = t
			continue
		}
		columns[t.Status] = append(columns[t.Status], t)
	}
	if moving == nil {
		return nil, &domain.NotFoundError{What: "task"}
	}

	from := moving.Status
	target := columns[in.Status]
	pos := in.Position
	if pos < 0 {
		pos = 0
	}
	if pos > len(target) {
		pos = len(target)
	}
	target = append(target[:pos], append([]*domain.Task{moving}, target[pos:]...)...)
	columns[in.Status] = target

	moves := map[string]domain.TaskPlacement{}
	for _, status := range []domain.TaskStatus{from, in.Status} {
		for i, t := range columns[status] {
			if t.Status != status || t.Position != i {
				moves[t.ID] = domain.TaskPlacement{Status: status, Position: i}
			}
		}
	}

	if len(moves) > 0 {
		if err := s.repo.SetPositions(ctx, moves); err != nil {
			return nil, fmt.Errorf("failed to move task: %w", err)
		}
	}

	board, err := s.Board(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(BoardEvent{Type: BoardReordered, Tasks: board})
	return board, nil
}

// AddBlocker attaches an unresolved blocker to a task
func (s *TaskService) AddBlocker(ctx context.Context, id string, in BlockerInput) (*domain.Task, error) {
	if !in.Type.Valid() {
		return nil, domain.NewValidationError("Unknown blocker type")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, domain.NewValidationError("Blocker description is required")
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	t.Blockers = append(t.Blockers, domain.Blocker{
		ID:          uuid.NewString(),
		Type:        in.Type,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.now(),
		CreatedBy:   strings.TrimSpace(in.CreatedBy),
	})
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	s.publish(BoardEvent{Type: BoardTaskUpdated, Task: t})
	return t, nil
}

// ResolveBlocker marks a blocker resolved, stamping who and when. Resolving twice keeps
// the first stamp.
func (s *TaskService) ResolveBlocker(ctx context.Context, id, blockerID, resolvedBy string) (*domain.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range t.Blockers {
		if t.Blockers[i].ID == blockerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &domain.NotFoundError{What: "blocker"}
	}
	if t.Blockers[idx].Resolved {
		return t, nil
	}

	at := s.now()
	t.Blockers[idx].Resolved = true
	t.Blockers[idx].ResolvedAt = &at
	t.Blockers[idx].ResolvedBy = strings.TrimSpace(resolvedBy)
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	s.publish(BoardEvent{Type: BoardTaskUpdated, Task: t})
	return t, nil
}
