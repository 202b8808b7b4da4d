package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelhq/portal/internal/domain"
)

// TaskRepository is an in-memory domain.TaskRepository
type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
	now   func() time.Time
	// FailMoves makes SetPositions fail, for exercising reorder rollback
	FailMoves bool
}

var _ domain.TaskRepository = (*TaskRepository)(nil)

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{tasks: make(map[string]*domain.Task), now: time.Now}
}

func cloneTask(t *domain.Task) *domain.Task {
	cp := *t
	cp.Blockers = append([]domain.Blocker{}, t.Blockers...)
	return &cp
}

func (r *TaskRepository) List(ctx context.Context) ([]*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, &domain.NotFoundError{What: "task"}
	}
	return cloneTask(t), nil
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt = r.now()
	t.UpdatedAt = t.CreatedAt
	r.tasks[t.ID] = cloneTask(t)
	return nil
}

func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; !ok {
		return &domain.NotFoundError{What: "task"}
	}
	t.UpdatedAt = r.now()
	r.tasks[t.ID] = cloneTask(t)
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return &domain.NotFoundError{What: "task"}
	}
	delete(r.tasks, id)
	return nil
}

func (r *TaskRepository) SetPositions(ctx context.Context, moves map[string]domain.TaskPlacement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailMoves {
		return errMoveFailed
	}
	now := r.now()
	for id, p := range moves {
		if t, ok := r.tasks[id]; ok {
			t.Status = p.Status
			t.Position = p.Position
			t.UpdatedAt = now
		}
	}
	return nil
}

// CronRepository is an in-memory domain.CronRepository
type CronRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.CronJob
}

var _ domain.CronRepository = (*CronRepository)(nil)

func NewCronRepository() *CronRepository {
	return &CronRepository{jobs: make(map[string]*domain.CronJob)}
}

func (r *CronRepository) List(ctx context.Context) ([]*domain.CronJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.CronJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bot != out[j].Bot {
			return out[i].Bot < out[j].Bot
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *CronRepository) Upsert(ctx context.Context, jobs []*domain.CronJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range jobs {
		cp := *j
		r.jobs[j.ID] = &cp
	}
	return nil
}
