package domain

import (
	"context"
	"time"
)

// TaskStatus is a kanban column
type TaskStatus string

const (
	TaskBacklog    TaskStatus = "backlog"
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
)

// TaskStatuses lists the board columns left to right
var TaskStatuses = []TaskStatus{TaskBacklog, TaskTodo, TaskInProgress, TaskReview, TaskDone}

func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// BlockerType classifies what a task is waiting on
type BlockerType string

const (
	BlockerCredential      BlockerType = "credential"
	BlockerAuth            BlockerType = "auth"
	BlockerAPIKey          BlockerType = "api_key"
	BlockerWaitingJordan   BlockerType = "waiting_jordan"
	BlockerWaitingExternal BlockerType = "waiting_external"
	BlockerOther           BlockerType = "other"
)

func (b BlockerType) Valid() bool {
	switch b {
	case BlockerCredential, BlockerAuth, BlockerAPIKey, BlockerWaitingJordan, BlockerWaitingExternal, BlockerOther:
		return true
	}
	return false
}

// Blocker is stored inside the task row's blockers JSON column
type Blocker struct {
	ID          string      `json:"id"`
	Type        BlockerType `json:"type"`
	Description string      `json:"description"`
	Resolved    bool        `json:"resolved"`
	CreatedAt   time.Time   `json:"created_at"`
	CreatedBy   string      `json:"created_by,omitempty"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
	ResolvedBy  string      `json:"resolved_by,omitempty"`
}

// Task is a kanban card
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Position    int        `json:"position"`
	Assignee    string     `json:"assignee,omitempty"`
	Priority    string     `json:"priority"`
	Blockers    []Blocker  `json:"blockers"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// OpenBlockers counts unresolved blockers
func (t *Task) OpenBlockers() int {
	n := 0
	for _, b := range t.Blockers {
		if !b.Resolved {
			n++
		}
	}
	return n
}

// TaskRepository defines data access for tasks
type TaskRepository interface {
	List(ctx context.Context) ([]*Task, error)
	GetByID(ctx context.Context, id string) (*Task, error)
	Create(ctx context.Context, t *Task) error
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
	// SetPositions rewrites status and position for every task in the map
	SetPositions(ctx context.Context, moves map[string]TaskPlacement) error
}

// TaskPlacement is a task's column and index within it
type TaskPlacement struct {
	Status   TaskStatus
	Position int
}

// Task priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ValidPriority reports whether p is a known task priority
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
