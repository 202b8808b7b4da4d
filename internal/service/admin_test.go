package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/internal/memstore"
	"github.com/kestrelhq/portal/internal/security/auth"
)

func TestSessionLogin(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", "portal")
	s, err := NewSessionService(map[string]string{AreaHQ: "hq-pass", AreaSide: ""}, tm, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewSessionService: %v", err)
	}

	session, err := s.Login(AreaHQ, "hq-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !s.Verify(AreaHQ, session.Token) {
		t.Fatalf("issued session should verify for hq")
	}
	if s.Verify(AreaSide, session.Token) {
		t.Fatalf("hq session must not open side")
	}

	if _, err := s.Login(AreaHQ, "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := s.Login(AreaSide, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("area without a password must refuse login, got %v", err)
	}
}

func TestRosterCountsAndArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	employees := NewEmployeeService(f.registry, f.store.Employees, f.store.Documents, nil)

	ana := f.sign(t, "ana@example.com")
	ben := f.sign(t, "ben@example.com")
	if _, err := f.submission.SubmitUpload(ctx, UploadInput{
		Slug: "wedgies", EmployeeID: ana.EmployeeID, DocumentTypeID: f.seeded.Permit.ID,
		ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'},
	}); err != nil {
		t.Fatalf("SubmitUpload: %v", err)
	}

	roster, err := employees.Roster(ctx, false)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	if roster.Summary.Total != 2 || roster.Summary.FullyOnboarded != 1 || len(roster.Employees) != 2 {
		t.Fatalf("unexpected roster summary: %+v", roster.Summary)
	}
	for _, e := range roster.Employees {
		p := e.Businesses[0]
		if p.Slug != "wedgies" || p.Required != 2 {
			t.Fatalf("unexpected progress: %+v", p)
		}
		if e.ID == ana.EmployeeID && p.Completed != 2 || e.ID == ben.EmployeeID && p.Completed != 1 {
			t.Fatalf("unexpected completion for %s: %+v", e.Email, p)
		}
	}

	archived, err := employees.Archive(ctx, ben.EmployeeID, "no show")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if archived.ArchivedAt == nil || archived.ArchiveReason != "no show" {
		t.Fatalf("archive markers not set: %+v", archived)
	}

	roster, _ = employees.Roster(ctx, false)
	if len(roster.Employees) != 1 || roster.Summary.Total != 1 || roster.Summary.Archived != 0 || roster.Summary.Active != 1 {
		t.Fatalf("archived employee should be hidden and left out of the summary: %+v", roster.Summary)
	}
	roster, _ = employees.Roster(ctx, true)
	if len(roster.Employees) != 2 || roster.Summary.Total != 2 || roster.Summary.Archived != 1 {
		t.Fatalf("includeArchived should list and count everyone: %+v", roster.Summary)
	}

	detail, err := employees.Detail(ctx, ben.EmployeeID)
	if err != nil {
		t.Fatalf("archived employee must stay fetchable: %v", err)
	}
	if len(detail.Documents) != 1 {
		t.Fatalf("expected document history, got %d", len(detail.Documents))
	}

	if _, err := employees.Restore(ctx, ben.EmployeeID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := employees.Detail(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestArchiveManyNeedsIDs(t *testing.T) {
	f := newFixture(t)
	employees := NewEmployeeService(f.registry, f.store.Employees, f.store.Documents, nil)
	var v *domain.ValidationError
	if _, err := employees.ArchiveMany(context.Background(), ArchiveInput{IDs: []string{" "}}); !errors.As(err, &v) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEmailOpensRecordedOnce(t *testing.T) {
	f := newFixture(t)
	employees := NewEmployeeService(f.registry, f.store.Employees, f.store.Documents, nil)
	ana := f.sign(t, "ana@example.com")

	events := []EmailEvent{
		{Event: "delivered", EmployeeID: ana.EmployeeID},
		{Event: "open", EmployeeID: ana.EmployeeID, Timestamp: 1700000000},
		{Event: "open", EmployeeID: "not-a-uuid"},
	}
	n, err := employees.RecordEmailEvents(context.Background(), events)
	if err != nil || n != 1 {
		t.Fatalf("RecordEmailEvents = %d, %v", n, err)
	}

	n, _ = employees.RecordEmailEvents(context.Background(), []EmailEvent{{Event: "open", EmployeeID: ana.EmployeeID, Timestamp: 1800000000}})
	if n != 0 {
		t.Fatalf("later opens must not be recorded")
	}
	emp, _ := f.store.Employees.GetByID(context.Background(), ana.EmployeeID)
	if emp.ConfirmationEmailOpenedAt == nil || emp.ConfirmationEmailOpenedAt.Unix() != 1700000000 {
		t.Fatalf("first open timestamp should stick: %v", emp.ConfirmationEmailOpenedAt)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []BoardEvent
}

func (p *recordingPublisher) Publish(ev BoardEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func strPtr(s string) *string { return &s }

func titles(tasks []*domain.Task, status domain.TaskStatus) []string {
	var out []string
	for _, t := range tasks {
		if t.Status == status {
			out = append(out, t.Title)
		}
	}
	return out
}

func TestTaskMoveReconcilesColumns(t *testing.T) {
	ctx := context.Background()
	repo := memstore.NewTaskRepository()
	pub := &recordingPublisher{}
	tasks := NewTaskService(repo, pub, nil)

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		task, err := tasks.Create(ctx, TaskInput{Title: strPtr(title)})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, task.ID)
	}
	todo := domain.TaskTodo
	if _, err := tasks.Create(ctx, TaskInput{Title: strPtr("d"), Status: &todo}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	board, err := tasks.Move(ctx, ids[0], MoveInput{Status: domain.TaskTodo, Position: 0})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got := titles(board, domain.TaskBacklog); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("backlog = %v", got)
	}
	if got := titles(board, domain.TaskTodo); len(got) != 2 || got[0] != "a" || got[1] != "d" {
		t.Fatalf("todo = %v", got)
	}
	for _, task := range board {
		col := titles(board, task.Status)
		if col[task.Position] != task.Title {
			t.Fatalf("positions not contiguous: %+v", task)
		}
	}

	board, err = tasks.Move(ctx, ids[2], MoveInput{Status: domain.TaskBacklog, Position: 99})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got := titles(board, domain.TaskBacklog); got[len(got)-1] != "c" {
		t.Fatalf("position should clamp to the end: %v", got)
	}

	last := pub.events[len(pub.events)-1]
	if last.Type != BoardReordered || len(last.Tasks) != 4 {
		t.Fatalf("expected a reorder broadcast, got %+v", last)
	}
}

func TestTaskMoveFailureKeepsBoard(t *testing.T) {
	ctx := context.Background()
	repo := memstore.NewTaskRepository()
	tasks := NewTaskService(repo, nil, nil)
	a, _ := tasks.Create(ctx, TaskInput{Title: strPtr("a")})

	repo.FailMoves = true
	if _, err := tasks.Move(ctx, a.ID, MoveInput{Status: domain.TaskDone}); err == nil {
		t.Fatalf("expected move failure")
	}
	got, _ := repo.GetByID(ctx, a.ID)
	if got.Status != domain.TaskBacklog {
		t.Fatalf("failed move must not change the task, got %s", got.Status)
	}
}

func TestTaskValidation(t *testing.T) {
	tasks := NewTaskService(memstore.NewTaskRepository(), nil, nil)
	bad := domain.TaskStatus("someday")
	for name, in := range map[string]TaskInput{
		"no title":     {},
		"blank title":  {Title: strPtr("  ")},
		"bad status":   {Title: strPtr("x"), Status: &bad},
		"bad priority": {Title: strPtr("x"), Priority: strPtr("whenever")},
	} {
		var v *domain.ValidationError
		if _, err := tasks.Create(context.Background(), in); !errors.As(err, &v) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestBlockerResolutionStampsAudit(t *testing.T) {
	ctx := context.Background()
	tasks := NewTaskService(memstore.NewTaskRepository(), nil, nil)
	clock := time.Date(2025, 4, 2, 15, 0, 0, 0, time.UTC)
	tasks.now = func() time.Time { return clock }

	task, _ := tasks.Create(ctx, TaskInput{Title: strPtr("ship")})
	task, err := tasks.AddBlocker(ctx, task.ID, BlockerInput{Type: domain.BlockerAPIKey, Description: "need key", CreatedBy: "ops"})
	if err != nil {
		t.Fatalf("AddBlocker: %v", err)
	}
	if task.OpenBlockers() != 1 {
		t.Fatalf("expected one open blocker")
	}
	blockerID := task.Blockers[0].ID

	clock = clock.Add(time.Hour)
	task, err = tasks.ResolveBlocker(ctx, task.ID, blockerID, "jordan")
	if err != nil {
		t.Fatalf("ResolveBlocker: %v", err)
	}
	b := task.Blockers[0]
	if !b.Resolved || b.ResolvedBy != "jordan" || b.ResolvedAt == nil || !b.ResolvedAt.Equal(clock) || b.CreatedBy != "ops" {
		t.Fatalf("resolution audit fields not set: %+v", b)
	}

	clock = clock.Add(time.Hour)
	task, _ = tasks.ResolveBlocker(ctx, task.ID, blockerID, "someone-else")
	if task.Blockers[0].ResolvedBy != "jordan" {
		t.Fatalf("second resolve must keep the first stamp")
	}

	if _, err := tasks.ResolveBlocker(ctx, task.ID, "missing", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	var v *domain.ValidationError
	if _, err := tasks.AddBlocker(ctx, task.ID, BlockerInput{Type: "vibes", Description: "x"}); !errors.As(err, &v) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
}

const cronYAML = `jobs:
  - bot: scout
    name: morning-digest
    schedule: "0 7 * * *"
    command: digest --send
    enabled: true
  - bot: archivist
    name: nightly-backup
    schedule: "0 2 * * *"
    enabled: false
  - id: scout-health
    bot: scout
    name: health
    schedule: "*/5 * * * *"
    enabled: true
`

func TestCronSyncAndGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crons.yaml")
	if err := os.WriteFile(path, []byte(cronYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	crons := NewCronService(memstore.NewCronRepository(), false, path, nil)

	n, err := crons.Sync(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("Sync = %d, %v", n, err)
	}

	groups, err := crons.Groups(context.Background())
	if err != nil {
		t.Fatalf("Groups: %v", err)
	}
	if len(groups) != 2 || groups[0].Bot != "archivist" || groups[1].Bot != "scout" || len(groups[1].Jobs) != 2 {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if groups[1].Jobs[1].ID != "scout/morning-digest" || groups[1].Jobs[1].SyncedAt.IsZero() {
		t.Fatalf("unexpected job: %+v", groups[1].Jobs[1])
	}
}

func TestCronSyncRefusedWhenHosted(t *testing.T) {
	crons := NewCronService(memstore.NewCronRepository(), true, "crons.yaml", nil)
	if _, err := crons.Sync(context.Background()); !errors.Is(err, domain.ErrSyncUnavailable) {
		t.Fatalf("expected ErrSyncUnavailable, got %v", err)
	}
}

func TestParseCronFileRequiresBotAndName(t *testing.T) {
	var v *domain.ValidationError
	if _, err := ParseCronFile([]byte("jobs:\n  - name: orphan\n")); !errors.As(err, &v) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
