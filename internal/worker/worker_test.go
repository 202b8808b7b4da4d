package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/internal/infrastructure/mail"
	"github.com/kestrelhq/portal/internal/infrastructure/storage"
	"github.com/kestrelhq/portal/internal/memstore"
)

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []*domain.Notification
}

func (m *fakeMailer) Send(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

func newTestNotificationWorker(t *testing.T, mailer *fakeMailer, maxAttempts int) (*NotificationWorker, *memstore.NotificationQueue, *memstore.EmployeeRepository, *time.Time) {
	t.Helper()
	queue := memstore.NewNotificationQueue()
	employees := memstore.NewEmployeeRepository()
	clock := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	queue.SetClock(func() time.Time { return clock })

	w := NewNotificationWorker(queue, mailer, employees, maxAttempts, 10*time.Millisecond, nil)
	w.now = func() time.Time { return clock }
	w.send.InitialBackoff = time.Millisecond
	w.send.MaxBackoff = time.Millisecond
	return w, queue, employees, &clock
}

func TestNotificationDeliveredMarksConfirmationSent(t *testing.T) {
	ctx := context.Background()
	mailer := &fakeMailer{}
	w, _, employees, clock := newTestNotificationWorker(t, mailer, 3)

	emp, _ := employees.UpsertByEmail(ctx, &domain.Employee{FirstName: "Ana", Email: "ana@example.com"})
	w.Process(ctx, &domain.Notification{ID: "n1", Kind: domain.NotifyEmployeeConfirmation, To: []string{emp.Email}, EmployeeID: emp.ID})

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(mailer.sent))
	}
	got, _ := employees.GetByID(ctx, emp.ID)
	if got.ConfirmationEmailSentAt == nil || !got.ConfirmationEmailSentAt.Equal(*clock) {
		t.Fatalf("confirmation send not recorded: %v", got.ConfirmationEmailSentAt)
	}
}

func TestNotificationRetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	mailer := &fakeMailer{err: errors.New("421 try later")}
	w, queue, _, clock := newTestNotificationWorker(t, mailer, 2)

	w.Process(ctx, &domain.Notification{ID: "n1", Kind: domain.NotifySurveyStaff, To: []string{"team@example.com"}})

	if n, _ := queue.Dequeue(ctx, 0); n != nil {
		t.Fatalf("retry must be delayed, got %+v", n)
	}
	pending := queue.Pending()
	if len(pending) != 1 || pending[0].Attempts != 1 || pending[0].LastError == "" {
		t.Fatalf("expected one delayed retry, got %+v", pending)
	}

	*clock = clock.Add(time.Minute)
	n, _ := queue.Dequeue(ctx, 0)
	if n == nil {
		t.Fatalf("retry should be due after the backoff")
	}
	w.Process(ctx, n)

	dead := queue.Dead()
	if len(dead) != 1 || dead[0].Attempts != 2 {
		t.Fatalf("expected dead letter after max attempts, got %+v", dead)
	}
	if len(queue.Pending()) != 0 {
		t.Fatalf("dead-lettered notification must not stay queued")
	}
}

func TestNotificationWithoutRecipientsIsDeadLettered(t *testing.T) {
	w, queue, _, _ := newTestNotificationWorker(t, &fakeMailer{}, 5)
	w.mailer = recipientCheckingMailer{}

	w.Process(context.Background(), &domain.Notification{ID: "n1", Kind: domain.NotifySurveyStaff})
	if len(queue.Dead()) != 1 {
		t.Fatalf("missing recipients should go straight to dead letter")
	}
}

type recipientCheckingMailer struct{}

func (recipientCheckingMailer) Send(ctx context.Context, n *domain.Notification) error {
	if len(n.To) == 0 {
		return mail.ErrNoRecipients
	}
	return nil
}

func TestNotificationWorkerStopsOnCancel(t *testing.T) {
	mailer := &fakeMailer{}
	w, queue, _, _ := newTestNotificationWorker(t, mailer, 3)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	_ = queue.Enqueue(ctx, &domain.Notification{ID: "n1", Kind: domain.NotifySurveyStaff, To: []string{"a@b.co"}})
	deadline := time.Now().Add(2 * time.Second)
	for {
		mailer.mu.Lock()
		n := len(mailer.sent)
		mailer.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker never delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
}

func TestReconcileCompletesUploadedAndDiscardsPending(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seeded := store.Seed()
	objects := storage.NewMemoryStorage("onboarding")

	uploaded := &domain.EmployeeDocument{EmployeeID: "e1", BusinessID: seeded.Business.ID, DocumentTypeID: seeded.Policy.ID, Status: domain.DocumentPending}
	_ = store.Documents.Insert(ctx, uploaded)
	_ = store.Documents.MarkArtifactsUploaded(ctx, uploaded.ID, domain.ArtifactPaths{
		SignaturePath: domain.SignatureKey("e1", uploaded.ID),
		PDFPath:       domain.PolicyPDFKey("e1", uploaded.ID),
	})

	stuck := &domain.EmployeeDocument{EmployeeID: "e1", BusinessID: seeded.Business.ID, DocumentTypeID: seeded.Policy.ID, Status: domain.DocumentPending}
	_ = store.Documents.Insert(ctx, stuck)
	orphan := domain.SignatureKey("e1", stuck.ID)
	_ = objects.Put(ctx, orphan, "image/png", []byte("png"))
	permit := domain.UploadKey("e1", stuck.ID, "heic")
	_ = objects.Put(ctx, permit, "image/heic", []byte("heic"))

	w := NewReconcileWorker(store.Documents, objects, nil, time.Minute, time.Hour)

	report, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Completed != 0 || report.Discarded != 0 {
		t.Fatalf("fresh rows must be left alone: %+v", report)
	}

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	report, err = w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Completed != 1 || report.Discarded != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	for _, d := range store.Documents.All() {
		switch d.ID {
		case uploaded.ID:
			if d.Status != domain.DocumentComplete || d.SignedAt == nil {
				t.Fatalf("uploaded row not completed: %+v", d)
			}
		case stuck.ID:
			if d.Status != domain.DocumentDiscarded {
				t.Fatalf("pending row not discarded: %+v", d)
			}
		}
	}
	if len(objects.Keys()) != 0 {
		t.Fatalf("orphans should be deleted, have %v", objects.Keys())
	}

	report, _ = w.RunOnce(ctx)
	if report.Completed+report.Discarded+report.Failed != 0 {
		t.Fatalf("second pass should find nothing: %+v", report)
	}
}

type countingStorage struct {
	*storage.MemoryStorage
	deletes []string
}

func (c *countingStorage) Delete(ctx context.Context, key string) error {
	c.deletes = append(c.deletes, key)
	return c.MemoryStorage.Delete(ctx, key)
}

func TestReconcileDeletesOnlyExistingOrphans(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seeded := store.Seed()
	objects := &countingStorage{MemoryStorage: storage.NewMemoryStorage("onboarding")}

	stuck := &domain.EmployeeDocument{EmployeeID: "e2", BusinessID: seeded.Business.ID, DocumentTypeID: seeded.Policy.ID, Status: domain.DocumentPending}
	_ = store.Documents.Insert(ctx, stuck)
	orphan := domain.SignatureKey("e2", stuck.ID)
	_ = objects.Put(ctx, orphan, "image/png", []byte("png"))

	w := NewReconcileWorker(store.Documents, objects, nil, time.Minute, time.Hour)
	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	report, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Discarded != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(objects.deletes) != 1 || objects.deletes[0] != orphan {
		t.Fatalf("expected only %s deleted, got %v", orphan, objects.deletes)
	}
}
