package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelhq/portal/internal/domain"
)

func TestRequiredDocumentTypesFollowDisplayOrder(t *testing.T) {
	s := New()
	seeded := s.Seed()
	extra := s.Businesses.AddDocumentType(&domain.DocumentType{Name: "Optional", StepType: domain.StepInformational, Active: true})
	s.Businesses.Require(domain.Requirement{BusinessID: seeded.Business.ID, DocumentTypeID: extra.ID, Required: false, DisplayOrder: 0})

	types, err := s.Businesses.ListRequiredDocumentTypes(context.Background(), seeded.Business.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(types) != 2 || types[0].ID != seeded.Policy.ID || types[1].ID != seeded.Permit.ID {
		t.Fatalf("unexpected order: %+v", types)
	}
}

func TestDocumentSagaTransitions(t *testing.T) {
	ctx := context.Background()
	s := New()
	doc := &domain.EmployeeDocument{EmployeeID: "e1", BusinessID: "b1", DocumentTypeID: "d1", Status: domain.DocumentPending}
	if err := s.Documents.Insert(ctx, doc); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.Documents.MarkComplete(ctx, doc.ID, time.Now()); err == nil {
		t.Fatal("pending row completed without artifacts")
	}
	if err := s.Documents.MarkArtifactsUploaded(ctx, doc.ID, domain.ArtifactPaths{PDFPath: "e1/pdfs/x.pdf"}); err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	if err := s.Documents.MarkDiscarded(ctx, doc.ID); err == nil {
		t.Fatal("uploaded row discarded")
	}
	if err := s.Documents.MarkComplete(ctx, doc.ID, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestQueueDelaysRetries(t *testing.T) {
	ctx := context.Background()
	q := NewNotificationQueue()
	clock := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	q.SetClock(func() time.Time { return clock })

	if err := q.Retry(ctx, &domain.Notification{ID: "n1"}, clock.Add(time.Minute)); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n, _ := q.Dequeue(ctx, 0); n != nil {
		t.Fatalf("retry delivered early: %+v", n)
	}
	clock = clock.Add(time.Minute)
	if n, _ := q.Dequeue(ctx, 0); n == nil || n.ID != "n1" {
		t.Fatalf("due retry = %+v", n)
	}
}
