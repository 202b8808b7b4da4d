package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/internal/observability/metrics"
	"github.com/kestrelhq/portal/internal/reliability/retry"
)

// ReconcileWorker finishes or discards submissions whose request died mid-saga.
// Rows stuck in artifact_uploaded already have every object written and are completed;
// rows stuck in pending are discarded after their partial objects are removed.
type ReconcileWorker struct {
	documents  domain.DocumentRepository
	storage    domain.ObjectStorage
	logger     *slog.Logger
	interval   time.Duration
	staleAfter time.Duration
	retry      *retry.Config
	now        func() time.Time
}

// ReconcileReport counts what one pass did
type ReconcileReport struct {
	Completed int
	Discarded int
	Failed    int
}

func NewReconcileWorker(
	documents domain.DocumentRepository,
	storage domain.ObjectStorage,
	logger *slog.Logger,
	interval time.Duration,
	staleAfter time.Duration,
) *ReconcileWorker {
	if logger == nil {
		logger = slog.Default()
	}

	return &ReconcileWorker{
		documents:  documents,
		storage:    storage,
		logger:     logger,
		interval:   interval,
		staleAfter: staleAfter,
		retry:      retry.DefaultConfig(),
		now:        time.Now,
	}
}

// Start runs a pass every interval until ctx is cancelled
func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("reconcile worker started",
		slog.Duration("interval", w.interval),
		slog.Duration("stale_after", w.staleAfter),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("reconcile pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce reconciles every row untouched for longer than the stale window
func (w *ReconcileWorker) RunOnce(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	cutoff := w.now().Add(-w.staleAfter)

	uploaded, err := w.documents.ListStale(ctx, domain.DocumentArtifactUploaded, cutoff)
	if err != nil {
		return report, fmt.Errorf("failed to list uploaded documents: %w", err)
	}
	for _, doc := range uploaded {
		if w.complete(ctx, doc) {
			report.Completed++
		} else {
			report.Failed++
		}
	}

	pending, err := w.documents.ListStale(ctx, domain.DocumentPending, cutoff)
	if err != nil {
		return report, fmt.Errorf("failed to list pending documents: %w", err)
	}
	for _, doc := range pending {
		if w.discard(ctx, doc) {
			report.Discarded++
		} else {
			report.Failed++
		}
	}

	if len(uploaded)+len(pending) > 0 {
		w.logger.Info("reconcile pass finished",
			slog.Int("completed", report.Completed),
			slog.Int("discarded", report.Discarded),
			slog.Int("failed", report.Failed),
		)
	}
	return report, nil
}

func (w *ReconcileWorker) complete(ctx context.Context, doc *domain.EmployeeDocument) bool {
	logger := w.logger.With(slog.String("document_id", doc.ID))

	// the upload finished at the last transition, so that is when it was signed
	if err := w.documents.MarkComplete(ctx, doc.ID, doc.UpdatedAt); err != nil {
		logger.Error("failed to complete document", slog.String("error", err.Error()))
		metrics.ObserveReconcile("error")
		return false
	}

	logger.Info("completed interrupted submission")
	metrics.ObserveReconcile("completed")
	return true
}

func (w *ReconcileWorker) discard(ctx context.Context, doc *domain.EmployeeDocument) bool {
	logger := w.logger.With(slog.String("document_id", doc.ID), slog.String("employee_id", doc.EmployeeID))

	deleted := 0
	for _, key := range orphanKeys(doc) {
		exists, err := retry.Do(ctx, w.retry, logger, "check orphan object", func(ctx context.Context) (bool, error) {
			return w.storage.Exists(ctx, key)
		})
		if err != nil {
			logger.Error("failed to check orphan object", slog.String("key", key), slog.String("error", err.Error()))
			metrics.ObserveReconcile("error")
			return false
		}
		if !exists {
			continue
		}
		_, err = retry.Do(ctx, w.retry, logger, "delete orphan object", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, w.storage.Delete(ctx, key)
		})
		if err != nil {
			logger.Error("failed to delete orphan object", slog.String("key", key), slog.String("error", err.Error()))
			metrics.ObserveReconcile("error")
			return false
		}
		deleted++
	}

	if err := w.documents.MarkDiscarded(ctx, doc.ID); err != nil {
		logger.Error("failed to discard document", slog.String("error", err.Error()))
		metrics.ObserveReconcile("error")
		return false
	}

	logger.Info("discarded abandoned submission", slog.Int("objects_deleted", deleted))
	metrics.ObserveReconcile("discarded")
	return true
}

// orphanKeys lists every key a pending row may have written before it stalled
func orphanKeys(doc *domain.EmployeeDocument) []string {
	keys := []string{
		domain.SignatureKey(doc.EmployeeID, doc.ID),
		domain.PolicyPDFKey(doc.EmployeeID, doc.ID),
	}

	exts := map[string]bool{}
	for _, ext := range domain.UploadExtensions {
		exts[ext] = true
	}
	sorted := make([]string, 0, len(exts))
	for ext := range exts {
		sorted = append(sorted, ext)
	}
	sort.Strings(sorted)
	for _, ext := range sorted {
		keys = append(keys, domain.UploadKey(doc.EmployeeID, doc.ID, ext))
	}
	return keys
}
