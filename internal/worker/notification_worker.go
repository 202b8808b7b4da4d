package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kestrelhq/portal/internal/domain"
	"github.com/kestrelhq/portal/internal/infrastructure/mail"
	"github.com/kestrelhq/portal/internal/observability/metrics"
	"github.com/kestrelhq/portal/internal/reliability/circuitbreaker"
	"github.com/kestrelhq/portal/internal/reliability/retry"
)

// NotificationWorker drains the outbound email queue
type NotificationWorker struct {
	queue       domain.NotificationQueue
	mailer      domain.Mailer
	employees   domain.EmployeeRepository
	breaker     *circuitbreaker.CircuitBreaker
	send        *retry.Config
	backoff     *retry.Config
	maxAttempts int
	pollWait    time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func NewNotificationWorker(
	queue domain.NotificationQueue,
	mailer domain.Mailer,
	employees domain.EmployeeRepository,
	maxAttempts int,
	pollWait time.Duration,
	logger *slog.Logger,
) *NotificationWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	breaker := circuitbreaker.NewCircuitBreaker(5, 2, time.Minute)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("mail circuit changed", slog.String("from", from.String()), slog.String("to", to.String()))
	})

	return &NotificationWorker{
		queue:     queue,
		mailer:    mailer,
		employees: employees,
		breaker:   breaker,
		send: &retry.Config{
			MaxAttempts:       2,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        2 * time.Second,
			BackoffMultiplier: 2.0,
		},
		backoff: &retry.Config{
			InitialBackoff:    30 * time.Second,
			MaxBackoff:        time.Hour,
			BackoffMultiplier: 4.0,
		},
		maxAttempts: maxAttempts,
		pollWait:    pollWait,
		now:         time.Now,
		logger:      logger,
	}
}

// Start delivers queued notifications until ctx is cancelled
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info("notification worker started", slog.Int("max_attempts", w.maxAttempts))

	for {
		n, err := w.queue.Dequeue(ctx, w.pollWait)
		if ctx.Err() != nil {
			w.logger.Info("notification worker stopped")
			return
		}
		if err != nil {
			w.logger.Error("failed to dequeue notification", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollWait):
			}
			continue
		}
		if n == nil {
			continue
		}
		w.Process(ctx, n)
	}
}

// Process delivers one notification, rescheduling or dead-lettering it on failure
func (w *NotificationWorker) Process(ctx context.Context, n *domain.Notification) {
	logger := w.logger.With(
		slog.String("notification_id", n.ID),
		slog.String("kind", string(n.Kind)),
	)

	_, err := retry.Do(ctx, w.send, logger, "send "+string(n.Kind), func(ctx context.Context) (struct{}, error) {
		err := w.breaker.Execute(ctx, func(ctx context.Context) error {
			return w.mailer.Send(ctx, n)
		})
		if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, mail.ErrNoRecipients) {
			return struct{}{}, retry.Permanent(err)
		}
		return struct{}{}, err
	})
	if err == nil {
		w.delivered(ctx, n, logger)
		return
	}

	n.Attempts++
	n.LastError = err.Error()

	if errors.Is(err, mail.ErrNoRecipients) || n.Attempts >= w.maxAttempts {
		if dlErr := w.queue.DeadLetter(ctx, n); dlErr != nil {
			logger.Error("failed to dead-letter notification", slog.String("error", dlErr.Error()))
		}
		logger.Error("notification dead-lettered",
			slog.Int("attempts", n.Attempts),
			slog.String("error", err.Error()),
		)
		metrics.ObserveNotification(string(n.Kind), "dead_letter")
		return
	}

	at := w.now().Add(retry.Backoff(n.Attempts-1, w.backoff))
	if rErr := w.queue.Retry(ctx, n, at); rErr != nil {
		logger.Error("failed to reschedule notification", slog.String("error", rErr.Error()))
	}
	logger.Warn("notification delivery failed, rescheduled",
		slog.Int("attempts", n.Attempts),
		slog.Time("retry_at", at),
		slog.String("error", err.Error()),
	)
	metrics.ObserveNotification(string(n.Kind), "retried")
}

func (w *NotificationWorker) delivered(ctx context.Context, n *domain.Notification, logger *slog.Logger) {
	metrics.ObserveNotification(string(n.Kind), "sent")
	logger.Info("notification sent")

	if n.Kind != domain.NotifyEmployeeConfirmation || n.EmployeeID == "" {
		return
	}
	if err := w.employees.MarkConfirmationSent(ctx, n.EmployeeID, w.now()); err != nil {
		logger.Error("failed to record confirmation send", slog.String("error", err.Error()))
	}
}
