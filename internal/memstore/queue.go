package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kestrelhq/portal/internal/domain"
)

var errMoveFailed = errors.New("reorder failed")

type scheduled struct {
	n  *domain.Notification
	at time.Time
}

// NotificationQueue is an in-memory domain.NotificationQueue with the same
// ready / delayed / dead-letter split as the Redis queue
type NotificationQueue struct {
	mu      sync.Mutex
	ready   []*domain.Notification
	delayed []scheduled
	dead    []*domain.Notification
	signal  chan struct{}
	now     func() time.Time
}

var _ domain.NotificationQueue = (*NotificationQueue)(nil)

func NewNotificationQueue() *NotificationQueue {
	return &NotificationQueue{signal: make(chan struct{}, 1), now: time.Now}
}

// SetClock replaces the clock used to decide when retries are due
func (q *NotificationQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

func (q *NotificationQueue) Enqueue(ctx context.Context, n *domain.Notification) error {
	q.mu.Lock()
	cp := *n
	q.ready = append(q.ready, &cp)
	q.mu.Unlock()
	q.notify()
	return nil
}

func (q *NotificationQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *NotificationQueue) pop() *domain.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	kept := q.delayed[:0]
	for _, s := range q.delayed {
		if !s.at.After(now) {
			q.ready = append(q.ready, s.n)
			continue
		}
		kept = append(kept, s)
	}
	q.delayed = kept

	if len(q.ready) == 0 {
		return nil
	}
	n := q.ready[0]
	q.ready = q.ready[1:]
	return n
}

func (q *NotificationQueue) Dequeue(ctx context.Context, wait time.Duration) (*domain.Notification, error) {
	if n := q.pop(); n != nil {
		return n, nil
	}
	if wait <= 0 {
		return nil, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	case <-q.signal:
	}
	return q.pop(), nil
}

func (q *NotificationQueue) Retry(ctx context.Context, n *domain.Notification, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *n
	q.delayed = append(q.delayed, scheduled{n: &cp, at: at})
	return nil
}

func (q *NotificationQueue) DeadLetter(ctx context.Context, n *domain.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *n
	q.dead = append(q.dead, &cp)
	return nil
}

// Pending returns ready and delayed notifications, ready first
func (q *NotificationQueue) Pending() []*domain.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := append([]*domain.Notification{}, q.ready...)
	for _, s := range q.delayed {
		out = append(out, s.n)
	}
	return out
}

// Dead returns the dead-lettered notifications
func (q *NotificationQueue) Dead() []*domain.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*domain.Notification{}, q.dead...)
}
