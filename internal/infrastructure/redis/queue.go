package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrelhq/portal/internal/domain"
)

const (
	queueKey = "notify:queue"
	retryKey = "notify:retry"
	deadKey  = "notify:dead"
)

// NotificationQueue implements domain.NotificationQueue on a Redis list,
// a delayed-retry sorted set, and a dead-letter list.
type NotificationQueue struct {
	client *Client
	now    func() time.Time
}

// NewNotificationQueue creates a queue backed by client
func NewNotificationQueue(client *Client) *NotificationQueue {
	return &NotificationQueue{client: client, now: time.Now}
}

func (q *NotificationQueue) Enqueue(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return q.client.Push(ctx, queueKey, data)
}

func (q *NotificationQueue) Dequeue(ctx context.Context, wait time.Duration) (*domain.Notification, error) {
	if _, err := q.client.PromoteDue(ctx, retryKey, queueKey, q.now()); err != nil {
		return nil, fmt.Errorf("failed to promote retries: %w", err)
	}

	data, err := q.client.BlockingPop(ctx, queueKey, wait)
	if err != nil {
		return nil, fmt.Errorf("failed to pop notification: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var n domain.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	return &n, nil
}

func (q *NotificationQueue) Retry(ctx context.Context, n *domain.Notification, at time.Time) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return q.client.Schedule(ctx, retryKey, data, at)
}

func (q *NotificationQueue) DeadLetter(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return q.client.Push(ctx, deadKey, data)
}

// DeadLetterCount reports how many notifications gave up
func (q *NotificationQueue) DeadLetterCount(ctx context.Context) (int64, error) {
	return q.client.Len(ctx, deadKey)
}
