package domain

import (
	"context"
	"time"
)

// ObjectStorage stores onboarding artifacts
type ObjectStorage interface {
	// Put writes data at key, overwriting any existing object
	Put(ctx context.Context, key, contentType string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// SignedURL returns a time-limited download URL for key
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// NotificationKind identifies which email a notification renders
type NotificationKind string

const (
	NotifySurveyStaff          NotificationKind = "survey_staff"
	NotifyEmployeeConfirmation NotificationKind = "employee_confirmation"
)

// Notification is one outbound email waiting for delivery
type Notification struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"kind"`
	To         []string         `json:"to"`
	Subject    string           `json:"subject"`
	HTML       string           `json:"html"`
	EmployeeID string           `json:"employeeId,omitempty"`
	Attempts   int              `json:"attempts"`
	LastError  string           `json:"lastError,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// NotificationQueue is the outbound email queue
type NotificationQueue interface {
	Enqueue(ctx context.Context, n *Notification) error
	// Dequeue returns the next ready notification, or nil after waiting up to wait
	Dequeue(ctx context.Context, wait time.Duration) (*Notification, error)
	Retry(ctx context.Context, n *Notification, at time.Time) error
	DeadLetter(ctx context.Context, n *Notification) error
}

// Mailer delivers one email
type Mailer interface {
	Send(ctx context.Context, n *Notification) error
}
