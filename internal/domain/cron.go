package domain

import (
	"context"
	"time"
)

// CronJob is externally-synced metadata about a scheduled bot job
type CronJob struct {
	ID         string     `json:"id" yaml:"id"`
	Bot        string     `json:"bot" yaml:"bot"`
	Name       string     `json:"name" yaml:"name"`
	Schedule   string     `json:"schedule" yaml:"schedule"`
	Command    string     `json:"command,omitempty" yaml:"command"`
	Enabled    bool       `json:"enabled" yaml:"enabled"`
	LastRunAt  *time.Time `json:"lastRunAt,omitempty" yaml:"last_run_at"`
	LastStatus string     `json:"lastStatus,omitempty" yaml:"last_status"`
	NextRunAt  *time.Time `json:"nextRunAt,omitempty" yaml:"next_run_at"`
	SyncedAt   time.Time  `json:"syncedAt" yaml:"-"`
}

// CronGroup is the jobs owned by one bot
type CronGroup struct {
	Bot  string     `json:"bot"`
	Jobs []*CronJob `json:"jobs"`
}

// CronRepository defines data access for cron job metadata
type CronRepository interface {
	List(ctx context.Context) ([]*CronJob, error)
	Upsert(ctx context.Context, jobs []*CronJob) error
}
