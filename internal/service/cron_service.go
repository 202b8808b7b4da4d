package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kestrelhq/portal/internal/domain"
)

// CronService exposes bot cron metadata and syncs it from the local job file
type CronService struct {
	repo       domain.CronRepository
	hosted     bool
	sourcePath string
	now        domain.Clock
	logger     *slog.Logger
}

func NewCronService(repo domain.CronRepository, hosted bool, sourcePath string, logger *slog.Logger) *CronService {
	if logger == nil {
		logger = slog.Default()
	}

	return &CronService{
		repo:       repo,
		hosted:     hosted,
		sourcePath: sourcePath,
		now:        time.Now,
		logger:     logger,
	}
}

type cronFile struct {
	Jobs []*domain.CronJob `yaml:"jobs"`
}

// Groups returns jobs grouped by bot, bots and jobs in name order
func (s *CronService) Groups(ctx context.Context) ([]domain.CronGroup, error) {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cron jobs: %w", err)
	}

	groups := []domain.CronGroup{}
	for _, j := range jobs {
		if n := len(groups); n > 0 && groups[n-1].Bot == j.Bot {
			groups[n-1].Jobs = append(groups[n-1].Jobs, j)
			continue
		}
		groups = append(groups, domain.CronGroup{Bot: j.Bot, Jobs: []*domain.CronJob{j}})
	}
	return groups, nil
}

// ParseCronFile decodes a job file. Jobs without an id get "{bot}/{name}".
func ParseCronFile(data []byte) ([]*domain.CronJob, error) {
	var f cronFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, domain.NewValidationError("cron file is not valid YAML: " + err.Error())
	}

	for i, j := range f.Jobs {
		j.Bot = strings.TrimSpace(j.Bot)
		j.Name = strings.TrimSpace(j.Name)
		if j.Bot == "" || j.Name == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("cron job %d needs a bot and a name", i+1))
		}
		if j.ID == "" {
			j.ID = j.Bot + "/" + j.Name
		}
	}
	return f.Jobs, nil
}

// Sync reloads the job file into the store. Unavailable in the hosted deployment,
// which has no access to the bots' job file.
func (s *CronService) Sync(ctx context.Context) (int, error) {
	if s.hosted {
		return 0, domain.ErrSyncUnavailable
	}

	data, err := os.ReadFile(s.sourcePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read cron file: %w", err)
	}

	jobs, err := ParseCronFile(data)
	if err != nil {
		return 0, err
	}

	syncedAt := s.now()
	for _, j := range jobs {
		j.SyncedAt = syncedAt
	}
	if err := s.repo.Upsert(ctx, jobs); err != nil {
		return 0, fmt.Errorf("failed to store cron jobs: %w", err)
	}

	s.logger.Info("cron jobs synced", slog.Int("count", len(jobs)), slog.String("source", s.sourcePath))
	return len(jobs), nil
}
