package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"real-estate-cms/internal/cleanup"
	"real-estate-cms/internal/config"
)

// Purger runs one purge pass
type Purger interface {
	PhysicallyDelete(ctx context.Context, cfg cleanup.CleanupConfig) (*cleanup.CleanupResult, error)
}

// Pruner forgets idle rate limit clients
type Pruner interface {
	Prune() int
}

// Scheduler runs the recurring maintenance jobs
type Scheduler struct {
	cron      *cron.Cron
	purger    Purger
	pruner    Pruner
	config    config.CleanupConfig
	logger    *slog.Logger
	mu      sync.Mutex
	started bool
}

// NewScheduler creates a new scheduler. pruner may be nil.
func NewScheduler(purger Purger, pruner Pruner, cfg config.CleanupConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		purger: purger,
		pruner: pruner,
		config: cfg,
		logger: logger.With("component", "scheduler"),
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	if s.pruner != nil {
		if _, err := s.cron.AddFunc("@every 10m", func() {
			if n := s.pruner.Prune(); n > 0 {
				s.logger.Debug("pruned idle rate limit clients", "count", n)
			}
		}); err != nil {
			return err
		}
	}

	if s.config.Enabled {
		cronSpec := s.parseDailyRunTime(s.config.DailyRunTime)
		if _, err := s.cron.AddFunc(cronSpec, func() {
			_, err := s.RunNow(context.Background())
			switch {
			case errors.Is(err, cleanup.ErrBusy):
				s.logger.Warn("daily purge skipped, a manual run is in progress")
			case err != nil:
				s.logger.Error("daily purge failed", "error", err)
			}
		}); err != nil {
			return err
		}
		s.logger.Info("daily purge scheduled", "at", s.config.DailyRunTime, "cron", cronSpec)
	} else {
		s.logger.Info("daily purge is disabled in configuration")
	}

	s.cron.Start()
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasStarted := s.started
	s.started = false
	s.mu.Unlock()

	if wasStarted {
		<-s.cron.Stop().Done()
		s.logger.Info("stopped")
	}
}

// RunNow immediately executes one purge pass with the configured settings.
// It returns cleanup.ErrBusy while another pass, scheduled or manual, is running.
func (s *Scheduler) RunNow(ctx context.Context) (*cleanup.CleanupResult, error) {
	s.logger.Info("starting purge")
	result, err := s.purger.PhysicallyDelete(ctx, cleanup.CleanupConfig{
		RetentionDays:    s.config.RetentionDays,
		MaxDeletionCount: s.config.MaxDeletionCount,
		DryRun:           s.config.DryRun,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("purge completed", "deleted", result.DeletedCount, "skipped", result.SkippedCount, "errors", result.ErrorCount)
	return result, nil
}

// parseDailyRunTime converts HH:MM format to cron specification
// Example: "02:00" -> "0 2 * * *" (run at 2:00 AM every day)
func (s *Scheduler) parseDailyRunTime(timeStr string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	s.logger.Warn("failed to parse daily run time, using default 03:00", "value", timeStr)
	return "0 3 * * *"
}
