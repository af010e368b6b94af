package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"real-estate-cms/internal/models"
)

// Repository is the persistence the purge reads from and logs into
type Repository interface {
	FindDeletedBefore(ctx context.Context, cutoff time.Time) ([]models.Listing, error)
	CreateDeleteLog(ctx context.Context, entry *models.DeleteLog) error
	RecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error)
	DeleteStats(ctx context.Context) (*models.DeleteStats, error)
}

// Purger permanently removes one listing if it is still soft-deleted since
// before cutoff. false means the listing no longer qualified.
type Purger interface {
	Purge(ctx context.Context, id int64, cutoff time.Time) (bool, error)
}

// IndexRemover drops listings from the search index
type IndexRemover interface {
	RemoveListings(ids []int64) error
}

// Service handles physical deletion of old soft-deleted listings
type Service struct {
	repo   Repository
	purger Purger
	index  IndexRemover
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	purging bool
}

// ErrBusy is returned when a purge pass is already running
var ErrBusy = errors.New("purge already running")

// NewService creates a new cleanup service. index may be nil.
func NewService(repo Repository, purger Purger, index IndexRemover, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		purger: purger,
		index:  index,
		now:    time.Now,
		logger: logger.With("component", "cleanup"),
	}
}

// SetClock replaces the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CleanupConfig holds configuration for cleanup operations
type CleanupConfig struct {
	RetentionDays    int  // days a soft-deleted listing is kept before purge
	MaxDeletionCount int  // safety limit per run
	DryRun           bool // only report what would be deleted
}

// DefaultCleanupConfig returns default configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		RetentionDays:    90,
		MaxDeletionCount: 10000,
		DryRun:           false,
	}
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	TargetCount     int       `json:"target_count"`
	DeletedCount    int       `json:"deleted_count"`
	SkippedCount    int       `json:"skipped_count"`
	ErrorCount      int       `json:"error_count"`
	DryRun          bool      `json:"dry_run"`
	ExecutedAt      time.Time `json:"executed_at"`
	DeletedListings []int64   `json:"deleted_listings"`
	SkippedListings []int64   `json:"skipped_listings,omitempty"`
	Errors          []string  `json:"errors,omitempty"`
}

// findExpired returns soft-deleted listings whose deleted_at is before cutoff
func (s *Service) findExpired(ctx context.Context, cutoff time.Time) ([]models.Listing, error) {
	listings, err := s.repo.FindDeletedBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired listings: %w", err)
	}

	s.logger.Info("found expired listings", "count", len(listings), "cutoff", cutoff.Format("2006-01-02"))
	return listings, nil
}

// PhysicallyDelete purges expired soft-deleted listings, writing a delete log per listing.
// Only one pass runs at a time; a concurrent call gets ErrBusy.
func (s *Service) PhysicallyDelete(ctx context.Context, config CleanupConfig) (*CleanupResult, error) {
	s.mu.Lock()
	if s.purging {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.purging = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.purging = false
		s.mu.Unlock()
	}()

	result := &CleanupResult{
		DryRun:          config.DryRun,
		ExecutedAt:      s.now(),
		DeletedListings: []int64{},
	}

	// The same cutoff selects the targets and guards each delete, so a
	// listing restored in between is left alone.
	cutoff := result.ExecutedAt.AddDate(0, 0, -config.RetentionDays)
	expired, err := s.findExpired(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result.TargetCount = len(expired)
	if result.TargetCount == 0 {
		return result, nil
	}

	if config.MaxDeletionCount > 0 && result.TargetCount > config.MaxDeletionCount {
		return nil, fmt.Errorf("safety check failed: %d listings exceed max deletion limit of %d",
			result.TargetCount, config.MaxDeletionCount)
	}

	s.logger.Info("starting cleanup",
		"targets", result.TargetCount, "retention_days", config.RetentionDays, "dry_run", config.DryRun)

	for _, l := range expired {
		if config.DryRun {
			s.logger.Info("dry run: would delete listing", "id", l.ID, "title", l.Title, "deleted_at", l.DeletedAt)
			result.DeletedListings = append(result.DeletedListings, l.ID)
			result.DeletedCount++
			continue
		}

		removed, err := s.purger.Purge(ctx, l.ID, cutoff)
		if err != nil {
			msg := fmt.Sprintf("failed to delete listing %d: %v", l.ID, err)
			s.logger.Error("purge failed", "id", l.ID, "error", err)
			result.Errors = append(result.Errors, msg)
			result.ErrorCount++
			continue
		}
		if !removed {
			result.SkippedListings = append(result.SkippedListings, l.ID)
			result.SkippedCount++
			continue
		}

		entry := NewDeleteLog(&l, models.DeleteReasonExpired)
		if err := s.repo.CreateDeleteLog(ctx, entry); err != nil {
			// The row is gone already; count it as deleted and report the lost log.
			s.logger.Error("failed to write delete log", "id", l.ID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("failed to log deletion of listing %d: %v", l.ID, err))
			result.ErrorCount++
		}

		result.DeletedListings = append(result.DeletedListings, l.ID)
		result.DeletedCount++
	}

	if !config.DryRun && s.index != nil && len(result.DeletedListings) > 0 {
		if err := s.index.RemoveListings(result.DeletedListings); err != nil {
			s.logger.Warn("failed to remove purged listings from index", "error", err)
		}
	}

	s.logger.Info("cleanup completed",
		"deleted", result.DeletedCount, "skipped", result.SkippedCount, "targets", result.TargetCount, "errors", result.ErrorCount, "dry_run", config.DryRun)

	return result, nil
}

// GetDeleteStats returns statistics about deleted listings
func (s *Service) GetDeleteStats(ctx context.Context) (*models.DeleteStats, error) {
	return s.repo.DeleteStats(ctx)
}

// GetRecentDeleteLogs returns recent delete log entries
func (s *Service) GetRecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	return s.repo.RecentDeleteLogs(ctx, limit)
}

// NewDeleteLog builds the audit entry for a listing about to disappear
func NewDeleteLog(l *models.Listing, reason string) *models.DeleteLog {
	return &models.DeleteLog{
		ListingID: l.ID,
		Title:     l.Title,
		Address:   l.Address,
		RemovedAt: l.DeletedAt,
		Reason:    reason,
	}
}
