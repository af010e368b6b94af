package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"real-estate-cms/internal/cleanup"
	"real-estate-cms/internal/models"
	"real-estate-cms/internal/ratelimit"
	"real-estate-cms/internal/search"
)

// AdminHandler handles admin-related requests
type AdminHandler struct {
	repo           ListingRepository
	cleanupService *cleanup.Service
	cleanupConfig  cleanup.CleanupConfig
	index          SearchIndex
	limiter        *ratelimit.RateLimiter
	logger         *slog.Logger
}

// NewAdminHandler creates a new admin handler. index and limiter may be nil.
func NewAdminHandler(repo ListingRepository, cleanupService *cleanup.Service, cleanupConfig cleanup.CleanupConfig,
	index SearchIndex, limiter *ratelimit.RateLimiter, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		repo:           repo,
		cleanupService: cleanupService,
		cleanupConfig:  cleanupConfig,
		index:          index,
		limiter:        limiter,
		logger:         logger.With("component", "admin"),
	}
}

// GetStats returns dashboard statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats := make(map[string]interface{})

	counts, err := h.repo.CountListings(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	stats["listings"] = counts

	// Delete log statistics are best effort
	deleteStats, err := h.cleanupService.GetDeleteStats(ctx)
	if err != nil {
		h.logger.Warn("failed to get delete stats", "error", err)
	} else {
		stats["deletions"] = deleteStats
	}

	if h.limiter != nil {
		stats["rate_limit"] = h.limiter.GetStats(c.ClientIP())
	}

	c.JSON(http.StatusOK, stats)
}

// RunCleanup purges soft-deleted listings past retention.
// Body fields override the configured defaults; an empty body uses them as is.
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	var req struct {
		RetentionDays    int   `json:"retention_days" binding:"omitempty,min=1"`
		MaxDeletionCount int   `json:"max_deletion_count" binding:"omitempty,min=1"`
		DryRun           *bool `json:"dry_run"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}

	config := h.cleanupConfig
	if req.RetentionDays > 0 {
		config.RetentionDays = req.RetentionDays
	}
	if req.MaxDeletionCount > 0 {
		config.MaxDeletionCount = req.MaxDeletionCount
	}
	if req.DryRun != nil {
		config.DryRun = *req.DryRun
	}

	h.logger.Info("running cleanup",
		"retention_days", config.RetentionDays, "max", config.MaxDeletionCount, "dry_run", config.DryRun)

	result, err := h.cleanupService.PhysicallyDelete(c.Request.Context(), config)
	if errors.Is(err, cleanup.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": errorBody{Kind: "conflict", Message: err.Error()}})
		return
	}
	if err != nil {
		h.logger.Error("cleanup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody{Kind: "cleanup", Message: err.Error()}})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetDeleteLogs returns recent delete log entries
func (h *AdminHandler) GetDeleteLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	logs, err := h.cleanupService.GetRecentDeleteLogs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// Reindex rebuilds the public index from the store. The index is emptied first
// so documents of deleted listings do not survive the rebuild.
func (h *AdminHandler) Reindex(c *gin.Context) {
	if h.index == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errorBody{Kind: "unavailable", Message: "search is not configured"}})
		return
	}

	listings, err := h.repo.ListAllActive(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	public := make([]models.Listing, 0, len(listings))
	for i := range listings {
		if search.Searchable(&listings[i]) {
			public = append(public, listings[i])
		}
	}
	hidden := len(listings) - len(public)

	if err := h.index.ClearListings(); err != nil {
		h.logger.Error("failed to clear index", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": errorBody{Kind: "unavailable", Message: "reindex failed"}})
		return
	}
	if err := h.index.IndexListings(public); err != nil {
		h.logger.Error("reindex failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": errorBody{Kind: "unavailable", Message: "reindex failed"}})
		return
	}

	h.logger.Info("reindexed listings", "indexed", len(public), "hidden", hidden)
	c.JSON(http.StatusOK, gin.H{"indexed": len(public), "hidden": hidden})
}
