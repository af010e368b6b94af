package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"real-estate-cms/internal/address"
	"real-estate-cms/internal/cleanup"
	"real-estate-cms/internal/lifecycle"
	"real-estate-cms/internal/models"
	"real-estate-cms/internal/search"
)

// ListingRepository is the persistence the listing endpoints read and insert through
type ListingRepository interface {
	CreateListing(ctx context.Context, l *models.Listing) error
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	ListListings(ctx context.Context, filter models.ListingFilter) (*models.ListingPage, error)
	ListAllActive(ctx context.Context) ([]models.Listing, error)
	CountListings(ctx context.Context) (*models.ListingCounts, error)
	CreateDeleteLog(ctx context.Context, entry *models.DeleteLog) error
}

// SearchIndex is the public search index. Handlers accept a nil index.
type SearchIndex interface {
	IndexListing(l *models.Listing) error
	IndexListings(listings []models.Listing) error
	RemoveListings(ids []int64) error
	ClearListings() error
	FilterSearch(params search.FilterParams) (*search.SearchResult, error)
}

// ListingHandler serves the public and admin listing endpoints
type ListingHandler struct {
	repo      ListingRepository
	lifecycle *lifecycle.Service
	index     SearchIndex
	logger    *slog.Logger
}

// NewListingHandler creates a listing handler. index may be nil.
func NewListingHandler(repo ListingRepository, svc *lifecycle.Service, index SearchIndex, logger *slog.Logger) *ListingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingHandler{
		repo:      repo,
		lifecycle: svc,
		index:     index,
		logger:    logger.With("component", "listings"),
	}
}

// publicListing returns l as the public sees it
func publicListing(l models.Listing) models.Listing {
	l.Address = address.Redact(l.Address, l.IsAddressPublic)
	return l
}

func parseFilter(c *gin.Context) models.ListingFilter {
	filter := models.ListingFilter{
		Status:      models.ListingStatus(c.Query("status")),
		ListingType: c.Query("type"),
	}
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.PerPage, _ = strconv.Atoi(c.Query("per_page"))
	return filter
}

// ListPublic returns active, visible listings with redacted addresses
func (h *ListingHandler) ListPublic(c *gin.Context) {
	filter := parseFilter(c)
	filter.Status = models.ListingStatusActive
	filter.VisibleOnly = true

	page, err := h.repo.ListListings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	for i := range page.Listings {
		page.Listings[i] = publicListing(page.Listings[i])
	}
	c.JSON(http.StatusOK, page)
}

// GetPublic returns one active, visible listing
func (h *ListingHandler) GetPublic(c *gin.Context) {
	id, err := lifecycle.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	l, err := h.repo.GetListing(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !search.Searchable(l) {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, publicListing(*l))
}

// Search queries the public index
func (h *ListingHandler) Search(c *gin.Context) {
	if h.index == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errorBody{Kind: "unavailable", Message: "search is not configured"}})
		return
	}

	params := search.FilterParams{
		Query:       c.Query("q"),
		ListingType: c.Query("type"),
		SortBy:      c.Query("sort"),
	}
	if v, err := strconv.ParseInt(c.Query("min_price"), 10, 64); err == nil {
		params.MinPrice = &v
	}
	if v, err := strconv.ParseInt(c.Query("max_price"), 10, 64); err == nil {
		params.MaxPrice = &v
	}
	params.MinArea = parseArea(c.Query("min_area"))
	params.MaxArea = parseArea(c.Query("max_area"))
	for _, rooms := range strings.Split(c.Query("rooms"), ",") {
		if rooms = strings.TrimSpace(rooms); rooms != "" {
			params.Rooms = append(params.Rooms, rooms)
		}
	}
	if v, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64); err == nil && v > 0 && v <= 100 {
		params.Limit = v
	}
	if v, err := strconv.ParseInt(c.Query("offset"), 10, 64); err == nil && v > 0 {
		params.Offset = v
	}

	start := time.Now()
	result, err := h.index.FilterSearch(params)
	if err != nil {
		h.logger.Error("search failed", "query", params.Query, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": errorBody{Kind: "unavailable", Message: "search failed"}})
		return
	}
	h.logger.Debug("search", "query", params.Query, "hits", result.TotalHits, "duration_ms", time.Since(start).Milliseconds())
	c.JSON(http.StatusOK, result)
}

// parseArea reads a finite, non-negative area bound; anything else is no bound
func parseArea(raw string) *float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

type createListingRequest struct {
	Title           string                   `json:"title" binding:"required,max=200"`
	ListingType     string                   `json:"listing_type" binding:"max=50"`
	Address         string                   `json:"address"`
	Price           *int64                   `json:"price" binding:"omitempty,min=0"`
	Deposit         *int64                   `json:"deposit" binding:"omitempty,min=0"`
	MonthlyRent     *int64                   `json:"monthly_rent" binding:"omitempty,min=0"`
	Area            *float64                 `json:"area" binding:"omitempty,gt=0"`
	Floor           string                   `json:"floor" binding:"max=20"`
	Rooms           string                   `json:"rooms" binding:"max=20"`
	Bathrooms       string                   `json:"bathrooms" binding:"max=20"`
	Themes          string                   `json:"themes"`
	Description     string                   `json:"description"`
	IsAddressPublic models.AddressVisibility `json:"is_address_public" binding:"omitempty,oneof=public private exclude"`
	Visibility      *bool                    `json:"visibility"`
}

// Create inserts a new listing, visible with a public address unless told otherwise
func (h *ListingHandler) Create(c *gin.Context) {
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	l := &models.Listing{
		Title:           req.Title,
		ListingType:     req.ListingType,
		Address:         req.Address,
		Price:           req.Price,
		Deposit:         req.Deposit,
		MonthlyRent:     req.MonthlyRent,
		Area:            req.Area,
		Floor:           req.Floor,
		Rooms:           req.Rooms,
		Bathrooms:       req.Bathrooms,
		Themes:          req.Themes,
		Description:     req.Description,
		IsAddressPublic: req.IsAddressPublic,
		Visibility:      true,
	}
	if l.IsAddressPublic == "" {
		l.IsAddressPublic = models.AddressPublic
	}
	if req.Visibility != nil {
		l.Visibility = *req.Visibility
	}

	if err := h.repo.CreateListing(c.Request.Context(), l); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("listing created", "id", l.ID)
	h.syncIndex(c.Request.Context(), l.ID)
	c.JSON(http.StatusCreated, l)
}

// ListAdmin lists listings in any state with raw addresses
func (h *ListingHandler) ListAdmin(c *gin.Context) {
	filter := parseFilter(c)
	switch filter.Status {
	case "", models.ListingStatusActive, models.ListingStatusDeleted, models.ListingStatusAll:
	default:
		badRequest(c, "status must be one of active, deleted, all")
		return
	}

	page, err := h.repo.ListListings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Print returns the print view: the raw listing plus the address as it is published
func (h *ListingHandler) Print(c *gin.Context) {
	id, err := lifecycle.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	l, err := h.repo.GetListing(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"listing":         l,
		"display_address": address.Redact(l.Address, l.IsAddressPublic),
	})
}

// ToggleVisibility flips visibility, or sets it when the body carries a value
func (h *ListingHandler) ToggleVisibility(c *gin.Context) {
	id, err := lifecycle.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req struct {
		Visibility *bool `json:"visibility"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}

	visible, err := h.lifecycle.ToggleVisibility(c.Request.Context(), id, req.Visibility)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.syncIndex(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"id": id, "visibility": visible})
}

// UpdateAddressVisibility sets the address disclosure mode
func (h *ListingHandler) UpdateAddressVisibility(c *gin.Context) {
	id, err := lifecycle.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var req struct {
		IsAddressPublic models.AddressVisibility `json:"is_address_public" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	mode, err := h.lifecycle.UpdateAddressVisibility(c.Request.Context(), id, req.IsAddressPublic)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.syncIndex(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"id": id, "is_address_public": mode})
}

// Confirm stamps the listing as re-confirmed today
func (h *ListingHandler) Confirm(c *gin.Context) {
	id, err := lifecycle.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	at, err := h.lifecycle.Confirm(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "confirmed_at": at})
}

// BulkSoftDelete soft-deletes every listing in {"ids": [...]} or none of them
func (h *ListingHandler) BulkSoftDelete(c *gin.Context) {
	var req struct {
		IDs []any `json:"ids"`
	}
	// json.Number keeps ids above 2^53 exact
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ids, err := lifecycle.CoerceIDs(req.IDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.softDelete(c, ids)
}

// SoftDelete soft-deletes a single listing
func (h *ListingHandler) SoftDelete(c *gin.Context) {
	id, err := lifecycle.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.softDelete(c, []int64{id})
}

func (h *ListingHandler) softDelete(c *gin.Context, ids []int64) {
	result, err := h.lifecycle.SoftDelete(c.Request.Context(), ids)
	if result != nil && len(result.Deleted) > 0 {
		h.removeFromIndex(result.Deleted)
	}
	if err != nil {
		if result == nil {
			respondError(c, h.logger, err)
			return
		}
		// Partial write: report what happened alongside the conflict.
		status, body := errorStatus(c, h.logger, err)
		body["result"] = result
		c.AbortWithStatusJSON(status, body)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Restore brings a soft-deleted listing back
func (h *ListingHandler) Restore(c *gin.Context) {
	id, err := lifecycle.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.lifecycle.Restore(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.syncIndex(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"id": id, "restored": true})
}

// HardDelete removes a listing permanently and records it in the delete log
func (h *ListingHandler) HardDelete(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := lifecycle.ParseID(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	l, err := h.repo.GetListing(ctx, id)
	if err != nil && !errors.Is(err, lifecycle.ErrNoRow) {
		respondError(c, h.logger, err)
		return
	}
	if err := h.lifecycle.HardDelete(ctx, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	if l != nil {
		if err := h.repo.CreateDeleteLog(ctx, cleanup.NewDeleteLog(l, models.DeleteReasonManual)); err != nil {
			h.logger.Error("failed to write delete log", "id", id, "error", err)
		}
	}
	h.removeFromIndex([]int64{id})
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}

// syncIndex brings the index entries for ids in line with the store
func (h *ListingHandler) syncIndex(ctx context.Context, ids ...int64) {
	if h.index == nil {
		return
	}
	var remove []int64
	for _, id := range ids {
		l, err := h.repo.GetListing(ctx, id)
		switch {
		case err == nil && search.Searchable(l):
			if err := h.index.IndexListing(l); err != nil {
				h.logger.Warn("failed to index listing", "id", id, "error", err)
			}
		case err == nil || errors.Is(err, lifecycle.ErrNoRow):
			remove = append(remove, id)
		default:
			h.logger.Warn("failed to load listing for indexing", "id", id, "error", err)
		}
	}
	h.removeFromIndex(remove)
}

func (h *ListingHandler) removeFromIndex(ids []int64) {
	if h.index == nil || len(ids) == 0 {
		return
	}
	if err := h.index.RemoveListings(ids); err != nil {
		h.logger.Warn("failed to remove listings from index", "ids", ids, "error", err)
	}
}
