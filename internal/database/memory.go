package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"real-estate-cms/internal/lifecycle"
	"real-estate-cms/internal/models"
)

// MemoryDB keeps listings in process memory. It backs the "memory" database
// type for local runs and serves as the store in tests.
type MemoryDB struct {
	mu         sync.Mutex
	listings   map[int64]models.Listing
	deleteLogs []models.DeleteLog
	nextID     int64
	nextLogID  uint
	now        func() time.Time
	failWith   error
	beforeNext func(ids []int64)
}

// NewMemoryDB creates an empty in-memory store
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		listings: make(map[int64]models.Listing),
		now:      time.Now,
	}
}

// SetClock overrides the time source for created_at and delete log stamps
func (m *MemoryDB) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetError makes every following call fail with err until cleared with nil
func (m *MemoryDB) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// OnNextUpdate registers fn to run once, right before the next UpdateWhere
// or PurgeDeleted applies its filter. fn runs without the store lock held and may call the store.
func (m *MemoryDB) OnNextUpdate(fn func(ids []int64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beforeNext = fn
}

// InitSchema is a no-op for the memory store
func (m *MemoryDB) InitSchema() error {
	return nil
}

// Close is a no-op for the memory store
func (m *MemoryDB) Close() error {
	return nil
}

// CreateListing inserts l and assigns its id
func (m *MemoryDB) CreateListing(ctx context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.nextID++
	l.ID = m.nextID
	now := m.now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	if l.IsAddressPublic == "" {
		l.IsAddressPublic = models.AddressPublic
	}
	m.listings[l.ID] = cloneListing(*l)
	return nil
}

// GetListing returns the listing in any state
func (m *MemoryDB) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	l, ok := m.listings[id]
	if !ok {
		return nil, lifecycle.ErrNoRow
	}
	out := cloneListing(l)
	return &out, nil
}

// ListListings returns one page of listings, newest first
func (m *MemoryDB) ListListings(ctx context.Context, filter models.ListingFilter) (*models.ListingPage, error) {
	filter.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	var matched []models.Listing
	for _, l := range m.listings {
		if !matchesFilter(l, filter) {
			continue
		}
		matched = append(matched, cloneListing(l))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	page := &models.ListingPage{
		Listings: []models.Listing{},
		Total:    int64(len(matched)),
		Page:     filter.Page,
		PerPage:  filter.PerPage,
	}
	start := filter.Offset()
	if start < len(matched) {
		end := min(start+filter.PerPage, len(matched))
		page.Listings = matched[start:end]
	}
	return page, nil
}

// ListAllActive returns every active listing, for reindexing
func (m *MemoryDB) ListAllActive(ctx context.Context) ([]models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]models.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		if l.IsActive() {
			out = append(out, cloneListing(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CountListings returns dashboard counts
func (m *MemoryDB) CountListings(ctx context.Context) (*models.ListingCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	counts := &models.ListingCounts{}
	for _, l := range m.listings {
		switch {
		case !l.IsActive():
			counts.Deleted++
		case l.Visibility:
			counts.Active++
		default:
			counts.Hidden++
		}
	}
	counts.Total = int64(len(m.listings))
	return counts, nil
}

// FetchStates implements lifecycle.Store
func (m *MemoryDB) FetchStates(ctx context.Context, ids []int64) ([]models.ListingState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	states := make([]models.ListingState, 0, len(ids))
	for _, id := range ids {
		if l, ok := m.listings[id]; ok {
			c := cloneListing(l)
			states = append(states, c.State())
		}
	}
	return states, nil
}

// UpdateWhere implements lifecycle.Store. Filter and write happen under one lock.
func (m *MemoryDB) UpdateWhere(ctx context.Context, ids []int64, cond lifecycle.Condition, changes lifecycle.Changes) ([]int64, error) {
	m.mu.Lock()
	hook := m.beforeNext
	m.beforeNext = nil
	m.mu.Unlock()
	if hook != nil {
		hook(ids)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	changed := []int64{}
	now := m.now()
	for _, id := range ids {
		l, ok := m.listings[id]
		if !ok || !cond.Matches(l.State()) {
			continue
		}
		applyChanges(&l, changes)
		l.UpdatedAt = now
		m.listings[id] = l
		changed = append(changed, id)
	}
	return changed, nil
}

// DeleteByID implements lifecycle.Store
func (m *MemoryDB) DeleteByID(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	if _, ok := m.listings[id]; !ok {
		return false, nil
	}
	delete(m.listings, id)
	return true, nil
}

// PurgeDeleted implements lifecycle.Store
func (m *MemoryDB) PurgeDeleted(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	m.mu.Lock()
	hook := m.beforeNext
	m.beforeNext = nil
	m.mu.Unlock()
	if hook != nil {
		hook([]int64{id})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	l, ok := m.listings[id]
	if !ok || l.DeletedAt == nil || !l.DeletedAt.Before(cutoff) {
		return false, nil
	}
	delete(m.listings, id)
	return true, nil
}

// FindDeletedBefore returns soft-deleted listings whose deleted_at is before cutoff
func (m *MemoryDB) FindDeletedBefore(ctx context.Context, cutoff time.Time) ([]models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []models.Listing
	for _, l := range m.listings {
		if l.DeletedAt != nil && l.DeletedAt.Before(cutoff) {
			out = append(out, cloneListing(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateDeleteLog appends a delete log entry
func (m *MemoryDB) CreateDeleteLog(ctx context.Context, entry *models.DeleteLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.nextLogID++
	entry.ID = m.nextLogID
	if entry.DeletedAt.IsZero() {
		entry.DeletedAt = m.now()
	}
	m.deleteLogs = append(m.deleteLogs, *entry)
	return nil
}

// RecentDeleteLogs returns the newest delete log entries first
func (m *MemoryDB) RecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]models.DeleteLog, 0, len(m.deleteLogs))
	for i := len(m.deleteLogs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.deleteLogs[i])
	}
	return out, nil
}

// DeleteStats summarizes the delete log
func (m *MemoryDB) DeleteStats(ctx context.Context) (*models.DeleteStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	stats := &models.DeleteStats{ByReason: make(map[string]int64)}
	since := m.now().AddDate(0, 0, -30)
	for _, entry := range m.deleteLogs {
		stats.TotalDeleted++
		stats.ByReason[entry.Reason]++
		if !entry.DeletedAt.Before(since) {
			stats.DeletedLast30Days++
		}
	}
	for _, l := range m.listings {
		if !l.IsActive() {
			stats.CurrentlySoftDeleted++
		}
	}
	return stats, nil
}

func matchesFilter(l models.Listing, filter models.ListingFilter) bool {
	switch filter.Status {
	case models.ListingStatusActive:
		if !l.IsActive() {
			return false
		}
	case models.ListingStatusDeleted:
		if l.IsActive() {
			return false
		}
	}
	if filter.VisibleOnly && !l.Visibility {
		return false
	}
	if filter.ListingType != "" && l.ListingType != filter.ListingType {
		return false
	}
	return true
}

func applyChanges(l *models.Listing, changes lifecycle.Changes) {
	if changes.Visibility != nil {
		l.Visibility = *changes.Visibility
	}
	if changes.IsAddressPublic != nil {
		l.IsAddressPublic = *changes.IsAddressPublic
	}
	if changes.ConfirmedAt != nil {
		at := *changes.ConfirmedAt
		l.ConfirmedAt = &at
	}
	if changes.ClearDeletedAt {
		l.DeletedAt = nil
	} else if changes.DeletedAt != nil {
		at := *changes.DeletedAt
		l.DeletedAt = &at
	}
}

// cloneListing copies the pointer fields so callers never alias stored rows
func cloneListing(l models.Listing) models.Listing {
	if l.DeletedAt != nil {
		at := *l.DeletedAt
		l.DeletedAt = &at
	}
	if l.ConfirmedAt != nil {
		at := *l.ConfirmedAt
		l.ConfirmedAt = &at
	}
	if l.Price != nil {
		v := *l.Price
		l.Price = &v
	}
	if l.Deposit != nil {
		v := *l.Deposit
		l.Deposit = &v
	}
	if l.MonthlyRent != nil {
		v := *l.MonthlyRent
		l.MonthlyRent = &v
	}
	if l.Area != nil {
		v := *l.Area
		l.Area = &v
	}
	return l
}
