package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"real-estate-cms/internal/lifecycle"
	"real-estate-cms/internal/models"
)

func seedMemory(t *testing.T) (*MemoryDB, []int64) {
	t.Helper()
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	db := NewMemoryDB()
	db.SetClock(func() time.Time { return now })

	var ids []int64
	for i, row := range []struct {
		kind    string
		visible bool
	}{
		{"아파트", true},
		{"아파트", false},
		{"원룸", true},
		{"아파트", true},
	} {
		l := &models.Listing{
			Title:       "매물",
			ListingType: row.kind,
			Visibility:  row.visible,
			CreatedAt:   now.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.CreateListing(context.Background(), l))
		ids = append(ids, l.ID)
	}
	return db, ids
}

func TestMemoryListListings(t *testing.T) {
	ctx := context.Background()
	db, ids := seedMemory(t)
	deletedAt := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	_, err := db.UpdateWhere(ctx, []int64{ids[3]}, lifecycle.Active, lifecycle.Changes{DeletedAt: &deletedAt})
	require.NoError(t, err)

	t.Run("ok: default status is active, newest first", func(t *testing.T) {
		page, err := db.ListListings(ctx, models.ListingFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		got := []int64{}
		for _, l := range page.Listings {
			got = append(got, l.ID)
		}
		assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, got)
	})

	t.Run("ok: visible only and type", func(t *testing.T) {
		page, err := db.ListListings(ctx, models.ListingFilter{VisibleOnly: true, ListingType: "아파트"})
		require.NoError(t, err)
		require.Len(t, page.Listings, 1)
		assert.Equal(t, ids[0], page.Listings[0].ID)
	})

	t.Run("ok: deleted", func(t *testing.T) {
		page, err := db.ListListings(ctx, models.ListingFilter{Status: models.ListingStatusDeleted})
		require.NoError(t, err)
		require.Len(t, page.Listings, 1)
		assert.Equal(t, ids[3], page.Listings[0].ID)
	})

	t.Run("ok: paging past the end", func(t *testing.T) {
		page, err := db.ListListings(ctx, models.ListingFilter{Status: models.ListingStatusAll, Page: 3, PerPage: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(4), page.Total)
		assert.Empty(t, page.Listings)
	})

	counts, err := db.CountListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.ListingCounts{Active: 2, Hidden: 1, Deleted: 1, Total: 4}, counts)
}

func TestMemoryUpdateWhere(t *testing.T) {
	ctx := context.Background()
	db, ids := seedMemory(t)
	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	changed, err := db.UpdateWhere(ctx, ids[:2], lifecycle.Active, lifecycle.Changes{DeletedAt: &at})
	require.NoError(t, err)
	assert.Equal(t, ids[:2], changed)

	t.Run("ok: condition filters rows", func(t *testing.T) {
		changed, err := db.UpdateWhere(ctx, ids, lifecycle.Deleted, lifecycle.Changes{ClearDeletedAt: true})
		require.NoError(t, err)
		assert.Equal(t, ids[:2], changed)
	})

	t.Run("ok: missing ids are ignored", func(t *testing.T) {
		visible := false
		changed, err := db.UpdateWhere(ctx, []int64{ids[0], 999}, lifecycle.Any, lifecycle.Changes{Visibility: &visible})
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[0]}, changed)
	})

	t.Run("ok: returned rows do not alias storage", func(t *testing.T) {
		l, err := db.GetListing(ctx, ids[0])
		require.NoError(t, err)
		l.Visibility = true
		again, err := db.GetListing(ctx, ids[0])
		require.NoError(t, err)
		assert.False(t, again.Visibility)
	})

	t.Run("err: injected failure", func(t *testing.T) {
		db.SetError(errors.New("boom"))
		defer db.SetError(nil)
		_, err := db.UpdateWhere(ctx, ids, lifecycle.Any, lifecycle.Changes{})
		assert.EqualError(t, err, "boom")
	})
}

func TestMemoryFetchStates(t *testing.T) {
	ctx := context.Background()
	db, ids := seedMemory(t)
	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	_, err := db.UpdateWhere(ctx, ids[2:3], lifecycle.Active, lifecycle.Changes{DeletedAt: &at})
	require.NoError(t, err)

	states, err := db.FetchStates(ctx, []int64{ids[1], 999, ids[2]})
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, ids[1], states[0].ID)
	assert.False(t, states[0].Visibility)
	assert.True(t, states[0].IsActive())
	assert.Equal(t, ids[2], states[1].ID)
	require.NotNil(t, states[1].DeletedAt)
	assert.Equal(t, at, *states[1].DeletedAt)

	*states[1].DeletedAt = at.Add(time.Hour)
	again, err := db.FetchStates(ctx, ids[2:3])
	require.NoError(t, err)
	assert.Equal(t, at, *again[0].DeletedAt)
}

func TestMemoryPurgeDeleted(t *testing.T) {
	ctx := context.Background()
	db, ids := seedMemory(t)
	at := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2026, 7, 21, 0, 0, 0, 0, time.UTC)
	_, err := db.UpdateWhere(ctx, ids[:2], lifecycle.Active, lifecycle.Changes{DeletedAt: &at})
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      int64
		cutoff  time.Time
		removed bool
	}{
		{"ok: deleted at the cutoff is kept", ids[0], at, false},
		{"ok: active row is kept", ids[2], cutoff, false},
		{"ok: missing row", 999, cutoff, false},
		{"ok: deleted before the cutoff is removed", ids[0], cutoff, true},
		{"ok: already purged", ids[0], cutoff, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			removed, err := db.PurgeDeleted(ctx, tt.id, tt.cutoff)
			require.NoError(t, err)
			assert.Equal(t, tt.removed, removed)
		})
	}

	_, err = db.GetListing(ctx, ids[1])
	assert.NoError(t, err)
	_, err = db.GetListing(ctx, ids[2])
	assert.NoError(t, err)
}

func TestMemoryDeleteLogs(t *testing.T) {
	ctx := context.Background()
	db, ids := seedMemory(t)

	existed, err := db.DeleteByID(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = db.DeleteByID(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, existed)

	require.NoError(t, db.CreateDeleteLog(ctx, &models.DeleteLog{ListingID: ids[0], Reason: models.DeleteReasonManual}))
	require.NoError(t, db.CreateDeleteLog(ctx, &models.DeleteLog{ListingID: ids[1], Reason: models.DeleteReasonExpired}))

	logs, err := db.RecentDeleteLogs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, ids[1], logs[0].ListingID)

	stats, err := db.DeleteStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalDeleted)
	assert.Equal(t, int64(2), stats.DeletedLast30Days)
	assert.Equal(t, map[string]int64{models.DeleteReasonManual: 1, models.DeleteReasonExpired: 1}, stats.ByReason)
}
