package lifecycle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"real-estate-cms/internal/database"
	"real-estate-cms/internal/lifecycle"
	"real-estate-cms/internal/models"
)

var fixedNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T) (*lifecycle.Service, *database.MemoryDB) {
	t.Helper()
	db := database.NewMemoryDB()
	db.SetClock(func() time.Time { return fixedNow })
	return lifecycle.NewService(db, lifecycle.WithClock(func() time.Time { return fixedNow })), db
}

func createListing(t *testing.T, db *database.MemoryDB, addr string) *models.Listing {
	t.Helper()
	l := &models.Listing{
		Title:           "역삼동 오피스텔",
		Address:         addr,
		Visibility:      true,
		IsAddressPublic: models.AddressPublic,
	}
	require.NoError(t, db.CreateListing(context.Background(), l))
	return l
}

func fetch(t *testing.T, db *database.MemoryDB, id int64) *models.Listing {
	t.Helper()
	l, err := db.GetListing(context.Background(), id)
	require.NoError(t, err)
	return l
}

func TestToggleVisibility(t *testing.T) {
	ctx := context.Background()
	service, db := newService(t)

	t.Run("ok: flips and flips back", func(t *testing.T) {
		l := createListing(t, db, "서울 강남구 역삼동 1")

		got, err := service.ToggleVisibility(ctx, l.ID, nil)
		require.NoError(t, err)
		assert.False(t, got)
		assert.False(t, fetch(t, db, l.ID).Visibility)

		got, err = service.ToggleVisibility(ctx, l.ID, nil)
		require.NoError(t, err)
		assert.True(t, got)
		assert.True(t, fetch(t, db, l.ID).Visibility)
	})

	t.Run("ok: explicit value is stored", func(t *testing.T) {
		l := createListing(t, db, "서울 강남구 역삼동 2")
		hidden := false

		got, err := service.ToggleVisibility(ctx, l.ID, &hidden)
		require.NoError(t, err)
		assert.False(t, got)

		got, err = service.ToggleVisibility(ctx, l.ID, &hidden)
		require.NoError(t, err)
		assert.False(t, got, "an explicit value is set, not toggled")
	})

	t.Run("err: soft-deleted listing", func(t *testing.T) {
		l := createListing(t, db, "서울 강남구 역삼동 3")
		_, err := service.SoftDelete(ctx, []int64{l.ID})
		require.NoError(t, err)

		_, err = service.ToggleVisibility(ctx, l.ID, nil)
		assert.ErrorIs(t, err, lifecycle.ErrNotFound)
		assert.True(t, fetch(t, db, l.ID).Visibility, "a deleted listing must not be mutated")
	})

	t.Run("err: missing listing", func(t *testing.T) {
		_, err := service.ToggleVisibility(ctx, 9999, nil)
		assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	})

	t.Run("err: invalid id", func(t *testing.T) {
		_, err := service.ToggleVisibility(ctx, 0, nil)
		assert.ErrorIs(t, err, lifecycle.ErrValidation)
		_, err = service.ToggleVisibility(ctx, -4, nil)
		assert.ErrorIs(t, err, lifecycle.ErrValidation)
	})

	t.Run("err: deleted between read and write", func(t *testing.T) {
		l := createListing(t, db, "서울 강남구 역삼동 4")
		db.OnNextUpdate(func(ids []int64) {
			at := fixedNow
			_, err := db.UpdateWhere(ctx, ids, lifecycle.Any, lifecycle.Changes{DeletedAt: &at})
			require.NoError(t, err)
		})

		_, err := service.ToggleVisibility(ctx, l.ID, nil)
		assert.ErrorIs(t, err, lifecycle.ErrConflict)
		assert.True(t, fetch(t, db, l.ID).Visibility, "the filtered write must not apply")
	})
}

func TestUpdateAddressVisibility(t *testing.T) {
	ctx := context.Background()
	service, db := newService(t)

	t.Run("ok: idempotent", func(t *testing.T) {
		l := createListing(t, db, "대구 동구 효목동(효목1동)")

		mode, err := service.UpdateAddressVisibility(ctx, l.ID, models.AddressExclude)
		require.NoError(t, err)
		assert.Equal(t, models.AddressExclude, mode)

		mode, err = service.UpdateAddressVisibility(ctx, l.ID, models.AddressExclude)
		require.NoError(t, err, "setting the same mode twice is not an error")
		assert.Equal(t, models.AddressExclude, mode)
		assert.Equal(t, models.AddressExclude, fetch(t, db, l.ID).IsAddressPublic)
	})

	t.Run("err: unknown mode", func(t *testing.T) {
		l := createListing(t, db, "대구 동구 효목동")
		_, err := service.UpdateAddressVisibility(ctx, l.ID, "partial")
		assert.ErrorIs(t, err, lifecycle.ErrValidation)
		assert.Equal(t, models.AddressPublic, fetch(t, db, l.ID).IsAddressPublic)
	})

	t.Run("err: soft-deleted listing", func(t *testing.T) {
		l := createListing(t, db, "대구 동구 효목동")
		_, err := service.SoftDelete(ctx, []int64{l.ID})
		require.NoError(t, err)

		_, err = service.UpdateAddressVisibility(ctx, l.ID, models.AddressPrivate)
		assert.ErrorIs(t, err, lifecycle.ErrNotFound)
		assert.Equal(t, models.AddressPublic, fetch(t, db, l.ID).IsAddressPublic)
	})
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	service, db := newService(t)

	l := createListing(t, db, "부산 해운대구 우동 1")
	at, err := service.Confirm(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, at)
	require.NotNil(t, fetch(t, db, l.ID).ConfirmedAt)
	assert.Equal(t, fixedNow, *fetch(t, db, l.ID).ConfirmedAt)

	_, err = service.SoftDelete(ctx, []int64{l.ID})
	require.NoError(t, err)
	_, err = service.Confirm(ctx, l.ID)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("ok: deletes every listing", func(t *testing.T) {
		service, db := newService(t)
		a := createListing(t, db, "a")
		b := createListing(t, db, "b")

		result, err := service.SoftDelete(ctx, []int64{a.ID, b.ID})
		require.NoError(t, err)
		assert.Equal(t, []int64{a.ID, b.ID}, result.Deleted)
		assert.Empty(t, result.Skipped)

		for _, id := range []int64{a.ID, b.ID} {
			l := fetch(t, db, id)
			require.NotNil(t, l.DeletedAt)
			assert.Equal(t, fixedNow, *l.DeletedAt)
		}
	})

	t.Run("ok: repeated ids are collapsed", func(t *testing.T) {
		service, db := newService(t)
		a := createListing(t, db, "a")

		result, err := service.SoftDelete(ctx, []int64{a.ID, a.ID})
		require.NoError(t, err)
		assert.Equal(t, []int64{a.ID}, result.Requested)
		assert.Equal(t, []int64{a.ID}, result.Deleted)
	})

	t.Run("err: one listing already deleted rejects the batch", func(t *testing.T) {
		service, db := newService(t)
		a := createListing(t, db, "a")
		b := createListing(t, db, "b")
		_, err := service.SoftDelete(ctx, []int64{a.ID})
		require.NoError(t, err)

		result, err := service.SoftDelete(ctx, []int64{a.ID, b.ID})
		assert.Nil(t, result)
		require.ErrorIs(t, err, lifecycle.ErrConflict)

		var lerr *lifecycle.Error
		require.True(t, errors.As(err, &lerr))
		assert.Equal(t, []int64{a.ID}, lerr.IDs)
		assert.Nil(t, fetch(t, db, b.ID).DeletedAt, "listing b must be untouched")
	})

	t.Run("err: missing listing rejects the batch", func(t *testing.T) {
		service, db := newService(t)
		a := createListing(t, db, "a")

		_, err := service.SoftDelete(ctx, []int64{a.ID, 404})
		require.ErrorIs(t, err, lifecycle.ErrConflict)

		var lerr *lifecycle.Error
		require.True(t, errors.As(err, &lerr))
		assert.Equal(t, []int64{404}, lerr.IDs)
		assert.Nil(t, fetch(t, db, a.ID).DeletedAt)
	})

	t.Run("err: empty or invalid id list", func(t *testing.T) {
		service, _ := newService(t)
		_, err := service.SoftDelete(ctx, nil)
		assert.ErrorIs(t, err, lifecycle.ErrValidation)
		_, err = service.SoftDelete(ctx, []int64{1, 0})
		assert.ErrorIs(t, err, lifecycle.ErrValidation)
	})

	t.Run("err: listing deleted between check and write is reported", func(t *testing.T) {
		service, db := newService(t)
		a := createListing(t, db, "a")
		b := createListing(t, db, "b")
		c := createListing(t, db, "c")

		db.OnNextUpdate(func([]int64) {
			at := fixedNow.Add(-time.Minute)
			_, err := db.UpdateWhere(ctx, []int64{b.ID}, lifecycle.Active, lifecycle.Changes{DeletedAt: &at})
			require.NoError(t, err)
		})

		result, err := service.SoftDelete(ctx, []int64{a.ID, b.ID, c.ID})
		require.ErrorIs(t, err, lifecycle.ErrConflict)
		require.NotNil(t, result, "the partial result must be surfaced")
		assert.Equal(t, []int64{a.ID, c.ID}, result.Deleted)
		assert.Equal(t, []int64{b.ID}, result.Skipped)
		assert.Equal(t, fixedNow.Add(-time.Minute), *fetch(t, db, b.ID).DeletedAt,
			"the concurrent delete keeps its timestamp")
	})

	t.Run("err: store failure", func(t *testing.T) {
		service, db := newService(t)
		a := createListing(t, db, "a")
		db.SetError(errors.New("connection reset"))
		defer db.SetError(nil)

		_, err := service.SoftDelete(ctx, []int64{a.ID})
		assert.ErrorIs(t, err, lifecycle.ErrPersistence)
		assert.Equal(t, lifecycle.KindPersistence, lifecycle.KindOf(err))
	})
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	service, db := newService(t)

	t.Run("err: active listing", func(t *testing.T) {
		l := createListing(t, db, "a")
		err := service.Restore(ctx, l.ID)
		assert.ErrorIs(t, err, lifecycle.ErrConflict)
	})

	t.Run("ok: deleted listing, then second restore fails", func(t *testing.T) {
		l := createListing(t, db, "a")
		_, err := service.SoftDelete(ctx, []int64{l.ID})
		require.NoError(t, err)

		require.NoError(t, service.Restore(ctx, l.ID))
		assert.Nil(t, fetch(t, db, l.ID).DeletedAt)

		err = service.Restore(ctx, l.ID)
		assert.ErrorIs(t, err, lifecycle.ErrConflict)
	})

	t.Run("err: missing listing", func(t *testing.T) {
		err := service.Restore(ctx, 777)
		assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	})

	t.Run("err: restored concurrently", func(t *testing.T) {
		l := createListing(t, db, "a")
		_, err := service.SoftDelete(ctx, []int64{l.ID})
		require.NoError(t, err)

		db.OnNextUpdate(func(ids []int64) {
			_, err := db.UpdateWhere(ctx, ids, lifecycle.Deleted, lifecycle.Changes{ClearDeletedAt: true})
			require.NoError(t, err)
		})
		err = service.Restore(ctx, l.ID)
		assert.ErrorIs(t, err, lifecycle.ErrConflict)
	})
}

func TestHardDelete(t *testing.T) {
	ctx := context.Background()
	service, db := newService(t)

	t.Run("ok: active listing", func(t *testing.T) {
		l := createListing(t, db, "a")
		require.NoError(t, service.HardDelete(ctx, l.ID))

		_, err := db.GetListing(ctx, l.ID)
		assert.ErrorIs(t, err, lifecycle.ErrNoRow)
		_, err = service.ToggleVisibility(ctx, l.ID, nil)
		assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	})

	t.Run("ok: soft-deleted listing", func(t *testing.T) {
		l := createListing(t, db, "a")
		_, err := service.SoftDelete(ctx, []int64{l.ID})
		require.NoError(t, err)

		require.NoError(t, service.HardDelete(ctx, l.ID))
		err = service.Restore(ctx, l.ID)
		assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	})

	t.Run("err: missing listing", func(t *testing.T) {
		err := service.HardDelete(ctx, 31337)
		assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	})
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	service, db := newService(t)
	cutoff := fixedNow.Add(time.Hour)

	t.Run("ok: soft-deleted before cutoff", func(t *testing.T) {
		l := createListing(t, db, "a")
		_, err := service.SoftDelete(ctx, []int64{l.ID})
		require.NoError(t, err)

		removed, err := service.Purge(ctx, l.ID, cutoff)
		require.NoError(t, err)
		assert.True(t, removed)
		_, err = db.GetListing(ctx, l.ID)
		assert.ErrorIs(t, err, lifecycle.ErrNoRow)
	})

	t.Run("ok: active listing is kept", func(t *testing.T) {
		l := createListing(t, db, "a")

		removed, err := service.Purge(ctx, l.ID, cutoff)
		require.NoError(t, err)
		assert.False(t, removed)
		fetch(t, db, l.ID)
	})

	t.Run("ok: deleted after cutoff is kept", func(t *testing.T) {
		l := createListing(t, db, "a")
		_, err := service.SoftDelete(ctx, []int64{l.ID})
		require.NoError(t, err)

		removed, err := service.Purge(ctx, l.ID, fixedNow)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("ok: restored between selection and delete", func(t *testing.T) {
		l := createListing(t, db, "a")
		_, err := service.SoftDelete(ctx, []int64{l.ID})
		require.NoError(t, err)

		db.OnNextUpdate(func(ids []int64) {
			require.NoError(t, service.Restore(ctx, ids[0]))
		})
		removed, err := service.Purge(ctx, l.ID, cutoff)
		require.NoError(t, err)
		assert.False(t, removed)
		assert.Nil(t, fetch(t, db, l.ID).DeletedAt)
	})

	t.Run("err: invalid id", func(t *testing.T) {
		_, err := service.Purge(ctx, 0, cutoff)
		assert.ErrorIs(t, err, lifecycle.ErrValidation)
	})

	t.Run("err: store failure", func(t *testing.T) {
		db.SetError(errors.New("disk full"))
		defer db.SetError(nil)
		_, err := service.Purge(ctx, 1, cutoff)
		assert.ErrorIs(t, err, lifecycle.ErrPersistence)
	})
}

func TestErrorKinds(t *testing.T) {
	err := &lifecycle.Error{Kind: lifecycle.KindConflict, Op: "restore", Message: "listing is not deleted", IDs: []int64{7}}
	assert.Equal(t, "restore: listing is not deleted (ids [7])", err.Error())
	assert.ErrorIs(t, err, lifecycle.ErrConflict)
	assert.NotErrorIs(t, err, lifecycle.ErrNotFound)

	assert.Equal(t, 400, lifecycle.KindValidation.HTTPStatus())
	assert.Equal(t, 404, lifecycle.KindNotFound.HTTPStatus())
	assert.Equal(t, 409, lifecycle.KindConflict.HTTPStatus())
	assert.Equal(t, 500, lifecycle.KindPersistence.HTTPStatus())
	assert.Equal(t, lifecycle.KindPersistence, lifecycle.KindOf(errors.New("boom")))
}
