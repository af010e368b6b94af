package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 3, true)
	rl.SetClock(func() time.Time { return now })

	t.Run("ok: minute window per client", func(t *testing.T) {
		assert.True(t, rl.Allow("10.0.0.1"))
		assert.True(t, rl.Allow("10.0.0.1"))
		assert.False(t, rl.Allow("10.0.0.1"))
		assert.True(t, rl.Allow("10.0.0.2"))
	})

	t.Run("ok: minute window slides", func(t *testing.T) {
		now = now.Add(61 * time.Second)
		assert.True(t, rl.Allow("10.0.0.1"))
	})

	t.Run("err: hour window exhausted", func(t *testing.T) {
		now = now.Add(61 * time.Second)
		assert.False(t, rl.Allow("10.0.0.1"))

		stats := rl.GetStats("10.0.0.1")
		assert.Equal(t, 0, stats.RemainingThisHour)
		assert.Equal(t, 2, stats.RemainingThisMinute)
		assert.Equal(t, 2, stats.Clients)
	})

	t.Run("ok: busy client is kept by prune", func(t *testing.T) {
		assert.Equal(t, 0, rl.Prune())
	})

	t.Run("ok: prune drops idle clients", func(t *testing.T) {
		now = now.Add(2 * time.Hour)
		assert.Equal(t, 2, rl.Prune())
		assert.Equal(t, 0, rl.GetStats("").Clients)
	})
}

func TestRateLimiterRefill(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(4, 0, true)
	rl.SetClock(func() time.Time { return now })

	for i := 0; i < 4; i++ {
		assert.True(t, rl.Allow("k"))
	}
	assert.False(t, rl.Allow("k"))

	// One request's worth refills every 15s.
	now = now.Add(16 * time.Second)
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	stats := rl.GetStats("k")
	assert.Equal(t, 0, stats.RemainingThisMinute)
	assert.Equal(t, 0, stats.LimitPerHour)
	assert.Equal(t, 4, rl.GetStats("other").RemainingThisMinute)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)
	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("k"))
	}
	assert.False(t, rl.GetStats("k").Enabled)
}
