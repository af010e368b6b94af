package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"real-estate-cms/internal/cleanup"
	"real-estate-cms/internal/config"
)

type fakePurger struct {
	got   cleanup.CleanupConfig
	calls int
	err   error
}

func (f *fakePurger) PhysicallyDelete(ctx context.Context, cfg cleanup.CleanupConfig) (*cleanup.CleanupResult, error) {
	f.calls++
	f.got = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &cleanup.CleanupResult{DeletedCount: 2, DryRun: cfg.DryRun}, nil
}

func TestParseDailyRunTime(t *testing.T) {
	s := NewScheduler(&fakePurger{}, nil, config.CleanupConfig{}, nil)
	tests := []struct {
		in   string
		want string
	}{
		{"02:00", "0 2 * * *"},
		{"23:45", "45 23 * * *"},
		{"7:05", "5 7 * * *"},
		{"", "0 3 * * *"},
		{"noon", "0 3 * * *"},
		{"25:00", "0 3 * * *"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.parseDailyRunTime(tt.in), tt.in)
	}
}

func TestRunNow(t *testing.T) {
	t.Run("ok: passes configured limits", func(t *testing.T) {
		p := &fakePurger{}
		s := NewScheduler(p, nil, config.CleanupConfig{RetentionDays: 30, MaxDeletionCount: 5, DryRun: true}, nil)

		result, err := s.RunNow(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, result.DeletedCount)
		assert.Equal(t, cleanup.CleanupConfig{RetentionDays: 30, MaxDeletionCount: 5, DryRun: true}, p.got)
	})

	t.Run("err: pass already running", func(t *testing.T) {
		p := &fakePurger{err: cleanup.ErrBusy}
		s := NewScheduler(p, nil, config.CleanupConfig{}, nil)

		_, err := s.RunNow(context.Background())
		assert.ErrorIs(t, err, cleanup.ErrBusy)
		assert.Equal(t, 1, p.calls)
	})
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&fakePurger{}, nil, config.CleanupConfig{Enabled: true, DailyRunTime: "04:00"}, nil)
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 1)
	assert.True(t, s.started)
	s.Stop()
	assert.False(t, s.started)
	s.Stop()
}
