package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentaldesk/internal/config"
)

type fakeCompleter struct {
	calls     atomic.Int32
	olderThan time.Duration
	n         int
	err       error
}

func (f *fakeCompleter) CompleteDue(_ context.Context, olderThan time.Duration) (int, error) {
	f.calls.Add(1)
	f.olderThan = olderThan
	return f.n, f.err
}

type fakeBackuper struct {
	backups    int
	cleanups   int
	backupErr  error
	cleanupErr error
}

func (f *fakeBackuper) PerformBackup(context.Context) (string, error) {
	f.backups++
	return "data/backups/dentaldesk_20240101_030000.db", f.backupErr
}

func (f *fakeBackuper) CleanupOldBackups() (int, error) {
	f.cleanups++
	return 2, f.cleanupErr
}

func newTestScheduler(t *testing.T, cfg Config, c Completer, b Backuper) *Scheduler {
	t.Helper()
	logger := zerolog.Nop()
	s, err := NewScheduler(cfg, c, b, &logger)
	require.NoError(t, err)
	return s
}

func TestConfigFromApp(t *testing.T) {
	cfg := &config.Config{}
	cfg.Booking.Timezone = "UTC"
	cfg.Jobs.CompleteSchedule = "*/15 * * * *"
	cfg.Jobs.CompleteAfterHours = 6
	cfg.Backup.Schedule = "0 3 * * *"

	got := ConfigFromApp(cfg)
	assert.Equal(t, "*/15 * * * *", got.CompleteSchedule)
	assert.Equal(t, 6*time.Hour, got.CompleteAfter)
	assert.Empty(t, got.BackupSchedule, "backup disabled")

	cfg.Backup.Enabled = true
	assert.Equal(t, "0 3 * * *", ConfigFromApp(cfg).BackupSchedule)
}

func TestNewScheduler(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name        string
		cfg         Config
		backups     Backuper
		wantEntries int
		wantErr     bool
	}{
		{name: "all disabled", cfg: Config{}, wantEntries: 0},
		{name: "completion only", cfg: Config{CompleteSchedule: "0 * * * *"}, wantEntries: 1},
		{
			name:        "backup without service is skipped",
			cfg:         Config{CompleteSchedule: "0 * * * *", BackupSchedule: "0 3 * * *"},
			wantEntries: 1,
		},
		{
			name:        "both",
			cfg:         Config{CompleteSchedule: "@hourly", BackupSchedule: "0 3 * * *"},
			backups:     &fakeBackuper{},
			wantEntries: 2,
		},
		{name: "bad complete spec", cfg: Config{CompleteSchedule: "every minute"}, wantErr: true},
		{name: "bad backup spec", cfg: Config{BackupSchedule: "61 * * * *"}, backups: &fakeBackuper{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScheduler(tt.cfg, &fakeCompleter{}, tt.backups, &logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, s.cron.Entries(), tt.wantEntries)
		})
	}
}

func TestRunCompleteDue(t *testing.T) {
	c := &fakeCompleter{n: 3}
	s := newTestScheduler(t, Config{CompleteAfter: 24 * time.Hour}, c, nil)

	require.NoError(t, s.RunCompleteDue(t.Context()))
	assert.Equal(t, int32(1), c.calls.Load())
	assert.Equal(t, 24*time.Hour, c.olderThan)

	c.err = errors.New("database is locked")
	assert.ErrorIs(t, s.RunCompleteDue(t.Context()), c.err)
}

func TestRunBackup(t *testing.T) {
	t.Run("backup then cleanup", func(t *testing.T) {
		b := &fakeBackuper{}
		s := newTestScheduler(t, Config{}, &fakeCompleter{}, b)

		require.NoError(t, s.RunBackup(t.Context()))
		assert.Equal(t, 1, b.backups)
		assert.Equal(t, 1, b.cleanups)
	})

	t.Run("failed backup skips cleanup", func(t *testing.T) {
		b := &fakeBackuper{backupErr: errors.New("disk full")}
		s := newTestScheduler(t, Config{}, &fakeCompleter{}, b)

		assert.Error(t, s.RunBackup(t.Context()))
		assert.Equal(t, 0, b.cleanups)
	})

	t.Run("cleanup error is reported", func(t *testing.T) {
		b := &fakeBackuper{cleanupErr: errors.New("permission denied")}
		s := newTestScheduler(t, Config{}, &fakeCompleter{}, b)

		assert.Error(t, s.RunBackup(t.Context()))
	})
}

func TestSchedulerRunsJobs(t *testing.T) {
	c := &fakeCompleter{}
	s := newTestScheduler(t, Config{CompleteSchedule: "@every 1s", CompleteAfter: time.Hour}, c, nil)

	s.Start(t.Context())
	s.Start(t.Context())

	assert.Eventually(t, func() bool { return c.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
