package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"dentaldesk/internal/config"
	"dentaldesk/internal/metrics"
)

const (
	JobCompleteDue = "complete_due"
	JobBackup      = "backup"
)

// Completer marks past scheduled appointments completed.
type Completer interface {
	CompleteDue(ctx context.Context, olderThan time.Duration) (int, error)
}

// Backuper snapshots the database and prunes old snapshots.
type Backuper interface {
	PerformBackup(ctx context.Context) (string, error)
	CleanupOldBackups() (int, error)
}

// Config holds cron specs for the maintenance jobs. An empty spec disables that job.
type Config struct {
	CompleteSchedule string
	CompleteAfter    time.Duration
	BackupSchedule   string
	Location         *time.Location
}

func ConfigFromApp(cfg *config.Config) Config {
	c := Config{
		CompleteSchedule: cfg.Jobs.CompleteSchedule,
		CompleteAfter:    time.Duration(cfg.Jobs.CompleteAfterHours) * time.Hour,
		Location:         cfg.Location(),
	}
	if cfg.Backup.Enabled {
		c.BackupSchedule = cfg.Backup.Schedule
	}
	return c
}

// Scheduler runs maintenance jobs on cron schedules.
type Scheduler struct {
	cron      *cron.Cron
	cfg       Config
	completer Completer
	backups   Backuper
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler registers the enabled jobs. backups may be nil when backups are off.
func NewScheduler(cfg Config, completer Completer, backups Backuper, logger *zerolog.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s := &Scheduler{
		cfg:       cfg,
		completer: completer,
		backups:   backups,
		logger:    logger.With().Str("component", "jobs").Logger(),
		ctx:       context.Background(),
	}

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if cfg.CompleteSchedule != "" && completer != nil {
		if _, err := s.cron.AddFunc(cfg.CompleteSchedule, func() { _ = s.RunCompleteDue(s.jobContext()) }); err != nil {
			return nil, fmt.Errorf("jobs: complete schedule %q: %w", cfg.CompleteSchedule, err)
		}
	}
	if cfg.BackupSchedule != "" && backups != nil {
		if _, err := s.cron.AddFunc(cfg.BackupSchedule, func() { _ = s.RunBackup(s.jobContext()) }); err != nil {
			return nil, fmt.Errorf("jobs: backup schedule %q: %w", cfg.BackupSchedule, err)
		}
	}
	return s, nil
}

// Start begins running jobs in the background. Jobs receive a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	s.logger.Info().
		Int("jobs", len(s.cron.Entries())).
		Str("complete_schedule", s.cfg.CompleteSchedule).
		Str("backup_schedule", s.cfg.BackupSchedule).
		Msg("job scheduler started")
}

// Stop stops scheduling and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		cancel()
		s.logger.Info().Msg("job scheduler stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// RunCompleteDue completes appointments that ended more than CompleteAfter ago.
func (s *Scheduler) RunCompleteDue(ctx context.Context) error {
	start := time.Now()
	n, err := s.completer.CompleteDue(ctx, s.cfg.CompleteAfter)
	metrics.IncJobRun(JobCompleteDue, err)
	if err != nil {
		s.logger.Error().Err(err).Str("job", JobCompleteDue).Msg("job failed")
		return err
	}
	s.logger.Info().
		Str("job", JobCompleteDue).
		Int("completed", n).
		Dur("elapsed", time.Since(start)).
		Msg("job finished")
	return nil
}

// RunBackup writes a snapshot and removes snapshots past retention.
func (s *Scheduler) RunBackup(ctx context.Context) error {
	start := time.Now()
	path, err := s.backups.PerformBackup(ctx)
	if err != nil {
		metrics.IncJobRun(JobBackup, err)
		s.logger.Error().Err(err).Str("job", JobBackup).Msg("job failed")
		return err
	}

	removed, err := s.backups.CleanupOldBackups()
	metrics.IncJobRun(JobBackup, err)
	if err != nil {
		s.logger.Error().Err(err).Str("job", JobBackup).Str("path", path).Msg("backup written but cleanup failed")
		return err
	}
	s.logger.Info().
		Str("job", JobBackup).
		Str("path", path).
		Int("removed", removed).
		Dur("elapsed", time.Since(start)).
		Msg("job finished")
	return nil
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
