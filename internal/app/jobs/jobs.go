// Package jobs runs the periodic maintenance work: issuing certificates that
// completion listeners missed and recomputing stored progress.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/yigit/coursecred/internal/app/models"
	"github.com/yigit/coursecred/internal/pkg/logger"
)

// Backfiller issues certificates for completed enrollments without one.
type Backfiller interface {
	BackfillCompleted(ctx context.Context, limit int) (*models.BackfillResult, error)
}

// Recalculator recomputes overall progress for every enrollment.
type Recalculator interface {
	RecalculateAll(ctx context.Context) (int, error)
}

// Config holds the cron schedules. An empty schedule disables that job.
type Config struct {
	BackfillSchedule string
	RecalcSchedule   string
	BackfillLimit    int
	// Timeout bounds a single run; zero means one hour.
	Timeout time.Duration
}

// Scheduler owns the cron runner and the registered jobs.
type Scheduler struct {
	cron         *cron.Cron
	backfiller   Backfiller
	recalculator Recalculator
	cfg          Config

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler registers the configured jobs. Runs of the same job never
// overlap and panics are recovered.
func NewScheduler(backfiller Backfiller, recalculator Recalculator, cfg Config) (*Scheduler, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Hour
	}
	cl := cronLogger{}
	s := &Scheduler{
		cron:         cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		backfiller:   backfiller,
		recalculator: recalculator,
		cfg:          cfg,
		entries:      map[string]cron.EntryID{},
	}

	if cfg.BackfillSchedule != "" && backfiller != nil {
		if err := s.register("certificate-backfill", cfg.BackfillSchedule, func(ctx context.Context) error {
			_, err := s.RunBackfill(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}
	if cfg.RecalcSchedule != "" && recalculator != nil {
		if err := s.register("progress-recalculation", cfg.RecalcSchedule, func(ctx context.Context) error {
			_, err := s.RunRecalculation(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Scheduler) register(name, spec string, run func(ctx context.Context) error) error {
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		start := time.Now()
		if err := run(ctx); err != nil {
			logger.Error().Err(err).Str("job", name).Msg("Scheduled job failed")
			return
		}
		logger.Info().Str("job", name).Dur("took", time.Since(start)).Msg("Scheduled job finished")
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}

	s.mu.Lock()
	s.entries[name] = id
	s.mu.Unlock()
	logger.Info().Str("job", name).Str("schedule", spec).Msg("Job scheduled")
	return nil
}

// Jobs returns the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		logger.Warn().Msg("Scheduler stop timed out with jobs still running")
	}
}

// RunBackfill performs one certificate back-fill pass.
func (s *Scheduler) RunBackfill(ctx context.Context) (*models.BackfillResult, error) {
	return s.backfiller.BackfillCompleted(ctx, s.cfg.BackfillLimit)
}

// RunRecalculation recomputes every enrollment's progress.
func (s *Scheduler) RunRecalculation(ctx context.Context) (int, error) {
	return s.recalculator.RecalculateAll(ctx)
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
