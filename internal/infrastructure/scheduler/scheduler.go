package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron schedules. Specs have six fields, seconds first.
type Scheduler struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	ctx     context.Context
	timeout time.Duration
}

// New creates a Scheduler. Each run gets a context derived from ctx and
// bounded by timeout. Overlapping runs of the same job are skipped.
func New(ctx context.Context, logger zerolog.Logger, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:  logger,
		ctx:     ctx,
		timeout: timeout,
	}
}

// Add registers job under name.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	s.logger.Info().Str("job", name).Str("schedule", spec).Msg("job registered")

	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	logger := s.logger.With().Str("job", name).Logger()
	ctx = logger.WithContext(ctx)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("job panicked")
		}
	}()

	if err := job(ctx); err != nil {
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("job failed")
		return
	}

	logger.Info().Dur("duration", time.Since(start)).Msg("job finished")
}
