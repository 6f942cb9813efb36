// Package cron runs the payslip pipeline on a schedule using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTimeout bounds a single scheduled run.
const DefaultTimeout = 30 * time.Minute

// RunFunc performs one pipeline run.
type RunFunc func(ctx context.Context) error

// Scheduler triggers a run on a cron schedule. Runs never overlap: a tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	base    context.Context
	cron    *cron.Cron
	spec    string
	run     RunFunc
	timeout time.Duration
	logger  *slog.Logger

	runs     atomic.Int64
	failures atomic.Int64
}

// NewScheduler creates a scheduler for spec in standard 5-field format.
// Every run derives its context from ctx, so cancelling ctx aborts a run in
// flight.
func NewScheduler(ctx context.Context, spec string, run RunFunc, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		base:    ctx,
		cron:    c,
		spec:    spec,
		run:     run,
		timeout: timeout,
		logger:  logger,
	}
}

// Validate parses a schedule without starting anything.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Start registers the pipeline job and begins scheduling.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runJob); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.spec),
		slog.Time("next_run", s.Next()),
	)
	return nil
}

// Next returns the time of the next scheduled run, or zero when not started.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop gracefully stops scheduling. The returned context is done once a
// running job has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers a run immediately in the background.
func (s *Scheduler) RunNow() {
	go s.runJob()
}

// Stats returns how many runs were attempted and how many failed.
func (s *Scheduler) Stats() (runs, failures int64) {
	return s.runs.Load(), s.failures.Load()
}

func (s *Scheduler) runJob() {
	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	defer cancel()

	start := time.Now()
	s.runs.Add(1)
	s.logger.Info("scheduled payslip run starting")

	if err := s.run(ctx); err != nil {
		s.failures.Add(1)
		s.logger.Error("scheduled payslip run failed",
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)
		return
	}

	s.logger.Info("scheduled payslip run completed",
		slog.Duration("duration", time.Since(start)),
	)
}
