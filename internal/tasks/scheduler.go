package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/robfig/cron/v3"
)

// cronLogger adapts a charm logger to [cron.Logger].
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// Scheduler runs periodic jobs on cron specs.
//
// Overlapping runs of the same job are skipped and panics are recovered by the cron chain.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *log.Logger
	jobs    map[string]cron.EntryID
}

// NewScheduler creates a scheduler evaluating specs in loc (local time when nil).
// Every job run gets a context that expires after timeout.
func NewScheduler(loc *time.Location, timeout time.Duration, logger *log.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		timeout: timeout,
		logger:  logger,
		jobs:    map[string]cron.EntryID{},
	}
}

// Add registers fn under name. An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context) error) error {
	if spec == "" {
		s.logger.Debug("job disabled", "job", name)
		return nil
	}

	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		started := time.Now()
		s.logger.Info("job started", "job", name)
		if err := fn(ctx); err != nil {
			s.logger.Error("job failed", "job", name, "error", err)
			return
		}
		s.logger.Info("job finished", "job", name, "elapsed", time.Since(started).Round(time.Millisecond))
	})
	if err != nil {
		return fmt.Errorf("%w: job %s has bad schedule %q: %v", shared.ErrInvalidConfig, name, spec, err)
	}

	s.jobs[name] = id
	return nil
}

// Jobs returns the registered job names with their next run time.
func (s *Scheduler) Jobs() map[string]time.Time {
	out := make(map[string]time.Time, len(s.jobs))
	for name, id := range s.jobs {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop halts scheduling and waits for running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterJobs adds the sync, watch renewal and prediction jobs from cfg.
func RegisterJobs(s *Scheduler, engine *CalendarEngine, cfg shared.SyncConfig) error {
	if err := s.Add("sync", cfg.SyncSchedule, func(ctx context.Context) error {
		res, err := engine.SyncAll(ctx, nil)
		if err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d of %d syncs failed", res.Failed, len(res.Jobs))
		}
		return nil
	}); err != nil {
		return err
	}

	if err := s.Add("renew-watches", cfg.RenewSchedule, func(ctx context.Context) error {
		// Renew anything lapsing before the next day's run.
		_, err := engine.RenewWatches(ctx, nil, 24*time.Hour)
		return err
	}); err != nil {
		return err
	}

	return s.Add("predict", cfg.PredictSchedule, func(ctx context.Context) error {
		failed, err := engine.PredictAll(ctx, nil, engine.now())
		if err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d predictions failed", failed)
		}
		return nil
	})
}
