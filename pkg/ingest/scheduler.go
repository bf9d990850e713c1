package ingest

import (
	"context"
	"errors"
	"time"
)

const DefaultInterval = 6 * time.Hour

// Scheduler triggers runs on a fixed interval, starting immediately.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	log      Logger

	// OnRun, if set, receives every run's outcome, including skipped runs.
	OnRun func(RunSummary, error)
}

func NewScheduler(runner *Runner, interval time.Duration, log Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{runner: runner, interval: interval, log: orNop(log)}
}

// Start blocks, running once now and then on every tick until ctx is done.
// A tick that lands while a run is still going is skipped. Cancelling ctx
// stops further ticks; a run already in flight completes first.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.Infof("Scheduler started, running every %v", s.interval)
	runCtx := context.WithoutCancel(ctx)
	s.tick(runCtx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Infof("Scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(runCtx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	summary, err := s.runner.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.log.Warnf("Skipping scheduled run: %v", err)
	case err != nil:
		s.log.Errorf("Scheduled run failed: %v", err)
	default:
		s.log.Infof("Run finished: %d new, %d updated, %d deactivated",
			summary.InsertedTotal, summary.UpdatedTotal, summary.Deactivated.Total)
	}
	if s.OnRun != nil {
		s.OnRun(summary, err)
	}
}
