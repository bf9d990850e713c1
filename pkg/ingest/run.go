package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sw33tLie/evscope/pkg/event"
	"github.com/sw33tLie/evscope/pkg/sources"
)

// ErrRunInProgress is returned when a run is requested while another one,
// in this process or another, still holds the run lock.
var ErrRunInProgress = errors.New("ingestion run already in progress")

const (
	DefaultFetchTimeout  = 2 * time.Minute
	DefaultRecordTimeout = 10 * time.Second
)

// Locker is a non-blocking cross-process lock, such as a file lock.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}

// Config holds everything a Runner needs.
type Config struct {
	Catalog Catalog
	Sources []sources.Adapter
	Log     Logger   // optional; nil = no logging
	Metrics *Metrics // optional
	Lock    Locker   // optional; nil = in-process guard only
	Now     func() time.Time

	FetchTimeout  time.Duration // per adapter; defaults to DefaultFetchTimeout
	RecordTimeout time.Duration // per record; defaults to DefaultRecordTimeout
	StaleAfter    time.Duration // defaults to DefaultStaleAfter
}

// SourceSummary is the outcome of one adapter within a run.
type SourceSummary struct {
	Name    string          `json:"name" yaml:"name"`
	Fetched int             `json:"fetched" yaml:"fetched"`
	Result  ReconcileResult `json:"result" yaml:"result"`
	Error   string          `json:"error,omitempty" yaml:"error,omitempty"`
}

type RunSummary struct {
	StartedAt     time.Time       `json:"startedAt" yaml:"startedAt"`
	Duration      time.Duration   `json:"duration" yaml:"duration"`
	InsertedTotal int             `json:"insertedTotal" yaml:"insertedTotal"`
	UpdatedTotal  int             `json:"updatedTotal" yaml:"updatedTotal"`
	Deactivated   SweepSummary    `json:"deactivated" yaml:"deactivated"`
	Sources       []SourceSummary `json:"sources" yaml:"sources"`
	SweepError    string          `json:"sweepError,omitempty" yaml:"sweepError,omitempty"`
}

// Runner performs ingestion runs: fetch all sources, reconcile each batch,
// then sweep. At most one run is active at a time.
type Runner struct {
	cfg        Config
	log        Logger
	reconciler *Reconciler
	sweeper    *Sweeper

	running    atomic.Bool
	staleAfter atomic.Int64
}

func New(cfg Config) *Runner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = DefaultRecordTimeout
	}
	log := orNop(cfg.Log)

	rec := NewReconciler(cfg.Catalog, log)
	rec.Now = cfg.Now
	rec.RecordTimeout = cfg.RecordTimeout
	rec.Metrics = cfg.Metrics

	sw := NewSweeper(cfg.Catalog, log)
	sw.Now = cfg.Now
	sw.Metrics = cfg.Metrics

	r := &Runner{cfg: cfg, log: log, reconciler: rec, sweeper: sw}
	r.SetStaleAfter(cfg.StaleAfter)
	return r
}

// SetStaleAfter changes the staleness window used by subsequent runs.
func (r *Runner) SetStaleAfter(d time.Duration) {
	if d <= 0 {
		d = DefaultStaleAfter
	}
	r.staleAfter.Store(int64(d))
}

func (r *Runner) StaleAfter() time.Duration {
	return time.Duration(r.staleAfter.Load())
}

type fetchResult struct {
	candidates []event.Candidate
	err        error
}

// RunOnce performs a single run. Adapter failures are recorded per source
// and never abort the run; the sweep always runs once after all batches.
// Only a sweep failure is returned as the run error, alongside the summary.
func (r *Runner) RunOnce(ctx context.Context) (RunSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return RunSummary{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	if r.cfg.Lock != nil {
		locked, err := r.cfg.Lock.TryLock()
		if err != nil {
			return RunSummary{}, fmt.Errorf("acquiring run lock: %w", err)
		}
		if !locked {
			return RunSummary{}, ErrRunInProgress
		}
		defer func() {
			if err := r.cfg.Lock.Unlock(); err != nil {
				r.log.Warnf("Could not release run lock: %v", err)
			}
		}()
	}

	started := r.cfg.Now()
	summary := RunSummary{StartedAt: started.UTC()}

	results := r.fetchAll(ctx)

	for i, src := range r.cfg.Sources {
		res := results[i]
		ss := SourceSummary{Name: src.Name()}
		if res.err != nil {
			ss.Error = res.err.Error()
			r.log.Errorf("Source %s failed: %v", src.Name(), res.err)
			r.cfg.Metrics.observeSourceFailure(src.Name())
			summary.Sources = append(summary.Sources, ss)
			continue
		}
		ss.Fetched = len(res.candidates)
		ss.Result = r.reconciler.Reconcile(ctx, res.candidates, src.Name())
		summary.InsertedTotal += ss.Result.Inserted
		summary.UpdatedTotal += ss.Result.Updated
		r.log.Infof("%s: %d fetched, %d new, %d updated, %d unchanged, %d skipped",
			src.Name(), ss.Fetched, ss.Result.Inserted, ss.Result.Updated, ss.Result.Unchanged, ss.Result.Skipped)
		summary.Sources = append(summary.Sources, ss)
	}

	deactivated, err := r.sweeper.Sweep(ctx, r.StaleAfter())
	summary.Deactivated = deactivated

	finished := r.cfg.Now()
	summary.Duration = finished.Sub(started)
	r.cfg.Metrics.observeRun(finished, summary.Duration)

	if err != nil {
		summary.SweepError = err.Error()
		return summary, fmt.Errorf("sweep: %w", err)
	}
	return summary, nil
}

// fetchAll runs every adapter concurrently, each under its own timeout.
// Results are indexed like r.cfg.Sources.
func (r *Runner) fetchAll(ctx context.Context) []fetchResult {
	results := make([]fetchResult, len(r.cfg.Sources))
	var g errgroup.Group
	for i, src := range r.cfg.Sources {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
			defer cancel()
			candidates, err := fetchSafely(fctx, src)
			results[i] = fetchResult{candidates: candidates, err: err}
			return nil
		})
	}
	g.Wait()
	return results
}

func fetchSafely(ctx context.Context, src sources.Adapter) (candidates []event.Candidate, err error) {
	defer func() {
		if p := recover(); p != nil {
			candidates, err = nil, fmt.Errorf("adapter panicked: %v", p)
		}
	}()
	return src.FetchCandidates(ctx)
}
