package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sw33tLie/evscope/pkg/event"
	"github.com/sw33tLie/evscope/pkg/storage"
)

// ReconcileResult counts what happened to one source batch.
// Skipped covers both rejected candidates and records whose writes failed;
// Failed is the part of Skipped caused by persistence errors.
type ReconcileResult struct {
	Inserted  int `json:"inserted" yaml:"inserted"`
	Updated   int `json:"updated" yaml:"updated"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Failed    int `json:"failed" yaml:"failed"`
}

type outcome string

const (
	outcomeInserted  outcome = "inserted"
	outcomeUpdated   outcome = "updated"
	outcomeUnchanged outcome = "unchanged"
	outcomeInvalid   outcome = "invalid"
	outcomeFailed    outcome = "failed"
)

// Reconciler upserts candidate batches into the catalog by source identity.
type Reconciler struct {
	catalog Catalog
	log     Logger

	// Now is the clock used for last-seen and creation timestamps.
	Now func() time.Time
	// RecordTimeout bounds the persistence calls made for a single record.
	// Zero means no per-record deadline beyond the caller's context.
	RecordTimeout time.Duration
	Metrics       *Metrics
}

func NewReconciler(catalog Catalog, log Logger) *Reconciler {
	return &Reconciler{catalog: catalog, log: orNop(log), Now: time.Now}
}

// Reconcile processes batch strictly in order. Failures are per record: a
// bad candidate or a failed write is counted and the rest of the batch still
// runs. A URL repeated within the batch ends up with its last version.
func (r *Reconciler) Reconcile(ctx context.Context, batch []event.Candidate, sourceLabel string) ReconcileResult {
	var res ReconcileResult
	for _, c := range batch {
		out, err := r.reconcileOne(ctx, c, sourceLabel)
		switch out {
		case outcomeInserted:
			res.Inserted++
		case outcomeUpdated:
			res.Updated++
		case outcomeUnchanged:
			res.Unchanged++
		case outcomeInvalid:
			res.Skipped++
			r.log.Debugf("%s: skipping invalid event %q (url %q)", sourceLabel, c.Title, c.SourceURL)
		case outcomeFailed:
			res.Skipped++
			res.Failed++
			r.log.Warnf("%s: could not reconcile %s: %v", sourceLabel, c.SourceURL, err)
		}
		r.Metrics.observeRecord(sourceLabel, out)
	}
	return res
}

func (r *Reconciler) reconcileOne(ctx context.Context, c event.Candidate, sourceLabel string) (outcome, error) {
	if c.Title == "" || c.SourceURL == "" {
		return outcomeInvalid, nil
	}
	if c.SourceName == "" {
		c.SourceName = sourceLabel
	}
	c.Start = event.NormalizeStart(c.Start)
	fp := event.Fingerprint(c)

	if r.RecordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.RecordTimeout)
		defer cancel()
	}
	now := r.now()

	existing, err := r.catalog.FindBySource(ctx, c.SourceName, c.SourceURL)
	if errors.Is(err, storage.ErrNotFound) {
		rec := &event.Record{
			Candidate:   c,
			Fingerprint: fp,
			Status:      event.StatusNew,
			LastSeenAt:  now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = r.catalog.Insert(ctx, rec)
		if err == nil {
			return outcomeInserted, nil
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return outcomeFailed, fmt.Errorf("insert: %w", err)
		}
		// Another run inserted the same identity first; treat it as a match.
		existing, err = r.catalog.FindBySource(ctx, c.SourceName, c.SourceURL)
	}
	if err != nil {
		return outcomeFailed, fmt.Errorf("lookup: %w", err)
	}

	if existing.Fingerprint != fp {
		if err := r.catalog.UpdateContent(ctx, existing.ID, c, fp, now); err != nil {
			return outcomeFailed, fmt.Errorf("update: %w", err)
		}
		return outcomeUpdated, nil
	}
	if err := r.catalog.Touch(ctx, existing.ID, now); err != nil {
		return outcomeFailed, fmt.Errorf("touch: %w", err)
	}
	return outcomeUnchanged, nil
}

func (r *Reconciler) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}
