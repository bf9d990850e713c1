package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sw33tLie/evscope/pkg/storage"
)

const (
	// DefaultStaleAfter is how long a record may go unseen before it is deactivated.
	DefaultStaleAfter = 24 * time.Hour
	// PastDateGrace keeps events visible for a day after they start.
	PastDateGrace = 24 * time.Hour
	// FutureHorizon is the furthest plausible start date.
	FutureHorizon = 365 * 24 * time.Hour
)

// SweepSummary holds per-criterion modified counts. Total is their sum and
// may count a record twice when it matched more than one criterion.
type SweepSummary struct {
	Total      int `json:"total" yaml:"total"`
	NotScraped int `json:"notScraped" yaml:"notScraped"`
	PastDates  int `json:"pastDates" yaml:"pastDates"`
	FarFuture  int `json:"farFuture" yaml:"farFuture"`
}

// Sweeper deactivates stale, past and implausibly future records.
type Sweeper struct {
	catalog Catalog
	log     Logger

	Now     func() time.Time
	Metrics *Metrics
}

func NewSweeper(catalog Catalog, log Logger) *Sweeper {
	return &Sweeper{catalog: catalog, log: orNop(log), Now: time.Now}
}

// Sweep applies the three criteria in a fixed order: not recently seen,
// past dated, far future. Each is a single bulk update touching only
// records that are not already inactive, so a repeated sweep is a no-op.
// A failing update stops the sweep; the counts gathered so far are returned
// together with the error.
func (s *Sweeper) Sweep(ctx context.Context, staleAfter time.Duration) (SweepSummary, error) {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	lastSeenCut := now.Add(-staleAfter)
	pastCut := now.Add(-PastDateGrace)
	horizon := now.Add(FutureHorizon)

	var sum SweepSummary
	criteria := []struct {
		filter storage.DeactivateFilter
		reason string
		count  *int
	}{
		{storage.DeactivateFilter{LastSeenBefore: &lastSeenCut}, storage.ReasonNotScraped, &sum.NotScraped},
		{storage.DeactivateFilter{StartBefore: &pastCut}, storage.ReasonPastDate, &sum.PastDates},
		{storage.DeactivateFilter{StartAfter: &horizon}, storage.ReasonFarFuture, &sum.FarFuture},
	}

	for _, c := range criteria {
		n, err := s.catalog.Deactivate(ctx, c.filter, c.reason, now)
		if err != nil {
			return sum, fmt.Errorf("deactivate %q: %w", c.reason, err)
		}
		*c.count = int(n)
		sum.Total += int(n)
		s.Metrics.observeDeactivated(c.reason, n)
	}

	s.log.Debugf("sweep: %d not scraped, %d past, %d far future", sum.NotScraped, sum.PastDates, sum.FarFuture)
	return sum, nil
}
