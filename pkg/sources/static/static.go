package static

import (
	"context"
	"time"

	"github.com/sw33tLie/evscope/pkg/event"
)

// Adapter returns a fixed batch. Used for local runs and tests.
type Adapter struct {
	name       string
	candidates []event.Candidate
	err        error
}

func New(name string, candidates []event.Candidate) *Adapter {
	return &Adapter{name: name, candidates: candidates}
}

// Failing returns an adapter whose fetch always fails with err.
func Failing(name string, err error) *Adapter {
	return &Adapter{name: name, err: err}
}

func (a *Adapter) Name() string { return a.name }

// Set replaces the batch returned by later fetches.
func (a *Adapter) Set(candidates []event.Candidate) { a.candidates = candidates }

func (a *Adapter) FetchCandidates(ctx context.Context) ([]event.Candidate, error) {
	if a.err != nil {
		return nil, a.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]event.Candidate, len(a.candidates))
	for i, c := range a.candidates {
		if c.SourceName == "" {
			c.SourceName = a.name
		}
		out[i] = c
	}
	return out, nil
}

// Dev returns a small deterministic batch dated relative to now.
func Dev(now time.Time) *Adapter {
	day := now.UTC().Truncate(24 * time.Hour)
	at := func(days int, hour int) *time.Time {
		t := day.AddDate(0, 0, days).Add(time.Duration(hour) * time.Hour)
		return &t
	}
	return New("dev", []event.Candidate{
		{
			Title:       "Night Market",
			Description: event.Str("Street food and live music."),
			Start:       at(3, 18),
			Venue:       event.Str("Town Hall Square"),
			Address:     event.Str("483 George St, Sydney"),
			City:        event.Str("Sydney"),
			Categories:  event.NormalizeCategories([]string{"markets", "live-music"}),
			SourceURL:   "https://example.com/events/night-market",
		},
		{
			Title:      "Harbour Lights",
			Start:      at(10, 20),
			Venue:      event.Str("Circular Quay"),
			City:       event.Str("Sydney"),
			Categories: event.NormalizeCategories([]string{"city-event"}),
			SourceURL:  "https://example.com/events/harbour-lights",
		},
		{
			Title:     "Undated Workshop",
			City:      event.Str("Sydney"),
			SourceURL: "https://example.com/events/undated-workshop",
		},
	})
}
