package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sw33tLie/evscope/pkg/event"
	"github.com/sw33tLie/evscope/pkg/storage"
)

var t0 = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

// clock is a manually advanced time source.
type clock struct{ now time.Time }

func newClock() *clock { return &clock{now: t0} }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func openCatalog(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "events.sqlite"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func candidate(url, title string, start *time.Time) event.Candidate {
	return event.Candidate{
		Title:      title,
		Start:      start,
		Venue:      event.Str("Town Hall"),
		City:       event.Str("Sydney"),
		SourceName: "test",
		SourceURL:  url,
	}
}

func mustFind(t *testing.T, db *storage.DB, url string) *event.Record {
	t.Helper()
	rec, err := db.FindBySource(context.Background(), "test", url)
	if err != nil {
		t.Fatalf("find %s: %v", url, err)
	}
	return rec
}

func at(t time.Time) *time.Time { return &t }
