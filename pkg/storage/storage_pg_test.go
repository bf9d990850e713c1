package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/sw33tLie/evscope/pkg/event"
)

// Set EVSCOPE_TEST_PG_DSN to a disposable database to run these; every case
// truncates the events table.
const pgDSNEnv = "EVSCOPE_TEST_PG_DSN"

func openTestPG(t *testing.T) *PG {
	t.Helper()
	dsn := os.Getenv(pgDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", pgDSNEnv)
	}
	ctx := context.Background()
	pg, err := OpenPG(ctx, dsn, 3)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { pg.Close() })
	if _, err := pg.pool.Exec(ctx, "TRUNCATE events"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pg
}

func TestPostgresCatalog(t *testing.T) {
	if os.Getenv(pgDSNEnv) == "" {
		t.Skipf("%s not set", pgDSNEnv)
	}
	runCatalogTests(t, func(t *testing.T) catalog { return openTestPG(t) })
}

func TestPostgresRoundTrip(t *testing.T) {
	pg := openTestPG(t)
	ctx := context.Background()

	start := time.Date(2026, 11, 3, 19, 30, 0, 0, time.FixedZone("AEDT", 11*3600))
	rec := newRecord("Eventbrite", "https://example.com/e/1", &start)
	rec.Categories = []string{"music", "Art, Culture"}
	rec.Description = event.Str("")
	if err := pg.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := pg.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Start == nil || !got.Start.Equal(start) || got.Start.Location() != time.UTC {
		t.Fatalf("start = %v, want %v in UTC", got.Start, start)
	}
	if len(got.Categories) != 2 || got.Categories[1] != "Art, Culture" {
		t.Fatalf("categories = %q", got.Categories)
	}
	if got.Description == nil || *got.Description != "" {
		t.Fatalf("empty description must stay present, got %v", got.Description)
	}

	dup := newRecord("Eventbrite", "https://example.com/e/1", nil)
	if err := pg.Insert(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate insert err = %v, want ErrDuplicate", err)
	}

	if _, err := pg.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get malformed id err = %v, want ErrNotFound", err)
	}
}
