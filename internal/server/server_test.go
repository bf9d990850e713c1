package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sw33tLie/evscope/pkg/event"
	"github.com/sw33tLie/evscope/pkg/ingest"
	"github.com/sw33tLie/evscope/pkg/sources"
	"github.com/sw33tLie/evscope/pkg/sources/static"
	"github.com/sw33tLie/evscope/pkg/storage"
)

var t0 = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T) (*storage.DB, []string) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "events.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	var ids []string
	for i, title := range []string{"Night Market", "Harbour Lights"} {
		start := t0.Add(time.Duration(i+1) * 24 * time.Hour)
		c := event.Candidate{
			Title:      title,
			Start:      &start,
			City:       event.Str("Sydney"),
			SourceName: "CityOfSydney",
			SourceURL:  "https://example.com/events/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		}
		rec := &event.Record{Candidate: c, Fingerprint: event.Fingerprint(c), Status: event.StatusNew,
			LastSeenAt: t0, CreatedAt: t0, UpdatedAt: t0}
		if err := db.Insert(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}
	return db, ids
}

type fakeRunner struct {
	err error
}

func (f fakeRunner) RunOnce(context.Context) (ingest.RunSummary, error) {
	return ingest.RunSummary{InsertedTotal: 3}, f.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestImportEndpoint(t *testing.T) {
	db, ids := seed(t)
	s := New(db, nil, nil, "", "")
	s.Now = func() time.Time { return t0 }
	h := s.Router()

	rr := do(t, h, http.MethodPost, "/api/events/"+ids[0]+"/import", `{"importedBy":"alice","notes":"featured"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("first import: %d %s", rr.Code, rr.Body.String())
	}
	var rec event.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Status != event.StatusImported || rec.ImportedBy != "alice" || rec.ImportNotes == nil || *rec.ImportNotes != "featured" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	rr = do(t, h, http.MethodPost, "/api/events/"+ids[0]+"/import", `{"importedBy":"bob"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("second import: %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/api/events/does-not-exist/import", `{"importedBy":"bob"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing import: %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/api/events/"+ids[1]+"/import", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("import without importer: %d", rr.Code)
	}
}

func TestListEndpoint(t *testing.T) {
	db, ids := seed(t)
	h := New(db, nil, nil, "", "").Router()

	rr := do(t, h, http.MethodGet, "/api/events?q=harbour", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d", rr.Code)
	}
	var got []event.Record
	json.Unmarshal(rr.Body.Bytes(), &got)
	if len(got) != 1 || got[0].ID != ids[1] {
		t.Fatalf("unexpected list: %+v", got)
	}

	rr = do(t, h, http.MethodGet, "/api/events?status=imported", "")
	got = nil
	json.Unmarshal(rr.Body.Bytes(), &got)
	if rr.Code != http.StatusOK || len(got) != 0 {
		t.Fatalf("imported list: %d %s", rr.Code, rr.Body.String())
	}

	if rr := do(t, h, http.MethodGet, "/api/events?status=bogus", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad status: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/api/events/"+ids[0], ""); rr.Code != http.StatusOK {
		t.Fatalf("get: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/api/events/nope", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get missing: %d", rr.Code)
	}
}

func TestListEndpointRangeAndPages(t *testing.T) {
	db, ids := seed(t)
	h := New(db, nil, nil, "", "").Router()

	tests := []struct {
		query string
		want  []string
	}{
		{"endDate=2026-10-19", []string{ids[0]}},
		{"startDate=2026-10-20", []string{ids[1]}},
		{"startDate=2026-10-19&endDate=2026-10-20", []string{ids[0], ids[1]}},
		{"limit=1&page=1", []string{ids[0]}},
		{"limit=1&page=2", []string{ids[1]}},
		{"limit=1&page=3", []string{}},
	}
	for _, tt := range tests {
		rr := do(t, h, http.MethodGet, "/api/events?"+tt.query, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", tt.query, rr.Code, rr.Body.String())
		}
		var got []event.Record
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("%s: got %d events, want %d", tt.query, len(got), len(tt.want))
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Fatalf("%s: event %d = %s, want %s", tt.query, i, got[i].ID, tt.want[i])
			}
		}
	}

	for _, query := range []string{"page=0", "page=x", "startDate=soon", "startDate=2026-10-20&endDate=2026-10-19"} {
		if rr := do(t, h, http.MethodGet, "/api/events?"+query, ""); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: %d", query, rr.Code)
		}
	}
}

func TestStatsAndMetrics(t *testing.T) {
	db, _ := seed(t)
	reg := prometheus.NewRegistry()
	ingest.NewMetrics(reg)
	h := New(db, nil, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), "", "").Router()

	rr := do(t, h, http.MethodGet, "/api/stats", "")
	var stats storage.Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.ByStatus[event.StatusNew] != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rr = do(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "evscope_last_run_timestamp_seconds") {
		t.Fatalf("metrics: %d", rr.Code)
	}
}

func TestRunEndpoint(t *testing.T) {
	db, _ := seed(t)

	if rr := do(t, New(db, nil, nil, "", "").Router(), http.MethodPost, "/api/runs", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("runs without runner: %d", rr.Code)
	}
	if rr := do(t, New(db, fakeRunner{}, nil, "", "").Router(), http.MethodPost, "/api/runs", ""); rr.Code != http.StatusOK {
		t.Fatalf("run: %d", rr.Code)
	}
	busy := fakeRunner{err: ingest.ErrRunInProgress}
	if rr := do(t, New(db, busy, nil, "", "").Router(), http.MethodPost, "/api/runs", ""); rr.Code != http.StatusConflict {
		t.Fatalf("busy run: %d", rr.Code)
	}
}

func TestRunEndpointOutlivesClient(t *testing.T) {
	db, _ := seed(t)
	src := static.New("CityOfSydney", []event.Candidate{{
		Title:     "Night Market",
		SourceURL: "https://example.com/events/night-market",
	}})
	runner := ingest.New(ingest.Config{
		Catalog: db,
		Sources: []sources.Adapter{src},
		Now:     func() time.Time { return t0.Add(48 * time.Hour) },
	})
	h := New(db, runner, nil, "", "").Router()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("run with departed client: %d %s", rr.Code, rr.Body.String())
	}
	var sum ingest.RunSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.SweepError != "" || len(sum.Sources) != 1 || sum.Sources[0].Error != "" {
		t.Fatalf("summary = %+v", sum)
	}
	// Harbour Lights was not scraped for two days.
	if sum.Deactivated.NotScraped != 1 {
		t.Fatalf("deactivated = %+v", sum.Deactivated)
	}
	rec, err := db.FindBySource(context.Background(), "CityOfSydney", "https://example.com/events/night-market")
	if err != nil || !rec.LastSeenAt.Equal(t0.Add(48*time.Hour)) {
		t.Fatalf("night market = %+v, %v", rec, err)
	}
}

func TestBasicAuth(t *testing.T) {
	db, _ := seed(t)
	h := New(db, nil, nil, "admin", "secret").Router()

	if rr := do(t, h, http.MethodGet, "/api/stats", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: %d", rr.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.SetBasicAuth("admin", "secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated: %d", rr.Code)
	}
}
