package cityofsydney

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sw33tLie/evscope/pkg/sources"
	"github.com/sw33tLie/evscope/pkg/whttp"
)

const listPage = `<html><body>
<a href="/events/night-market">Night Market</a>
<a href="/events/night-market">Night Market (again)</a>
<a href="/events/broken">Broken</a>
<a href="/events/harbour-lights">Harbour Lights</a>
<a href="/about">About</a>
</body></html>`

const detailPage = `<html><head>
<title>%[1]s | City of Sydney</title>
<meta name="description" content="Meta description">
<meta property="og:image" content="https://img.example.com/%[2]s.jpg">
</head><body>
<h1> %[1]s </h1>
<div data-testid="event-description">Stalls and music.</div>
<time datetime="2026-11-05T18:00:00+11:00">5 Nov</time>
<div data-testid="event-location"><h3>Town Hall</h3><p>483 George St, Sydney</p></div>
</body></html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, listPage)
		case "/events/night-market":
			fmt.Fprintf(w, detailPage, "Night Market", "nm")
		case "/events/harbour-lights":
			fmt.Fprintf(w, detailPage, "Harbour Lights", "hl")
		default:
			http.NotFound(w, r)
		}
	}))
}

func newAdapter(t *testing.T, base string, max int) *Adapter {
	t.Helper()
	client, err := whttp.NewClient(whttp.Options{Retries: 0})
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(base, client, sources.Options{MaxRecords: max})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestFetchCandidates(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	got, err := newAdapter(t, srv.URL, 0).FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates (broken page skipped), got %d", len(got))
	}

	c := got[0]
	if c.Title != "Night Market" || c.SourceName != Name || c.SourceURL != srv.URL+"/events/night-market" {
		t.Fatalf("unexpected identity: %+v", c)
	}
	if c.Description == nil || *c.Description != "Stalls and music." {
		t.Fatalf("description = %v", c.Description)
	}
	want := time.Date(2026, 11, 5, 7, 0, 0, 0, time.UTC)
	if c.Start == nil || !c.Start.Equal(want) {
		t.Fatalf("start = %v, want %v", c.Start, want)
	}
	if *c.Venue != "Town Hall" || *c.Address != "483 George St, Sydney" || *c.City != "Sydney" {
		t.Fatalf("location = %v / %v / %v", *c.Venue, *c.Address, *c.City)
	}
	if c.ImageURL == nil || *c.ImageURL != "https://img.example.com/nm.jpg" {
		t.Fatalf("image = %v", c.ImageURL)
	}
	if len(c.Categories) != 1 || c.Categories[0] != "community" {
		t.Fatalf("categories = %v", c.Categories)
	}
}

func TestFetchCandidatesRespectsMaxRecords(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	got, err := newAdapter(t, srv.URL, 1).FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
}

func TestFetchCandidatesListFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	if _, err := newAdapter(t, srv.URL, 0).FetchCandidates(context.Background()); err == nil {
		t.Fatal("expected list page failure to fail the adapter")
	}
}

func TestParseDetailFallbacks(t *testing.T) {
	body := `<html><head><meta name="description" content="From meta"></head>
<body><span class="event-date">2026-12-01</span></body></html>`
	c, err := parseDetail(body, "Page Title")
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "Page Title" {
		t.Fatalf("title = %q", c.Title)
	}
	if c.Description == nil || *c.Description != "From meta" {
		t.Fatalf("description = %v", c.Description)
	}
	if c.Start == nil || c.Start.Format("2006-01-02") != "2026-12-01" {
		t.Fatalf("start = %v", c.Start)
	}
	if c.Venue != nil || c.Address != nil || c.ImageURL != nil {
		t.Fatalf("missing fields should be absent: %+v", c)
	}
}
