package eventbrite

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sw33tLie/evscope/pkg/sources"
	"github.com/sw33tLie/evscope/pkg/whttp"
)

const ldPage = `<html><head>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"Organization","name":"Org"}</script>
<script type="application/ld+json">[{"@context":"https://schema.org","@type":"MusicEvent",
 "name":"Jazz on the Harbour","description":"Live jazz.","startDate":"2026-11-20T19:30:00+11:00",
 "location":{"@type":"Place","name":"Opera Bar","address":{"streetAddress":"Bennelong Point","addressLocality":"Sydney"}},
 "image":["https://img.evbuc.com/jazz.jpg"]}]</script>
</head><body><h1>Ignored heading</h1></body></html>`

const markupPage = `<html><head><meta name="description" content="Pottery for beginners"></head><body>
<h1>Pottery Class</h1>
<time datetime="2026-12-02T10:00:00Z">2 Dec</time>
<div data-testid="venue-name">Clay Studio</div>
<div data-testid="venue-address">12 King St, Newtown</div>
<img src="/images/pottery.png">
</body></html>`

func TestFetchCandidates(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/d/sydney/":
			fmt.Fprintf(w, `<a href="/e/jazz-123?aff=list">Jazz</a>
<a href="%s/e/jazz-123?aff=other">Jazz again</a>
<a href="/e/pottery-456">Pottery</a>
<a href="https://www.eventbrite.com/e/elsewhere-1">Elsewhere</a>
<a href="/o/organiser-9">Organiser</a>`, srvURL)
		case "/e/jazz-123":
			fmt.Fprint(w, ldPage)
		case "/e/pottery-456":
			fmt.Fprint(w, markupPage)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	client, err := whttp.NewClient(whttp.Options{})
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(srv.URL+"/d/sydney/", client, sources.Options{})
	if err != nil {
		t.Fatal(err)
	}

	got, err := a.FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}

	jazz := got[0]
	if jazz.SourceName != Name || jazz.SourceURL != srv.URL+"/e/jazz-123" {
		t.Fatalf("identity = %q %q", jazz.SourceName, jazz.SourceURL)
	}
	if jazz.Title != "Jazz on the Harbour" || *jazz.Venue != "Opera Bar" || *jazz.City != "Sydney" {
		t.Fatalf("unexpected jazz candidate: %+v", jazz)
	}
	if !jazz.Start.Equal(time.Date(2026, 11, 20, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", jazz.Start)
	}
	if *jazz.ImageURL != "https://img.evbuc.com/jazz.jpg" {
		t.Fatalf("image = %v", *jazz.ImageURL)
	}
	if len(jazz.Categories) != 1 || jazz.Categories[0] != "music" {
		t.Fatalf("categories = %v", jazz.Categories)
	}

	pottery := got[1]
	if pottery.Title != "Pottery Class" || *pottery.Description != "Pottery for beginners" {
		t.Fatalf("unexpected pottery candidate: %+v", pottery)
	}
	if *pottery.Address != "12 King St, Newtown" || pottery.City != nil {
		t.Fatalf("address/city = %v / %v", pottery.Address, pottery.City)
	}
	if *pottery.ImageURL != srv.URL+"/images/pottery.png" {
		t.Fatalf("image = %v", *pottery.ImageURL)
	}
}

func TestParseDetailGraph(t *testing.T) {
	body := `<script type="application/ld+json">{"@graph":[{"@type":"WebPage"},{"@type":"Event","name":"Fair","image":{"url":"https://x/y.jpg"}}]}</script>`
	page, _ := url.Parse("https://www.eventbrite.com.au/e/fair-1")
	c, err := parseDetail(body, page)
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "Fair" || c.ImageURL == nil || *c.ImageURL != "https://x/y.jpg" {
		t.Fatalf("unexpected candidate: %+v", c)
	}
	if c.Start != nil || len(c.Categories) != 0 {
		t.Fatalf("start/categories should be empty: %+v", c)
	}
}
