package eventbrite

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/sw33tLie/evscope/pkg/event"
	"github.com/sw33tLie/evscope/pkg/sources"
	"github.com/sw33tLie/evscope/pkg/whttp"
)

const (
	Name           = "Eventbrite"
	DefaultListURL = "https://www.eventbrite.com.au/d/australia--sydney/events/"
)

// Adapter scrapes an Eventbrite discovery page and its event pages.
type Adapter struct {
	list   *url.URL
	client *whttp.Client
	opts   sources.Options
}

func New(listURL string, client *whttp.Client, opts sources.Options) (*Adapter, error) {
	if listURL == "" {
		listURL = DefaultListURL
	}
	list, err := url.Parse(listURL)
	if err != nil {
		return nil, fmt.Errorf("invalid list url %q: %w", listURL, err)
	}
	return &Adapter{list: list, client: client, opts: opts}, nil
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) FetchCandidates(ctx context.Context) ([]event.Candidate, error) {
	urls, err := a.listEventURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	urls = sources.Cap(urls, a.opts.MaxRecords)
	return sources.CollectDetails(ctx, Name, urls, a.opts, a.scrapeDetail)
}

// listEventURLs collects event links with their query strings removed,
// dropping links that leave the listing's site.
func (a *Adapter) listEventURLs(ctx context.Context) ([]string, error) {
	res, err := a.client.Get(ctx, a.list.String())
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Body))
	if err != nil {
		return nil, err
	}

	var urls []string
	doc.Find(`a[href*="/e/"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href, _, _ = strings.Cut(href, "?")
		abs, err := sources.Resolve(a.list, href)
		if err != nil || !sources.SameSite(a.list.String(), abs) {
			return
		}
		urls = append(urls, abs)
	})
	return sources.Dedupe(urls), nil
}

func (a *Adapter) scrapeDetail(ctx context.Context, pageURL string) (event.Candidate, error) {
	res, err := a.client.Get(ctx, pageURL)
	if err != nil {
		return event.Candidate{}, err
	}
	page, err := url.Parse(res.URL)
	if err != nil {
		page = a.list
	}
	return parseDetail(res.Body, page)
}

// parseDetail prefers the page's schema.org Event data and falls back to
// the visible markup for anything it does not carry.
func parseDetail(body string, page *url.URL) (event.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return event.Candidate{}, err
	}

	var c event.Candidate
	var tags []string
	if ld, ok := findEventData(doc); ok {
		c.Title = strings.TrimSpace(ld.Get("name").String())
		c.Description = sources.Text(ld.Get("description").String())
		c.Start = event.ParseStart(ld.Get("startDate").String())
		location := ld.Get("location")
		c.Venue = sources.Text(location.Get("name").String())
		c.Address = sources.Text(location.Get("address.streetAddress").String())
		c.City = sources.Text(location.Get("address.addressLocality").String())
		c.ImageURL = sources.Text(imageOf(ld.Get("image")))
		if t, ok := ld.Map()["@type"]; ok && t.String() != "Event" {
			tags = append(tags, strings.TrimSuffix(t.String(), "Event"))
		}
	}

	if c.Title == "" {
		c.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if c.Description == nil {
		if meta, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			c.Description = sources.Text(meta)
		}
	}
	if c.Start == nil {
		dateText, _ := doc.Find("time").First().Attr("datetime")
		c.Start = event.ParseStart(dateText)
	}
	if c.Venue == nil {
		c.Venue = sources.Text(doc.Find(`[data-testid="venue-name"]`).Text())
	}
	if c.Address == nil {
		c.Address = sources.Text(doc.Find(`[data-testid="venue-address"]`).Text())
	}
	if c.ImageURL == nil {
		if src, ok := doc.Find("img").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
			if abs, err := sources.Resolve(page, src); err == nil {
				c.ImageURL = &abs
			}
		}
	}
	c.Categories = event.NormalizeCategories(tags)
	return c, nil
}

// findEventData returns the first JSON-LD object typed as an event,
// looking inside top-level arrays and @graph containers.
func findEventData(doc *goquery.Document) (gjson.Result, bool) {
	var found gjson.Result
	var ok bool
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := s.Text()
		if !gjson.Valid(raw) {
			return true
		}
		found, ok = searchEvent(gjson.Parse(raw))
		return !ok
	})
	return found, ok
}

func searchEvent(r gjson.Result) (gjson.Result, bool) {
	if r.IsArray() {
		for _, item := range r.Array() {
			if ev, ok := searchEvent(item); ok {
				return ev, true
			}
		}
		return gjson.Result{}, false
	}
	if !r.IsObject() {
		return gjson.Result{}, false
	}
	fields := r.Map()
	if t, ok := fields["@type"]; ok && strings.HasSuffix(t.String(), "Event") {
		return r, true
	}
	if graph, ok := fields["@graph"]; ok {
		return searchEvent(graph)
	}
	return gjson.Result{}, false
}

func imageOf(r gjson.Result) string {
	switch {
	case r.IsArray():
		if items := r.Array(); len(items) > 0 {
			return imageOf(items[0])
		}
		return ""
	case r.IsObject():
		return r.Get("url").String()
	default:
		return r.String()
	}
}
