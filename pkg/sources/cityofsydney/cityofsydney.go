package cityofsydney

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sw33tLie/evscope/pkg/event"
	"github.com/sw33tLie/evscope/pkg/sources"
	"github.com/sw33tLie/evscope/pkg/whttp"
)

const (
	Name           = "CityOfSydney"
	DefaultBaseURL = "https://whatson.cityofsydney.nsw.gov.au"
	city           = "Sydney"
)

// Adapter scrapes the City of Sydney "What's On" listings.
type Adapter struct {
	base   *url.URL
	client *whttp.Client
	opts   sources.Options
}

func New(baseURL string, client *whttp.Client, opts sources.Options) (*Adapter, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	return &Adapter{base: base, client: client, opts: opts}, nil
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

func (a *Adapter) listEventURLs(ctx context.Context) ([]string, error) {
	res, err := a.client.Get(ctx, a.base.String())
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Body))
	if err != nil {
		return nil, err
	}

	var urls []string
	doc.Find(`a[href^="/events/"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if abs, err := sources.Resolve(a.base, href); err == nil {
			urls = append(urls, abs)
		}
	})
	return sources.Dedupe(urls), nil
}

func (a *Adapter) scrapeDetail(ctx context.Context, pageURL string) (event.Candidate, error) {
	res, err := a.client.Get(ctx, pageURL)
	if err != nil {
		return event.Candidate{}, err
	}
	return parseDetail(res.Body, res.Title)
}

func parseDetail(body, pageTitle string) (event.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return event.Candidate{}, err
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = pageTitle
	}

	description := sources.Text(doc.Find(`[data-testid="event-description"]`).Text())
	if description == nil {
		if meta, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			description = sources.Text(meta)
		}
	}

	dateText, _ := doc.Find("time[datetime]").First().Attr("datetime")
	if strings.TrimSpace(dateText) == "" {
		dateText = doc.Find(`[data-testid*="date"]`).First().Text()
	}
	if strings.TrimSpace(dateText) == "" {
		dateText = doc.Find(".event-date").First().Text()
	}

	location := doc.Find(`[data-testid="event-location"]`)

	var image *string
	if og, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		image = sources.Text(og)
	}

	return event.Candidate{
		Title:       title,
		Description: description,
		Start:       event.ParseStart(dateText),
		Venue:       sources.Text(location.Find("h3").Text()),
		Address:     sources.Text(location.Find("p").Text()),
		City:        event.Str(city),
		Categories:  event.NormalizeCategories([]string{"city-event"}),
		ImageURL:    image,
	}, nil
}
