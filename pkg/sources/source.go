package sources

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/sw33tLie/evscope/pkg/event"
)

// Adapter produces the current listings of one external source. Every
// candidate it returns carries the adapter's Name as its source name.
type Adapter interface {
	Name() string
	FetchCandidates(ctx context.Context) ([]event.Candidate, error)
}

// Logger is the subset of logging adapters need.
type Logger interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Options carries controls shared by all HTML adapters.
type Options struct {
	// MaxRecords caps how many detail pages are fetched per run. 0 = unlimited.
	MaxRecords int
	Log        Logger
}

func (o Options) Logger() Logger {
	if o.Log == nil {
		return nopLogger{}
	}
	return o.Log
}

// Cap returns at most max leading items. A non-positive max keeps them all.
func Cap(urls []string, max int) []string {
	if max <= 0 || len(urls) <= max {
		return urls
	}
	return urls[:max]
}

// Dedupe removes repeated values, keeping first-seen order.
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Resolve makes href absolute against base.
func Resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// SameSite reports whether two URLs belong to the same registrable domain,
// so www.example.com.au and example.com.au match but example.net does not.
// Hosts without a public suffix (IPs, localhost) must match exactly.
func SameSite(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	ha, hb := strings.ToLower(ua.Hostname()), strings.ToLower(ub.Hostname())
	if ha == "" || hb == "" {
		return false
	}
	if net.ParseIP(ha) != nil || net.ParseIP(hb) != nil {
		return ha == hb
	}
	da, errA := publicsuffix.Domain(ha)
	db, errB := publicsuffix.Domain(hb)
	if errA != nil || errB != nil {
		return ha == hb
	}
	return da == db
}

// Text returns a pointer to the trimmed text, or nil when nothing is left.
func Text(s string) *string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil
	}
	return &s
}

// CollectDetails scrapes each detail page in order. A page that fails is
// logged and skipped; only a cancelled context aborts the whole batch.
func CollectDetails(ctx context.Context, source string, urls []string, opts Options,
	scrape func(ctx context.Context, pageURL string) (event.Candidate, error)) ([]event.Candidate, error) {
	log := opts.Logger()
	out := make([]event.Candidate, 0, len(urls))
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		c, err := scrape(ctx, u)
		if err != nil {
			log.Warnf("%s: skipping %s: %v", source, u, err)
			continue
		}
		if c.Title == "" {
			log.Debugf("%s: no title on %s", source, u)
			continue
		}
		c.SourceName = source
		c.SourceURL = u
		out = append(out, c)
	}
	return out, nil
}
