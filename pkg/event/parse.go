package event

import (
	"fmt"
	"strings"
	"time"
)

var startLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"Mon, 2 Jan 2006 15:04",
	"Monday 2 January 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// ParseStart turns scraped date text into a start time. Text that does not
// parse yields nil: an unknown date is absent, never epoch zero or "now".
func ParseStart(text string) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			if t.IsZero() {
				return nil
			}
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// NormalizeStart drops zero-valued start times and converts the rest to UTC.
func NormalizeStart(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// ParseBounds parses an inclusive start-time range for listings. Either side
// may be empty to leave it open. A bare date as the upper bound covers that
// whole day.
func ParseBounds(from, to string) (lo, hi *time.Time, err error) {
	if strings.TrimSpace(from) != "" {
		if lo = ParseStart(from); lo == nil {
			return nil, nil, fmt.Errorf("invalid start date %q", from)
		}
	}
	if to = strings.TrimSpace(to); to != "" {
		if hi = ParseStart(to); hi == nil {
			return nil, nil, fmt.Errorf("invalid end date %q", to)
		}
		if _, err := time.Parse("2006-01-02", to); err == nil {
			end := hi.Add(24*time.Hour - time.Nanosecond)
			hi = &end
		}
	}
	if lo != nil && hi != nil && hi.Before(*lo) {
		return nil, nil, fmt.Errorf("end date %s is before start date %s", to, from)
	}
	return lo, hi, nil
}
