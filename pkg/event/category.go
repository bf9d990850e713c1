package event

import (
	"sort"
	"strings"
)

// unificationMap groups raw, source-specific tags under a unified category.
var unificationMap = map[string][]string{
	"music":     {"music", "concert", "concerts", "gig", "live-music", "festival-music"},
	"arts":      {"arts", "art", "exhibition", "exhibitions", "gallery", "visual-arts"},
	"theatre":   {"theatre", "theater", "performance", "dance", "comedy"},
	"food":      {"food", "food-and-drink", "food-drink", "dining", "markets"},
	"community": {"community", "city-event", "civic", "talks", "workshop", "workshops"},
	"family":    {"family", "kids", "children", "family-friendly"},
	"sport":     {"sport", "sports", "fitness", "sports-fitness"},
	"business":  {"business", "networking", "conference", "professional"},
}

// categoryMap is the reverse index of unificationMap.
var categoryMap map[string]string

func init() {
	categoryMap = make(map[string]string)
	for unified, raws := range unificationMap {
		for _, raw := range raws {
			categoryMap[raw] = unified
		}
	}
}

// NormalizeCategory maps a raw tag onto its unified category. Unknown tags
// are lower-cased with spaces and underscores turned into dashes.
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	c = strings.NewReplacer(" ", "-", "_", "-").Replace(c)
	if unified, ok := categoryMap[c]; ok {
		return unified
	}
	return c
}

// NormalizeCategories normalizes, deduplicates and sorts tags.
func NormalizeCategories(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := NormalizeCategory(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
