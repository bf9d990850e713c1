package event

import (
	"testing"
	"time"
)

func baseCandidate() Candidate {
	start := time.Date(2026, 11, 3, 19, 30, 0, 0, time.UTC)
	return Candidate{
		Title:       "Harbour Lights",
		Description: Str("An evening walk"),
		Start:       &start,
		Venue:       Str("Circular Quay"),
		Address:     Str("1 Alfred St, Sydney"),
		City:        Str("Sydney"),
		Categories:  []string{"community"},
		ImageURL:    Str("https://img.example.com/a.jpg"),
		SourceName:  "CityOfSydney",
		SourceURL:   "https://whatson.example.com/events/harbour-lights",
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := baseCandidate()
	b := baseCandidate()
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("identical candidates produced different fingerprints")
	}
	if got := len(Fingerprint(a)); got != 64 {
		t.Fatalf("expected 64 hex chars, got %d", got)
	}
}

func TestFingerprintIgnoresNonContentFields(t *testing.T) {
	a := baseCandidate()
	b := baseCandidate()
	b.Categories = []string{"music", "arts"}
	b.City = Str("Melbourne")
	b.SourceName = "Eventbrite"
	b.SourceURL = "https://other.example.com/e/1"
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("categories, city or source identity changed the fingerprint")
	}
}

func TestFingerprintSameInstantDifferentZone(t *testing.T) {
	a := baseCandidate()
	b := baseCandidate()
	loc := time.FixedZone("AEDT", 11*3600)
	local := a.Start.In(loc)
	b.Start = &local
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("the same instant in another zone changed the fingerprint")
	}
}

func TestFingerprintDetectsContentChanges(t *testing.T) {
	later := time.Date(2026, 11, 4, 19, 30, 0, 0, time.UTC)
	tests := []struct {
		name   string
		mutate func(c *Candidate)
	}{
		{"title", func(c *Candidate) { c.Title = "Harbour Lights II" }},
		{"description", func(c *Candidate) { c.Description = Str("A morning walk") }},
		{"start", func(c *Candidate) { c.Start = &later }},
		{"venue", func(c *Candidate) { c.Venue = Str("Barangaroo") }},
		{"address", func(c *Candidate) { c.Address = Str("2 Alfred St, Sydney") }},
		{"image", func(c *Candidate) { c.ImageURL = Str("https://img.example.com/b.jpg") }},
		{"start removed", func(c *Candidate) { c.Start = nil }},
	}

	base := Fingerprint(baseCandidate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseCandidate()
			tt.mutate(&c)
			if Fingerprint(c) == base {
				t.Fatalf("changing %s did not change the fingerprint", tt.name)
			}
		})
	}
}

func TestFingerprintAbsentVersusEmpty(t *testing.T) {
	a := baseCandidate()
	b := baseCandidate()
	a.Venue = nil
	b.Venue = Str("")
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatalf("absent and empty venue must not collide")
	}
}

func TestFingerprintNoBoundaryForgery(t *testing.T) {
	a := baseCandidate()
	b := baseCandidate()
	a.Venue = Str("ab")
	a.Address = Str("c")
	b.Venue = Str("a")
	b.Address = Str("bc")
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatalf("moving bytes between adjacent fields must change the fingerprint")
	}
}
