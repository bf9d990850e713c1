package event

import "time"

// Status is the lifecycle state of a catalog record.
type Status string

const (
	StatusNew      Status = "new"
	StatusUpdated  Status = "updated"
	StatusInactive Status = "inactive"
	StatusImported Status = "imported"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusUpdated, StatusInactive, StatusImported:
		return true
	}
	return false
}

// Candidate is a freshly scraped listing that has not been persisted yet.
// Optional fields are pointers: nil means the source did not provide the
// value, which is not the same thing as an empty string.
type Candidate struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	Venue       *string    `json:"venue,omitempty"`
	Address     *string    `json:"address,omitempty"`
	City        *string    `json:"city,omitempty"`
	Categories  []string   `json:"categories"`
	ImageURL    *string    `json:"imageUrl,omitempty"`

	// Source identity. SourceURL is the natural key and is compared byte for byte.
	SourceName string `json:"sourceName"`
	SourceURL  string `json:"sourceUrl"`
}

// Record is the persisted, deduplicated version of a Candidate.
type Record struct {
	Candidate

	ID             string    `json:"id"`
	Fingerprint    string    `json:"fingerprint"`
	Status         Status    `json:"status"`
	InactiveReason string    `json:"inactiveReason,omitempty"`
	LastSeenAt     time.Time `json:"lastSeenAt"`

	// Import metadata, only ever written by the import operation.
	ImportedAt  *time.Time `json:"importedAt,omitempty"`
	ImportedBy  string     `json:"importedBy,omitempty"`
	ImportNotes *string    `json:"importNotes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Str returns a pointer to s. Handy for building candidates.
func Str(s string) *string { return &s }

// Deref returns the pointed-to string, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
