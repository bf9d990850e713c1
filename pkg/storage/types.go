package storage

import (
	"errors"
	"strings"
	"time"

	"github.com/sw33tLie/evscope/pkg/event"
)

var (
	// ErrNotFound is returned when no record matches the requested identity or ID.
	ErrNotFound = errors.New("event not found")
	// ErrAlreadyImported is returned by Import when the record is already imported.
	ErrAlreadyImported = errors.New("event already imported")
	// ErrDuplicate is returned by Insert when (source name, source URL) already exists.
	ErrDuplicate = errors.New("event with this source identity already exists")

	errEmptyFilter = errors.New("deactivate: empty filter")
)

// Deactivation reasons written by the sweeper.
const (
	ReasonNotScraped = "not found in recent scrapes"
	ReasonPastDate   = "event date has passed"
	ReasonFarFuture  = "event date too far in future"
)

// DeactivateFilter selects records for a bulk deactivation. Set conditions
// are ANDed; records already inactive never match. A record without a start
// time never matches StartBefore or StartAfter.
type DeactivateFilter struct {
	LastSeenBefore *time.Time
	StartBefore    *time.Time
	StartAfter     *time.Time
}

// DefaultListLimit caps a listing when ListOptions.Limit is unset.
const DefaultListLimit = 100

// ListOptions controls selection when listing records. StartFrom and StartTo
// bound the start time inclusively; records without a start never match a
// bounded listing.
type ListOptions struct {
	Statuses  []event.Status
	Source    string
	City      string
	Keyword   string
	StartFrom *time.Time
	StartTo   *time.Time
	Limit     int
	Offset    int
}

// SourceStats counts records per status for one source.
type SourceStats struct {
	Source   string `json:"source"`
	Total    int    `json:"total"`
	New      int    `json:"new"`
	Updated  int    `json:"updated"`
	Inactive int    `json:"inactive"`
	Imported int    `json:"imported"`
}

// Stats summarizes the catalog.
type Stats struct {
	Total    int                  `json:"total"`
	ByStatus map[event.Status]int `json:"byStatus"`
	Sources  []SourceStats        `json:"sources"`
}

func (s *SourceStats) add(status event.Status, n int) {
	s.Total += n
	switch status {
	case event.StatusNew:
		s.New += n
	case event.StatusUpdated:
		s.Updated += n
	case event.StatusInactive:
		s.Inactive += n
	case event.StatusImported:
		s.Imported += n
	}
}

func defaultLimit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	return n
}

func defaultOffset(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches kw literally anywhere in a column. Used with ESCAPE '\'.
func likePattern(kw string) string {
	return "%" + likeEscaper.Replace(kw) + "%"
}

func defaultStatuses(st []event.Status) []event.Status {
	if len(st) == 0 {
		return []event.Status{event.StatusNew, event.StatusUpdated}
	}
	return st
}
