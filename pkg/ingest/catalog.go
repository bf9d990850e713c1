package ingest

import (
	"context"
	"time"

	"github.com/sw33tLie/evscope/pkg/event"
	"github.com/sw33tLie/evscope/pkg/storage"
)

// Catalog is the persistence the engine needs. storage.DB and storage.PG
// implement it. Insert must report an identity clash as storage.ErrDuplicate
// and lookups of unknown identities as storage.ErrNotFound.
type Catalog interface {
	FindBySource(ctx context.Context, sourceName, sourceURL string) (*event.Record, error)
	Insert(ctx context.Context, rec *event.Record) error
	UpdateContent(ctx context.Context, id string, c event.Candidate, fingerprint string, at time.Time) error
	Touch(ctx context.Context, id string, at time.Time) error
	Deactivate(ctx context.Context, f storage.DeactivateFilter, reason string, at time.Time) (int64, error)
}

var (
	_ Catalog = (*storage.DB)(nil)
	_ Catalog = (*storage.PG)(nil)
)
