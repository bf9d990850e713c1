package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sw33tLie/evscope/pkg/event"
)

// PG is the Postgres catalog. It offers the same operations as DB.
type PG struct {
	pool *pgxpool.Pool
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS events (
  id               UUID PRIMARY KEY,
  source_name      TEXT NOT NULL,
  source_url       TEXT NOT NULL,
  title            TEXT NOT NULL,
  description      TEXT,
  start_at         TIMESTAMPTZ,
  venue            TEXT,
  address          TEXT,
  city             TEXT,
  categories       TEXT[] NOT NULL DEFAULT '{}',
  image_url        TEXT,
  fingerprint      TEXT NOT NULL,
  status           TEXT NOT NULL CHECK (status IN ('new','updated','inactive','imported')),
  inactive_reason  TEXT,
  last_seen_at     TIMESTAMPTZ NOT NULL,
  imported_at      TIMESTAMPTZ,
  imported_by      TEXT,
  import_notes     TEXT,
  created_at       TIMESTAMPTZ NOT NULL,
  updated_at       TIMESTAMPTZ NOT NULL,
  UNIQUE(source_name, source_url)
);
CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
CREATE INDEX IF NOT EXISTS idx_events_last_seen ON events(last_seen_at);
CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_at);
`

const pgRecordColumns = `id::text, source_name, source_url, title, description, start_at, venue, address, city,
  categories, image_url, fingerprint, status, inactive_reason, last_seen_at, imported_at, imported_by,
  import_notes, created_at, updated_at`

// OpenPG connects to Postgres, retrying the initial ping with exponential
// backoff up to retries times, and ensures the schema exists.
func OpenPG(ctx context.Context, dsn string, retries uint) (*PG, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if retries == 0 {
		retries = 1
	}
	pool, err := backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(retries))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PG{pool: pool}, nil
}

func (p *PG) Close() error {
	if p == nil || p.pool == nil {
		return nil
	}
	p.pool.Close()
	return nil
}

func (p *PG) FindBySource(ctx context.Context, sourceName, sourceURL string) (*event.Record, error) {
	row := p.pool.QueryRow(ctx, "SELECT "+pgRecordColumns+" FROM events WHERE source_name = $1 AND source_url = $2", sourceName, sourceURL)
	return scanPGRecord(row)
}

func (p *PG) Get(ctx context.Context, id string) (*event.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := p.pool.QueryRow(ctx, "SELECT "+pgRecordColumns+" FROM events WHERE id = $1", id)
	return scanPGRecord(row)
}

func (p *PG) Insert(ctx context.Context, rec *event.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	cats := rec.Categories
	if cats == nil {
		cats = []string{}
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO events(id, source_name, source_url, title, description, start_at, venue, address, city,
  categories, image_url, fingerprint, status, inactive_reason, last_seen_at, imported_at, imported_by, import_notes, created_at, updated_at)
  VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		rec.ID, rec.SourceName, rec.SourceURL, rec.Title, rec.Description, rec.Start, rec.Venue, rec.Address, rec.City,
		cats, rec.ImageURL, rec.Fingerprint, string(rec.Status), nullIfEmpty(rec.InactiveReason), rec.LastSeenAt.UTC(),
		rec.ImportedAt, nullIfEmpty(rec.ImportedBy), rec.ImportNotes, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s %s", ErrDuplicate, rec.SourceName, rec.SourceURL)
		}
		return err
	}
	return nil
}

func (p *PG) UpdateContent(ctx context.Context, id string, c event.Candidate, fingerprint string, at time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	cats := c.Categories
	if cats == nil {
		cats = []string{}
	}
	tag, err := p.pool.Exec(ctx, `UPDATE events SET title = $1, description = $2, start_at = $3, venue = $4, address = $5, city = $6,
  categories = $7, image_url = $8, fingerprint = $9, status = 'updated', inactive_reason = NULL, last_seen_at = $10, updated_at = $10
  WHERE id = $11`,
		c.Title, c.Description, c.Start, c.Venue, c.Address, c.City, cats, c.ImageURL, fingerprint, at.UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PG) Touch(ctx context.Context, id string, at time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := p.pool.Exec(ctx, `UPDATE events SET last_seen_at = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PG) Deactivate(ctx context.Context, f DeactivateFilter, reason string, at time.Time) (int64, error) {
	if f.LastSeenBefore == nil && f.StartBefore == nil && f.StartAfter == nil {
		return 0, errEmptyFilter
	}
	args := []interface{}{reason, at.UTC()}
	where := "WHERE status <> 'inactive'"
	next := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.LastSeenBefore != nil {
		where += " AND last_seen_at < " + next(f.LastSeenBefore.UTC())
	}
	if f.StartBefore != nil {
		where += " AND start_at < " + next(f.StartBefore.UTC())
	}
	if f.StartAfter != nil {
		where += " AND start_at > " + next(f.StartAfter.UTC())
	}
	tag, err := p.pool.Exec(ctx, "UPDATE events SET status = 'inactive', inactive_reason = $1, updated_at = $2 "+where, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *PG) Import(ctx context.Context, id, importedBy string, notes *string, at time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := p.pool.Exec(ctx, `UPDATE events SET status = 'imported', imported_at = $1, imported_by = $2,
  import_notes = COALESCE($3, import_notes), updated_at = $1 WHERE id = $4 AND imported_at IS NULL`,
		at.UTC(), nullIfEmpty(importedBy), notes, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var status string
	err = p.pool.QueryRow(ctx, "SELECT status FROM events WHERE id = $1", id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadyImported
}

func (p *PG) List(ctx context.Context, opts ListOptions) ([]event.Record, error) {
	statuses := defaultStatuses(opts.Statuses)
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	args := []interface{}{names}
	where := "WHERE status = ANY($1)"
	next := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if opts.Source != "" {
		where += " AND source_name = " + next(opts.Source)
	}
	if opts.City != "" {
		where += " AND city = " + next(opts.City)
	}
	if opts.Keyword != "" {
		ph := next(likePattern(opts.Keyword)) + ` ESCAPE '\'`
		where += " AND (" + strings.Join([]string{"title ILIKE " + ph, "venue ILIKE " + ph, "description ILIKE " + ph}, " OR ") + ")"
	}
	if opts.StartFrom != nil {
		where += " AND start_at >= " + next(opts.StartFrom.UTC())
	}
	if opts.StartTo != nil {
		where += " AND start_at <= " + next(opts.StartTo.UTC())
	}
	q := "SELECT " + pgRecordColumns + " FROM events " + where +
		" ORDER BY start_at ASC NULLS LAST, created_at DESC LIMIT " + next(defaultLimit(opts.Limit)) +
		" OFFSET " + next(defaultOffset(opts.Offset))

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.Record
	for rows.Next() {
		rec, err := scanPGRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (p *PG) Count(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

func (p *PG) GetStats(ctx context.Context) (Stats, error) {
	rows, err := p.pool.Query(ctx, `SELECT source_name, status, COUNT(*) FROM events GROUP BY source_name, status`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	acc := newStatsAccumulator()
	for rows.Next() {
		var (
			source, status string
			n              int
		)
		if err := rows.Scan(&source, &status, &n); err != nil {
			return Stats{}, err
		}
		acc.add(source, event.Status(status), n)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}
	return acc.stats(), nil
}

func scanPGRecord(row pgx.Row) (*event.Record, error) {
	var (
		rec                 event.Record
		reason, importedBy  *string
		lastSeen, createdAt time.Time
		updatedAt           time.Time
		status              string
	)
	err := row.Scan(&rec.ID, &rec.SourceName, &rec.SourceURL, &rec.Title, &rec.Description, &rec.Start, &rec.Venue,
		&rec.Address, &rec.City, &rec.Categories, &rec.ImageURL, &rec.Fingerprint, &status, &reason, &lastSeen,
		&rec.ImportedAt, &importedBy, &rec.ImportNotes, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Status = event.Status(status)
	rec.InactiveReason = event.Deref(reason)
	rec.ImportedBy = event.Deref(importedBy)
	rec.LastSeenAt = lastSeen.UTC()
	rec.CreatedAt = createdAt.UTC()
	rec.UpdatedAt = updatedAt.UTC()
	if rec.Start != nil {
		t := rec.Start.UTC()
		rec.Start = &t
	}
	return &rec, nil
}
