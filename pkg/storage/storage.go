package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sw33tLie/evscope/pkg/event"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB is the SQLite catalog.
type DB struct {
	sql *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
  id               TEXT PRIMARY KEY,
  source_name      TEXT NOT NULL,
  source_url       TEXT NOT NULL,
  title            TEXT NOT NULL,
  description      TEXT,
  start_at         INTEGER,
  venue            TEXT,
  address          TEXT,
  city             TEXT,
  categories       TEXT NOT NULL DEFAULT '[]',
  image_url        TEXT,
  fingerprint      TEXT NOT NULL,
  status           TEXT NOT NULL CHECK (status IN ('new','updated','inactive','imported')),
  inactive_reason  TEXT,
  last_seen_at     INTEGER NOT NULL,
  imported_at      INTEGER,
  imported_by      TEXT,
  import_notes     TEXT,
  created_at       INTEGER NOT NULL,
  updated_at       INTEGER NOT NULL,
  UNIQUE(source_name, source_url)
);
CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
CREATE INDEX IF NOT EXISTS idx_events_last_seen ON events(last_seen_at);
CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_at);
`

const recordColumns = `id, source_name, source_url, title, description, start_at, venue, address, city,
  categories, image_url, fingerprint, status, inactive_reason, last_seen_at, imported_at, imported_by,
  import_notes, created_at, updated_at`

// Open opens (and if needed creates) the SQLite catalog at path.
func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// FindBySource returns the record with the given source identity, or ErrNotFound.
func (d *DB) FindBySource(ctx context.Context, sourceName, sourceURL string) (*event.Record, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM events WHERE source_name = ? AND source_url = ?", sourceName, sourceURL)
	return scanRecord(row)
}

// Get returns the record with the given ID, or ErrNotFound.
func (d *DB) Get(ctx context.Context, id string) (*event.Record, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM events WHERE id = ?", id)
	return scanRecord(row)
}

// Insert stores a new record. An empty ID is filled with a fresh UUID.
// A clash on (source name, source URL) yields ErrDuplicate.
func (d *DB) Insert(ctx context.Context, rec *event.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	cats, err := encodeCategories(rec.Categories)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO events(`+recordColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.SourceName, rec.SourceURL, rec.Title, nullString(rec.Description), nullTime(rec.Start),
		nullString(rec.Venue), nullString(rec.Address), nullString(rec.City), cats, nullString(rec.ImageURL),
		rec.Fingerprint, string(rec.Status), nullIfEmpty(rec.InactiveReason), toNanos(rec.LastSeenAt),
		nullTime(rec.ImportedAt), nullIfEmpty(rec.ImportedBy), nullString(rec.ImportNotes),
		toNanos(rec.CreatedAt), toNanos(rec.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s", ErrDuplicate, rec.SourceName, rec.SourceURL)
		}
		return err
	}
	return nil
}

// UpdateContent overwrites the content fields of a record, marks it updated
// and clears any inactive reason. Import metadata is left alone.
func (d *DB) UpdateContent(ctx context.Context, id string, c event.Candidate, fingerprint string, at time.Time) error {
	cats, err := encodeCategories(c.Categories)
	if err != nil {
		return err
	}
	res, err := d.sql.ExecContext(ctx, `UPDATE events SET title = ?, description = ?, start_at = ?, venue = ?, address = ?, city = ?,
  categories = ?, image_url = ?, fingerprint = ?, status = 'updated', inactive_reason = NULL, last_seen_at = ?, updated_at = ?
  WHERE id = ?`,
		c.Title, nullString(c.Description), nullTime(c.Start), nullString(c.Venue), nullString(c.Address), nullString(c.City),
		cats, nullString(c.ImageURL), fingerprint, toNanos(at), toNanos(at), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Touch only refreshes last_seen_at.
func (d *DB) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := d.sql.ExecContext(ctx, `UPDATE events SET last_seen_at = ? WHERE id = ?`, toNanos(at), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Deactivate marks every non-inactive record matching f as inactive with the
// given reason, in a single statement, and returns how many rows changed.
func (d *DB) Deactivate(ctx context.Context, f DeactivateFilter, reason string, at time.Time) (int64, error) {
	if f.LastSeenBefore == nil && f.StartBefore == nil && f.StartAfter == nil {
		return 0, errEmptyFilter
	}
	where := "WHERE status <> 'inactive'"
	args := []interface{}{reason, toNanos(at)}
	if f.LastSeenBefore != nil {
		where += " AND last_seen_at < ?"
		args = append(args, toNanos(*f.LastSeenBefore))
	}
	if f.StartBefore != nil {
		where += " AND start_at IS NOT NULL AND start_at < ?"
		args = append(args, toNanos(*f.StartBefore))
	}
	if f.StartAfter != nil {
		where += " AND start_at IS NOT NULL AND start_at > ?"
		args = append(args, toNanos(*f.StartAfter))
	}
	res, err := d.sql.ExecContext(ctx, "UPDATE events SET status = 'inactive', inactive_reason = ?, updated_at = ? "+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Import marks a record as imported. A record is imported at most once: a
// record imported before fails with ErrAlreadyImported, even if a later
// content change moved it back to updated. Unknown IDs yield ErrNotFound.
func (d *DB) Import(ctx context.Context, id, importedBy string, notes *string, at time.Time) error {
	res, err := d.sql.ExecContext(ctx, `UPDATE events SET status = 'imported', imported_at = ?, imported_by = ?,
  import_notes = COALESCE(?, import_notes), updated_at = ? WHERE id = ? AND imported_at IS NULL`,
		toNanos(at), nullIfEmpty(importedBy), nullString(notes), toNanos(at), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var status string
	err = d.sql.QueryRowContext(ctx, "SELECT status FROM events WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadyImported
}

// List returns records matching opts, ordered by start time (unknown dates
// last) and then newest first.
func (d *DB) List(ctx context.Context, opts ListOptions) ([]event.Record, error) {
	statuses := defaultStatuses(opts.Statuses)
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, 0, len(statuses)+6)
	for i, s := range statuses {
		placeholders[i] = "?"
		args = append(args, string(s))
	}
	where := "WHERE status IN (" + strings.Join(placeholders, ",") + ")"
	if opts.Source != "" {
		where += " AND source_name = ?"
		args = append(args, opts.Source)
	}
	if opts.City != "" {
		where += " AND city = ?"
		args = append(args, opts.City)
	}
	if opts.Keyword != "" {
		kw := likePattern(opts.Keyword)
		where += ` AND (title LIKE ? ESCAPE '\' OR venue LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`
		args = append(args, kw, kw, kw)
	}
	if opts.StartFrom != nil {
		where += " AND start_at >= ?"
		args = append(args, toNanos(*opts.StartFrom))
	}
	if opts.StartTo != nil {
		where += " AND start_at <= ?"
		args = append(args, toNanos(*opts.StartTo))
	}
	args = append(args, defaultLimit(opts.Limit), defaultOffset(opts.Offset))

	q := "SELECT " + recordColumns + " FROM events " + where + " ORDER BY start_at IS NULL, start_at, created_at DESC LIMIT ? OFFSET ?"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Count returns the number of records in the catalog, whatever their status.
func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

// GetStats counts records by source and status.
func (d *DB) GetStats(ctx context.Context) (Stats, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT source_name, status, COUNT(*) FROM events GROUP BY source_name, status`)
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

type statsAccumulator struct {
	total    int
	byStatus map[event.Status]int
	bySource map[string]*SourceStats
}

func newStatsAccumulator() *statsAccumulator {
	return &statsAccumulator{byStatus: map[event.Status]int{}, bySource: map[string]*SourceStats{}}
}

func (a *statsAccumulator) add(source string, status event.Status, n int) {
	a.total += n
	a.byStatus[status] += n
	s, ok := a.bySource[source]
	if !ok {
		s = &SourceStats{Source: source}
		a.bySource[source] = s
	}
	s.add(status, n)
}

func (a *statsAccumulator) stats() Stats {
	out := Stats{Total: a.total, ByStatus: a.byStatus}
	for _, s := range a.bySource {
		out.Sources = append(out.Sources, *s)
	}
	sort.Slice(out.Sources, func(i, j int) bool { return out.Sources[i].Source < out.Sources[j].Source })
	return out
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*event.Record, error) {
	var (
		rec                               event.Record
		desc, venue, address, city, image sql.NullString
		reason, importedBy, importNotes   sql.NullString
		startAt, importedAt               sql.NullInt64
		lastSeen, created, updated        int64
		cats, status                      string
	)
	err := row.Scan(&rec.ID, &rec.SourceName, &rec.SourceURL, &rec.Title, &desc, &startAt, &venue, &address, &city,
		&cats, &image, &rec.Fingerprint, &status, &reason, &lastSeen, &importedAt, &importedBy, &importNotes,
		&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Description = fromNullString(desc)
	rec.Venue = fromNullString(venue)
	rec.Address = fromNullString(address)
	rec.City = fromNullString(city)
	rec.ImageURL = fromNullString(image)
	rec.Start = fromNullTime(startAt)
	rec.Status = event.Status(status)
	rec.InactiveReason = reason.String
	rec.LastSeenAt = fromNanos(lastSeen)
	rec.ImportedAt = fromNullTime(importedAt)
	rec.ImportedBy = importedBy.String
	rec.ImportNotes = fromNullString(importNotes)
	rec.CreatedAt = fromNanos(created)
	rec.UpdatedAt = fromNanos(updated)
	if err := json.Unmarshal([]byte(cats), &rec.Categories); err != nil {
		return nil, fmt.Errorf("decode categories of %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
