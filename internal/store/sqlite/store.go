// Package sqlite persists event venue lookups in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ppiankov/geoinfer/internal/model"
	"github.com/ppiankov/geoinfer/internal/store/sqlite/migrations"
)

// ErrNotFound is returned by Get for missing, expired or unreadable rows
var ErrNotFound = errors.New("not found")

// noYear stands in for a NULL event year so the primary key stays NULL-safe
const noYear = 0

// EventVenueStore is the persistent event venue cache
type EventVenueStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or opens the cache database at path and applies migrations
func Open(path string) (*EventVenueStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &EventVenueStore{db: db, path: path, now: time.Now}
	if err := s.migrate(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *EventVenueStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *EventVenueStore) Path() string {
	return s.path
}

func (s *EventVenueStore) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_event_venue_cache.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

const selectColumns = `event_key, event_year, status, venue_name, city, country, lat, lon,
	source_url, confidence, reason, fetched_at, expires_at`

// Get returns the unexpired entry for (key, year). Missing, expired and
// malformed rows all yield ErrNotFound.
func (s *EventVenueStore) Get(ctx context.Context, key string, year *int) (*model.EventVenueResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM event_venue_cache
		WHERE event_key = ? AND event_year = ?
	`, key, yearValue(year))

	r, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, errMalformed) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning event venue: %w", err)
	}
	if !r.ExpiresAt.After(s.now()) {
		return nil, ErrNotFound
	}
	return r, nil
}

// Put upserts r. rawPayload is stored verbatim for later inspection.
func (s *EventVenueStore) Put(ctx context.Context, r *model.EventVenueResult, rawPayload []byte) error {
	var lat, lon sql.NullFloat64
	if r.Coords != nil {
		lat = sql.NullFloat64{Float64: r.Coords.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: r.Coords.Lon, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_venue_cache (event_key, event_year, status, venue_name, city, country,
			lat, lon, source_url, confidence, reason, raw_payload, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_key, event_year) DO UPDATE SET
			status = excluded.status,
			venue_name = excluded.venue_name,
			city = excluded.city,
			country = excluded.country,
			lat = excluded.lat,
			lon = excluded.lon,
			source_url = excluded.source_url,
			confidence = excluded.confidence,
			reason = excluded.reason,
			raw_payload = excluded.raw_payload,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`, r.EventKey, yearValue(r.EventYear), string(r.Status),
		nullString(r.VenueName), nullString(r.City), nullString(r.Country),
		lat, lon, nullString(r.SourceURL), r.Confidence, nullString(r.Reason),
		nullString(string(rawPayload)), r.FetchedAt.Unix(), r.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("saving event venue: %w", err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed
func (s *EventVenueStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM event_venue_cache WHERE expires_at <= ?", s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purging event venues: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged rows: %w", err)
	}
	return n, nil
}

// List returns every readable row, expired ones included, ordered by key and year
func (s *EventVenueStore) List(ctx context.Context) ([]model.EventVenueResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM event_venue_cache
		ORDER BY event_key, event_year
	`)
	if err != nil {
		return nil, fmt.Errorf("listing event venues: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.EventVenueResult
	for rows.Next() {
		r, err := scanResult(rows)
		if errors.Is(err, errMalformed) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scanning event venue: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

var errMalformed = errors.New("malformed row")

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (*model.EventVenueResult, error) {
	var (
		r                         model.EventVenueResult
		year                      int
		status                    string
		venue, city, country, src sql.NullString
		reason                    sql.NullString
		lat, lon                  sql.NullFloat64
		fetched, expires          int64
	)

	if err := sc.Scan(&r.EventKey, &year, &status, &venue, &city, &country, &lat, &lon,
		&src, &r.Confidence, &reason, &fetched, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	switch model.VenueStatus(status) {
	case model.VenueConfirmed, model.VenueUncertain, model.VenueNotAvailable:
		r.Status = model.VenueStatus(status)
	default:
		return nil, errMalformed
	}
	if r.Confidence < 0 || r.Confidence > 1 || expires <= 0 {
		return nil, errMalformed
	}

	if year != noYear {
		y := year
		r.EventYear = &y
	}
	r.VenueName = venue.String
	r.City = city.String
	r.Country = country.String
	r.SourceURL = src.String
	r.Reason = reason.String
	if lat.Valid && lon.Valid {
		r.Coords = &model.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	r.FetchedAt = time.Unix(fetched, 0)
	r.ExpiresAt = time.Unix(expires, 0)
	return &r, nil
}

func yearValue(year *int) int {
	if year == nil {
		return noYear
	}
	return *year
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
