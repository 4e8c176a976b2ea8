// Package cache persists bibliographic search results in a local SQLite
// database so repeated pipeline runs do not re-query the paper services.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"

	"github.com/medkb/kbgen/internal/paper"
)

// DefaultTTL is how long a cached search result stays fresh.
const DefaultTTL = 7 * 24 * time.Hour

// ErrMiss is returned when no fresh entry exists for a key.
var ErrMiss = errors.New("cache miss")

// Store wraps a SQLite database holding cached search results.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the freshness window for cached entries.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens or creates a result cache at the given path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	s := &Store{db: db, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS searches (
			key TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			query TEXT NOT NULL,
			records_json TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_searches_fetched ON searches(fetched_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Key derives the content-addressed cache key for a search against one
// service. Identical (source, query, limit) triples always collide, which
// is the point.
func Key(source paper.Source, query string, limit int) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(string(source)))
	h.Write([]byte{0})
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(limit)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get returns the cached records for a key, or ErrMiss when the entry is
// absent or older than the TTL.
func (s *Store) Get(key string) ([]paper.Record, error) {
	var recordsJSON string
	var fetchedAt int64
	err := s.db.QueryRow(
		"SELECT records_json, fetched_at FROM searches WHERE key = ?", key,
	).Scan(&recordsJSON, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	if s.now().Sub(time.Unix(fetchedAt, 0)) > s.ttl {
		return nil, ErrMiss
	}

	var records []paper.Record
	if err := json.Unmarshal([]byte(recordsJSON), &records); err != nil {
		// A corrupt entry behaves like a miss so the caller re-fetches.
		return nil, ErrMiss
	}
	return records, nil
}

// Put stores the records for a key, replacing any previous entry.
func (s *Store) Put(key string, source paper.Source, query string, records []paper.Record) error {
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO searches (key, source, query, records_json, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			records_json = excluded.records_json,
			fetched_at = excluded.fetched_at`,
		key, string(source), query, string(recordsJSON), s.now().Unix())
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Prune deletes entries older than the TTL and reports how many were
// removed.
func (s *Store) Prune() (int, error) {
	cutoff := s.now().Add(-s.ttl).Unix()
	res, err := s.db.Exec("DELETE FROM searches WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
