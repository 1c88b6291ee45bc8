// Package cache persists gas quotes in sqlite, keyed by chain and a
// fingerprint of the priced request. Estimation hits live RPC endpoints;
// keeping the last quote per request lets repeated runs answer locally
// and lets the CLI serve a stale-but-bounded quote when an endpoint is
// down.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

// Quote is one cached pricing result. Strategy names the rewrite rule
// whose calldata was priced; it is empty when the original calldata was
// priced. Payload is the rendered estimate document served back to the
// CLI on a hit.
type Quote struct {
	ChainID  string
	Strategy string
	Payload  json.RawMessage
}

// Lookup reports the outcome of a quote read. Stale means the quote
// outlived its TTL; Exceeded means it also outlived the stale-serve
// budget and must not be used as a fallback.
type Lookup struct {
	Found    bool
	Quote    Quote
	Age      time.Duration
	Stale    bool
	Exceeded bool
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS quotes (
			chain_id TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			strategy TEXT NOT NULL DEFAULT '',
			payload BLOB NOT NULL,
			quoted_at_ms INTEGER NOT NULL,
			ttl_ms INTEGER NOT NULL,
			PRIMARY KEY (chain_id, fingerprint)
		);`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init quote schema: %w", err)
		}
	}

	store := &Store{db: db, lock: flock.New(lockPath)}
	// Quotes are only worth keeping for one stale-serve window; drop the
	// rest on startup to prevent unbounded growth.
	_ = store.Prune()
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Prune deletes every quote past its TTL.
func (s *Store) Prune() error {
	if s == nil || s.db == nil {
		return nil
	}
	nowMS := time.Now().UTC().UnixMilli()
	if _, err := s.db.Exec("DELETE FROM quotes WHERE quoted_at_ms + ttl_ms < ?", nowMS); err != nil {
		return fmt.Errorf("prune quotes: %w", err)
	}
	return nil
}

// QuoteFor reads the cached quote for a (chain, fingerprint) pair.
func (s *Store) QuoteFor(chainID, fingerprint string, maxStale time.Duration) (Lookup, error) {
	row := s.db.QueryRow(
		"SELECT strategy, payload, quoted_at_ms, ttl_ms FROM quotes WHERE chain_id = ? AND fingerprint = ?",
		chainID, fingerprint)

	var strategy string
	var payload []byte
	var quotedAtMS, ttlMS int64
	if err := row.Scan(&strategy, &payload, &quotedAtMS, &ttlMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lookup{}, nil
		}
		return Lookup{}, fmt.Errorf("read quote: %w", err)
	}

	age := time.Since(time.UnixMilli(quotedAtMS).UTC())
	if age < 0 {
		age = 0
	}
	ttl := time.Duration(ttlMS) * time.Millisecond
	stale := age > ttl
	return Lookup{
		Found: true,
		Quote: Quote{
			ChainID:  chainID,
			Strategy: strategy,
			Payload:  payload,
		},
		Age:      age,
		Stale:    stale,
		Exceeded: stale && maxStale >= 0 && age > ttl+maxStale,
	}, nil
}

// SaveQuote upserts a quote under the given fingerprint. The file lock
// serializes writers across processes sharing one cache file.
func (s *Store) SaveQuote(q Quote, fingerprint string, ttl time.Duration) error {
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock quote store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock quote store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	ttlMS := ttl.Milliseconds()
	if ttlMS <= 0 {
		ttlMS = 1
	}
	_, err = s.db.Exec(`
		INSERT INTO quotes (chain_id, fingerprint, strategy, payload, quoted_at_ms, ttl_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain_id, fingerprint) DO UPDATE SET
			strategy=excluded.strategy,
			payload=excluded.payload,
			quoted_at_ms=excluded.quoted_at_ms,
			ttl_ms=excluded.ttl_ms
	`, q.ChainID, fingerprint, q.Strategy, q.Payload, time.Now().UTC().UnixMilli(), ttlMS)
	if err != nil {
		return fmt.Errorf("save quote: %w", err)
	}
	return nil
}
