package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned by Open when CreateIfNotExists is false and the
// database does not exist.
var ErrNotFound = errors.New("history database not found")

// Entry is one recorded fetch.
type Entry struct {
	ID int64

	// URL is the requested URL.
	URL string

	// Host is the destination host of URL.
	Host string

	// Domain is the routing domain used: "tor" or "clearnet".
	Domain string

	// Backend is the connector that served the request, e.g. "direct",
	// "socks5" or "native".
	Backend string

	// StatusCode is the HTTP status, or 0 when no response arrived.
	StatusCode int

	// Error is the failure text, empty on success.
	Error string

	// Duration is how long the fetch took.
	Duration time.Duration

	// Timestamp is when the fetch started.
	Timestamp time.Time
}

// Succeeded reports whether the fetch produced a response.
func (e Entry) Succeeded() bool {
	return e.Error == "" && e.StatusCode != 0
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database when missing.
	CreateIfNotExists bool

	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool
}

// DefaultOptions creates the database on demand and enables WAL.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Store is the fetch history database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the history database at path.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	} else if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to check history path: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	db, err := sql.Open("sqlite", path+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, path: path}

	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS fetches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		domain TEXT NOT NULL,
		backend TEXT NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		duration_ns INTEGER NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fetches_host ON fetches(host);
	CREATE INDEX IF NOT EXISTS idx_fetches_timestamp ON fetches(timestamp);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Record stores e and returns its ID. A zero Timestamp is set to now.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	const query = `
	INSERT INTO fetches (url, host, domain, backend, status_code, error, duration_ns, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		e.URL, e.Host, e.Domain, e.Backend, e.StatusCode, e.Error,
		int64(e.Duration), e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record fetch: %w", err)
	}
	return result.LastInsertId()
}

// Recent returns up to n entries, newest first. n <= 0 returns every entry.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	query := `
	SELECT id, url, host, domain, backend, status_code, error, duration_ns, timestamp
	FROM fetches
	ORDER BY id DESC
	`
	var args []any
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			duration  int64
			timestamp string
		)
		if err := rows.Scan(&e.ID, &e.URL, &e.Host, &e.Domain, &e.Backend,
			&e.StatusCode, &e.Error, &duration, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Duration = time.Duration(duration)
		if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
			e.Timestamp = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DomainCounts returns how many fetches went to each routing domain.
func (s *Store) DomainCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain, COUNT(*) FROM fetches GROUP BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to count fetches: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			domain string
			n      int
		)
		if err := rows.Scan(&domain, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[domain] = n
	}
	return counts, rows.Err()
}
