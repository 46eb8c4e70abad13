// Package ledger records which fingerprint was issued to which recipient,
// so that a leaked copy can be traced back after extraction.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/idelchi/meshmark/internal/fingerprint"
)

// ErrNotFound is returned by Lookup when no entry carries the fingerprint.
var ErrNotFound = errors.New("fingerprint not in ledger")

const schema = `
CREATE TABLE IF NOT EXISTS issues (
	id          TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	algorithm   TEXT NOT NULL,
	uploader    TEXT NOT NULL,
	appendix    TEXT NOT NULL,
	source      TEXT NOT NULL,
	output      TEXT NOT NULL,
	facets      INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS issues_fingerprint ON issues(fingerprint);
`

const columns = `id, fingerprint, algorithm, uploader, appendix, source, output, facets, created_at`

// Entry is one issued copy.
type Entry struct {
	ID          string
	Fingerprint fingerprint.Fingerprint
	Algorithm   fingerprint.Algorithm
	Uploader    string
	Appendix    string
	Source      string
	Output      string
	Facets      int
	CreatedAt   time.Time
}

// Ledger is a SQLite-backed store of issued fingerprints. It is safe for
// concurrent use; writes are serialized on a single connection.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path. The special path
// ":memory:" keeps the ledger in memory.
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %q: %w", path, err)
	}

	// SQLite allows one writer; an in-memory database also lives on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()

			return nil, fmt.Errorf("setting %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("initializing ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores e, assigning its ID and CreatedAt when unset, and returns
// the stored entry.
func (l *Ledger) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	if e.Algorithm == "" {
		e.Algorithm = fingerprint.MD5
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO issues (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Fingerprint.String(), string(e.Algorithm), e.Uploader, e.Appendix,
		e.Source, e.Output, e.Facets, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return e, fmt.Errorf("recording %s: %w", e.Fingerprint, err)
	}

	return e, nil
}

// Lookup returns every entry issued with fp, oldest first.
func (l *Ledger) Lookup(ctx context.Context, fp fingerprint.Fingerprint) ([]Entry, error) {
	entries, err := l.query(ctx,
		`SELECT `+columns+` FROM issues WHERE fingerprint = ? ORDER BY created_at, id`, fp.String())
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", fp, ErrNotFound)
	}

	return entries, nil
}

// List returns the most recent entries, newest first. A limit <= 0 returns all.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	return l.query(ctx,
		`SELECT `+columns+` FROM issues ORDER BY created_at DESC, id LIMIT ?`, limit)
}

func (l *Ledger) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			e         Entry
			fp        string
			algorithm string
			created   int64
		)

		if err := rows.Scan(&e.ID, &fp, &algorithm, &e.Uploader, &e.Appendix,
			&e.Source, &e.Output, &e.Facets, &created); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}

		e.Fingerprint, err = fingerprint.Parse(fp, 16)
		if err != nil {
			return nil, fmt.Errorf("ledger row %s: %w", e.ID, err)
		}

		e.Algorithm = fingerprint.Algorithm(algorithm)
		e.CreatedAt = time.Unix(0, created)

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger rows: %w", err)
	}

	return entries, nil
}
