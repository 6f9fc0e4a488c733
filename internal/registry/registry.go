package registry

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Source is one known rule source and the outcome of its latest parse.
type Source struct {
	// Path identifies the source: a filesystem path for watched files, or
	// a "session://<token>/<name>" key for session submissions.
	Path string

	// Package is the declared package path when OK, empty otherwise.
	Package string

	// OK reports whether the latest parse succeeded.
	OK bool

	// ErrorText is the rendered positioned error when OK is false.
	ErrorText string

	// Seq is the logical sequence number of this update.
	Seq int64
}

// Registry provides durable storage for rule source parse outcomes.
type Registry struct {
	db    *sql.DB
	clock *Clock
}

// Open creates or opens a registry database at the given path.
// Applies required pragmas and the schema automatically, and resumes the
// logical clock from the highest stored seq.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY from our own pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	var maxSeq sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(seq) FROM sources`).Scan(&maxSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read clock position: %w", err)
	}

	return &Registry{db: db, clock: NewClockAt(maxSeq.Int64)}, nil
}

// Close closes the database connection.
func (r *Registry) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Clock returns the registry's logical clock.
func (r *Registry) Clock() *Clock {
	return r.clock
}

// Record upserts the parse outcome for a source path, stamping it with
// the next logical sequence number. A nil parseErr records success with
// the given package path; otherwise the rendered error is stored and the
// package column is cleared.
func (r *Registry) Record(ctx context.Context, path, pkg string, parseErr error) (Source, error) {
	src := Source{
		Path: path,
		Seq:  r.clock.Next(),
	}
	if parseErr != nil {
		src.ErrorText = parseErr.Error()
	} else {
		src.OK = true
		src.Package = pkg
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sources (path, package, ok, error_text, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			package = excluded.package,
			ok = excluded.ok,
			error_text = excluded.error_text,
			seq = excluded.seq
	`, src.Path, src.Package, src.OK, src.ErrorText, src.Seq)
	if err != nil {
		return Source{}, fmt.Errorf("record source: %w", err)
	}

	return src, nil
}

// Delete removes a source from the registry. Deleting an unknown path is
// not an error.
func (r *Registry) Delete(ctx context.Context, path string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return nil
}

// Get returns the stored outcome for a path, or (nil, nil) if the path is
// unknown.
func (r *Registry) Get(ctx context.Context, path string) (*Source, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT path, package, ok, error_text, seq
		FROM sources
		WHERE path = ?
	`, path)

	var src Source
	err := row.Scan(&src.Path, &src.Package, &src.OK, &src.ErrorText, &src.Seq)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return &src, nil
}

// List returns all stored sources ordered by path.
// Returns an empty slice (not nil) when the registry is empty.
func (r *Registry) List(ctx context.Context) ([]Source, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT path, package, ok, error_text, seq
		FROM sources
		ORDER BY path COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.Path, &src.Package, &src.OK, &src.ErrorText, &src.Seq); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}

	return sources, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the schema
// version. This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if !version.Valid || version.Int64 < currentSchemaVersion {
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, currentSchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}

	return nil
}
