// Package sqlite provides an external store that keeps leaves in a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/manifesto-ai/bridge/internal/logging"
	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/paths"
	"github.com/manifesto-ai/bridge/pkg/ports"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store keeps one row per leaf path. Values are JSON encoded.
// Reading a path with no row of its own returns the nested map of the leaves below it.
// The store is not reactive: changes made by other processes are seen on the next read or capture.
type Store struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

var (
	_ ports.Store            = (*Store)(nil)
	_ ports.BatchDataWriter  = (*Store)(nil)
	_ ports.BatchStateWriter = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithTimeout bounds every database call (default 2s).
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// WithLogger sets a custom structured logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open creates or opens a database at path. Use ":memory:" for a private in-memory store.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - a 5-second busy timeout for lock contention
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; ":memory:" also needs a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:      db,
		timeout: 2 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Store) get(ns domain.Namespace, path string) any {
	ctx, cancel := s.ctx()
	defer cancel()

	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM entries WHERE namespace = ? AND path = ?", string(ns), path,
	).Scan(&raw)
	switch {
	case err == nil:
		return s.decode(path, raw)
	case err != sql.ErrNoRows:
		s.logger.Error("Failed to read from sqlite", "path", path, "err", err)
		return nil
	}

	leaves, err := s.query(ctx,
		"SELECT path, value FROM entries WHERE namespace = ? AND substr(path, 1, ?) = ?",
		string(ns), len(path)+1, path+".",
	)
	if err != nil {
		s.logger.Error("Failed to read from sqlite", "path", path, "err", err)
		return nil
	}
	if len(leaves) == 0 {
		return nil
	}
	var tree map[string]any
	for leaf, v := range leaves {
		tree = paths.Set(tree, paths.Parse(strings.TrimPrefix(leaf, path+".")), v)
	}
	return tree
}

func (s *Store) query(ctx context.Context, query string, args ...any) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var path, raw string
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, err
		}
		out[path] = s.decode(path, raw)
	}
	return out, rows.Err()
}

func (s *Store) decode(path, raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.logger.Warn("Failed to decode value", "path", path, "err", err)
		return nil
	}
	return v
}

// GetData returns the value at a data.* path.
func (s *Store) GetData(path string) any {
	return s.get(domain.NamespaceData, path)
}

// GetState returns the value at a state.* path.
func (s *Store) GetState(path string) any {
	return s.get(domain.NamespaceState, path)
}

func (s *Store) capture(ns domain.Namespace) map[string]any {
	ctx, cancel := s.ctx()
	defer cancel()

	out, err := s.query(ctx, "SELECT path, value FROM entries WHERE namespace = ?", string(ns))
	if err != nil {
		s.logger.Error("Failed to capture from sqlite", "namespace", ns, "err", err)
		return map[string]any{}
	}
	return out
}

// CaptureData returns every data.* leaf.
func (s *Store) CaptureData() map[string]any {
	return s.capture(domain.NamespaceData)
}

// CaptureState returns every state.* leaf.
func (s *Store) CaptureState() map[string]any {
	return s.capture(domain.NamespaceState)
}

// write upserts leaves in one transaction. Map values are expanded into their leaves
// and replace whatever was stored below or above their path.
func (s *Store) write(ns domain.Namespace, values map[string]any) {
	if len(values) == 0 {
		return
	}
	roots := make([]string, 0, len(values))
	for path := range values {
		roots = append(roots, path)
	}
	sort.Strings(roots)

	ctx, cancel := s.ctx()
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", "err", err)
		return
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	for _, root := range roots {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM entries WHERE namespace = ? AND substr(path, 1, ?) = ?",
			string(ns), len(root)+1, root+".",
		); err != nil {
			s.logger.Error("Failed to clear subtree", "path", root, "err", err)
			return
		}
		for _, parent := range ancestors(root) {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM entries WHERE namespace = ? AND path = ?", string(ns), parent,
			); err != nil {
				s.logger.Error("Failed to clear parent", "path", parent, "err", err)
				return
			}
		}
		for leaf, v := range paths.Flatten(values[root], root) {
			encoded, err := json.Marshal(v)
			if err != nil {
				s.logger.Error("Failed to encode value", "path", leaf, "err", err)
				return
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO entries (namespace, path, value, updated_at) VALUES (?, ?, ?, ?)
				 ON CONFLICT (namespace, path) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				string(ns), leaf, string(encoded), now,
			); err != nil {
				s.logger.Error("Failed to write to sqlite", "path", leaf, "err", err)
				return
			}
		}
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit", "namespace", ns, "err", err)
	}
}

// ancestors lists the proper prefixes of a dotted path below its namespace.
func ancestors(path string) []string {
	var out []string
	for i := strings.LastIndexByte(path, '.'); i > 0; i = strings.LastIndexByte(path[:i], '.') {
		if parent := path[:i]; strings.Contains(parent, ".") {
			out = append(out, parent)
		}
	}
	return out
}

// SetData writes a data.* path.
func (s *Store) SetData(path string, value any) {
	s.write(domain.NamespaceData, map[string]any{path: value})
}

// SetState writes a state.* path.
func (s *Store) SetState(path string, value any) {
	s.write(domain.NamespaceState, map[string]any{path: value})
}

// SetManyData writes several data.* paths in one transaction.
func (s *Store) SetManyData(values map[string]any) {
	s.write(domain.NamespaceData, values)
}

// SetManyState writes several state.* paths in one transaction.
func (s *Store) SetManyState(values map[string]any) {
	s.write(domain.NamespaceState, values)
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	return nil
}
