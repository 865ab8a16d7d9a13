// ABOUTME: SQLite persistence for local-only draft annotations using modernc.org/sqlite
// ABOUTME: Non-uploadable annotations survive process restarts here

package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/annosync/internal/annotation"
)

// ErrNotFound is returned when a requested draft does not exist.
var ErrNotFound = errors.New("draft not found")

// Store persists draft annotations per endpoint. Drafts are annotations the
// upload policy keeps local (unfinished atlas points, explicit drafts); the
// remote backend never sees them, so they need their own durability.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the draft database at path. Parent
// directories are created if needed.
func NewStore(path string) (*Store, error) {
	logger := slog.Default().With("component", "drafts")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating draft directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening draft database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("draft store initialized", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS drafts (
			endpoint TEXT NOT NULL,
			id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (endpoint, id)
		);

		CREATE INDEX IF NOT EXISTS idx_drafts_endpoint
			ON drafts(endpoint);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put inserts or replaces a draft under (endpoint, id).
func (s *Store) Put(ctx context.Context, endpoint, id string, a annotation.Annotation) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding draft: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (endpoint, id, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (endpoint, id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`, endpoint, id, string(body), now, now)
	if err != nil {
		return fmt.Errorf("storing draft: %w", err)
	}
	return nil
}

// Get returns one draft by id.
func (s *Store) Get(ctx context.Context, endpoint, id string) (annotation.Annotation, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM drafts WHERE endpoint = ? AND id = ?`,
		endpoint, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return annotation.Annotation{}, ErrNotFound
	}
	if err != nil {
		return annotation.Annotation{}, fmt.Errorf("querying draft: %w", err)
	}
	var a annotation.Annotation
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return annotation.Annotation{}, fmt.Errorf("decoding draft %s: %w", id, err)
	}
	return a, nil
}

// List returns all drafts for an endpoint, oldest first.
func (s *Store) List(ctx context.Context, endpoint string) ([]annotation.Annotation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM drafts WHERE endpoint = ? ORDER BY created_at`, endpoint)
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	defer rows.Close()

	var out []annotation.Annotation
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning draft: %w", err)
		}
		var a annotation.Annotation
		if err := json.Unmarshal([]byte(body), &a); err != nil {
			s.logger.Warn("skipping undecodable draft", "endpoint", endpoint, "error", err)
			continue
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete removes a draft. Deleting a missing draft is not an error.
func (s *Store) Delete(ctx context.Context, endpoint, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM drafts WHERE endpoint = ? AND id = ?`, endpoint, id)
	if err != nil {
		return fmt.Errorf("deleting draft: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
