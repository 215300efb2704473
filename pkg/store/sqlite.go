package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dd0wney/cluso-graphview/pkg/document"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/validation"
)

// SQLiteStore reads documents from a local SQLite database
type SQLiteStore struct {
	db       *sql.DB
	compress bool
	logger   logging.Logger

	// serializes Put so positions stay dense
	writeMu sync.Mutex
}

// NewSQLiteStore opens (creating if needed) the database at path. ":memory:"
// opens a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string, compress bool, logger logging.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store requires a database path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps ":memory:" databases shared across queries
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &SQLiteStore{db: db, compress: compress, logger: logging.OrDefault(logger)}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		workspace_id TEXT NOT NULL,
		id TEXT NOT NULL,
		payload BLOB NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (workspace_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_workspace_position ON documents(workspace_id, position);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// ListDocuments returns the workspace's documents ordered by insertion
func (s *SQLiteStore) ListDocuments(ctx context.Context, workspaceID string) ([]document.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM documents WHERE workspace_id = ? ORDER BY position, id`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []document.Document{}
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, decodeRow(id, payload, s.logger))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// Put inserts a document or replaces its payload, keeping its position
func (s *SQLiteStore) Put(ctx context.Context, workspaceID string, doc document.Document) error {
	if err := validation.ValidateWorkspaceID(workspaceID); err != nil {
		return err
	}
	if err := validation.ValidateDocument(&doc); err != nil {
		return err
	}
	if err := s.PutRaw(ctx, workspaceID, doc.ID, document.EncodePayload(doc.SerializedGraph, s.compress)); err != nil {
		return fmt.Errorf("put document %s: %w", doc.ID, err)
	}
	return nil
}

// PutRaw stores an already encoded payload
func (s *SQLiteStore) PutRaw(ctx context.Context, workspaceID, id string, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (workspace_id, id, payload, position)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM documents WHERE workspace_id = ?))
		ON CONFLICT (workspace_id, id) DO UPDATE SET payload = excluded.payload`,
		workspaceID, id, payload, workspaceID,
	)
	return err
}

// Ping checks database connectivity
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
