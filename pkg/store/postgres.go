package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dd0wney/cluso-graphview/pkg/document"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/validation"
)

// PostgresStore reads documents from PostgreSQL
type PostgresStore struct {
	pool     *pgxpool.Pool
	compress bool
	logger   logging.Logger
}

// NewPostgresStore connects to databaseURL and ensures the schema exists
func NewPostgresStore(ctx context.Context, databaseURL string, compress bool, logger logging.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PostgresStore{pool: pool, compress: compress, logger: logging.OrDefault(logger)}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		workspace_id TEXT NOT NULL,
		id TEXT NOT NULL,
		payload BYTEA NOT NULL,
		position BIGSERIAL,
		PRIMARY KEY (workspace_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_workspace_position ON documents(workspace_id, position);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// ListDocuments returns the workspace's documents ordered by insertion
func (s *PostgresStore) ListDocuments(ctx context.Context, workspaceID string) ([]document.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, payload FROM documents WHERE workspace_id = $1 ORDER BY position, id`,
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
func (s *PostgresStore) Put(ctx context.Context, workspaceID string, doc document.Document) error {
	if err := validation.ValidateWorkspaceID(workspaceID); err != nil {
		return err
	}
	if err := validation.ValidateDocument(&doc); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (workspace_id, id, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, id) DO UPDATE SET payload = EXCLUDED.payload`,
		workspaceID, doc.ID, document.EncodePayload(doc.SerializedGraph, s.compress),
	)
	if err != nil {
		return fmt.Errorf("put document %s: %w", doc.ID, err)
	}
	return nil
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
