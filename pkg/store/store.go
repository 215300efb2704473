// Package store provides the read-only document sources a workspace graph is
// synthesized from.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-graphview/pkg/document"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
)

var (
	// ErrUnknownDriver is returned by Open for an unsupported driver name
	ErrUnknownDriver = errors.New("unknown store driver")
	// ErrClosed is returned by operations on a closed store
	ErrClosed = errors.New("store closed")
)

// Driver names accepted by Open
const (
	DriverMemory   = "memory"
	DriverDir      = "dir"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
)

// Store lists the documents of a workspace. Documents come back in a stable
// order; a failed read fails the whole call.
type Store interface {
	ListDocuments(ctx context.Context, workspaceID string) ([]document.Document, error)
	Ping(ctx context.Context) error
	Close() error
}

// Writer is implemented by stores that can be seeded
type Writer interface {
	Put(ctx context.Context, workspaceID string, doc document.Document) error
}

// Config selects and configures a store
type Config struct {
	Driver string `yaml:"driver" json:"driver" validate:"required,oneof=memory dir sqlite postgres s3"`
	// Path is the root directory for dir and the database file for sqlite
	Path string `yaml:"path" json:"path"`
	// DSN is the postgres connection string
	DSN string `yaml:"dsn" json:"dsn"`
	// Compress stores payloads written through Put with snappy
	Compress bool     `yaml:"compress" json:"compress"`
	S3       S3Config `yaml:"s3" json:"s3"`
}

// S3Config locates documents in an S3 compatible bucket
type S3Config struct {
	Bucket          string `yaml:"bucket" json:"bucket"`
	Prefix          string `yaml:"prefix" json:"prefix"`
	Region          string `yaml:"region" json:"region"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" json:"-"`
	SecretAccessKey string `yaml:"secret_access_key" json:"-"`
}

// Open creates the store named by cfg.Driver
func Open(ctx context.Context, cfg Config, logger logging.Logger) (Store, error) {
	logger = logging.OrDefault(logger).With(logging.Component("store"), logging.String("driver", cfg.Driver))

	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverDir:
		return NewDirStore(cfg.Path, logger)
	case DriverSQLite:
		return NewSQLiteStore(ctx, cfg.Path, cfg.Compress, logger)
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.DSN, cfg.Compress, logger)
	case DriverS3:
		return NewS3Store(ctx, cfg.S3, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// decodeRow turns a stored payload into a document. A payload that cannot be
// decoded yields a document with no graph, which the builder skips and
// reports; it never fails the listing.
func decodeRow(id string, payload []byte, logger logging.Logger) document.Document {
	graph, err := document.DecodePayload(payload)
	if err != nil {
		logger.Warn("undecodable document payload",
			logging.DocumentID(id),
			logging.Error(err),
		)
		return document.Document{ID: id}
	}
	return document.Document{ID: id, SerializedGraph: graph}
}
