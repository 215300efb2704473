package store

import (
	"context"
	"sync"

	"github.com/dd0wney/cluso-graphview/pkg/document"
	"github.com/dd0wney/cluso-graphview/pkg/validation"
)

// MemoryStore keeps documents in process. Documents are listed in insertion
// order; putting an existing id replaces it in place.
type MemoryStore struct {
	mu         sync.RWMutex
	workspaces map[string][]document.Document
	closed     bool
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{workspaces: make(map[string][]document.Document)}
}

// ListDocuments returns a copy of the workspace's documents
func (s *MemoryStore) ListDocuments(ctx context.Context, workspaceID string) ([]document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	docs := s.workspaces[workspaceID]
	out := make([]document.Document, len(docs))
	copy(out, docs)
	return out, nil
}

// Put adds or replaces a document
func (s *MemoryStore) Put(ctx context.Context, workspaceID string, doc document.Document) error {
	if err := validation.ValidateWorkspaceID(workspaceID); err != nil {
		return err
	}
	if err := validation.ValidateDocument(&doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	docs := s.workspaces[workspaceID]
	for i := range docs {
		if docs[i].ID == doc.ID {
			docs[i] = doc
			return nil
		}
	}
	s.workspaces[workspaceID] = append(docs, doc)
	return nil
}

// Ping reports whether the store is open
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close releases the documents
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.workspaces = nil
	return nil
}
