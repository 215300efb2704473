package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-graphview/pkg/document"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/validation"
)

// DirStore reads documents from <root>/<workspace>/. Each .json, .yaml or
// .yml file is one document. A file may carry the serialized graph as a
// string or embed the graph object under "graph".
type DirStore struct {
	root   string
	logger logging.Logger
}

// fileDocument is the on-disk shape shared by JSON and YAML files
type fileDocument struct {
	ID              string `json:"id" yaml:"id"`
	SerializedGraph string `json:"serializedGraph" yaml:"serializedGraph"`
	Graph           any    `json:"graph,omitempty" yaml:"graph"`
}

// NewDirStore creates a store rooted at root, which must be a directory
func NewDirStore(root string, logger logging.Logger) (*DirStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document root %s is not a directory", root)
	}
	return &DirStore{root: root, logger: logging.OrDefault(logger)}, nil
}

// ListDocuments reads every document file of the workspace in file name order
func (s *DirStore) ListDocuments(ctx context.Context, workspaceID string) ([]document.Document, error) {
	if err := validation.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, workspaceID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []document.Document{}, nil
		}
		return nil, fmt.Errorf("read workspace directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]document.Document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		docs = append(docs, s.parse(name, data))
	}
	return docs, nil
}

// parse never fails; an unreadable file becomes a document with no graph so
// the builder reports it as skipped
func (s *DirStore) parse(name string, data []byte) document.Document {
	fallbackID := strings.TrimSuffix(name, filepath.Ext(name))

	var fd fileDocument
	var err error
	if strings.EqualFold(filepath.Ext(name), ".json") {
		err = json.Unmarshal(data, &fd)
	} else {
		err = yaml.Unmarshal(data, &fd)
	}
	if err != nil {
		s.logger.Warn("unparseable document file", logging.String("file", name), logging.Error(err))
		return document.Document{ID: fallbackID}
	}

	id := fd.ID
	if id == "" {
		id = fallbackID
	}
	if fd.SerializedGraph != "" || fd.Graph == nil {
		return document.Document{ID: id, SerializedGraph: fd.SerializedGraph}
	}

	graph, err := json.Marshal(fd.Graph)
	if err != nil {
		s.logger.Warn("document graph is not JSON compatible", logging.DocumentID(id), logging.Error(err))
		return document.Document{ID: id}
	}
	return document.Document{ID: id, SerializedGraph: string(graph)}
}

// Put writes doc as <id>.json in the workspace directory
func (s *DirStore) Put(ctx context.Context, workspaceID string, doc document.Document) error {
	if err := validation.ValidateWorkspaceID(workspaceID); err != nil {
		return err
	}
	if err := validation.ValidateDocument(&doc); err != nil {
		return err
	}
	if strings.ContainsAny(doc.ID, `/\`) {
		return fmt.Errorf("document id %q cannot be used as a file name", doc.ID)
	}
	dir := filepath.Join(s.root, workspaceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workspace directory: %w", err)
	}
	data, err := json.MarshalIndent(fileDocument{ID: doc.ID, SerializedGraph: doc.SerializedGraph}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, doc.ID+".json"), data, 0o644)
}

// Ping checks the root is still readable
func (s *DirStore) Ping(ctx context.Context) error {
	_, err := os.Stat(s.root)
	return err
}

// Close is a no-op
func (s *DirStore) Close() error { return nil }
