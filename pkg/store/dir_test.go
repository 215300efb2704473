package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-graphview/pkg/document"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDirStore_ReadsMixedFormats(t *testing.T) {
	root := t.TempDir()
	ws := filepath.Join(root, "notes")

	writeFile(t, ws, "a-serialized.json", `{"id":"alpha","serializedGraph":"{\"nodes\":[{\"id\":\"n1\",\"label\":\"One\"}],\"edges\":[]}"}`)
	writeFile(t, ws, "b-embedded.json", `{"graph":{"nodes":[{"id":"n1","label":"Two"}],"edges":[]}}`)
	writeFile(t, ws, "c-doc.yaml", `
id: gamma
graph:
  nodes:
    - id: n1
      label: "Three [[One]]"
  edges: []
`)
	writeFile(t, ws, "d-broken.yml", "id: [unterminated")
	writeFile(t, ws, "notes.txt", "ignored")
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "nested"), 0o755))

	s, err := NewDirStore(root, logging.NewNopLogger())
	require.NoError(t, err)

	docs, err := s.ListDocuments(context.Background(), "notes")
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "b-embedded", "gamma", "d-broken"}, ids(docs))

	for _, i := range []int{0, 1, 2} {
		g, err := document.Decode(docs[i])
		require.NoError(t, err, docs[i].ID)
		require.Len(t, g.Nodes, 1)
	}
	g, _ := document.Decode(docs[2])
	assert.Equal(t, "Three [[One]]", g.Nodes[0].Label)
	assert.Empty(t, docs[3].SerializedGraph)
}

func TestDirStore_MissingWorkspace(t *testing.T) {
	s, err := NewDirStore(t.TempDir(), logging.NewNopLogger())
	require.NoError(t, err)

	docs, err := s.ListDocuments(context.Background(), "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDirStore_RejectsTraversal(t *testing.T) {
	s, err := NewDirStore(t.TempDir(), logging.NewNopLogger())
	require.NoError(t, err)

	_, err = s.ListDocuments(context.Background(), "../etc")
	assert.Error(t, err)
}

func TestDirStore_Put(t *testing.T) {
	s, err := NewDirStore(t.TempDir(), logging.NewNopLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "ws", document.Document{ID: "a", SerializedGraph: sampleGraph}))
	assert.Error(t, s.Put(ctx, "ws", document.Document{ID: "x/y", SerializedGraph: sampleGraph}))

	docs, err := s.ListDocuments(ctx, "ws")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, document.Document{ID: "a", SerializedGraph: sampleGraph}, docs[0])
}

func TestNewDirStore_Errors(t *testing.T) {
	_, err := NewDirStore(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewDirStore(file, nil)
	assert.Error(t, err)
}
