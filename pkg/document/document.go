// Package document decodes the graphs embedded in workspace documents.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedGraph is returned when a serialized graph cannot be decoded
var ErrMalformedGraph = errors.New("malformed document graph")

// Document is a read-only snapshot of an authored document
type Document struct {
	ID              string `json:"id" yaml:"id" validate:"required,max=256"`
	SerializedGraph string `json:"serializedGraph" yaml:"serializedGraph"`
}

// LocalNode is a node as authored inside a single document
type LocalNode struct {
	ID    string
	Label string
	Color string
}

// LocalEdge is an edge as authored inside a single document
type LocalEdge struct {
	ID     string
	Source string
	Target string
}

// LocalGraph is the decoded content of Document.SerializedGraph
type LocalGraph struct {
	Nodes []LocalNode
	Edges []LocalEdge
}

type wireGraph struct {
	Nodes []wireNode `json:"nodes"`
	Edges []wireEdge `json:"edges"`
}

type wireNode struct {
	ID   string `json:"id"`
	Data struct {
		Label string `json:"label"`
		Color string `json:"color"`
	} `json:"data"`
}

type wireEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Decode parses the document's serialized graph.
// Nodes without an id are dropped; edges are returned as authored and
// endpoint checks are left to the caller.
func Decode(doc Document) (*LocalGraph, error) {
	if doc.SerializedGraph == "" {
		return nil, fmt.Errorf("%w: document %q has no graph", ErrMalformedGraph, doc.ID)
	}

	var wire wireGraph
	if err := json.Unmarshal([]byte(doc.SerializedGraph), &wire); err != nil {
		return nil, fmt.Errorf("%w: document %q: %v", ErrMalformedGraph, doc.ID, err)
	}

	g := &LocalGraph{
		Nodes: make([]LocalNode, 0, len(wire.Nodes)),
		Edges: make([]LocalEdge, 0, len(wire.Edges)),
	}
	for _, n := range wire.Nodes {
		if n.ID == "" {
			continue
		}
		g.Nodes = append(g.Nodes, LocalNode{ID: n.ID, Label: n.Data.Label, Color: n.Data.Color})
	}
	for _, e := range wire.Edges {
		g.Edges = append(g.Edges, LocalEdge{ID: e.ID, Source: e.Source, Target: e.Target})
	}
	return g, nil
}

// Encode serializes a local graph into the wire form Decode accepts
func Encode(g *LocalGraph) (string, error) {
	wire := wireGraph{
		Nodes: make([]wireNode, 0, len(g.Nodes)),
		Edges: make([]wireEdge, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		var wn wireNode
		wn.ID = n.ID
		wn.Data.Label = n.Label
		wn.Data.Color = n.Color
		wire.Nodes = append(wire.Nodes, wn)
	}
	for _, e := range g.Edges {
		wire.Edges = append(wire.Edges, wireEdge(e))
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
