// Package synthesis merges independently authored documents into a single
// graph, namespacing local identifiers and resolving [[Title]] cross-links
// into reference edges.
package synthesis

// Position is a 2D coordinate in layout units
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphNode is a node of the merged graph
type GraphNode struct {
	ID               string   `json:"id"`
	Label            string   `json:"label"`
	SourceDocumentID string   `json:"sourceDocumentId"`
	OriginalLocalID  string   `json:"originalLocalId"`
	Color            string   `json:"color"`
	Position         Position `json:"position"`
}

// EdgeKind distinguishes authored edges from synthesized ones
type EdgeKind string

const (
	// EdgeStructural is a namespaced copy of an edge authored in a document
	EdgeStructural EdgeKind = "structural"
	// EdgeReference is synthesized from a [[Title]] link in a node label
	EdgeReference EdgeKind = "reference"
)

// GraphEdge is an edge of the merged graph
type GraphEdge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// Graph is the output of one synthesis pass
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// SkippedDocument records a document that contributed nothing
type SkippedDocument struct {
	DocumentID string `json:"documentId"`
	Reason     string `json:"reason"`
}

// Stats summarizes a synthesis pass
type Stats struct {
	Documents        int `json:"documents"`
	SkippedDocuments int `json:"skippedDocuments"`
	Nodes            int `json:"nodes"`
	StructuralEdges  int `json:"structuralEdges"`
	ReferenceEdges   int `json:"referenceEdges"`
	DroppedEdges     int `json:"droppedEdges"`
	CollidedNodes    int `json:"collidedNodes"` // namespaced id already taken by another document
}

// NodeCollision records a node dropped because a different document already
// produced the same namespaced id
type NodeCollision struct {
	NodeID          string `json:"nodeId"`
	DocumentID      string `json:"documentId"`
	OwnerDocumentID string `json:"ownerDocumentId"`
}

// Result bundles the merged graph with diagnostics about how it was built
type Result struct {
	Graph
	Skipped    []SkippedDocument `json:"skipped,omitempty"`
	Collisions []NodeCollision   `json:"collisions,omitempty"`
	Stats      Stats             `json:"stats"`
}

// DefaultColor is used for nodes whose document did not set one
const DefaultColor = "#6366f1"

// NamespaceSeparator joins a document id and a local id into a node id
const NamespaceSeparator = "::"

// NamespacedID builds the globally unique id of a document-local identifier
func NamespacedID(documentID, localID string) string {
	return documentID + NamespaceSeparator + localID
}
