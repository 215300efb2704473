package synthesis

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/dd0wney/cluso-graphview/pkg/document"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/dd0wney/cluso-graphview/pkg/metrics"
	"github.com/dd0wney/cluso-graphview/pkg/parallel"
)

// Default initial placement box
const (
	DefaultWidth  = 1000.0
	DefaultHeight = 1000.0
)

var errDecodeAborted = errors.New("document decode aborted")

// DocumentSource is the read-only document store the builder pulls from
type DocumentSource interface {
	ListDocuments(ctx context.Context, workspaceID string) ([]document.Document, error)
}

// Builder turns document snapshots into a merged graph.
// A Builder is safe for concurrent use; passes are serialized because they
// share the placement random source.
type Builder struct {
	rng     *rand.Rand
	width   float64
	height  float64
	logger  logging.Logger
	metrics *metrics.Registry
	workers int
	mu      sync.Mutex
}

// Option configures a Builder
type Option func(*Builder)

// WithRand sets the random source used for initial placement
func WithRand(rng *rand.Rand) Option {
	return func(b *Builder) { b.rng = rng }
}

// WithSeed seeds initial placement, making passes reproducible
func WithSeed(seed int64) Option {
	return func(b *Builder) { b.rng = rand.New(rand.NewSource(seed)) }
}

// WithBounds sets the initial placement box
func WithBounds(width, height float64) Option {
	return func(b *Builder) {
		if width > 0 {
			b.width = width
		}
		if height > 0 {
			b.height = height
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithMetrics records every pass in the given registry
func WithMetrics(reg *metrics.Registry) Option {
	return func(b *Builder) { b.metrics = reg }
}

// WithWorkers decodes documents on up to n goroutines. Merge order is
// unaffected.
func WithWorkers(n int) Option {
	return func(b *Builder) { b.workers = n }
}

// NewBuilder creates a builder
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		width:  DefaultWidth,
		height: DefaultHeight,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	b.logger = logging.OrDefault(b.logger).With(logging.Component("synthesis"))
	return b
}

// Build merges docs into one graph. It never fails: documents that cannot be
// decoded are skipped and reported in Result.Skipped, and structural edges
// with a missing endpoint are dropped.
func (b *Builder) Build(docs []document.Document) *Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	res := &Result{
		Graph: Graph{
			Nodes: make([]GraphNode, 0),
			Edges: make([]GraphEdge, 0),
		},
	}
	res.Stats.Documents = len(docs)

	decoded := b.decodeAll(docs)

	present := make(map[string]string)
	for i, doc := range docs {
		local, err := decoded[i].local, decoded[i].err
		if err != nil {
			b.logger.Warn("skipping document", logging.DocumentID(doc.ID), logging.Error(err))
			res.Skipped = append(res.Skipped, SkippedDocument{DocumentID: doc.ID, Reason: err.Error()})
			continue
		}
		b.addDocument(res, present, doc.ID, local)
	}

	b.addReferences(res)

	res.Stats.SkippedDocuments = len(res.Skipped)
	res.Stats.Nodes = len(res.Nodes)

	if b.metrics != nil {
		b.metrics.RecordSynthesis(time.Since(start), res.Stats.Nodes, res.Stats.StructuralEdges,
			res.Stats.ReferenceEdges, res.Stats.SkippedDocuments, res.Stats.DroppedEdges)
	}
	b.logger.Debug("graph synthesized",
		logging.Int("documents", res.Stats.Documents),
		logging.Int("nodes", res.Stats.Nodes),
		logging.Int("structural_edges", res.Stats.StructuralEdges),
		logging.Int("reference_edges", res.Stats.ReferenceEdges),
		logging.Latency(time.Since(start)),
	)
	return res
}

type decodeResult struct {
	local *document.LocalGraph
	err   error
}

func (b *Builder) decodeAll(docs []document.Document) []decodeResult {
	out := make([]decodeResult, len(docs))
	decode := func(i int) {
		out[i].local, out[i].err = document.Decode(docs[i])
	}

	if b.workers > 1 && len(docs) > 1 {
		if err := parallel.ForEach(b.workers, len(docs), decode); err == nil {
			for i := range out {
				if out[i].local == nil && out[i].err == nil {
					out[i].err = errDecodeAborted
				}
			}
			return out
		}
	}
	for i := range docs {
		decode(i)
	}
	return out
}

// addDocument merges one decoded document. present maps every emitted node
// id to the document that produced it.
func (b *Builder) addDocument(res *Result, present map[string]string, docID string, local *document.LocalGraph) {
	for _, ln := range local.Nodes {
		id := NamespacedID(docID, ln.ID)
		if owner, taken := present[id]; taken {
			if owner == docID {
				b.logger.Debug("duplicate local node id", logging.DocumentID(docID), logging.NodeID(id))
				continue
			}
			b.logger.Warn("namespaced node id collides with another document",
				logging.DocumentID(docID), logging.NodeID(id), logging.String("owner_document_id", owner))
			res.Collisions = append(res.Collisions, NodeCollision{NodeID: id, DocumentID: docID, OwnerDocumentID: owner})
			res.Stats.CollidedNodes++
			continue
		}
		present[id] = docID

		color := ln.Color
		if color == "" {
			color = DefaultColor
		}
		res.Nodes = append(res.Nodes, GraphNode{
			ID:               id,
			Label:            ln.Label,
			SourceDocumentID: docID,
			OriginalLocalID:  ln.ID,
			Color:            color,
			Position: Position{
				X: b.rng.Float64() * b.width,
				Y: b.rng.Float64() * b.height,
			},
		})
	}

	for _, le := range local.Edges {
		source := NamespacedID(docID, le.Source)
		target := NamespacedID(docID, le.Target)
		// An endpoint owned by another document is a collision, not ours.
		if present[source] != docID || present[target] != docID {
			res.Stats.DroppedEdges++
			b.logger.Debug("dropping edge with missing endpoint",
				logging.DocumentID(docID), logging.EdgeID(le.ID))
			continue
		}
		res.Edges = append(res.Edges, GraphEdge{
			ID:     NamespacedID(docID, le.ID),
			Source: source,
			Target: target,
			Kind:   EdgeStructural,
		})
		res.Stats.StructuralEdges++
	}
}

func (b *Builder) addReferences(res *Result) {
	idx := NewTitleIndex(res.Nodes)
	ordinal := 0
	for _, n := range res.Nodes {
		for _, title := range ExtractLinks(n.Label) {
			for _, target := range idx.Lookup(title) {
				if target == n.ID {
					continue
				}
				res.Edges = append(res.Edges, GraphEdge{
					ID:     referenceEdgeID(n.ID, target, ordinal),
					Source: n.ID,
					Target: target,
					Kind:   EdgeReference,
				})
				res.Stats.ReferenceEdges++
				ordinal++
			}
		}
	}
}

func referenceEdgeID(source, target string, ordinal int) string {
	return "ref" + NamespaceSeparator + source + "->" + target + NamespaceSeparator + strconv.Itoa(ordinal)
}

// BuildWorkspace fetches every document of a workspace and synthesizes it.
// Only a failed fetch is returned as an error.
func (b *Builder) BuildWorkspace(ctx context.Context, src DocumentSource, workspaceID string) (*Result, error) {
	timer := logging.StartTimer(b.logger, "workspace synthesized", logging.Workspace(workspaceID))
	docs, err := src.ListDocuments(ctx, workspaceID)
	if err != nil {
		if b.metrics != nil {
			b.metrics.RecordSynthesisFailure()
		}
		timer.EndError(err)
		return nil, fmt.Errorf("list documents for workspace %q: %w", workspaceID, err)
	}

	res := b.Build(docs)
	timer.End(logging.Int("nodes", res.Stats.Nodes), logging.Int("skipped", res.Stats.SkippedDocuments))
	return res, nil
}
