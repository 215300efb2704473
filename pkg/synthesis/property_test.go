package synthesis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-graphview/pkg/document"
	"github.com/dd0wney/cluso-graphview/pkg/logging"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genDocuments produces small documents that reuse a tiny alphabet of local
// ids and titles, so collisions and cross-links are frequent.
func genDocuments() gopter.Gen {
	localIDs := gen.OneConstOf("a", "b", "c", "d")
	titles := gen.OneConstOf("Alpha", "beta", "Gamma", "alpha")

	node := gopter.CombineGens(localIDs, titles, gen.IntRange(0, 2)).Map(func(v []any) document.LocalNode {
		label := v[1].(string)
		switch v[2].(int) {
		case 1:
			label = label + " [[" + strings.ToUpper(label) + "]]"
		case 2:
			label = "see [[alpha]] and [[Beta]]"
		}
		return document.LocalNode{ID: v[0].(string), Label: label}
	})
	edge := gopter.CombineGens(localIDs, gen.OneConstOf("a", "b", "c", "d", "zz")).Map(func(v []any) document.LocalEdge {
		return document.LocalEdge{ID: v[0].(string) + "-" + v[1].(string), Source: v[0].(string), Target: v[1].(string)}
	})
	doc := gopter.CombineGens(gen.SliceOfN(4, node), gen.SliceOfN(3, edge)).Map(func(v []any) document.LocalGraph {
		return document.LocalGraph{Nodes: v[0].([]document.LocalNode), Edges: v[1].([]document.LocalEdge)}
	})

	return gen.SliceOfN(3, doc).Map(func(graphs []document.LocalGraph) []document.Document {
		docs := make([]document.Document, 0, len(graphs))
		for i := range graphs {
			s, _ := document.Encode(&graphs[i])
			docs = append(docs, document.Document{ID: fmt.Sprintf("doc%d", i%2), SerializedGraph: s})
		}
		return docs
	})
}

func TestSynthesisInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	build := func(docs []document.Document) *Result {
		return NewBuilder(WithSeed(3), WithLogger(logging.NewNopLogger())).Build(docs)
	}

	properties.Property("node ids are unique", prop.ForAll(
		func(docs []document.Document) bool {
			seen := make(map[string]bool)
			for _, n := range build(docs).Nodes {
				if seen[n.ID] {
					return false
				}
				seen[n.ID] = true
			}
			return true
		},
		genDocuments(),
	))

	properties.Property("every edge endpoint exists", prop.ForAll(
		func(docs []document.Document) bool {
			res := build(docs)
			ids := make(map[string]bool, len(res.Nodes))
			for _, n := range res.Nodes {
				ids[n.ID] = true
			}
			for _, e := range res.Edges {
				if !ids[e.Source] || !ids[e.Target] {
					return false
				}
			}
			return true
		},
		genDocuments(),
	))

	properties.Property("reference edges are never self-loops", prop.ForAll(
		func(docs []document.Document) bool {
			for _, e := range build(docs).Edges {
				if e.Kind == EdgeReference && e.Source == e.Target {
					return false
				}
			}
			return true
		},
		genDocuments(),
	))

	properties.Property("node id is document id joined with local id", prop.ForAll(
		func(docs []document.Document) bool {
			for _, n := range build(docs).Nodes {
				if n.ID != NamespacedID(n.SourceDocumentID, n.OriginalLocalID) {
					return false
				}
			}
			return true
		},
		genDocuments(),
	))

	properties.TestingRun(t)
}
