// Package graphql exposes synthesized graphs and layout sessions through a
// read-only GraphQL schema.
package graphql

import (
	"context"
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/dd0wney/cluso-graphview/pkg/layout"
	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

// GraphSource builds the graph of a workspace
type GraphSource interface {
	Graph(ctx context.Context, workspaceID string) (*synthesis.Result, error)
}

// SessionSource looks up layout sessions by id
type SessionSource interface {
	Get(id string) (*layout.Session, error)
}

var positionType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Position",
	Fields: graphql.Fields{
		"x": &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"y": &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
	},
})

var nodeType = graphql.NewObject(graphql.ObjectConfig{
	Name: "GraphNode",
	Fields: graphql.Fields{
		"id":               &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"label":            &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"sourceDocumentId": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"originalLocalId":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"color":            &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"position":         &graphql.Field{Type: graphql.NewNonNull(positionType)},
	},
})

var edgeType = graphql.NewObject(graphql.ObjectConfig{
	Name: "GraphEdge",
	Fields: graphql.Fields{
		"id":     &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"source": &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"target": &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"kind": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				if e, ok := p.Source.(synthesis.GraphEdge); ok {
					return string(e.Kind), nil
				}
				return nil, nil
			},
		},
	},
})

var skippedType = graphql.NewObject(graphql.ObjectConfig{
	Name: "SkippedDocument",
	Fields: graphql.Fields{
		"documentId": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"reason":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var statsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "BuildStats",
	Fields: graphql.Fields{
		"documents":        &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"skippedDocuments": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"nodes":            &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"structuralEdges":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"referenceEdges":   &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"droppedEdges":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"collidedNodes":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
	},
})

var graphType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Graph",
	Fields: graphql.Fields{
		"nodes":   &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(nodeType)))},
		"edges":   &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(edgeType)))},
		"skipped": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(skippedType)))},
		"stats":   &graphql.Field{Type: graphql.NewNonNull(statsType)},
	},
})

var sessionType = graphql.NewObject(graphql.ObjectConfig{
	Name: "LayoutSession",
	Fields: graphql.Fields{
		"id":         &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"state":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"iterations": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"nodes":      &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(nodeType)))},
		"edges":      &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(edgeType)))},
	},
})

// graphView flattens a result into the field names of the Graph type
type graphView struct {
	Nodes   []synthesis.GraphNode       `json:"nodes"`
	Edges   []synthesis.GraphEdge       `json:"edges"`
	Skipped []synthesis.SkippedDocument `json:"skipped"`
	Stats   synthesis.Stats             `json:"stats"`
}

type sessionView struct {
	ID         string                `json:"id"`
	State      string                `json:"state"`
	Iterations int                   `json:"iterations"`
	Nodes      []synthesis.GraphNode `json:"nodes"`
	Edges      []synthesis.GraphEdge `json:"edges"`
}

// NewSchema builds the query schema. sessions may be nil, in which case the
// layoutSession query is omitted.
func NewSchema(graphs GraphSource, sessions SessionSource) (graphql.Schema, error) {
	if graphs == nil {
		return graphql.Schema{}, errors.New("graph source is required")
	}

	fields := graphql.Fields{
		"health": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return "ok", nil
			},
		},
		"graph": &graphql.Field{
			Type: graphType,
			Args: graphql.FieldConfigArgument{
				"workspace": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (any, error) {
				ws, _ := p.Args["workspace"].(string)
				res, err := graphs.Graph(p.Context, ws)
				if err != nil {
					return nil, err
				}
				skipped := res.Skipped
				if skipped == nil {
					skipped = []synthesis.SkippedDocument{}
				}
				return graphView{Nodes: res.Nodes, Edges: res.Edges, Skipped: skipped, Stats: res.Stats}, nil
			},
		},
	}

	if sessions != nil {
		fields["layoutSession"] = &graphql.Field{
			Type: sessionType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: func(p graphql.ResolveParams) (any, error) {
				id, _ := p.Args["id"].(string)
				s, err := sessions.Get(id)
				if err != nil {
					return nil, err
				}
				return sessionView{
					ID:         s.ID(),
					State:      s.State().String(),
					Iterations: s.Iterations(),
					Nodes:      s.Snapshot(),
					Edges:      s.Edges(),
				}, nil
			},
		}
	}

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: fields}),
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to create schema: %w", err)
	}
	return schema, nil
}
