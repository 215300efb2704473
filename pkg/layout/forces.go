package layout

import (
	"math"

	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

// body is the per-iteration simulation state of one node. The force
// accumulator is rebuilt from zero every step.
type body struct {
	x, y   float64
	fx, fy float64
	pinned bool
}

// spring is an edge resolved to body indices
type spring struct {
	u, v int
}

// resolveSprings maps edges to node indices, skipping edges whose endpoints
// are not in the node set
func resolveSprings(nodes []synthesis.GraphNode, edges []synthesis.GraphEdge) []spring {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}
	springs := make([]spring, 0, len(edges))
	for _, e := range edges {
		u, okU := index[e.Source]
		v, okV := index[e.Target]
		if !okU || !okV {
			continue
		}
		springs = append(springs, spring{u: u, v: v})
	}
	return springs
}

// separation returns the unit vector from a to b and the distance between
// them, with the squared distance floored to 1
func separation(a, b *body) (ux, uy, dist, distSq float64) {
	dx := b.x - a.x
	dy := b.y - a.y
	distSq = dx*dx + dy*dy
	if distSq < 1 {
		distSq = 1
	}
	dist = math.Sqrt(distSq)
	return dx / dist, dy / dist, dist, distSq
}

func applyRepulsion(bodies []body, k float64) {
	for i := 0; i < len(bodies); i++ {
		u := &bodies[i]
		for j := i + 1; j < len(bodies); j++ {
			v := &bodies[j]
			ux, uy, _, distSq := separation(u, v)
			f := k / distSq
			v.fx += ux * f
			v.fy += uy * f
			u.fx -= ux * f
			u.fy -= uy * f
		}
	}
}

func applySprings(bodies []body, springs []spring, idealLength, k float64) {
	for _, s := range springs {
		u, v := &bodies[s.u], &bodies[s.v]
		ux, uy, dist, _ := separation(u, v)
		f := (dist - idealLength) * k
		u.fx += ux * f
		u.fy += uy * f
		v.fx -= ux * f
		v.fy -= uy * f
	}
}

func applyGravity(bodies []body, k float64) {
	for i := range bodies {
		bodies[i].fx -= bodies[i].x * k
		bodies[i].fy -= bodies[i].y * k
	}
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

// accumulate computes every force from the current positions without moving
// anything
func accumulate(bodies []body, springs []spring, cfg Config) {
	for i := range bodies {
		bodies[i].fx, bodies[i].fy = 0, 0
	}
	applyRepulsion(bodies, cfg.RepulsionConstant)
	applySprings(bodies, springs, cfg.IdealLength, cfg.SpringConstant)
	applyGravity(bodies, cfg.GravityConstant)
}

// integrate writes the moved positions into a fresh node slice and returns the
// largest per-axis displacement. Pinned nodes do not move.
func integrate(prev []synthesis.GraphNode, bodies []body, velocityClamp float64) ([]synthesis.GraphNode, float64) {
	next := make([]synthesis.GraphNode, len(prev))
	copy(next, prev)

	maxDisplacement := 0.0
	for i := range bodies {
		b := &bodies[i]
		if b.pinned {
			next[i].Position = synthesis.Position{X: b.x, Y: b.y}
			continue
		}
		dx := clamp(b.fx, velocityClamp)
		dy := clamp(b.fy, velocityClamp)
		next[i].Position = synthesis.Position{X: b.x + dx, Y: b.y + dy}
		maxDisplacement = math.Max(maxDisplacement, math.Max(math.Abs(dx), math.Abs(dy)))
	}
	return next, maxDisplacement
}

func loadBodies(nodes []synthesis.GraphNode, pinned map[string]synthesis.Position) []body {
	bodies := make([]body, len(nodes))
	for i, n := range nodes {
		if p, ok := pinned[n.ID]; ok {
			bodies[i] = body{x: p.X, y: p.Y, pinned: true}
			continue
		}
		bodies[i] = body{x: n.Position.X, y: n.Position.Y}
	}
	return bodies
}

// Step performs one relaxation of nodes under cfg and returns the new frame
// along with the largest per-axis move. The input slice is not modified.
func Step(nodes []synthesis.GraphNode, edges []synthesis.GraphEdge, cfg Config) ([]synthesis.GraphNode, float64) {
	return step(nodes, resolveSprings(nodes, edges), nil, cfg)
}

func step(nodes []synthesis.GraphNode, springs []spring, pinned map[string]synthesis.Position, cfg Config) ([]synthesis.GraphNode, float64) {
	bodies := loadBodies(nodes, pinned)
	accumulate(bodies, springs, cfg)
	return integrate(nodes, bodies, cfg.VelocityClamp)
}
