// Package visualization rasterizes layout frames onto a character grid for
// terminal viewers.
package visualization

import (
	"math"

	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

// Cell is a position on the character grid
type Cell struct {
	Col int
	Row int
}

// Viewport maps layout coordinates onto a cols x rows grid
type Viewport struct {
	Cols    int
	Rows    int
	Padding int
}

// Fit scales positions so their bounding box fills the viewport minus
// padding. A degenerate axis (all nodes aligned) is centred.
func (v Viewport) Fit(nodes []synthesis.GraphNode) map[string]Cell {
	cells := make(map[string]Cell, len(nodes))
	if len(nodes) == 0 || v.Cols <= 0 || v.Rows <= 0 {
		return cells
	}

	minX, maxX := math.MaxFloat64, -math.MaxFloat64
	minY, maxY := math.MaxFloat64, -math.MaxFloat64
	for _, n := range nodes {
		minX = math.Min(minX, n.Position.X)
		maxX = math.Max(maxX, n.Position.X)
		minY = math.Min(minY, n.Position.Y)
		maxY = math.Max(maxY, n.Position.Y)
	}

	width := float64(max(v.Cols-1-2*v.Padding, 0))
	height := float64(max(v.Rows-1-2*v.Padding, 0))

	axis := func(val, lo, hi, span float64) int {
		if hi-lo < 0.01 {
			return int(math.Round(span / 2))
		}
		return int(math.Round((val - lo) / (hi - lo) * span))
	}

	for _, n := range nodes {
		cells[n.ID] = Cell{
			Col: v.Padding + axis(n.Position.X, minX, maxX, width),
			Row: v.Padding + axis(n.Position.Y, minY, maxY, height),
		}
	}
	return cells
}
