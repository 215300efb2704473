package visualization

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dd0wney/cluso-graphview/pkg/synthesis"
)

// Glyphs used by Render
const (
	EdgeGlyph      = '·'
	ReferenceGlyph = ':'
	DefaultGlyph   = '●'
)

// Grid is a rendered frame, one string per row
type Grid struct {
	cells [][]rune
}

// Render draws edges first and nodes on top. Each node is drawn with the
// first letter of its label, or DefaultGlyph when the label has none.
func Render(nodes []synthesis.GraphNode, edges []synthesis.GraphEdge, vp Viewport) Grid {
	g := Grid{cells: make([][]rune, max(vp.Rows, 0))}
	for r := range g.cells {
		g.cells[r] = []rune(strings.Repeat(" ", max(vp.Cols, 0)))
	}

	placed := vp.Fit(nodes)
	for _, e := range edges {
		a, okA := placed[e.Source]
		b, okB := placed[e.Target]
		if !okA || !okB {
			continue
		}
		glyph := EdgeGlyph
		if e.Kind == synthesis.EdgeReference {
			glyph = ReferenceGlyph
		}
		g.line(a, b, glyph)
	}
	for _, n := range nodes {
		if c, ok := placed[n.ID]; ok {
			g.set(c, nodeGlyph(n.Label))
		}
	}
	return g
}

func nodeGlyph(label string) rune {
	for label != "" {
		r, size := utf8.DecodeRuneInString(label)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		label = label[size:]
	}
	return DefaultGlyph
}

func (g Grid) set(c Cell, r rune) {
	if c.Row < 0 || c.Row >= len(g.cells) || c.Col < 0 || c.Col >= len(g.cells[c.Row]) {
		return
	}
	g.cells[c.Row][c.Col] = r
}

// line plots a Bresenham segment between a and b, endpoints excluded
func (g Grid) line(a, b Cell, r rune) {
	dx := abs(b.Col - a.Col)
	dy := -abs(b.Row - a.Row)
	sx, sy := sign(b.Col-a.Col), sign(b.Row-a.Row)
	err := dx + dy
	c := a
	for c != b {
		if c != a {
			g.set(c, r)
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			c.Col += sx
		}
		if e2 <= dx {
			err += dx
			c.Row += sy
		}
	}
}

// Lines returns the rows of the grid
func (g Grid) Lines() []string {
	out := make([]string, len(g.cells))
	for i, row := range g.cells {
		out[i] = string(row)
	}
	return out
}

func (g Grid) String() string {
	return strings.Join(g.Lines(), "\n")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
