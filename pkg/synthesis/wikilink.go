package synthesis

import "strings"

const (
	linkOpen  = "[["
	linkClose = "]]"
)

// NormalizeTitle is the key used to match link titles against labels
func NormalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ExtractLinks returns the titles of every [[Title]] link in label, in order
// of appearance. Title text is taken verbatim up to the first closing "]]";
// an unterminated "[[" ends the scan. Blank titles are skipped.
func ExtractLinks(label string) []string {
	var titles []string
	rest := label
	for {
		start := strings.Index(rest, linkOpen)
		if start < 0 {
			return titles
		}
		rest = rest[start+len(linkOpen):]

		end := strings.Index(rest, linkClose)
		if end < 0 {
			return titles
		}
		if title := rest[:end]; strings.TrimSpace(title) != "" {
			titles = append(titles, title)
		}
		rest = rest[end+len(linkClose):]
	}
}

// TitleIndex maps a normalized label to the ids of every node carrying it,
// in emission order
type TitleIndex map[string][]string

// NewTitleIndex indexes nodes by normalized label
func NewTitleIndex(nodes []GraphNode) TitleIndex {
	idx := make(TitleIndex, len(nodes))
	for _, n := range nodes {
		key := NormalizeTitle(n.Label)
		idx[key] = append(idx[key], n.ID)
	}
	return idx
}

// Lookup returns the node ids whose label matches title
func (idx TitleIndex) Lookup(title string) []string {
	return idx[NormalizeTitle(title)]
}
