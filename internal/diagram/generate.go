package diagram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dpdb/dpdb-go/internal/dimacs"
	"github.com/dpdb/dpdb-go/internal/treedecomp"
)

// GenerateTreeSource builds flowchart source for a decomposition: one node
// per bag, labelled with its id and vertex list, and one edge per tree
// parent-child link. rowCounts may be nil; when present, bag ids found in it
// are appended to the label as "rows=N" (the row count left in a table after
// that bag's transition ran).
func GenerateTreeSource(t *treedecomp.Tree, rowCounts map[int]int64) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")

	for _, id := range t.Preorder() {
		n := t.Nodes[id]
		label := fmt.Sprintf("bag %d: {%s}", n.ID, joinInts(n.Vertices))
		if rowCounts != nil {
			if rows, ok := rowCounts[n.ID]; ok {
				label = fmt.Sprintf("%s rows=%d", label, rows)
			}
		}
		b.WriteString(fmt.Sprintf("N%d[%q]\n", n.ID, label))
	}
	for _, id := range t.Preorder() {
		n := t.Nodes[id]
		for _, c := range n.Children {
			b.WriteString(fmt.Sprintf("N%d --> N%d\n", n.ID, c.ID))
		}
	}

	return b.String()
}

// GenerateGraphSource builds flowchart source for a plain vertex graph (the
// primal graph or a minor/nested-primal graph): one node per vertex, one
// edge per graph edge. Since the underlying graph is undirected, edges are
// emitted in the graph's own endpoint order; Render lays them out by BFS
// depth from the vertices with no incoming edge.
func GenerateGraphSource(g *dimacs.Graph) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")

	for v := 1; v <= g.NumVertices; v++ {
		b.WriteString(fmt.Sprintf("N%d[%q]\n", v, strconv.Itoa(v)))
	}
	for _, e := range g.Edges {
		b.WriteString(fmt.Sprintf("N%d --> N%d\n", e[0], e[1]))
	}

	return b.String()
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
