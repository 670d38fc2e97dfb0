package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
)

// GraphDiagram renders a flowchart whose nodes are declared as
// `N<id>["label"]` and edges as `N<id> --> N<id>`, one node per bag or per
// graph vertex/clique.
type GraphDiagram struct {
	order []string
	nodes map[string]string // node id -> label
	edges [][2]string       // from -> to, in declaration order
}

func (gd *GraphDiagram) Type() string { return "flowchart" }

// Parse reads the generated source produced by GenerateTreeSource /
// GenerateGraphSource.
func (gd *GraphDiagram) Parse(input string) error {
	gd.nodes = make(map[string]string)
	lines := strings.Split(input, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || i == 0 && (strings.HasPrefix(line, "flowchart") || strings.HasPrefix(line, "graph")) {
			continue
		}
		if strings.Contains(line, "-->") {
			parts := strings.SplitN(line, "-->", 2)
			from := strings.TrimSpace(parts[0])
			to := strings.TrimSpace(parts[1])
			if from == "" || to == "" {
				return fmt.Errorf("malformed edge line %q", line)
			}
			gd.edges = append(gd.edges, [2]string{from, to})
			continue
		}
		bracket := strings.Index(line, "[")
		if bracket < 0 || !strings.HasSuffix(line, "]") {
			return fmt.Errorf("malformed node line %q", line)
		}
		id := strings.TrimSpace(line[:bracket])
		label := strings.Trim(line[bracket+1:len(line)-1], `"`)
		if _, exists := gd.nodes[id]; !exists {
			gd.order = append(gd.order, id)
		}
		gd.nodes[id] = label
	}
	if len(gd.nodes) == 0 {
		return fmt.Errorf("no nodes declared in diagram source")
	}
	return nil
}

// Render lays nodes out by BFS depth from the roots (nodes with no incoming
// edge) into columns (direction "LR") or rows (direction "TD"), draws each
// node as a bordered box sized to its label's display width, and lists
// parent-child edges as a legend beneath the layout.
func (gd *GraphDiagram) Render(cfg *Config) (string, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	children := make(map[string][]string)
	hasParent := make(map[string]bool)
	for _, e := range gd.edges {
		children[e[0]] = append(children[e[0]], e[1])
		hasParent[e[1]] = true
	}

	var roots []string
	for _, id := range gd.order {
		if !hasParent[id] {
			roots = append(roots, id)
		}
	}
	if len(roots) == 0 && len(gd.order) > 0 {
		roots = []string{gd.order[0]}
	}

	depth := make(map[string]int)
	visited := make(map[string]bool)
	queue := append([]string{}, roots...)
	for _, r := range roots {
		depth[r] = 0
		visited[r] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range children[cur] {
			if visited[c] {
				continue
			}
			visited[c] = true
			depth[c] = depth[cur] + 1
			queue = append(queue, c)
		}
	}
	// Any node unreached by the BFS (disconnected component) still gets drawn,
	// anchored at depth 0.
	maxDepth := 0
	for _, id := range gd.order {
		if !visited[id] {
			depth[id] = 0
		}
		if depth[id] > maxDepth {
			maxDepth = depth[id]
		}
	}

	columns := make([][]string, maxDepth+1)
	for _, id := range gd.order {
		d := depth[id]
		columns[d] = append(columns[d], id)
	}

	var b strings.Builder
	if strings.EqualFold(cfg.Direction, "TD") {
		for d, ids := range columns {
			if d > 0 {
				b.WriteString(strings.Repeat("\n", cfg.PaddingBetweenY+1))
			}
			b.WriteString(renderRow(gd.nodes, ids, cfg))
		}
	} else {
		b.WriteString(renderColumns(gd.nodes, columns, cfg))
	}

	if len(gd.edges) > 0 {
		b.WriteString("\n\n")
		edges := make([]string, 0, len(gd.edges))
		for _, e := range gd.edges {
			edges = append(edges, fmt.Sprintf("%s -> %s", gd.nodes[e[0]], gd.nodes[e[1]]))
		}
		sort.Strings(edges)
		b.WriteString(strings.Join(edges, "\n"))
	}

	return b.String(), nil
}

func box(label string, cfg *Config) []string {
	pad := cfg.BoxBorderPadding
	width := runewidth.StringWidth(label) + pad*2
	horiz, vert, corner := "-", "|", "+"
	if !cfg.UseAscii {
		horiz, vert, corner = "─", "│", "+"
	}
	top := corner + strings.Repeat(horiz, width) + corner
	mid := vert + strings.Repeat(" ", pad) + label + strings.Repeat(" ", pad) + vert
	return []string{top, mid, top}
}

func renderRow(labels map[string]string, ids []string, cfg *Config) string {
	boxes := make([][]string, len(ids))
	for i, id := range ids {
		boxes[i] = box(labels[id], cfg)
	}
	gap := strings.Repeat(" ", cfg.PaddingBetweenX)
	var lines [3]string
	for row := 0; row < 3; row++ {
		parts := make([]string, len(boxes))
		for i := range boxes {
			parts[i] = boxes[i][row]
		}
		lines[row] = strings.Join(parts, gap)
	}
	return strings.Join(lines[:], "\n")
}

func renderColumns(labels map[string]string, columns [][]string, cfg *Config) string {
	colLines := make([][]string, len(columns))
	colWidth := make([]int, len(columns))
	for c, ids := range columns {
		var lines []string
		for i, id := range ids {
			if i > 0 {
				lines = append(lines, strings.Repeat(" ", 1))
			}
			lines = append(lines, box(labels[id], cfg)...)
		}
		colLines[c] = lines
		for _, l := range lines {
			if w := runewidth.StringWidth(l); w > colWidth[c] {
				colWidth[c] = w
			}
		}
	}

	maxRows := 0
	for _, lines := range colLines {
		if len(lines) > maxRows {
			maxRows = len(lines)
		}
	}

	gap := strings.Repeat(" ", cfg.PaddingBetweenX)
	var b strings.Builder
	for row := 0; row < maxRows; row++ {
		for c, lines := range colLines {
			if c > 0 {
				b.WriteString(gap)
			}
			var cell string
			if row < len(lines) {
				cell = lines[row]
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", colWidth[c]-runewidth.StringWidth(cell)))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
