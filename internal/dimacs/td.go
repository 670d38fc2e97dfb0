package dimacs

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Bag is one tree-decomposition bag as read off the wire: its id and the
// (unsorted, as declared) vertex set it carries.
type Bag struct {
	ID       int
	Vertices []int
}

// TD is a tree decomposition in its raw wire shape: bags plus the tree edges
// between bag ids. When no "c r" directive was present, ReadTD sets RootID to
// the first listed bag (it stays 0 only when there are no bags).
type TD struct {
	NumBags       int
	Width         int // declared width+1 (the largest bag size)
	NumOrigVerts  int
	RootID        int
	Bags          []Bag
	TreeEdges     [][2]int
}

// ReadTD parses the "s td <#bags> <width+1> <#orig_vertices>" decomposition
// format produced by the external decomposer: a root marker, one "b <id> v..."
// line per bag, and "u v" tree-edge lines, following the same preamble/body
// dispatch as ReadCNF and ReadGR.
func ReadTD(r io.Reader) (*TD, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var td *TD
	foundProblem := false
	pendingRoot := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "c r "):
			fields := strings.Fields(line)
			if len(fields) != 3 {
				return nil, &FormatMismatchError{Expected: "c r <id>", Found: line}
			}
			root, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, &FormatMismatchError{Expected: "c r <id>", Found: line}
			}
			if td != nil {
				td.RootID = root
			} else {
				// root directive preceding the preamble: applied once td exists
				pendingRoot = root
			}
		case strings.HasPrefix(line, "c"):
			continue
		case strings.HasPrefix(line, "s "):
			if foundProblem {
				return nil, &FormatMismatchError{Expected: "single preamble", Found: "duplicate s line"}
			}
			parts := strings.Fields(line)
			if len(parts) != 5 || parts[1] != "td" {
				return nil, &FormatMismatchError{Expected: "td", Found: line}
			}
			numBags, e1 := strconv.Atoi(parts[2])
			width, e2 := strconv.Atoi(parts[3])
			numOrig, e3 := strconv.Atoi(parts[4])
			if e1 != nil || e2 != nil || e3 != nil {
				return nil, &FormatMismatchError{Expected: "s td <#bags> <width+1> <#orig_vertices>", Found: line}
			}
			td = &TD{NumBags: numBags, Width: width, NumOrigVerts: numOrig}
			if pendingRoot != 0 {
				td.RootID = pendingRoot
			}
			foundProblem = true
		case strings.HasPrefix(line, "b "):
			if td == nil {
				return nil, &FormatMismatchError{Expected: "s td preamble before bags", Found: line}
			}
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, &FormatMismatchError{Expected: "b <id> <v...>", Found: line}
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, &FormatMismatchError{Expected: "b <id> <v...>", Found: line}
			}
			verts := make([]int, 0, len(fields)-2)
			for _, tok := range fields[2:] {
				v, err := strconv.Atoi(tok)
				if err != nil {
					return nil, &FormatMismatchError{Expected: "integer vertex", Found: tok}
				}
				verts = append(verts, v)
			}
			td.Bags = append(td.Bags, Bag{ID: id, Vertices: verts})
		default:
			if td == nil {
				return nil, &FormatMismatchError{Expected: "s td preamble", Found: line}
			}
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return nil, &FormatMismatchError{Expected: "u v", Found: line}
			}
			u, err1 := strconv.Atoi(fields[0])
			v, err2 := strconv.Atoi(fields[1])
			if err1 != nil || err2 != nil {
				return nil, &FormatMismatchError{Expected: "u v", Found: line}
			}
			td.TreeEdges = append(td.TreeEdges, [2]int{u, v})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if td == nil {
		return nil, &FormatMismatchError{Expected: "s td preamble", Found: "<empty input>"}
	}
	if td.RootID == 0 && len(td.Bags) > 0 {
		td.RootID = td.Bags[0].ID
	}
	return td, nil
}

// WriteTD writes the decomposition back out in wire format, bags and tree
// edges in the order stored (callers that need determinism sort beforehand).
func WriteTD(w io.Writer, td *TD) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "s td %d %d %d\n", td.NumBags, td.Width, td.NumOrigVerts); err != nil {
		return err
	}
	if td.RootID != 0 {
		if _, err := fmt.Fprintf(bw, "c r %d\n", td.RootID); err != nil {
			return err
		}
	}
	for _, b := range td.Bags {
		verts := make([]int, len(b.Vertices))
		copy(verts, b.Vertices)
		sort.Ints(verts)
		parts := make([]string, 0, len(verts)+2)
		parts = append(parts, "b", strconv.Itoa(b.ID))
		for _, v := range verts {
			parts = append(parts, strconv.Itoa(v))
		}
		if _, err := fmt.Fprintln(bw, strings.Join(parts, " ")); err != nil {
			return err
		}
	}
	for _, e := range td.TreeEdges {
		if _, err := fmt.Fprintf(bw, "%d %d\n", e[0], e[1]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
