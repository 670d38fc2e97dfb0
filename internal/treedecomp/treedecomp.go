// Package treedecomp is the rooted-tree data model a decomposition is loaded
// into once the external decomposer has produced one: bags, parent/child
// links, and the derived per-bag fields (stored_vertices, needs_introduce,
// all_vertices, constraint_relevant) the DP core's SQL builders read off
// directly, plus the traversal orders solving and setup run in.
package treedecomp

import (
	"container/list"
	"sort"

	"github.com/dpdb/dpdb-go/internal/abstraction"
	"github.com/dpdb/dpdb-go/internal/dimacs"
)

// Node is one bag of the decomposition plus everything derived from its
// position in the tree.
type Node struct {
	ID       int
	Vertices []int // the bag, in declared order
	Minor    []int // inner variables attributable to this bag via clique-uses

	Parent   *Node
	Children []*Node

	// ChildMap records, for each vertex in Vertices, which children also
	// carry it — the per-vertex child map the spec's data model calls for.
	ChildMap map[int][]*Node
}

// Tree is a rooted tree decomposition.
type Tree struct {
	Root  *Node
	Nodes map[int]*Node
}

// vertexSet is a convenience conversion used throughout the derived-field
// computations below.
func vertexSet(vs []int) map[int]struct{} {
	s := make(map[int]struct{}, len(vs))
	for _, v := range vs {
		s[v] = struct{}{}
	}
	return s
}

// FromTD builds a Tree from the wire-format decomposition td, rooted at its
// declared root (or the first listed bag if that id is not a bag), and
// attributes minor vertices to each bag, in preorder, via
// abs.ProjectionVariablesOf(the bag's own vertex set), so every inner
// variable lands in exactly one bag.
func FromTD(td *dimacs.TD, abs *abstraction.Result) *Tree {
	t := &Tree{Nodes: make(map[int]*Node, len(td.Bags))}
	for _, b := range td.Bags {
		verts := make([]int, len(b.Vertices))
		copy(verts, b.Vertices)
		t.Nodes[b.ID] = &Node{ID: b.ID, Vertices: verts, ChildMap: make(map[int][]*Node)}
	}

	adj := make(map[int][]int, len(td.Bags))
	for _, e := range td.TreeEdges {
		adj[e[0]] = append(adj[e[0]], e[1])
		adj[e[1]] = append(adj[e[1]], e[0])
	}

	rootID := td.RootID
	if _, ok := t.Nodes[rootID]; !ok && len(td.Bags) > 0 {
		rootID = td.Bags[0].ID
	}
	t.Root = t.Nodes[rootID]

	visited := map[int]bool{rootID: true}
	queue := []int{rootID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curNode := t.Nodes[cur]
		for _, next := range adj[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			childNode := t.Nodes[next]
			childNode.Parent = curNode
			curNode.Children = append(curNode.Children, childNode)
			queue = append(queue, next)
		}
	}
	for _, n := range t.Nodes {
		sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].ID < n.Children[j].ID })
		for v := range vertexSet(n.Vertices) {
			for _, c := range n.Children {
				if _, ok := vertexSet(c.Vertices)[v]; ok {
					n.ChildMap[v] = append(n.ChildMap[v], c)
				}
			}
		}
	}

	if abs != nil {
		for _, id := range t.Preorder() {
			n := t.Nodes[id]
			n.Minor = abs.ProjectionVariablesOf(vertexSet(n.Vertices))
		}
	}

	return t
}

// StoredVertices returns the vertices of n also present in its parent's bag;
// the root stores all of its own vertices.
func (n *Node) StoredVertices() []int {
	if n.Parent == nil {
		out := make([]int, len(n.Vertices))
		copy(out, n.Vertices)
		return out
	}
	parentSet := vertexSet(n.Parent.Vertices)
	var out []int
	for _, v := range n.Vertices {
		if _, ok := parentSet[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// NeedsIntroduce reports whether v is not present in any child of n, i.e.
// whether v is introduced fresh at this bag.
func (n *Node) NeedsIntroduce(v int) bool {
	for _, c := range n.Children {
		if _, ok := vertexSet(c.Vertices)[v]; ok {
			return false
		}
	}
	return true
}

// AllVertices is the bag's vertex set unioned with its minor (inner)
// vertices.
func (n *Node) AllVertices() []int {
	seen := vertexSet(n.Vertices)
	for _, v := range n.Minor {
		seen[v] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// ConstraintRelevant is bag ∩ parent, falling back to the full bag at the
// root; these are the columns used as a bag table's deduplication key.
func (n *Node) ConstraintRelevant() []int {
	if n.Parent == nil {
		out := make([]int, len(n.Vertices))
		copy(out, n.Vertices)
		sort.Ints(out)
		return out
	}
	parentSet := vertexSet(n.Parent.Vertices)
	var out []int
	for _, v := range n.Vertices {
		if _, ok := parentSet[v]; ok {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

// Postorder returns bag ids in postorder (children fully visited before
// their parent), the order solving populates tables in.
func (t *Tree) Postorder() []int {
	var out []int
	if t.Root == nil {
		return out
	}
	type frame struct {
		n       *Node
		visited bool
	}
	stack := list.New()
	stack.PushBack(&frame{n: t.Root})
	for stack.Len() > 0 {
		back := stack.Back()
		fr := back.Value.(*frame)
		if fr.visited {
			stack.Remove(back)
			out = append(out, fr.n.ID)
			continue
		}
		fr.visited = true
		for i := len(fr.n.Children) - 1; i >= 0; i-- {
			stack.PushBack(&frame{n: fr.n.Children[i]})
		}
	}
	return out
}

// Preorder returns bag ids in preorder (parent before children), the order
// setup and minor-vertex attribution run in.
func (t *Tree) Preorder() []int {
	var out []int
	if t.Root == nil {
		return out
	}
	stack := []*Node{t.Root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n.ID)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// ValidateInvariants checks the three decomposition invariants against the
// original formula's variable and clause sets: every variable sits in at
// least one bag, every clause's variables lie jointly in some bag, and every
// variable's containing bags form a connected subtree.
func (t *Tree) ValidateInvariants(vars []int, clauses [][]int) []string {
	var problems []string

	bagsOf := make(map[int][]int) // variable -> bag ids containing it
	for id, n := range t.Nodes {
		for _, v := range n.Vertices {
			bagsOf[v] = append(bagsOf[v], id)
		}
	}

	for _, v := range vars {
		if len(bagsOf[v]) == 0 {
			problems = append(problems, "variable not covered by any bag")
		}
	}

	for _, c := range clauses {
		covered := false
		for _, n := range t.Nodes {
			all := vertexSet(n.AllVertices())
			ok := true
			for _, v := range c {
				if _, in := all[v]; !in {
					ok = false
					break
				}
			}
			if ok {
				covered = true
				break
			}
		}
		if !covered {
			problems = append(problems, "clause not jointly covered by any bag")
		}
	}

	for v, ids := range bagsOf {
		if !t.isConnected(ids) {
			problems = append(problems, "bags containing a variable do not form a connected subtree")
			_ = v
			break
		}
	}

	return problems
}

func (t *Tree) isConnected(ids []int) bool {
	if len(ids) <= 1 {
		return true
	}
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	start := ids[0]
	visited := map[int]bool{start: true}
	queue := []int{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		n := t.Nodes[cur]
		neighbors := append(append([]*Node{}, n.Children...), n.Parent)
		for _, nb := range neighbors {
			if nb == nil {
				continue
			}
			if _, want := set[nb.ID]; !want {
				continue
			}
			if visited[nb.ID] {
				continue
			}
			visited[nb.ID] = true
			queue = append(queue, nb.ID)
		}
	}
	return len(visited) == len(set)
}
