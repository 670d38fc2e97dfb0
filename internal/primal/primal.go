// Package primal builds the primal graph of a CNF formula: one vertex per
// variable, one edge per pair of variables co-occurring in some clause.
// This is the graph the tree-decomposer is actually asked to decompose
// (after internal/abstraction has possibly contracted non-projected
// vertices into cliques).
package primal

import (
	"github.com/dpdb/dpdb-go/internal/cnf"
	"github.com/dpdb/dpdb-go/internal/dimacs"
)

// Graph is the primal graph, keyed by the formula's own variable numbering
// (not yet dense-renumbered; internal/dimacs handles that when writing).
type Graph struct {
	NumVars   int
	Edges     map[[2]int]struct{}
	Adjacency map[int]map[int]struct{}
}

// NewGraph returns an empty primal graph over variables 1..numVars.
func NewGraph(numVars int) *Graph {
	return &Graph{
		NumVars:   numVars,
		Edges:     make(map[[2]int]struct{}),
		Adjacency: make(map[int]map[int]struct{}),
	}
}

// AddEdge installs the edge u-v (order-independent, no self-loops).
func (g *Graph) AddEdge(u, v int) {
	if u == v {
		return
	}
	if u > v {
		u, v = v, u
	}
	if _, ok := g.Edges[[2]int{u, v}]; ok {
		return
	}
	g.Edges[[2]int{u, v}] = struct{}{}
	if g.Adjacency[u] == nil {
		g.Adjacency[u] = make(map[int]struct{})
	}
	if g.Adjacency[v] == nil {
		g.Adjacency[v] = make(map[int]struct{})
	}
	g.Adjacency[u][v] = struct{}{}
	g.Adjacency[v][u] = struct{}{}
}

// AddClique installs edges between every pair of vertices in vs, the
// operation the abstraction stage uses once it contracts a non-projected
// vertex's neighborhood into a clique.
func (g *Graph) AddClique(vs []int) {
	for i := 0; i < len(vs); i++ {
		for j := i + 1; j < len(vs); j++ {
			g.AddEdge(vs[i], vs[j])
		}
	}
}

// Neighbors returns v's neighbor set, or nil if v has none.
func (g *Graph) Neighbors(v int) map[int]struct{} {
	return g.Adjacency[v]
}

// Build constructs the primal graph of f: every clause contributes a clique
// over its variables, since they all constrain one another jointly.
func Build(f *cnf.CNF) *Graph {
	g := NewGraph(f.NumVars)
	for _, c := range f.Clauses {
		vars := make([]int, 0, len(c))
		for v := range c.Variables() {
			vars = append(vars, v)
		}
		g.AddClique(vars)
	}
	return g
}

// ToGR converts the primal graph to the plain edge-set format the external
// decomposer consumes. Vertices are passed through as-is; the caller is
// responsible for dense renumbering if isolated variables would otherwise
// leave gaps the decomposer can't handle.
func (g *Graph) ToGR() *dimacs.Graph {
	out := &dimacs.Graph{NumVertices: g.NumVars}
	for e := range g.Edges {
		out.AddEdge(e[0], e[1])
	}
	return out
}
