// Package problem defines the per-problem-type contract (SAT, #SAT, PMC,
// nestPMC, VertexCover) the DP core asks for when building each bag's
// transition SQL: column types, extra columns, filters, and root
// aggregation. Each variant is a capability trait the core composes rather
// than branches on.
package problem

import (
	"context"
	"fmt"
	"strings"

	"github.com/dpdb/dpdb-go/internal/cnf"
	"github.com/dpdb/dpdb-go/internal/dbgateway"
	"github.com/dpdb/dpdb-go/internal/treedecomp"
)

// Kind identifies a problem variant.
type Kind string

const (
	SAT          Kind = "sat"
	SharpSAT     Kind = "sharpsat"
	PMC          Kind = "pmc"
	NestPMC      Kind = "nestpmc"
	VertexCover  Kind = "vertexcover"
)

// Variant is the contract every problem type satisfies. The DP core
// (internal/dpcore) calls these to build each bag's table schema and
// transition SQL without ever branching on Kind itself.
type Variant interface {
	Kind() Kind

	// VertexColumnType is the SQL type for a bag's per-vertex column
	// (typically BOOLEAN; VertexCover also uses BOOLEAN since it counts
	// "uncovered" membership the same way).
	VertexColumnType() string

	// ExtraColumns are the problem-specific columns appended to every bag
	// table (e.g. model_count NUMERIC, or size INTEGER for VertexCover).
	ExtraColumns() []dbgateway.ColumnDef

	// CandidateExtra is the SQL expression computing each extra column's
	// value in candidates_select, given the bag's children aliases.
	CandidateExtra(n *treedecomp.Node, childAliases []string) []string

	// Filter returns the WHERE clause fragment (sans "WHERE") selecting
	// only assignments consistent with the formula's clauses covered by
	// n's full vertex set, or "" if there is nothing to filter.
	Filter(n *treedecomp.Node, idx *cnf.ClauseIndex) string

	// AssignmentAggregate is extra GROUP BY / aggregate SQL appended to
	// assignment_view beyond GROUP BY stored_vertices (e.g.
	// "SUM(model_count) AS model_count").
	AssignmentAggregate() string

	// RootAggregation is the final SQL expression evaluated over the root
	// bag's table to produce the reported result.
	RootAggregation(rootTable string, storedCols []string) string

	// AfterSolveNode runs once a bag's transition has persisted its rows,
	// letting a variant post-process them per row (nestPMC's recursive
	// re-entry onto the bag's inner subproblem). Most variants have nothing
	// to do here.
	AfterSolveNode(ctx context.Context, gw *dbgateway.Gateway, n *treedecomp.Node, idx *cnf.ClauseIndex) error
}

// satVariant implements plain SAT/decision solving: no extra columns, the
// root aggregation is existence.
type satVariant struct{}

func NewSAT() Variant { return satVariant{} }

func (satVariant) Kind() Kind                 { return SAT }
func (satVariant) VertexColumnType() string   { return "BOOLEAN" }
func (satVariant) ExtraColumns() []dbgateway.ColumnDef { return nil }
func (satVariant) CandidateExtra(*treedecomp.Node, []string) []string { return nil }
func (satVariant) Filter(n *treedecomp.Node, idx *cnf.ClauseIndex) string {
	return clauseFilter(n, idx)
}
func (satVariant) AssignmentAggregate() string { return "" }
func (satVariant) RootAggregation(rootTable string, _ []string) string {
	return fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s) AS sat", rootTable)
}
func (satVariant) AfterSolveNode(context.Context, *dbgateway.Gateway, *treedecomp.Node, *cnf.ClauseIndex) error {
	return nil
}

// countingVariant implements #SAT / PMC / nestPMC: every bag carries a
// model_count column that is the product of its children's counts (1 for
// introduced vertices), and the root reports SUM(model_count).
type countingVariant struct {
	kind       Kind
	exactPMC   bool // PMC (exact): report COUNT(DISTINCT projected_cols) instead of SUM
	projectedCols []string
}

func NewSharpSAT() Variant { return countingVariant{kind: SharpSAT} }
func NewPMC(projectedCols []string, exact bool) Variant {
	return countingVariant{kind: PMC, exactPMC: exact, projectedCols: projectedCols}
}
func NewNestPMC(projectedCols []string) Variant {
	return countingVariant{kind: NestPMC, projectedCols: projectedCols}
}

func (c countingVariant) Kind() Kind               { return c.kind }
func (countingVariant) VertexColumnType() string   { return "BOOLEAN" }
func (countingVariant) ExtraColumns() []dbgateway.ColumnDef {
	return []dbgateway.ColumnDef{{Name: "model_count", Type: "NUMERIC"}}
}
func (countingVariant) CandidateExtra(n *treedecomp.Node, childAliases []string) []string {
	if len(childAliases) == 0 {
		return []string{"1 AS model_count"}
	}
	parts := make([]string, len(childAliases))
	for i, a := range childAliases {
		parts[i] = fmt.Sprintf("%s.model_count", a)
	}
	return []string{strings.Join(parts, " * ") + " AS model_count"}
}
func (countingVariant) Filter(n *treedecomp.Node, idx *cnf.ClauseIndex) string {
	return clauseFilter(n, idx)
}
func (countingVariant) AssignmentAggregate() string {
	return "SUM(model_count) AS model_count"
}
func (c countingVariant) RootAggregation(rootTable string, storedCols []string) string {
	if c.exactPMC {
		cols := strings.Join(c.projectedCols, ", ")
		return fmt.Sprintf("SELECT COUNT(DISTINCT %s) AS models FROM %s", cols, rootTable)
	}
	return fmt.Sprintf("SELECT SUM(model_count) AS models FROM %s", rootTable)
}
func (countingVariant) AfterSolveNode(context.Context, *dbgateway.Gateway, *treedecomp.Node, *cnf.ClauseIndex) error {
	return nil
}

// vertexCoverVariant implements minimum vertex cover: each bag carries a
// size column summing child sizes plus new "covered" introductions, with
// duplicate-correction for vertices shared between multiple children.
type vertexCoverVariant struct {
	edgesInBag func(n *treedecomp.Node) [][2]int
}

func NewVertexCover(edgesInBag func(n *treedecomp.Node) [][2]int) Variant {
	return vertexCoverVariant{edgesInBag: edgesInBag}
}

func (vertexCoverVariant) Kind() Kind               { return VertexCover }
func (vertexCoverVariant) VertexColumnType() string { return "BOOLEAN" }
func (vertexCoverVariant) ExtraColumns() []dbgateway.ColumnDef {
	return []dbgateway.ColumnDef{{Name: "size", Type: "INTEGER"}}
}
func (vertexCoverVariant) CandidateExtra(n *treedecomp.Node, childAliases []string) []string {
	if len(childAliases) == 0 && len(n.Vertices) == 0 {
		return []string{"0 AS size"}
	}
	parts := make([]string, len(childAliases))
	for i, a := range childAliases {
		parts[i] = fmt.Sprintf("%s.size", a)
	}
	for _, v := range n.Vertices {
		if n.NeedsIntroduce(v) {
			parts = append(parts, fmt.Sprintf("(CASE WHEN introduced.v%d THEN 1 ELSE 0 END)", v))
		}
	}
	for ci, c := range n.Children {
		for _, v := range c.Vertices {
			if carriers := n.ChildMap[v]; len(carriers) > 1 && carriers[0] != c {
				parts = append(parts, fmt.Sprintf("-(CASE WHEN %s.v%d THEN 1 ELSE 0 END)", childAliases[ci], v))
			}
		}
	}
	return []string{strings.Join(parts, " + ") + " AS size"}
}
func (v vertexCoverVariant) Filter(n *treedecomp.Node, _ *cnf.ClauseIndex) string {
	if v.edgesInBag == nil {
		return ""
	}
	edges := v.edgesInBag(n)
	if len(edges) == 0 {
		return ""
	}
	clauses := make([]string, len(edges))
	for i, e := range edges {
		clauses[i] = fmt.Sprintf("(v%d OR v%d)", e[0], e[1])
	}
	return strings.Join(clauses, " AND ")
}
func (vertexCoverVariant) AssignmentAggregate() string {
	return "MIN(size) AS size"
}
func (vertexCoverVariant) RootAggregation(rootTable string, _ []string) string {
	return fmt.Sprintf("SELECT MIN(size) AS min_cover FROM %s", rootTable)
}
func (vertexCoverVariant) AfterSolveNode(context.Context, *dbgateway.Gateway, *treedecomp.Node, *cnf.ClauseIndex) error {
	return nil
}

// clauseFilter builds the SAT/#SAT/PMC WHERE fragment: one conjunct per
// clause fully covered by n's full vertex set, each conjunct a disjunction
// of (possibly negated) vertex columns.
func clauseFilter(n *treedecomp.Node, idx *cnf.ClauseIndex) string {
	if idx == nil {
		return ""
	}
	all := make(map[int]struct{})
	for _, v := range n.AllVertices() {
		all[v] = struct{}{}
	}
	covered := idx.ClausesCoveredBy(all)
	if len(covered) == 0 {
		return ""
	}
	groups := make([]string, 0, len(covered))
	for _, c := range covered {
		lits := make([]string, len(c))
		for i, lit := range c {
			if lit.Negative() {
				lits[i] = fmt.Sprintf("NOT v%d", lit.Variable())
			} else {
				lits[i] = fmt.Sprintf("v%d", lit.Variable())
			}
		}
		groups = append(groups, "("+strings.Join(lits, " OR ")+")")
	}
	return strings.Join(groups, " AND ")
}
