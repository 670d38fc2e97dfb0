// Package nesthdb is the recursive nested solver: it alternates tree
// decomposition with calls to an external classical solver based on
// treewidth thresholds, preprocessing each formula before deciding how to
// proceed and caching fully-resolved subproblems by their frozen clause set.
package nesthdb

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/dpdb/dpdb-go/internal/abschooser"
	"github.com/dpdb/dpdb-go/internal/abstraction"
	"github.com/dpdb/dpdb-go/internal/cancel"
	"github.com/dpdb/dpdb-go/internal/cnf"
	"github.com/dpdb/dpdb-go/internal/dbgateway"
	"github.com/dpdb/dpdb-go/internal/decomposer"
	"github.com/dpdb/dpdb-go/internal/dpcore"
	"github.com/dpdb/dpdb-go/internal/primal"
	"github.com/dpdb/dpdb-go/internal/problem"
	"github.com/dpdb/dpdb-go/internal/solverio"
	"github.com/dpdb/dpdb-go/internal/treedecomp"
)

// Config bundles every threshold and external-tool wiring the recursive
// solver needs.
type Config struct {
	Decomposer        decomposer.Config
	SharpSATSolver    solverio.Call
	PMCSolver         solverio.Call
	SATSolver         solverio.Call
	AbstractionChoose abschooser.Config

	ThresholdAbstract int
	ThresholdHybrid   int
	MaxRecursionDepth int
	DisableCache      bool
}

// Solver runs one top-level or recursive solve.
type Solver struct {
	DB  *dbgateway.Gateway
	Ctl *cancel.Controller
	Cfg Config
	Rng *rand.Rand

	cacheMu sync.Mutex
	cache   map[string]int64
}

// NewSolver returns a Solver with an empty cache.
func NewSolver(db *dbgateway.Gateway, ctl *cancel.Controller, cfg Config, rng *rand.Rand) *Solver {
	return &Solver{DB: db, Ctl: ctl, Cfg: cfg, Rng: rng, cache: make(map[string]int64)}
}

// cacheKey freezes a formula's clause set into a stable string.
func cacheKey(f *cnf.CNF) string {
	keys := make([]string, len(f.Clauses))
	for i, c := range f.Clauses {
		keys[i] = c.Fingerprint()
	}
	sort.Strings(keys)
	return fmt.Sprint(keys)
}

func (s *Solver) cacheProbe(f *cnf.CNF) (int64, bool) {
	if s.Cfg.DisableCache {
		return 0, false
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	v, ok := s.cache[cacheKey(f)]
	return v, ok
}

func (s *Solver) cacheStore(f *cnf.CNF, v int64) {
	if s.Cfg.DisableCache {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache[cacheKey(f)] = v
}

// Solve is the recursive entry: preprocess, decide SAT-only vs. full
// decomposition, decompose, and either offload to an external classical
// solver or run the DP core with the nestPMC variant, recursing per row.
func (s *Solver) Solve(ctx context.Context, f *cnf.CNF, nonNested map[int]struct{}, depth int) (int64, error) {
	if s.Ctl.Interrupted() {
		return 0, fmt.Errorf("nesthdb: interrupted")
	}

	if cached, ok := s.cacheProbe(f); ok {
		return cached, nil
	}

	projectedOrig := len(f.ProjectedOrAll())

	reduced, verdict, known := s.preprocess(ctx, f)
	if known {
		if verdict == verdictUnsat {
			s.cacheStore(f, 0)
			return 0, nil
		}
		if verdict == verdictCounted {
			result := reduced.Models * pow2(projectedOrig-len(reduced.ProjectedOrAll()))
			s.cacheStore(f, result)
			return result, nil
		}
	}
	f = reduced

	projected := f.ProjectedOrAll()
	hasProjectedVar := false
	for v := range projected {
		if vertexOccurs(f, v) {
			hasProjectedVar = true
			break
		}
	}
	if !hasProjectedVar {
		res, err := solverio.Run(ctx, s.Ctl, s.Cfg.SATSolver, f, s.Rng)
		if err != nil {
			return 0, err
		}
		var count int64
		if res.Formula.MaybeSat {
			count = 1
		}
		result := count * pow2(projectedOrig-len(projected))
		s.cacheStore(f, result)
		return result, nil
	}

	g := primal.Build(f)
	abs := abstraction.Abstract(g, complement(nonNested, g.NumVars))
	gr := g.ToGR()

	td, err := decomposer.Decompose(ctx, s.Ctl, s.Cfg.Decomposer, s.Rng.Int63(), gr, nil)
	if err != nil {
		return 0, fmt.Errorf("nesthdb: decomposing: %w", err)
	}
	width := td.Width - 1

	if (depth >= s.Cfg.MaxRecursionDepth && width >= s.Cfg.ThresholdAbstract) || width >= s.Cfg.ThresholdHybrid {
		return s.offloadClassical(ctx, f, projectedOrig, projected)
	}

	if width >= s.Cfg.ThresholdAbstract {
		candidates := make([]int, 0, len(nonNested))
		for v := range nonNested {
			candidates = append(candidates, v)
		}
		chosen, chooseErr := abschooser.Choose(ctx, s.Ctl, s.Cfg.AbstractionChoose, candidates)
		if chooseErr == nil && len(chosen) > 0 {
			smaller := toSet(chosen)
			g2 := primal.Build(f)
			abs2 := abstraction.Abstract(g2, complement(smaller, g2.NumVars))
			td2, decompErr := decomposer.Decompose(ctx, s.Ctl, s.Cfg.Decomposer, s.Rng.Int63(), g2.ToGR(), nil)
			if decompErr == nil && td2.Width-1 < s.Cfg.ThresholdAbstract {
				td, abs = td2, abs2
			} else {
				return s.offloadClassical(ctx, f, projectedOrig, projected)
			}
		} else {
			return s.offloadClassical(ctx, f, projectedOrig, projected)
		}
	}

	tree := treedecomp.FromTD(td, abs)
	idx := cnf.BuildClauseIndex(f)

	projectedCols := make([]string, 0, len(projected))
	for v := range projected {
		projectedCols = append(projectedCols, fmt.Sprintf("v%d", v))
	}
	variant := nestPMCVariant{solver: s, origFormula: f, depth: depth}
	variant.inner = problem.NewNestPMC(projectedCols)

	p := dpcore.NewProblem(s.DB.WithPrefix(depth), tree, idx, variant, s.Ctl, dpcore.Options{})
	if err := p.Setup(ctx); err != nil {
		return 0, err
	}
	if err := p.Solve(ctx); err != nil {
		return 0, err
	}

	row, err := p.RootResult(ctx)
	if err != nil {
		return 0, err
	}
	var models int64
	if err := row.Scan(&models); err != nil {
		return 0, err
	}

	result := models * pow2(projectedOrig-len(projected))
	s.cacheStore(f, result)
	return result, nil
}

type verdictKind int

const (
	verdictUnknown verdictKind = iota
	verdictUnsat
	verdictCounted
)

// preprocess runs the external CNF preprocessor if configured; a failure is
// silently ignored (nothing is logged), so the caller continues with the
// unprocessed formula.
func (s *Solver) preprocess(ctx context.Context, f *cnf.CNF) (*cnf.CNF, verdictKind, bool) {
	if s.Cfg.SharpSATSolver.Path == "" {
		return f, verdictUnknown, false
	}
	res, err := solverio.Run(ctx, s.Ctl, s.Cfg.SharpSATSolver, f, s.Rng)
	if err != nil {
		return f, verdictUnknown, false
	}
	if res.Formula.UnsatKnown {
		return f, verdictUnsat, true
	}
	if res.Formula.Done && res.Formula.Models > 0 {
		return res.Formula, verdictCounted, true
	}
	return res.Formula, verdictUnknown, false
}

func (s *Solver) offloadClassical(ctx context.Context, f *cnf.CNF, projectedOrig int, projected map[int]struct{}) (int64, error) {
	call := s.Cfg.PMCSolver
	if len(projected) == f.NumVars {
		call = s.Cfg.SharpSATSolver
	}
	res, err := solverio.Run(ctx, s.Ctl, call, f, s.Rng)
	if err != nil {
		return 0, err
	}
	result := res.Formula.Models * pow2(projectedOrig-len(projected))
	s.cacheStore(f, result)
	return result, nil
}

func pow2(n int) int64 {
	if n <= 0 {
		return 1
	}
	return int64(math.Pow(2, float64(n)))
}

func vertexOccurs(f *cnf.CNF, v int) bool {
	for _, c := range f.Clauses {
		for _, lit := range c {
			if lit.Variable() == v {
				return true
			}
		}
	}
	return false
}

func complement(s map[int]struct{}, numVars int) map[int]struct{} {
	out := make(map[int]struct{})
	for v := 1; v <= numVars; v++ {
		if _, in := s[v]; !in {
			out[v] = struct{}{}
		}
	}
	return out
}

func toSet(vs []int) map[int]struct{} {
	out := make(map[int]struct{}, len(vs))
	for _, v := range vs {
		out[v] = struct{}{}
	}
	return out
}

// nestPMCVariant wraps the counting variant to additionally dispatch one
// recursive Solve call per row of the bag's table (the nestPMC
// after_solve_node override), re-entering on the clauses covered by the
// bag's all_vertices plus unit clauses pinning the row's assignment.
type nestPMCVariant struct {
	inner       problem.Variant
	solver      *Solver
	origFormula *cnf.CNF
	depth       int
}

func (n nestPMCVariant) Kind() problem.Kind { return problem.NestPMC }
func (n nestPMCVariant) VertexColumnType() string { return n.inner.VertexColumnType() }
func (n nestPMCVariant) ExtraColumns() []dbgateway.ColumnDef { return n.inner.ExtraColumns() }
func (n nestPMCVariant) CandidateExtra(node *treedecomp.Node, childAliases []string) []string {
	return n.inner.CandidateExtra(node, childAliases)
}
func (n nestPMCVariant) Filter(node *treedecomp.Node, idx *cnf.ClauseIndex) string {
	return n.inner.Filter(node, idx)
}
func (n nestPMCVariant) AssignmentAggregate() string { return n.inner.AssignmentAggregate() }
func (n nestPMCVariant) RootAggregation(rootTable string, storedCols []string) string {
	return n.inner.RootAggregation(rootTable, storedCols)
}

// AfterSolveNode is the nestPMC recursion point: once a bag's rows are
// persisted, it re-enters Solve on each row's inner subproblem (the clauses
// covered by the bag's all_vertices plus that row's stored-vertex
// assignment, projected onto the bag's minor vertices) and folds the
// recursive model count back into the row via a stored-vertex-keyed UPDATE.
// Bags with no minor vertices have nothing to abstract away and are left
// alone.
func (n nestPMCVariant) AfterSolveNode(ctx context.Context, gw *dbgateway.Gateway, node *treedecomp.Node, idx *cnf.ClauseIndex) error {
	if len(node.Minor) == 0 {
		return nil
	}
	stored := node.StoredVertices()
	if len(stored) == 0 {
		return nil
	}

	storedCols := make([]string, len(stored))
	for i, v := range stored {
		storedCols[i] = fmt.Sprintf("v%d", v)
	}
	table := fmt.Sprintf("td_node_%d", node.ID)
	query := fmt.Sprintf("SELECT %s, model_count FROM %s", strings.Join(storedCols, ", "), table)

	rows, err := gw.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("nesthdb: reading %s: %w", table, err)
	}
	defer rows.Close()

	type pendingUpdate struct {
		assignment map[int]bool
		modelCount int64
	}
	var pending []pendingUpdate
	for rows.Next() {
		values := make([]bool, len(stored))
		dest := make([]interface{}, len(stored)+1)
		for i := range values {
			dest[i] = &values[i]
		}
		var modelCount int64
		dest[len(stored)] = &modelCount
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("nesthdb: scanning %s: %w", table, err)
		}
		assignment := make(map[int]bool, len(stored))
		for i, v := range stored {
			assignment[v] = values[i]
		}
		pending = append(pending, pendingUpdate{assignment: assignment, modelCount: modelCount})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range pending {
		inner := InnerSubproblem(n.origFormula, idx, node, u.assignment)
		recCount, err := n.solver.Solve(ctx, inner, inner.ProjectedOrAll(), n.depth+1)
		if err != nil {
			return fmt.Errorf("nesthdb: recursing on bag %d: %w", node.ID, err)
		}

		where := make([]string, len(stored))
		args := make([]interface{}, 0, len(stored)+1)
		args = append(args, u.modelCount*recCount)
		for i, v := range stored {
			where[i] = fmt.Sprintf("v%d = ?", v)
			args = append(args, u.assignment[v])
		}
		stmt := fmt.Sprintf("UPDATE %s SET model_count = ? WHERE %s", table, strings.Join(where, " AND "))
		if _, err := gw.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("nesthdb: updating %s: %w", table, err)
		}
	}
	return nil
}

// InnerSubproblem builds the CNF a bag's row recurses on: the clauses whose
// variables all lie within the bag's all_vertices, plus one unit clause per
// assigned vertex pinning the row's truth value.
func InnerSubproblem(orig *cnf.CNF, idx *cnf.ClauseIndex, node *treedecomp.Node, assignment map[int]bool) *cnf.CNF {
	all := make(map[int]struct{})
	for _, v := range node.AllVertices() {
		all[v] = struct{}{}
	}
	covered := idx.ClausesCoveredBy(all)

	out := cnf.NewCNF(orig.NumVars, 0)
	out.Clauses = append(out.Clauses, covered...)
	for v, val := range assignment {
		if val {
			out.Clauses = append(out.Clauses, cnf.Clause{cnf.Literal(v)})
		} else {
			out.Clauses = append(out.Clauses, cnf.Clause{cnf.Literal(-v)})
		}
	}
	out.NumClauses = len(out.Clauses)
	for _, minor := range node.Minor {
		out.Projected[minor] = struct{}{}
	}
	return out
}
