// Package dpcore is the per-bag dynamic-programming engine: it creates each
// bag's table/view during setup, then runs one task per bag over a bounded
// worker pool, each task blocking on its children before building and
// executing its transition SQL. This is the tree-shaped join the whole
// system exists to compute.
package dpcore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/dpdb/dpdb-go/internal/cancel"
	"github.com/dpdb/dpdb-go/internal/cnf"
	"github.com/dpdb/dpdb-go/internal/dbgateway"
	"github.com/dpdb/dpdb-go/internal/problem"
	"github.com/dpdb/dpdb-go/internal/treedecomp"
)

// State is a bag task's position in its lifecycle.
type State int

const (
	AwaitingChildren State = iota
	Ready
	Persist
	RunTransition
	Done
	Aborted
)

// CandidateStore selects how candidates_select results are materialized.
type CandidateStore string

const (
	CandidateCTE      CandidateStore = "cte"
	CandidateSubquery CandidateStore = "subquery"
	CandidateTable    CandidateStore = "table"
)

// RandomizeMode selects the iterative/approximate row-sampling strategy.
type RandomizeMode string

const (
	RandomizeNone   RandomizeMode = ""
	RandomizeOrder  RandomizeMode = "order"
	RandomizeOffset RandomizeMode = "offset"
	RandomizeNoview RandomizeMode = "noview"
)

// Options configures one top-level (or nested) solve.
type Options struct {
	MaxWorkerThreads int
	CandidateStore   CandidateStore
	LimitResultRows  int
	RandomizeRows    RandomizeMode
}

func (o Options) withDefaults() Options {
	if o.MaxWorkerThreads <= 0 {
		o.MaxWorkerThreads = 12
	}
	if o.CandidateStore == "" {
		o.CandidateStore = CandidateCTE
	}
	return o
}

// Problem is one DP solve: a tree, a formula-derived clause index, a
// variant, and the gateway it persists through.
type Problem struct {
	DB      *dbgateway.Gateway
	Tree    *treedecomp.Tree
	Index   *cnf.ClauseIndex
	Variant problem.Variant
	Ctl     *cancel.Controller
	Opts    Options

	mu     sync.Mutex
	states map[int]State
}

// NewProblem constructs a Problem ready for Setup/Solve.
func NewProblem(db *dbgateway.Gateway, tree *treedecomp.Tree, idx *cnf.ClauseIndex, variant problem.Variant, ctl *cancel.Controller, opts Options) *Problem {
	return &Problem{
		DB: db, Tree: tree, Index: idx, Variant: variant, Ctl: ctl,
		Opts:   opts.withDefaults(),
		states: make(map[int]State),
	}
}

func (p *Problem) setState(bagID int, s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[bagID] = s
}

// State returns a bag's current lifecycle state (AwaitingChildren if never
// touched).
func (p *Problem) State(bagID int) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.states[bagID]; ok {
		return s
	}
	return AwaitingChildren
}

// Setup creates every bag's table (and candidate table, if configured) in
// preorder, ahead of the solve pass.
func (p *Problem) Setup(ctx context.Context) error {
	for _, id := range p.Tree.Preorder() {
		n := p.Tree.Nodes[id]
		vertexCols := make([]dbgateway.ColumnDef, len(n.Vertices))
		for i, v := range n.Vertices {
			vertexCols[i] = dbgateway.ColumnDef{Name: fmt.Sprintf("v%d", v), Type: p.Variant.VertexColumnType()}
		}
		constraintCols := make([]string, 0, len(n.ConstraintRelevant()))
		for _, v := range n.ConstraintRelevant() {
			constraintCols = append(constraintCols, fmt.Sprintf("v%d", v))
		}
		if err := p.DB.CreateBagTable(ctx, n.ID, vertexCols, p.Variant.ExtraColumns(), constraintCols); err != nil {
			return fmt.Errorf("dpcore: setup bag %d: %w", n.ID, err)
		}
		if p.Opts.CandidateStore == CandidateTable {
			defs := make([]string, 0, len(vertexCols)+1)
			for _, c := range append(append([]dbgateway.ColumnDef{}, vertexCols...), p.Variant.ExtraColumns()...) {
				defs = append(defs, fmt.Sprintf("%s %s", c.Name, c.Type))
			}
			stmt := fmt.Sprintf("CREATE TABLE td_node_%d_candidate (%s)", n.ID, strings.Join(defs, ", "))
			if _, err := p.DB.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("dpcore: setup candidate table for bag %d: %w", n.ID, err)
			}
		}
		view := p.buildAssignmentView(n)
		if err := p.DB.CreateView(ctx, p.DB.BagViewName(n.ID), view); err != nil {
			return fmt.Errorf("dpcore: setup view for bag %d: %w", n.ID, err)
		}
	}
	return nil
}

// Solve runs one task per bag over a bounded worker pool: siblings may run
// concurrently, a parent never starts before all of its children's tasks
// have signalled completion, and the whole pass is gated by the shared
// cancellation controller at every task boundary.
func (p *Problem) Solve(ctx context.Context) error {
	done := make(map[int]chan struct{}, len(p.Tree.Nodes))
	for id := range p.Tree.Nodes {
		done[id] = make(chan struct{})
	}

	wp := pool.New().WithMaxGoroutines(p.Opts.MaxWorkerThreads).WithErrors()
	for _, id := range p.Tree.Postorder() {
		id := id
		n := p.Tree.Nodes[id]
		wp.Go(func() error {
			defer close(done[id])

			for _, c := range n.Children {
				select {
				case <-done[c.ID]:
				case <-ctx.Done():
					p.setState(id, Aborted)
					return ctx.Err()
				case <-p.Ctl.Done():
					p.setState(id, Aborted)
					return fmt.Errorf("dpcore: bag %d aborted: interrupted", id)
				}
			}
			if p.Ctl.Interrupted() {
				p.setState(id, Aborted)
				return fmt.Errorf("dpcore: bag %d aborted: interrupted", id)
			}

			p.setState(id, Ready)
			p.setState(id, Persist)
			p.setState(id, RunTransition)
			if err := p.runTransition(ctx, n); err != nil {
				p.setState(id, Aborted)
				p.Ctl.CancelOnWorkerFailure()
				return fmt.Errorf("dpcore: bag %d: %w", id, err)
			}
			p.setState(id, Done)
			return nil
		})
	}
	return wp.Wait()
}

// runTransition executes the bag's assignment view materialization: for
// non-table candidate stores the view itself computes the transition, so
// this simply forces evaluation by inserting the view's rows into the bag
// table (the upsert merge when LimitResultRows is set, a plain insert
// otherwise).
func (p *Problem) runTransition(ctx context.Context, n *treedecomp.Node) error {
	cols := make([]string, 0, len(n.Vertices)+len(p.Variant.ExtraColumns()))
	for _, v := range n.Vertices {
		cols = append(cols, fmt.Sprintf("v%d", v))
	}
	for _, c := range p.Variant.ExtraColumns() {
		cols = append(cols, c.Name)
	}
	quoted := strings.Join(cols, ", ")

	var stmt string
	if p.Opts.LimitResultRows > 0 {
		stmt = fmt.Sprintf("INSERT INTO td_node_%d (%s) SELECT %s FROM td_node_%d_v ON DUPLICATE KEY UPDATE model_count = GREATEST(td_node_%d.model_count, VALUES(model_count))",
			n.ID, quoted, quoted, n.ID, n.ID)
	} else {
		stmt = fmt.Sprintf("INSERT INTO td_node_%d (%s) SELECT %s FROM td_node_%d_v", n.ID, quoted, quoted, n.ID)
	}
	if _, err := p.DB.Exec(ctx, stmt); err != nil {
		return err
	}
	return p.Variant.AfterSolveNode(ctx, p.DB, n, p.Index)
}

// buildAssignmentView composes the three transition-SQL components
// (candidates_select, assignment_select, filter) into one SELECT, per the
// component-wise build the spec describes. assignment_select projects
// stored vertex columns verbatim, forgotten (non-stored) vertex columns as
// NULL (their value is no longer distinguished once duplicate stored-vertex
// rows are folded together), and each extra column through the variant's
// aggregate expression rather than the raw per-candidate value.
func (p *Problem) buildAssignmentView(n *treedecomp.Node) string {
	candidates := p.candidatesSelect(n)
	filter := p.Variant.Filter(n, p.Index)

	stored := n.StoredVertices()
	storedSet := make(map[int]struct{}, len(stored))
	for _, v := range stored {
		storedSet[v] = struct{}{}
	}

	cols := make([]string, 0, len(n.Vertices)+len(p.Variant.ExtraColumns()))
	for _, v := range n.Vertices {
		if _, ok := storedSet[v]; ok {
			cols = append(cols, fmt.Sprintf("v%d", v))
		} else {
			cols = append(cols, fmt.Sprintf("NULL AS v%d", v))
		}
	}
	if agg := p.Variant.AssignmentAggregate(); agg != "" {
		cols = append(cols, agg)
	} else {
		for _, c := range p.Variant.ExtraColumns() {
			cols = append(cols, c.Name)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM (%s) candidates", strings.Join(cols, ", "), candidates)
	if filter != "" {
		fmt.Fprintf(&sb, " WHERE %s", filter)
	}

	if len(stored) > 0 {
		storedCols := make([]string, len(stored))
		for i, v := range stored {
			storedCols[i] = fmt.Sprintf("v%d", v)
		}
		fmt.Fprintf(&sb, " GROUP BY %s", strings.Join(storedCols, ", "))
	} else {
		sb.WriteString(" LIMIT 1")
	}
	return sb.String()
}

// candidatesSelect builds the per-vertex projection: introduced vertices
// come from a local {true,false} CTE, the rest are read off a child table
// joined on shared vertex columns.
func (p *Problem) candidatesSelect(n *treedecomp.Node) string {
	var fromParts []string
	var selectCols []string
	var joinConds []string
	childAliases := make([]string, len(n.Children))

	seenInChild := make(map[int][]string) // vertex -> aliases of children carrying it
	for ci, c := range n.Children {
		alias := fmt.Sprintf("c%d", ci)
		childAliases[ci] = alias
		fromParts = append(fromParts, fmt.Sprintf("td_node_%d %s", c.ID, alias))
		for _, v := range c.Vertices {
			seenInChild[v] = append(seenInChild[v], alias)
		}
	}

	for _, v := range n.Vertices {
		if n.NeedsIntroduce(v) {
			selectCols = append(selectCols, fmt.Sprintf("introduced.v%d AS v%d", v, v))
			continue
		}
		aliases := seenInChild[v]
		if len(aliases) == 0 {
			continue
		}
		selectCols = append(selectCols, fmt.Sprintf("%s.v%d AS v%d", aliases[0], v, v))
		for _, other := range aliases[1:] {
			joinConds = append(joinConds, fmt.Sprintf("%s.v%d = %s.v%d", aliases[0], v, other, v))
		}
	}

	selectCols = append(selectCols, p.Variant.CandidateExtra(n, childAliases)...)

	introducedVertices := introducedOf(n)
	if len(introducedVertices) > 0 {
		fromParts = append([]string{introducedAssignmentsCTE(introducedVertices)}, fromParts...)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectCols, ", "), strings.Join(fromParts, ", "))
	if len(joinConds) > 0 {
		query += " WHERE " + strings.Join(joinConds, " AND ")
	}
	return query
}

func introducedOf(n *treedecomp.Node) []int {
	var out []int
	for _, v := range n.Vertices {
		if n.NeedsIntroduce(v) {
			out = append(out, v)
		}
	}
	return out
}

// introducedAssignmentsCTE builds the Boolean cross-product subquery
// ("introduced") that seeds {true,false} for every introduced vertex.
func introducedAssignmentsCTE(vertices []int) string {
	cols := make([]string, len(vertices))
	for i, v := range vertices {
		cols[i] = fmt.Sprintf("b%d.x AS v%d", i, v)
	}
	from := make([]string, len(vertices))
	for i := range vertices {
		from[i] = fmt.Sprintf("(SELECT TRUE AS x UNION ALL SELECT FALSE) b%d", i)
	}
	return fmt.Sprintf("(SELECT %s FROM %s) introduced", strings.Join(cols, ", "), strings.Join(from, ", "))
}

// RootResult runs the variant's root aggregation over the root bag's table
// and returns the row for the caller to Scan.
func (p *Problem) RootResult(ctx context.Context) (*sql.Row, error) {
	root := p.Tree.Root
	storedCols := make([]string, len(root.ConstraintRelevant()))
	for i, v := range root.ConstraintRelevant() {
		storedCols[i] = fmt.Sprintf("v%d", v)
	}
	query := p.Variant.RootAggregation(fmt.Sprintf("td_node_%d", root.ID), storedCols)
	return p.DB.QueryRow(ctx, query)
}
