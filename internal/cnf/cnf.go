// Package cnf defines the propositional data model shared by every
// component that reads, abstracts, decomposes, or counts a CNF formula:
// literals, clauses, and the formula itself, plus the projected-variable
// bookkeeping used by PMC and nestPMC.
package cnf

import (
	"fmt"
	"sort"
)

// Literal is a signed nonzero integer; its Variable is its absolute value.
// A positive literal asserts the variable true, negative asserts it false.
type Literal int

// Variable returns the variable this literal refers to.
func (l Literal) Variable() int {
	if l < 0 {
		return int(-l)
	}
	return int(l)
}

// Negative reports whether the literal is a negated occurrence of its variable.
func (l Literal) Negative() bool {
	return l < 0
}

// Negate returns the complementary literal.
func (l Literal) Negate() Literal {
	return -l
}

func (l Literal) String() string {
	return fmt.Sprintf("%d", int(l))
}

// Clause is a disjunction of literals. An empty clause is unsatisfiable.
type Clause []Literal

// IsUnit reports whether the clause has exactly one literal.
func (c Clause) IsUnit() bool {
	return len(c) == 1
}

// IsEmpty reports whether the clause has no literals (the false clause).
func (c Clause) IsEmpty() bool {
	return len(c) == 0
}

// Variables returns the set of variables occurring in the clause.
func (c Clause) Variables() map[int]struct{} {
	vars := make(map[int]struct{}, len(c))
	for _, lit := range c {
		vars[lit.Variable()] = struct{}{}
	}
	return vars
}

// Fingerprint returns a stable key identifying the clause's literal content,
// used by the two-level var->clause index to test set-coverage in O(1).
// It encodes both the literal set and the bare variable set, since the filter
// builder (internal/dpcore) needs to test "do all of this clause's variables
// lie inside this bag" independent of polarity.
func (c Clause) Fingerprint() string {
	lits := make([]int, len(c))
	for i, l := range c {
		lits[i] = int(l)
	}
	sort.Ints(lits)
	vars := make([]int, 0, len(c))
	for v := range c.Variables() {
		vars = append(vars, v)
	}
	sort.Ints(vars)
	return fmt.Sprint(lits, vars)
}

// CNF is a formula: its declared variable/clause counts, the clause list, the
// set of projected variables (empty means ordinary SAT/#SAT), and the
// maybe-sat flag cleared by preprocessing once an instance is known UNSAT.
type CNF struct {
	NumVars      int
	NumClauses   int
	Clauses      []Clause
	Projected    map[int]struct{} // nil/empty => every variable is "projected" (ordinary counting)
	MaybeSat     bool
	Done         bool // true when a preprocessor or solved-input marker fully resolved the instance
	Models       int64
	UnsatKnown   bool
}

// NewCNF returns an empty formula ready for incremental construction, with
// MaybeSat set true (no preprocessing has run yet).
func NewCNF(numVars, numClauses int) *CNF {
	return &CNF{
		NumVars:    numVars,
		NumClauses: numClauses,
		Clauses:    make([]Clause, 0, numClauses),
		Projected:  make(map[int]struct{}),
		MaybeSat:   true,
	}
}

// HasProjection reports whether a nonempty projection set was declared.
func (f *CNF) HasProjection() bool {
	return len(f.Projected) > 0
}

// ProjectedOrAll returns the projection set, or the full variable set [1,NumVars]
// when no projection was declared (ordinary SAT/#SAT is PMC over all variables).
func (f *CNF) ProjectedOrAll() map[int]struct{} {
	if f.HasProjection() {
		return f.Projected
	}
	all := make(map[int]struct{}, f.NumVars)
	for v := 1; v <= f.NumVars; v++ {
		all[v] = struct{}{}
	}
	return all
}

// Vars returns the sorted set of variables that actually occur in some clause.
func (f *CNF) Vars() []int {
	seen := make(map[int]struct{})
	for _, c := range f.Clauses {
		for v := range c.Variables() {
			seen[v] = struct{}{}
		}
	}
	vars := make([]int, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Ints(vars)
	return vars
}

// CheckInvariant verifies that every literal's variable lies in [1,NumVars].
// Per spec this is a warning-level check: it returns the offending literals
// rather than an error, since a mismatch is tolerated, not fatal.
func (f *CNF) CheckInvariant() []Literal {
	var bad []Literal
	for _, c := range f.Clauses {
		for _, l := range c {
			if v := l.Variable(); v < 1 || v > f.NumVars {
				bad = append(bad, l)
			}
		}
	}
	return bad
}
