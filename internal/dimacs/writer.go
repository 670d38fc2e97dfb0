package dimacs

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/dpdb/dpdb-go/internal/cnf"
)

// Normalization is the bijective dense-renumbering table produced by
// WriteNormalizedCNF: Forward maps an original variable to its dense index
// (1..N), Backward is its inverse, needed once a result comes back from an
// external tool that only ever saw the dense numbering.
type Normalization struct {
	Forward  map[int]int
	Backward map[int]int
}

// Map translates a literal from original to dense numbering.
func (n *Normalization) Map(l cnf.Literal) cnf.Literal {
	v := n.Forward[l.Variable()]
	if l.Negative() {
		return cnf.Literal(-v)
	}
	return cnf.Literal(v)
}

// Unmap translates a literal from dense back to original numbering.
func (n *Normalization) Unmap(l cnf.Literal) cnf.Literal {
	v := n.Backward[l.Variable()]
	if l.Negative() {
		return cnf.Literal(-v)
	}
	return cnf.Literal(v)
}

// UnmapVar translates a dense variable id back to its original numbering.
func (n *Normalization) UnmapVar(v int) int {
	return n.Backward[v]
}

// WriteNormalizedCNF writes f in dense 1..N numbering so external solvers
// that assume no gaps in the variable range see a well-formed instance, and
// returns the table needed to translate their answer back. Per spec 4.B this
// only renumbers; clause order and polarity are preserved.
func WriteNormalizedCNF(w io.Writer, f *cnf.CNF) (*Normalization, error) {
	vars := f.Vars()
	norm := &Normalization{
		Forward:  make(map[int]int, len(vars)),
		Backward: make(map[int]int, len(vars)),
	}
	for i, v := range vars {
		dense := i + 1
		norm.Forward[v] = dense
		norm.Backward[dense] = v
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "p cnf %d %d\n", len(vars), len(f.Clauses)); err != nil {
		return nil, err
	}
	if f.HasProjection() {
		projected := make([]int, 0, len(f.Projected))
		for v := range f.Projected {
			if dense, ok := norm.Forward[v]; ok {
				projected = append(projected, dense)
			}
		}
		sort.Ints(projected)
		if len(projected) > 0 {
			if _, err := fmt.Fprint(bw, "c ind"); err != nil {
				return nil, err
			}
			for _, v := range projected {
				if _, err := fmt.Fprintf(bw, " %d", v); err != nil {
					return nil, err
				}
			}
			if _, err := fmt.Fprintln(bw, " 0"); err != nil {
				return nil, err
			}
		}
	}
	for _, c := range f.Clauses {
		for _, lit := range c {
			if _, err := fmt.Fprintf(bw, "%d ", int(norm.Map(lit))); err != nil {
				return nil, err
			}
		}
		if _, err := fmt.Fprintln(bw, "0"); err != nil {
			return nil, err
		}
	}
	return norm, bw.Flush()
}

// WriteCNF writes f verbatim, without renumbering, for diagnostics and tests.
func WriteCNF(w io.Writer, f *cnf.CNF) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "p cnf %d %d\n", f.NumVars, len(f.Clauses)); err != nil {
		return err
	}
	for _, c := range f.Clauses {
		for _, lit := range c {
			if _, err := fmt.Fprintf(bw, "%d ", int(lit)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw, "0"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
