package dimacs

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/dpdb/dpdb-go/internal/cnf"
)

// ReadCNF parses a DIMACS CNF stream, following the builder-style line
// dispatch of the reference DIMACS reader (problem/clause/comment), extended
// with the projection directives, pre-solved markers, and clause-continuation
// folding this engine requires.
func ReadCNF(r io.Reader) (*cnf.CNF, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var f *cnf.CNF
	foundProblem := false
	var pending []cnf.Literal // literals accumulated for a clause spanning multiple lines
	pendingOpen := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "c "), line == "c":
			if f == nil {
				continue
			}
			handleComment(f, line)
		case strings.HasPrefix(line, "p "):
			if foundProblem {
				return nil, &FormatMismatchError{Expected: "single preamble", Found: "duplicate p line"}
			}
			parts := strings.Fields(line)
			if len(parts) != 4 || parts[1] != "cnf" {
				return nil, &FormatMismatchError{Expected: "cnf", Found: line}
			}
			nVars, err1 := strconv.Atoi(parts[2])
			nClauses, err2 := strconv.Atoi(parts[3])
			if err1 != nil || err2 != nil {
				return nil, &FormatMismatchError{Expected: "p cnf <n> <m>", Found: line}
			}
			f = cnf.NewCNF(nVars, nClauses)
			foundProblem = true
		case strings.HasPrefix(line, "s "):
			if f == nil {
				return nil, &FormatMismatchError{Expected: "p cnf before s", Found: line}
			}
			if err := handleSolutionLine(f, line); err != nil {
				return nil, err
			}
			if f.Done {
				// Pre-solved: skip the body entirely.
				drainRest(scanner)
				return f, nil
			}
		case strings.HasPrefix(line, "pv "), strings.HasPrefix(line, "a "):
			if f == nil {
				return nil, &FormatMismatchError{Expected: "p cnf before projection directive", Found: line}
			}
			addProjection(f, strings.Fields(line)[1:])
		default:
			if !foundProblem {
				return nil, &FormatMismatchError{Expected: "p cnf preamble", Found: line}
			}
			lits, terminated, err := parseClauseLine(line)
			if err != nil {
				return nil, err
			}
			pending = append(pending, lits...)
			pendingOpen = !terminated
			if terminated {
				f.Clauses = append(f.Clauses, cnf.Clause(pending))
				pending = nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, &FormatMismatchError{Expected: "p cnf preamble", Found: "<empty input>"}
	}
	if pendingOpen {
		// Unterminated final clause: warn (by closing it) rather than error,
		// per spec 4.A ("unterminated final clauses are warned and closed").
		f.Clauses = append(f.Clauses, cnf.Clause(pending))
	}

	simplifyUnitClauses(f)
	return f, nil
}

func drainRest(scanner *bufio.Scanner) {
	for scanner.Scan() {
		// discard remaining body of a pre-solved instance
	}
}

func handleComment(f *cnf.CNF, line string) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "c"))
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "ind", "pv", "a":
		addProjection(f, fields[1:])
	case "r":
		// TD root marker: not meaningful inside a CNF stream, ignored here;
		// the TD reader (td.go) interprets it directly.
	case "UNSATISFIABLE":
		f.Done = true
		f.UnsatKnown = true
		f.Models = 0
		f.MaybeSat = false
	}
}

func addProjection(f *cnf.CNF, fields []string) {
	for _, tok := range fields {
		n, err := strconv.Atoi(tok)
		if err != nil || n == 0 {
			continue
		}
		f.Projected[n] = struct{}{}
	}
}

func handleSolutionLine(f *cnf.CNF, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return &FormatMismatchError{Expected: "s <n>|SATISFIABLE|UNSATISFIABLE|inf", Found: line}
	}
	switch fields[1] {
	case "SATISFIABLE":
		f.Done = true
		f.MaybeSat = true
		return nil
	case "UNSATISFIABLE":
		f.Done = true
		f.UnsatKnown = true
		f.Models = 0
		f.MaybeSat = false
		return nil
	case "inf":
		f.MaybeSat = false
		return &FormatMismatchError{Expected: "solved instance", Found: "s inf (error signalled by upstream)"}
	default:
		n, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return &FormatMismatchError{Expected: "s <n>", Found: line}
		}
		f.Models = n
		f.Done = true
		return nil
	}
}

// parseClauseLine parses one line of literal tokens, returning whether the
// clause was terminated by a trailing 0.
func parseClauseLine(line string) ([]cnf.Literal, bool, error) {
	fields := strings.Fields(line)
	lits := make([]cnf.Literal, 0, len(fields))
	for i, tok := range fields {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, false, &FormatMismatchError{Expected: "integer literal", Found: tok}
		}
		if n == 0 {
			if i != len(fields)-1 {
				return nil, false, &FormatMismatchError{Expected: "0 terminator at end of line", Found: line}
			}
			return lits, true, nil
		}
		lits = append(lits, cnf.Literal(n))
	}
	return lits, false, nil
}

// simplifyUnitClauses performs up to 10 rounds of unit propagation per spec
// 4.A: collect unit clauses, drop falsified literals from non-unit clauses,
// delete clauses satisfied by a unit, feed newly generated units into the
// next round. Complementary units collapse the formula to UNSAT. Projected
// variables that only occurred in removed units are dropped from Projected.
func simplifyUnitClauses(f *cnf.CNF) {
	if f.Done {
		return
	}
	removedProjected := make(map[int]struct{})
	for round := 0; round < 10; round++ {
		units := make(map[int]bool) // variable -> assigned truth value
		for _, c := range f.Clauses {
			if c.IsUnit() {
				lit := c[0]
				units[lit.Variable()] = !lit.Negative()
			}
		}
		if len(units) == 0 {
			break
		}

		var next []cnf.Clause
		changed := false
		unsat := false
		for _, c := range f.Clauses {
			satisfied := false
			var kept cnf.Clause
			for _, lit := range c {
				v := lit.Variable()
				if val, isUnit := units[v]; isUnit {
					litTrue := val == !lit.Negative()
					if litTrue {
						satisfied = true
						break
					}
					// falsified literal: drop it
					changed = true
					continue
				}
				kept = append(kept, lit)
			}
			if satisfied {
				changed = true
				continue
			}
			if len(kept) == 0 && len(c) > 0 {
				unsat = true
			}
			next = append(next, kept)
		}

		if unsat {
			f.Done = true
			f.UnsatKnown = true
			f.Models = 0
			f.MaybeSat = false
			f.Clauses = nil
			return
		}

		// vars that only ever occurred in now-removed unit clauses, so their
		// projection contribution is free (used by nesthdb's correction factor).
		stillOccurs := make(map[int]struct{})
		for _, c := range next {
			for v := range c.Variables() {
				stillOccurs[v] = struct{}{}
			}
		}
		for v := range units {
			if _, ok := stillOccurs[v]; !ok {
				removedProjected[v] = struct{}{}
			}
		}

		f.Clauses = next
		if !changed {
			break
		}
	}

	for v := range removedProjected {
		delete(f.Projected, v)
	}
}
