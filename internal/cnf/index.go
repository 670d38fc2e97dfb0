package cnf

// ClauseIndex maps each variable to the set of clauses (by fingerprint) that
// mention it, plus the fingerprint->clause lookup needed to resolve it back.
// Built concurrently per spec 4.C: one goroutine scans the clause list,
// fanning fingerprint/variable pairs into the index.
type ClauseIndex struct {
	byVar  map[int]map[string]struct{}
	lookup map[string]Clause
}

// BuildClauseIndex builds the var->clause-fingerprint index for a formula.
func BuildClauseIndex(f *CNF) *ClauseIndex {
	idx := &ClauseIndex{
		byVar:  make(map[int]map[string]struct{}),
		lookup: make(map[string]Clause),
	}
	type entry struct {
		fp   string
		vars map[int]struct{}
		c    Clause
	}
	results := make(chan entry, len(f.Clauses))
	go func() {
		for _, c := range f.Clauses {
			results <- entry{fp: c.Fingerprint(), vars: c.Variables(), c: c}
		}
		close(results)
	}()
	for e := range results {
		idx.lookup[e.fp] = e.c
		for v := range e.vars {
			if idx.byVar[v] == nil {
				idx.byVar[v] = make(map[string]struct{})
			}
			idx.byVar[v][e.fp] = struct{}{}
		}
	}
	return idx
}

// ClausesForVar returns all clauses mentioning v.
func (idx *ClauseIndex) ClausesForVar(v int) []Clause {
	fps := idx.byVar[v]
	out := make([]Clause, 0, len(fps))
	for fp := range fps {
		out = append(out, idx.lookup[fp])
	}
	return out
}

// CoveredBy reports whether every variable of clause c lies in vertexSet.
// This is the "two-level fingerprint" coverage test used by the DP core's
// filter builder. It builds the clause's variable set with Variables() on
// every call and checks each member against vertexSet.
func CoveredBy(c Clause, vertexSet map[int]struct{}) bool {
	for v := range c.Variables() {
		if _, ok := vertexSet[v]; !ok {
			return false
		}
	}
	return true
}

// ClausesCoveredBy returns every distinct clause (deduped by fingerprint)
// whose variables all lie within vertexSet, scanning only the clauses that
// mention at least one vertex in the set via the index.
func (idx *ClauseIndex) ClausesCoveredBy(vertexSet map[int]struct{}) []Clause {
	seen := make(map[string]struct{})
	var out []Clause
	for v := range vertexSet {
		for fp := range idx.byVar[v] {
			if _, ok := seen[fp]; ok {
				continue
			}
			c := idx.lookup[fp]
			if CoveredBy(c, vertexSet) {
				seen[fp] = struct{}{}
				out = append(out, c)
			}
		}
	}
	return out
}
