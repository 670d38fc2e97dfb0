// Package abstraction builds the nested primal graph: it contracts every
// non-projected vertex of a primal graph into cliques over its projected
// neighbors, and keeps a clique-uses side table recording which projected
// (inner) variables each resulting clique absorbed, so the nested solver can
// later attribute them to exactly one bag.
package abstraction

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	orderedmap "github.com/elliotchance/orderedmap/v2"

	"github.com/dpdb/dpdb-go/internal/primal"
)

type lockedEntry struct {
	v  int
	ns []int
}

// Result is the outcome of Abstract: the contracted graph plus the
// clique-uses bookkeeping needed by ProjectionVariablesOf.
type Result struct {
	Graph       *primal.Graph
	cliqueUses  *orderedmap.OrderedMap[string, map[int]struct{}]
	claimed     map[int]struct{}
	claimedLock sync.Mutex
}

// Abstract contracts every vertex in nonProjected out of g, following the
// flood/lock/clique algorithm: each non-projected vertex floods across
// non-projected edges to find its projected frontier, the first vertex to
// reach a given frontier is locked (kept, wired to the frontier) while later
// arrivals at the same frontier are removed and cliqued directly, and a
// final pass promotes every locked vertex into a clique over its frontier
// and removes it. g is mutated in place; the returned Result wraps it.
func Abstract(g *primal.Graph, nonProjected map[int]struct{}) *Result {
	res := &Result{
		Graph:      g,
		cliqueUses: orderedmap.NewOrderedMap[string, map[int]struct{}](),
		claimed:    make(map[int]struct{}),
	}

	removed := make(map[int]struct{})
	var locked []lockedEntry

	stack := make([]int, 0, len(nonProjected))
	for v := range nonProjected {
		stack = append(stack, v)
	}
	sort.Ints(stack) // deterministic pop order for a given input

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, gone := removed[v]; gone {
			continue
		}
		if isLocked(locked, v) {
			continue
		}

		frontier, visitedP := flood(g, v, nonProjected, removed)
		key := frontierKey(frontier)

		if existing, ok := res.cliqueUses.Get(key); ok {
			// A vertex with this same frontier was already locked: remove v
			// (and the rest of this flood's P-vertices) and clique directly.
			g.AddClique(frontier)
			for p := range visitedP {
				existing[p] = struct{}{}
				removed[p] = struct{}{}
			}
			res.cliqueUses.Set(key, existing)
			continue
		}

		// First vertex to reach this frontier: lock it rather than remove it
		// immediately, so later arrivals at the same frontier can still find
		// it via the edges we add here.
		for _, n := range frontier {
			g.AddEdge(v, n)
		}
		use := make(map[int]struct{}, len(visitedP))
		for p := range visitedP {
			use[p] = struct{}{}
		}
		res.cliqueUses.Set(key, use)
		locked = append(locked, lockedEntry{v: v, ns: frontier})
	}

	// add_cliques: promote every locked vertex into a clique over its
	// frontier, then remove it.
	for _, le := range locked {
		g.AddClique(le.ns)
		removed[le.v] = struct{}{}
	}
	for v := range removed {
		removeVertex(g, v)
	}

	return res
}

func isLocked(locked []lockedEntry, v int) bool {
	for _, le := range locked {
		if le.v == v {
			return true
		}
	}
	return false
}

// flood walks outward from v across edges whose far endpoint is also in
// nonProjected, collecting every non-projected vertex reached (visitedP,
// including v) and every projected vertex bordering that reachable set
// (frontier).
func flood(g *primal.Graph, v int, nonProjected map[int]struct{}, removed map[int]struct{}) ([]int, map[int]struct{}) {
	visitedP := map[int]struct{}{v: {}}
	frontierSet := make(map[int]struct{})
	queue := []int{v}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for n := range g.Neighbors(cur) {
			if _, gone := removed[n]; gone {
				continue
			}
			if _, isP := nonProjected[n]; isP {
				if _, seen := visitedP[n]; !seen {
					visitedP[n] = struct{}{}
					queue = append(queue, n)
				}
				continue
			}
			frontierSet[n] = struct{}{}
		}
	}
	frontier := make([]int, 0, len(frontierSet))
	for n := range frontierSet {
		frontier = append(frontier, n)
	}
	sort.Ints(frontier)
	return frontier, visitedP
}

func removeVertex(g *primal.Graph, v int) {
	for n := range g.Adjacency[v] {
		delete(g.Adjacency[n], v)
		u, w := v, n
		if u > w {
			u, w = w, u
		}
		delete(g.Edges, [2]int{u, w})
	}
	delete(g.Adjacency, v)
}

func frontierKey(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// ProjectionVariablesOf returns the union of every clique-uses entry whose
// frontier lies within s, with variables already claimed by a previous call
// removed, so distinct bags are handed disjoint inner-variable slices.
func (r *Result) ProjectionVariablesOf(s map[int]struct{}) []int {
	r.claimedLock.Lock()
	defer r.claimedLock.Unlock()

	out := make(map[int]struct{})
	for el := r.cliqueUses.Front(); el != nil; el = el.Next() {
		key := el.Key
		if !keySubsetOf(key, s) {
			continue
		}
		for v := range el.Value {
			if _, already := r.claimed[v]; already {
				continue
			}
			out[v] = struct{}{}
		}
	}
	result := make([]int, 0, len(out))
	for v := range out {
		result = append(result, v)
		r.claimed[v] = struct{}{}
	}
	sort.Ints(result)
	return result
}

func keySubsetOf(key string, s map[int]struct{}) bool {
	if key == "" {
		return true
	}
	for _, tok := range strings.Split(key, ",") {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return false
		}
		if _, ok := s[v]; !ok {
			return false
		}
	}
	return true
}
