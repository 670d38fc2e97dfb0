package abstraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpdb/dpdb-go/internal/primal"
)

// buildChain makes a primal graph 1-2-3-4-5 where {2,3,4} are non-projected,
// so abstraction should contract the chain down to an edge between 1 and 5.
func buildChain() (*primal.Graph, map[int]struct{}) {
	g := primal.NewGraph(5)
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(3, 4)
	g.AddEdge(4, 5)
	nonProjected := map[int]struct{}{2: {}, 3: {}, 4: {}}
	return g, nonProjected
}

func TestAbstractContractsChainToDirectEdge(t *testing.T) {
	g, nonProjected := buildChain()
	Abstract(g, nonProjected)

	for v := range nonProjected {
		_, present := g.Adjacency[v]
		assert.False(t, present, "non-projected vertex %d should have been removed", v)
	}
	assert.Contains(t, g.Neighbors(1), 5)
}

func TestProjectionVariablesOfReturnsDisjointSlices(t *testing.T) {
	g, nonProjected := buildChain()
	res := Abstract(g, nonProjected)

	s := map[int]struct{}{1: {}, 5: {}}
	first := res.ProjectionVariablesOf(s)
	require.NotEmpty(t, first)

	second := res.ProjectionVariablesOf(s)
	assert.Empty(t, second, "already-claimed variables must not be returned twice")
}

func TestAbstractHandlesBranchingNonProjectedSet(t *testing.T) {
	g := primal.NewGraph(4)
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(2, 4)
	nonProjected := map[int]struct{}{2: {}}

	Abstract(g, nonProjected)

	_, present := g.Adjacency[2]
	assert.False(t, present)
	assert.Contains(t, g.Neighbors(1), 3)
	assert.Contains(t, g.Neighbors(1), 4)
	assert.Contains(t, g.Neighbors(3), 4)
}
