package nesthdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpdb/dpdb-go/internal/cnf"
	"github.com/dpdb/dpdb-go/internal/problem"
	"github.com/dpdb/dpdb-go/internal/treedecomp"
)

func TestPow2(t *testing.T) {
	assert.Equal(t, int64(1), pow2(0))
	assert.Equal(t, int64(1), pow2(-3))
	assert.Equal(t, int64(8), pow2(3))
}

func TestComplementReturnsEveryOtherVariable(t *testing.T) {
	nonNested := map[int]struct{}{2: {}}
	out := complement(nonNested, 3)
	assert.Equal(t, map[int]struct{}{1: {}, 3: {}}, out)
}

func TestToSetBuildsMembershipMap(t *testing.T) {
	out := toSet([]int{1, 3, 3})
	assert.Equal(t, map[int]struct{}{1: {}, 3: {}}, out)
}

func TestVertexOccursFindsAndMissesVariables(t *testing.T) {
	f := cnf.NewCNF(3, 1)
	f.Clauses = append(f.Clauses, cnf.Clause{1, -2})
	assert.True(t, vertexOccurs(f, 1))
	assert.True(t, vertexOccurs(f, 2))
	assert.False(t, vertexOccurs(f, 3))
}

func TestCacheKeyIsOrderIndependent(t *testing.T) {
	a := cnf.NewCNF(2, 2)
	a.Clauses = append(a.Clauses, cnf.Clause{1, 2}, cnf.Clause{-1, 2})

	b := cnf.NewCNF(2, 2)
	b.Clauses = append(b.Clauses, cnf.Clause{-1, 2}, cnf.Clause{1, 2})

	assert.Equal(t, cacheKey(a), cacheKey(b))
}

func TestSolverCachesByClauseSet(t *testing.T) {
	s := NewSolver(nil, nil, Config{}, nil)
	f := cnf.NewCNF(1, 1)
	f.Clauses = append(f.Clauses, cnf.Clause{1})

	_, ok := s.cacheProbe(f)
	assert.False(t, ok)

	s.cacheStore(f, 42)
	v, ok := s.cacheProbe(f)
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)
}

func TestInnerSubproblemPinsAssignmentAsUnitClauses(t *testing.T) {
	f := cnf.NewCNF(3, 1)
	f.Clauses = append(f.Clauses, cnf.Clause{1, 2, 3})
	idx := cnf.BuildClauseIndex(f)

	n := &treedecomp.Node{Vertices: []int{1, 2}}
	sub := InnerSubproblem(f, idx, n, map[int]bool{1: true, 2: false})

	var sawPositiveUnit, sawNegativeUnit bool
	for _, c := range sub.Clauses {
		if c.IsUnit() && c[0] == 1 {
			sawPositiveUnit = true
		}
		if c.IsUnit() && c[0] == -2 {
			sawNegativeUnit = true
		}
	}
	assert.True(t, sawPositiveUnit)
	assert.True(t, sawNegativeUnit)
}

func TestAfterSolveNodeSkipsBagsWithNoMinorVertices(t *testing.T) {
	variant := nestPMCVariant{inner: problem.NewNestPMC(nil), solver: NewSolver(nil, nil, Config{}, nil)}
	n := &treedecomp.Node{ID: 1, Vertices: []int{1, 2}}
	// n.Minor is empty: nothing was abstracted away at this bag, so there is
	// no inner subproblem to recurse on and AfterSolveNode must not touch
	// the gateway at all (passing nil proves it never dereferences it).
	require.NoError(t, variant.AfterSolveNode(context.Background(), nil, n, nil))
}
