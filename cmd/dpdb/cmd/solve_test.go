package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spf13/cobra"

	"github.com/dpdb/dpdb-go/internal/cnf"
	"github.com/dpdb/dpdb-go/internal/config"
	"github.com/dpdb/dpdb-go/internal/dpcore"
)

func TestNonProjectedOfNoProjection(t *testing.T) {
	f := cnf.NewCNF(3, 0)
	nonProjected := nonProjectedOf(f)
	assert.Empty(t, nonProjected)
}

func TestNonProjectedOfWithProjection(t *testing.T) {
	f := cnf.NewCNF(3, 0)
	f.Projected[1] = struct{}{}

	nonProjected := nonProjectedOf(f)
	assert.Equal(t, map[int]struct{}{2: {}, 3: {}}, nonProjected)
}

func TestDecomposerConfig(t *testing.T) {
	cfg := config.HtdConfig{Path: "/usr/bin/htd", Args: []string{"--seed"}, TimeoutSecs: 30}
	got := decomposerConfig(cfg)
	assert.Equal(t, "/usr/bin/htd", got.Path)
	assert.Equal(t, []string{"--seed"}, got.Args)
	assert.Equal(t, 30*time.Second, got.Timeout)
}

func TestSolverCall(t *testing.T) {
	cfg := config.SolverConfig{Path: "/usr/bin/sharpsat", Args: []string{"-q"}, SeedFlag: "--seed", TimeoutSecs: 60}
	got := solverCall(cfg)
	assert.Equal(t, "/usr/bin/sharpsat", got.Path)
	assert.Equal(t, []string{"-q"}, got.Args)
	assert.Equal(t, "--seed", got.SeedFlag)
	assert.Equal(t, 60*time.Second, got.Timeout)
}

func TestDPCoreOptions(t *testing.T) {
	cfg := config.DPDBConfig{
		MaxWorkerThreads: 4,
		CandidateStore:   "table",
		LimitResultRows:  1000,
		RandomizeRows:    "order",
	}
	got := dpcoreOptions(cfg)
	assert.Equal(t, dpcore.Options{
		MaxWorkerThreads: 4,
		CandidateStore:   dpcore.CandidateStore("table"),
		LimitResultRows:  1000,
		RandomizeRows:    dpcore.RandomizeMode("order"),
	}, got)
}

func TestOpenInputDefaultsToStdin(t *testing.T) {
	f, err := openInput("")
	assert.NoError(t, err)
	assert.Equal(t, "/dev/stdin", f.Name())

	f, err = openInput("-")
	assert.NoError(t, err)
	assert.Equal(t, "/dev/stdin", f.Name())
}

func TestAddSolveFlagsRegistersFlags(t *testing.T) {
	var flags solveFlags
	cmd := &cobra.Command{Use: "test"}
	addSolveFlags(cmd, &flags)

	for _, name := range []string{"input", "seed", "limit-result-rows", "randomize", "candidate-store", "lower-cap", "upper-cap", "table-row-limit", "store-formula"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "expected flag %s to be registered", name)
	}
}
