package cmd

import (
	"fmt"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dpdb/dpdb-go/internal/abschooser"
	"github.com/dpdb/dpdb-go/internal/dimacs"
	"github.com/dpdb/dpdb-go/internal/lock"
	"github.com/dpdb/dpdb-go/internal/nesthdb"
)

var nestPMCFlags solveFlags

var nestPMCCmd = &cobra.Command{
	Use:   "nestpmc",
	Short: "Count the projected models of a CNF instance via recursive nesting",
	Long: `nestpmc alternates tree decomposition with calls to an external
classical solver based on treewidth thresholds: each subproblem is
preprocessed, then either offloaded to the configured classical solver or
solved with the DP core's nestPMC variant, recursing once per surviving row
until the recursion bottoms out or the external solver resolves it.

--lower-cap/--upper-cap override the abstraction/hybrid treewidth
thresholds that decide offload-vs-recurse for this run.

Example:
  dpdb nestpmc --runid run-1 --input formula.cnf`,
	RunE: runNestPMC,
}

func init() {
	addSolveFlags(nestPMCCmd, &nestPMCFlags)
	rootCmd.AddCommand(nestPMCCmd)
}

func runNestPMC(cmd *cobra.Command, args []string) error {
	s, cleanup, err := openSession(&nestPMCFlags)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := s.ctl.ListenForSignals()

	return lock.WithRunLock(ctx, s.lockDB, GetRunID(), func() error {
		in, err := openInput(nestPMCFlags.Input)
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		defer in.Close()
		f, err := dimacs.ReadCNF(in)
		if err != nil {
			return fmt.Errorf("parsing CNF: %w", err)
		}
		if err := storeFormula(&nestPMCFlags, f); err != nil {
			return err
		}

		nonNested := f.ProjectedOrAll()

		cfg := nesthdb.Config{
			Decomposer:        decomposerConfig(s.cfg.Htd),
			SharpSATSolver:    solverCall(s.cfg.NestHDB.SharpSATSolver),
			PMCSolver:         solverCall(s.cfg.NestHDB.PMCSolver),
			SATSolver:         solverCall(s.cfg.NestHDB.SATSolver),
			ThresholdAbstract: s.cfg.NestHDB.ThresholdAbstract,
			ThresholdHybrid:   s.cfg.NestHDB.ThresholdHybrid,
			MaxRecursionDepth: s.cfg.NestHDB.MaxRecursionDepth,
			AbstractionChoose: abschooser.Config{
				Path:         s.cfg.NestHDB.ASP.Path,
				EncodingPath: s.cfg.NestHDB.ASP.EncodingPath,
				Size:         s.cfg.NestHDB.ThresholdAbstract,
				Timeout:      time.Duration(s.cfg.NestHDB.ASP.TimeoutSecs) * time.Second,
			},
		}
		solver := nesthdb.NewSolver(s.gateway, s.ctl, cfg, s.rng)

		models, err := solver.Solve(ctx, f, nonNested, 0)
		if err != nil {
			if s.ctl.Interrupted() {
				s.log.Warn("solve cancelled by signal")
				return nil
			}
			return fmt.Errorf("solve: %w", err)
		}
		color.Green.Printf("models: %d\n", models)
		return nil
	})
}
