package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dpdb/dpdb-go/internal/cnf"
	"github.com/dpdb/dpdb-go/internal/dimacs"
	"github.com/dpdb/dpdb-go/internal/primal"
	"github.com/dpdb/dpdb-go/internal/problem"
)

var satFlags solveFlags

var satCmd = &cobra.Command{
	Use:   "sat",
	Short: "Decide satisfiability of a CNF instance",
	Long: `sat decomposes the instance's primal graph and runs the DP core with
the plain SAT variant: every bag table keeps rows consistent with the
clauses it fully covers, and the root reports whether any row survived.

Example:
  dpdb sat --runid run-1 --input formula.cnf`,
	RunE: runSAT,
}

func init() {
	addSolveFlags(satCmd, &satFlags)
	rootCmd.AddCommand(satCmd)
}

func runSAT(cmd *cobra.Command, args []string) error {
	return runNonNested(cmd, &satFlags,
		func(f *solveFlags) (*cnf.CNF, *primal.Graph, error) {
			in, err := openInput(f.Input)
			if err != nil {
				return nil, nil, err
			}
			defer in.Close()
			formula, err := dimacs.ReadCNF(in)
			if err != nil {
				return nil, nil, fmt.Errorf("parsing CNF: %w", err)
			}
			return formula, nil, nil
		},
		func(f *cnf.CNF, idx *cnf.ClauseIndex, g *primal.Graph) problem.Variant {
			return problem.NewSAT()
		},
		"satisfiable",
	)
}
