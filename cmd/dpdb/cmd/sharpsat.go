package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dpdb/dpdb-go/internal/cnf"
	"github.com/dpdb/dpdb-go/internal/dimacs"
	"github.com/dpdb/dpdb-go/internal/primal"
	"github.com/dpdb/dpdb-go/internal/problem"
)

var sharpSATFlags solveFlags

var sharpSATCmd = &cobra.Command{
	Use:   "sharpsat",
	Short: "Count the models of a CNF instance (#SAT)",
	Long: `sharpsat decomposes the instance's primal graph and runs the DP core
with the counting variant: every bag table carries a model_count column
that is the product of its children's counts, and the root reports
SUM(model_count).

Example:
  dpdb sharpsat --runid run-1 --input formula.cnf`,
	RunE: runSharpSAT,
}

func init() {
	addSolveFlags(sharpSATCmd, &sharpSATFlags)
	rootCmd.AddCommand(sharpSATCmd)
}

func runSharpSAT(cmd *cobra.Command, args []string) error {
	return runNonNested(cmd, &sharpSATFlags,
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
			return problem.NewSharpSAT()
		},
		"models",
	)
}
