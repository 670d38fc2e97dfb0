package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dpdb/dpdb-go/internal/abstraction"
	"github.com/dpdb/dpdb-go/internal/cancel"
	"github.com/dpdb/dpdb-go/internal/cnf"
	"github.com/dpdb/dpdb-go/internal/config"
	"github.com/dpdb/dpdb-go/internal/dbgateway"
	"github.com/dpdb/dpdb-go/internal/decomposer"
	"github.com/dpdb/dpdb-go/internal/diagram"
	"github.com/dpdb/dpdb-go/internal/dimacs"
	"github.com/dpdb/dpdb-go/internal/dpcore"
	"github.com/dpdb/dpdb-go/internal/lock"
	"github.com/dpdb/dpdb-go/internal/logger"
	"github.com/dpdb/dpdb-go/internal/primal"
	"github.com/dpdb/dpdb-go/internal/problem"
	"github.com/dpdb/dpdb-go/internal/solverio"
	"github.com/dpdb/dpdb-go/internal/treedecomp"
)

// solveFlags are the flags every problem-type subcommand adds on top of the
// persistent root flags.
type solveFlags struct {
	Input           string
	Seed            int64
	LimitResultRows int
	Randomize       string
	CandidateStore  string
	LowerCap        int
	UpperCap        int
	TableRowLimit   int
	StoreFormula    bool
}

func addSolveFlags(cmd *cobra.Command, f *solveFlags) {
	cmd.Flags().StringVar(&f.Input, "input", "-",
		"Path to the problem instance (DIMACS CNF, or GR for vertexcover); - reads stdin")
	cmd.Flags().Int64Var(&f.Seed, "seed", 0,
		"Seed for the decomposer and external solver retries (0 derives one from the current time)")
	cmd.Flags().IntVar(&f.LimitResultRows, "limit-result-rows", 0,
		"Override limit_result_rows: nonzero makes each bag's insert an upsert merge; rows are not capped (0 disables)")
	cmd.Flags().StringVar(&f.Randomize, "randomize", "",
		"Override the approximate row-sampling mode (order, offset, noview)")
	cmd.Flags().StringVar(&f.CandidateStore, "candidate-store", "",
		"Override candidate materialization strategy (cte, subquery, table)")
	cmd.Flags().IntVar(&f.LowerCap, "lower-cap", 0,
		"Override the abstraction treewidth threshold (nestpmc only)")
	cmd.Flags().IntVar(&f.UpperCap, "upper-cap", 0,
		"Override the hybrid treewidth threshold (nestpmc only)")
	cmd.Flags().IntVar(&f.TableRowLimit, "table-row-limit", 0,
		"Value used for --limit-result-rows when that flag is 0")
	cmd.Flags().BoolVar(&f.StoreFormula, "store-formula", false,
		"Persist the preprocessed formula next to the decomposition diagrams, for inspection")
}

// session bundles everything a subcommand needs after loading config and
// connecting; it holds no run lock (callers take one via lock.WithRunLock).
type session struct {
	cfg     *config.Config
	log     *logger.Logger
	gateway *dbgateway.Gateway
	lockDB  *sql.DB
	ctl     *cancel.Controller
	seed    int64
	rng     *rand.Rand
}

// openSession loads config, applies the root and solve-flag overrides,
// starts the logger, opens the database pool, and wires signal-driven
// cancellation. The caller must call the returned cleanup func once done, and must run its
// solve under lock.WithRunLock using s.lockDB and the run id.
func openSession(f *solveFlags) (*session, func(), error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	root := GetRootOverrides()
	randomize := f.Randomize
	if randomize == "" && root.Faster {
		randomize = "order"
	}
	candidateStore := f.CandidateStore
	limitRows := f.LimitResultRows
	if limitRows == 0 {
		limitRows = f.TableRowLimit
	}
	cfg.ApplyOverrides(root.LogLevel, root.LogFormat, root.MaxWorkerThreads, candidateStore, limitRows, randomize)
	if f.LowerCap > 0 {
		cfg.NestHDB.ThresholdAbstract = f.LowerCap
	}
	if f.UpperCap > 0 {
		cfg.NestHDB.ThresholdHybrid = f.UpperCap
	}

	if GetRunID() == "" {
		return nil, nil, fmt.Errorf("--runid is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	log = log.WithRun(GetRunID())

	dsn := dbgateway.BuildDSN(cfg.DB)
	lockDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("opening lock connection: %w", err)
	}

	gw, err := dbgateway.Connect(context.Background(), dbgateway.Config{
		DSN:            dsn,
		MaxConnections: cfg.DB.MaxConnections,
		MaxIdle:        cfg.DB.MaxIdleConnections,
	})
	if err != nil {
		lockDB.Close()
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	seed := f.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &session{
		cfg:     cfg,
		log:     log,
		gateway: gw,
		lockDB:  lockDB,
		ctl:     cancel.New(),
		seed:    seed,
		rng:     rand.New(rand.NewSource(seed)),
	}
	cleanup := func() {
		gw.Close()
		lockDB.Close()
		log.Sync()
	}
	return s, cleanup, nil
}

// openInput opens f.Input ("-" meaning stdin) for reading.
func openInput(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

// decomposerConfig adapts the htd configuration block to decomposer.Config.
func decomposerConfig(cfg config.HtdConfig) decomposer.Config {
	return decomposer.Config{
		Path:    cfg.Path,
		Args:    cfg.Args,
		Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
	}
}

// solverCall adapts a named external-solver block to solverio.Call.
func solverCall(cfg config.SolverConfig) solverio.Call {
	return solverio.Call{
		Path:     cfg.Path,
		Args:     cfg.Args,
		SeedFlag: cfg.SeedFlag,
		Timeout:  time.Duration(cfg.TimeoutSecs) * time.Second,
	}
}

// nonProjectedOf returns the vertex set abstraction should contract away:
// empty for plain SAT/#SAT (no projection declared, so the whole primal
// graph is decomposed as-is), or every variable outside f.Projected when a
// projection set was declared.
func nonProjectedOf(f *cnf.CNF) map[int]struct{} {
	nonProjected := make(map[int]struct{})
	if !f.HasProjection() {
		return nonProjected
	}
	for v := 1; v <= f.NumVars; v++ {
		if _, projected := f.Projected[v]; !projected {
			nonProjected[v] = struct{}{}
		}
	}
	return nonProjected
}

// decompose builds the (possibly abstracted) primal graph of f, decomposes
// it, and returns the rooted tree plus the graph the decomposition was
// computed over (for diagram dumping).
func decompose(ctx context.Context, s *session, f *cnf.CNF) (*treedecomp.Tree, *primal.Graph, error) {
	g := primal.Build(f)
	abs := abstraction.Abstract(g, nonProjectedOf(f))
	gr := g.ToGR()

	td, err := decomposer.Decompose(ctx, s.ctl, decomposerConfig(s.cfg.Htd), s.seed, gr, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("decomposing: %w", err)
	}
	return treedecomp.FromTD(td, abs), g, nil
}

// dumpDiagrams writes the decomposition / graph ASCII diagrams requested via
// --td-file / --gr-file, skipping either path when it is empty.
func dumpDiagrams(tree *treedecomp.Tree, g *primal.Graph) error {
	root := GetRootOverrides()
	if root.TDFile != "" {
		out, err := diagram.Render(diagram.GenerateTreeSource(tree, nil), nil)
		if err != nil {
			return fmt.Errorf("rendering tree diagram: %w", err)
		}
		if err := os.WriteFile(root.TDFile, []byte(out), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", root.TDFile, err)
		}
	}
	if root.GRFile != "" && g != nil {
		out, err := diagram.Render(diagram.GenerateGraphSource(g.ToGR()), nil)
		if err != nil {
			return fmt.Errorf("rendering graph diagram: %w", err)
		}
		if err := os.WriteFile(root.GRFile, []byte(out), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", root.GRFile, err)
		}
	}
	return nil
}

// storeFormula persists f next to the run's diagrams when --store-formula
// was passed, so a failed or surprising solve can be inspected afterward.
func storeFormula(flags *solveFlags, f *cnf.CNF) error {
	if !flags.StoreFormula {
		return nil
	}
	path := fmt.Sprintf("%s-formula.cnf", GetRunID())
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer file.Close()
	return dimacs.WriteCNF(file, f)
}

// dpcoreOptions builds dpcore.Options from the effective DPDB config.
func dpcoreOptions(cfg config.DPDBConfig) dpcore.Options {
	return dpcore.Options{
		MaxWorkerThreads: cfg.MaxWorkerThreads,
		CandidateStore:   dpcore.CandidateStore(cfg.CandidateStore),
		LimitResultRows:  cfg.LimitResultRows,
		RandomizeRows:    dpcore.RandomizeMode(cfg.RandomizeRows),
	}
}

// runNonNested is the shared body for sat/sharpsat/pmc/vertexcover: load the
// session, read the instance, decompose it, run the DP core, print the
// scalar result. readInstance and newVariant are supplied per subcommand.
func runNonNested(cmd *cobra.Command, flags *solveFlags, readInstance func(f *solveFlags) (*cnf.CNF, *primal.Graph, error), newVariant func(f *cnf.CNF, idx *cnf.ClauseIndex, g *primal.Graph) problem.Variant, resultLabel string) error {
	s, cleanup, err := openSession(flags)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := s.ctl.ListenForSignals()

	return lock.WithRunLock(ctx, s.lockDB, GetRunID(), func() error {
		f, presetGraph, err := readInstance(flags)
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if err := storeFormula(flags, f); err != nil {
			return err
		}

		var tree *treedecomp.Tree
		var g *primal.Graph
		if presetGraph != nil {
			abs := abstraction.Abstract(presetGraph, map[int]struct{}{})
			td, err := decomposer.Decompose(ctx, s.ctl, decomposerConfig(s.cfg.Htd), s.seed, presetGraph.ToGR(), nil)
			if err != nil {
				return fmt.Errorf("decomposing: %w", err)
			}
			tree, g = treedecomp.FromTD(td, abs), presetGraph
		} else {
			tree, g, err = decompose(ctx, s, f)
			if err != nil {
				return err
			}
		}
		if err := dumpDiagrams(tree, g); err != nil {
			return err
		}

		idx := cnf.BuildClauseIndex(f)
		variant := newVariant(f, idx, g)

		p := dpcore.NewProblem(s.gateway.WithPrefix(0), tree, idx, variant, s.ctl, dpcoreOptions(s.cfg.DPDB))
		if err := p.Setup(ctx); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
		if err := p.Solve(ctx); err != nil {
			if s.ctl.Interrupted() {
				s.log.Warn("solve cancelled by signal")
				return nil
			}
			return fmt.Errorf("solve: %w", err)
		}

		row, err := p.RootResult(ctx)
		if err != nil {
			return fmt.Errorf("root aggregation: %w", err)
		}
		var value sql.NullString
		if err := row.Scan(&value); err != nil {
			return fmt.Errorf("scanning result: %w", err)
		}
		color.Green.Printf("%s: %s\n", resultLabel, value.String)
		return nil
	})
}
