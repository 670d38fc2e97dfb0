package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile          string
	runID            string
	logLevel         string
	logFormat        string
	tdFile           string
	grFile           string
	faster           bool
	maxWorkerThreads int
)

var rootCmd = &cobra.Command{
	Use:   "dpdb",
	Short: "Dynamic programming over tree decompositions for SAT/#SAT/PMC",
	Long: `dpdb solves SAT, model counting (#SAT), projected model counting
(PMC), nested PMC, and minimum vertex cover instances by decomposing the
input formula's primal graph into a tree decomposition and running a
dynamic program over it, one join per bag, persisted through a relational
database.

Features:
  - Tree-decomposition-driven dynamic programming, one SQL join per bag
  - SAT, #SAT, PMC, nested PMC, and minimum vertex cover problem variants
  - Pluggable external decomposer, solver, and ASP subset chooser
  - Run-scoped advisory locking to prevent duplicate concurrent solves`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "dpdb.yaml",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&runID, "runid", "",
		"Run identifier; tables are prefixed with it and it gates the run-scoped advisory lock (required)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().StringVar(&tdFile, "td-file", "",
		"Write the decomposition tree as an ASCII diagram to this path before solving")
	rootCmd.PersistentFlags().StringVar(&grFile, "gr-file", "",
		"Write the nested primal graph as an ASCII diagram to this path before solving")

	rootCmd.PersistentFlags().BoolVar(&faster, "faster", false,
		"Default every bag to approximate row sampling (randomize_rows=order) unless a subcommand overrides it")
	rootCmd.PersistentFlags().IntVar(&maxWorkerThreads, "parallel-setup", 0,
		"Override the DP core's max worker goroutines")
}

// GetConfigFile returns the config file path.
func GetConfigFile() string {
	return cfgFile
}

// GetRunID returns the --runid flag value.
func GetRunID() string {
	return runID
}

// RootOverrides contains the persistent flag values every subcommand layers
// its own overrides on top of.
type RootOverrides struct {
	LogLevel         string
	LogFormat        string
	MaxWorkerThreads int
	TDFile           string
	GRFile           string
	Faster           bool
}

// GetRootOverrides returns the persistent-flag override values.
func GetRootOverrides() RootOverrides {
	return RootOverrides{
		LogLevel:         logLevel,
		LogFormat:        logFormat,
		MaxWorkerThreads: maxWorkerThreads,
		TDFile:           tdFile,
		GRFile:           grFile,
		Faster:           faster,
	}
}
