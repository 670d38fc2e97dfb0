package cmd

import (
	"fmt"

	"github.com/dpdb/dpdb-go/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration without connecting to anything",
	Long: `Validate loads the configuration file, applies any CLI overrides, and
runs the struct-level checks (ports in range, thresholds internally
consistent, decomposer path present; solver paths are not checked) without opening a database
connection or invoking any external tool.

Example:
  dpdb validate --config dpdb.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetRootOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.MaxWorkerThreads, "", 0, "")

	fmt.Printf("=== Configuration Validation ===\n")
	fmt.Printf("Config file: %s\n", GetConfigFile())

	if err := cfg.Validate(); err != nil {
		fmt.Printf("validation failed:\n%v\n", err)
		return err
	}

	fmt.Println("All checks passed")
	return nil
}
