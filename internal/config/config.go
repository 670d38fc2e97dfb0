// Package config provides configuration structures and loading for the
// decomposition-based DP engine.
package config

// Config is the complete application configuration: one DSN-shaped block
// per database role, one block per external tool, and the DP core/logging
// settings that apply regardless of problem type.
type Config struct {
	DB      DBConfig      `yaml:"db" mapstructure:"db"`
	DBAdmin DBConfig      `yaml:"db_admin" mapstructure:"db_admin"`
	Htd     HtdConfig     `yaml:"htd" mapstructure:"htd"`
	NestHDB NestHDBConfig `yaml:"nesthdb" mapstructure:"nesthdb"`
	DPDB    DPDBConfig    `yaml:"dpdb" mapstructure:"dpdb"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// DBConfig is a MySQL database connection configuration.
type DBConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// HtdConfig names the external tree-decomposer binary and its fixed
// invocation arguments.
type HtdConfig struct {
	Path        string   `yaml:"path" mapstructure:"path"`
	Args        []string `yaml:"args" mapstructure:"args"`
	TimeoutSecs int      `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ASPConfig names the answer-set grounder/solver used to shrink the nesting
// subset when a decomposition's width exceeds ThresholdAbstract.
type ASPConfig struct {
	Path         string `yaml:"path" mapstructure:"path"`
	EncodingPath string `yaml:"encoding_path" mapstructure:"encoding_path"`
	TimeoutSecs  int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// SolverConfig names one external SAT/#SAT/PMC solver or preprocessor
// binary and the flag it accepts a seed through.
type SolverConfig struct {
	Path        string   `yaml:"path" mapstructure:"path"`
	Args        []string `yaml:"args" mapstructure:"args"`
	SeedFlag    string   `yaml:"seed_flag" mapstructure:"seed_flag"`
	TimeoutSecs int      `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// NestHDBConfig configures the recursive nested solver: which external
// tools it calls, the treewidth thresholds that decide offload-vs-recurse,
// and the retry policy for indeterminate solver exits.
type NestHDBConfig struct {
	Preprocessor      SolverConfig `yaml:"preprocessor" mapstructure:"preprocessor"`
	SATSolver         SolverConfig `yaml:"sat_solver" mapstructure:"sat_solver"`
	SharpSATSolver    SolverConfig `yaml:"sharpsat_solver" mapstructure:"sharpsat_solver"`
	PMCSolver         SolverConfig `yaml:"pmc_solver" mapstructure:"pmc_solver"`
	ASP               ASPConfig    `yaml:"asp" mapstructure:"asp"`
	ThresholdAbstract int          `yaml:"threshold_abstract" mapstructure:"threshold_abstract"`
	ThresholdHybrid   int          `yaml:"threshold_hybrid" mapstructure:"threshold_hybrid"`
	MaxRecursionDepth int          `yaml:"max_recursion_depth" mapstructure:"max_recursion_depth"`
	MaxRetries        int          `yaml:"max_retries" mapstructure:"max_retries"`
	RetryCodes        []int        `yaml:"retry_codes" mapstructure:"retry_codes"`
}

// DPDBConfig configures one DP core solve, independent of problem type.
type DPDBConfig struct {
	MaxWorkerThreads int    `yaml:"max_worker_threads" mapstructure:"max_worker_threads"`
	MaxSolverThreads int    `yaml:"max_solver_threads" mapstructure:"max_solver_threads"`
	CandidateStore   string `yaml:"candidate_store" mapstructure:"candidate_store"` // cte, subquery, table
	LimitResultRows  int    `yaml:"limit_result_rows" mapstructure:"limit_result_rows"`
	RandomizeRows    string `yaml:"randomize_rows" mapstructure:"randomize_rows"` // "", order, offset, noview
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		DB: DBConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     12,
			MaxIdleConnections: 4,
		},
		DBAdmin: DBConfig{
			Port: 3306,
			TLS:  "preferred",
		},
		Htd: HtdConfig{
			TimeoutSecs: 300,
		},
		NestHDB: NestHDBConfig{
			ThresholdAbstract: 24,
			ThresholdHybrid:   32,
			MaxRecursionDepth: 8,
			MaxRetries:        128,
			RetryCodes:        []int{245, 250},
		},
		DPDB: DPDBConfig{
			MaxWorkerThreads: 12,
			MaxSolverThreads: 4,
			CandidateStore:   "cte",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// ApplyOverrides applies CLI flag overrides to the global configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, maxWorkerThreads int, candidateStore string, limitResultRows int, randomizeRows string) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if maxWorkerThreads > 0 {
		c.DPDB.MaxWorkerThreads = maxWorkerThreads
	}
	if candidateStore != "" {
		c.DPDB.CandidateStore = candidateStore
	}
	if limitResultRows > 0 {
		c.DPDB.LimitResultRows = limitResultRows
	}
	if randomizeRows != "" {
		c.DPDB.RandomizeRows = randomizeRows
	}
}
