package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values,
// reporting every violation at once (a ConfigError-shaped aggregate) rather
// than failing on the first.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateDB("db", &c.DB)...)
	if c.DBAdmin.Host != "" {
		errors = append(errors, c.validateDB("db_admin", &c.DBAdmin)...)
	}
	errors = append(errors, c.validateHtd()...)
	errors = append(errors, c.validateNestHDB()...)
	errors = append(errors, c.validateDPDB()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDB(prefix string, db *DBConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{Field: prefix + ".host", Message: "host is required"})
	}
	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{Field: prefix + ".port", Message: "port must be between 1 and 65535"})
	}
	if db.User == "" {
		errors = append(errors, ValidationError{Field: prefix + ".user", Message: "user is required"})
	}
	if db.Database == "" {
		errors = append(errors, ValidationError{Field: prefix + ".database", Message: "database name is required"})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{Field: prefix + ".tls", Message: "tls must be 'disable', 'preferred', or 'required'"})
	}
	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{Field: prefix + ".max_connections", Message: "max_connections cannot be negative"})
	}
	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{Field: prefix + ".max_idle_connections", Message: "max_idle_connections cannot be negative"})
	}

	return errors
}

func (c *Config) validateHtd() ValidationErrors {
	var errors ValidationErrors
	if c.Htd.Path == "" {
		errors = append(errors, ValidationError{Field: "htd.path", Message: "path to the decomposer binary is required"})
	}
	if c.Htd.TimeoutSecs < 0 {
		errors = append(errors, ValidationError{Field: "htd.timeout_seconds", Message: "timeout_seconds cannot be negative"})
	}
	return errors
}

func (c *Config) validateNestHDB() ValidationErrors {
	var errors ValidationErrors

	if c.NestHDB.ThresholdAbstract <= 0 {
		errors = append(errors, ValidationError{Field: "nesthdb.threshold_abstract", Message: "threshold_abstract must be positive"})
	}
	if c.NestHDB.ThresholdHybrid <= 0 {
		errors = append(errors, ValidationError{Field: "nesthdb.threshold_hybrid", Message: "threshold_hybrid must be positive"})
	}
	if c.NestHDB.ThresholdHybrid < c.NestHDB.ThresholdAbstract {
		errors = append(errors, ValidationError{Field: "nesthdb.threshold_hybrid", Message: "threshold_hybrid must be >= threshold_abstract"})
	}
	if c.NestHDB.MaxRecursionDepth <= 0 {
		errors = append(errors, ValidationError{Field: "nesthdb.max_recursion_depth", Message: "max_recursion_depth must be positive"})
	}
	if c.NestHDB.MaxRetries <= 0 {
		errors = append(errors, ValidationError{Field: "nesthdb.max_retries", Message: "max_retries must be positive"})
	}
	if len(c.NestHDB.RetryCodes) == 0 {
		errors = append(errors, ValidationError{Field: "nesthdb.retry_codes", Message: "at least one retryable exit code must be configured"})
	}

	return errors
}

func (c *Config) validateDPDB() ValidationErrors {
	var errors ValidationErrors

	if c.DPDB.MaxWorkerThreads <= 0 {
		errors = append(errors, ValidationError{Field: "dpdb.max_worker_threads", Message: "max_worker_threads must be positive"})
	}
	if c.DPDB.MaxSolverThreads < 0 {
		errors = append(errors, ValidationError{Field: "dpdb.max_solver_threads", Message: "max_solver_threads cannot be negative"})
	}

	validStores := map[string]bool{"cte": true, "subquery": true, "table": true, "": true}
	if !validStores[c.DPDB.CandidateStore] {
		errors = append(errors, ValidationError{Field: "dpdb.candidate_store", Message: "candidate_store must be 'cte', 'subquery', or 'table'"})
	}

	validRandomize := map[string]bool{"": true, "order": true, "offset": true, "noview": true}
	if !validRandomize[c.DPDB.RandomizeRows] {
		errors = append(errors, ValidationError{Field: "dpdb.randomize_rows", Message: "randomize_rows must be '', 'order', 'offset', or 'noview'"})
	}
	if c.DPDB.LimitResultRows < 0 {
		errors = append(errors, ValidationError{Field: "dpdb.limit_result_rows", Message: "limit_result_rows cannot be negative"})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{Field: "logging.level", Message: "level must be 'debug', 'info', 'warn', or 'error'"})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{Field: "logging.format", Message: "format must be 'json' or 'text'"})
	}

	return errors
}
