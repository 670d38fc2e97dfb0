package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path (YAML or JSON —
// viper dispatches on the extension) and performs environment variable
// substitution over every credential-shaped field.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)

	return cfg, nil
}

// LoadFromViper creates a Config from an existing Viper instance. Useful for
// testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	substituteEnvVars(cfg)
	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable
// values across every database credential and the logging output path.
func substituteEnvVars(cfg *Config) {
	for _, db := range []*DBConfig{&cfg.DB, &cfg.DBAdmin} {
		db.Host = expandEnvVar(db.Host)
		db.User = expandEnvVar(db.User)
		db.Password = expandEnvVar(db.Password)
		db.Database = expandEnvVar(db.Database)
	}
	cfg.Htd.Path = expandEnvVar(cfg.Htd.Path)
	cfg.NestHDB.ASP.Path = expandEnvVar(cfg.NestHDB.ASP.Path)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}
