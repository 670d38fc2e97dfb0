package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.DB.Host = "localhost"
	cfg.DB.User = "root"
	cfg.DB.Database = "testdb"
	cfg.Htd.Path = "/usr/local/bin/htd_main"
	return cfg
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no validation errors, got: %v", err)
	}
}

func TestMissingDBHost(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Host = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing db host")
	}
	if !strings.Contains(err.Error(), "db.host") {
		t.Errorf("expected error to mention 'db.host', got: %v", err)
	}
}

func TestInvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Port = 99999

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for invalid port")
	}
	if !strings.Contains(err.Error(), "db.port") {
		t.Errorf("expected error to mention 'db.port', got: %v", err)
	}
}

func TestMissingHtdPath(t *testing.T) {
	cfg := validConfig()
	cfg.Htd.Path = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing htd path")
	}
	if !strings.Contains(err.Error(), "htd.path") {
		t.Errorf("expected error about htd.path, got: %v", err)
	}
}

func TestThresholdHybridBelowAbstract(t *testing.T) {
	cfg := validConfig()
	cfg.NestHDB.ThresholdAbstract = 30
	cfg.NestHDB.ThresholdHybrid = 10

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for threshold_hybrid < threshold_abstract")
	}
	if !strings.Contains(err.Error(), "threshold_hybrid") {
		t.Errorf("expected error about threshold_hybrid, got: %v", err)
	}
}

func TestInvalidCandidateStore(t *testing.T) {
	cfg := validConfig()
	cfg.DPDB.CandidateStore = "bogus"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for invalid candidate_store")
	}
	if !strings.Contains(err.Error(), "candidate_store") {
		t.Errorf("expected error about candidate_store, got: %v", err)
	}
}

func TestInvalidLoggingLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for invalid logging level")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("expected error about logging.level, got: %v", err)
	}
}

func TestMultipleErrorsAggregate(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "db.host") {
		t.Error("expected error about db.host")
	}
	if !strings.Contains(errStr, "htd.path") {
		t.Error("expected error about htd.path")
	}
}
