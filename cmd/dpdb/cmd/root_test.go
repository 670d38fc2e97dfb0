package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetConfigFile(t *testing.T) {
	original := cfgFile
	defer func() { cfgFile = original }()

	tests := []struct {
		name  string
		value string
	}{
		{"default config file", "dpdb.yaml"},
		{"custom config file", "/path/to/custom.yaml"},
		{"config file with spaces", "/path/to/my config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgFile = tt.value
			assert.Equal(t, tt.value, GetConfigFile())
		})
	}
}

func TestGetRunID(t *testing.T) {
	original := runID
	defer func() { runID = original }()

	runID = "run-42"
	assert.Equal(t, "run-42", GetRunID())
}

func TestGetRootOverrides(t *testing.T) {
	originalLogLevel, originalLogFormat := logLevel, logFormat
	originalMaxWorkerThreads := maxWorkerThreads
	originalTDFile, originalGRFile, originalFaster := tdFile, grFile, faster
	defer func() {
		logLevel, logFormat = originalLogLevel, originalLogFormat
		maxWorkerThreads = originalMaxWorkerThreads
		tdFile, grFile, faster = originalTDFile, originalGRFile, originalFaster
	}()

	logLevel, logFormat = "debug", "json"
	maxWorkerThreads = 8
	tdFile, grFile, faster = "tree.txt", "graph.txt", true

	got := GetRootOverrides()
	assert.Equal(t, RootOverrides{
		LogLevel: "debug", LogFormat: "json", MaxWorkerThreads: 8,
		TDFile: "tree.txt", GRFile: "graph.txt", Faster: true,
	}, got)
}

func TestRootCommandStructure(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "dpdb", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Equal(t, Version, rootCmd.Version)
}

func TestRootCommandPersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	configFlag, err := flags.GetString("config")
	assert.NoError(t, err)
	assert.Equal(t, "dpdb.yaml", configFlag)

	runidFlag, err := flags.GetString("runid")
	assert.NoError(t, err)
	assert.Equal(t, "", runidFlag)

	fasterFlag, err := flags.GetBool("faster")
	assert.NoError(t, err)
	assert.Equal(t, false, fasterFlag)

	parallelFlag, err := flags.GetInt("parallel-setup")
	assert.NoError(t, err)
	assert.Equal(t, 0, parallelFlag)
}

func TestRootCommandSubcommands(t *testing.T) {
	commands := rootCmd.Commands()
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.Name()
	}

	for _, expected := range []string{"sat", "sharpsat", "pmc", "nestpmc", "vertexcover", "validate", "version"} {
		assert.Contains(t, names, expected, "expected command %s not found", expected)
	}
}
