package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCommandStructure(t *testing.T) {
	assert.NotNil(t, validateCmd)
	assert.Equal(t, "validate", validateCmd.Use)
	assert.NotEmpty(t, validateCmd.Short)
	assert.NotEmpty(t, validateCmd.Long)
	assert.NotNil(t, validateCmd.RunE)
}

func TestValidateIsAddedToRoot(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "validate" {
			found = true
			break
		}
	}
	assert.True(t, found, "validate command should be added to root command")
}

func TestValidateCommandExample(t *testing.T) {
	assert.Contains(t, validateCmd.Long, "Example:")
	assert.Contains(t, validateCmd.Long, "dpdb validate")
}

func TestRunValidateMissingConfig(t *testing.T) {
	original := cfgFile
	defer func() { cfgFile = original }()

	cfgFile = "/nonexistent/dpdb.yaml"
	err := runValidate(validateCmd, []string{})
	assert.Error(t, err)
}
