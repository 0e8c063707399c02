package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Optimizer.Enabled)
	assert.True(t, cfg.Optimizer.ConstantFolding)
	assert.True(t, cfg.Codegen.GroupVariables)
	assert.False(t, cfg.Codegen.NoError)
	assert.Equal(t, "  ", cfg.Codegen.Indent)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	cfg, err := Load([]byte(`
optimizer:
  function_inlining: false
codegen:
  group_variables: false
`))
	require.NoError(t, err)
	assert.False(t, cfg.Optimizer.FunctionInlining)
	assert.False(t, cfg.Codegen.GroupVariables)
	// untouched settings keep their defaults
	assert.True(t, cfg.Optimizer.ConstantFolding)
	assert.Equal(t, 100, cfg.Optimizer.MaxIterations)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load([]byte("optimizer: ["))
	assert.Error(t, err)
}
