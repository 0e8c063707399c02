// internal/config/config.go
package config

import (
	"gopkg.in/yaml.v3"
)

// OptimizerConfig toggles individual graph rewrites
type OptimizerConfig struct {
	Enabled              bool `yaml:"enabled"`
	ConstantFolding      bool `yaml:"constant_folding"`
	AlgebraicSimplify    bool `yaml:"algebraic_simplify"`
	ConditionalCollapse  bool `yaml:"conditional_collapse"`
	LetInlining          bool `yaml:"let_inlining"`
	FunctionInlining     bool `yaml:"function_inlining"`
	DeadElimination      bool `yaml:"dead_elimination"`
	MaxIterations        int  `yaml:"max_iterations"`
}

// CodegenConfig controls the shape of the emitted C++
type CodegenConfig struct {
	// group variable declarations of the same type on one line
	GroupVariables bool   `yaml:"group_variables"`
	Indent         string `yaml:"indent"`
	// skip the runtime error-wrapping types in the emitted code
	NoError bool `yaml:"no_error"`
}

type Config struct {
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Codegen   CodegenConfig   `yaml:"codegen"`
}

// Default returns the settings used when no config file is given
func Default() *Config {
	return &Config{
		Optimizer: OptimizerConfig{
			Enabled:             true,
			ConstantFolding:     true,
			AlgebraicSimplify:   true,
			ConditionalCollapse: true,
			LetInlining:         true,
			FunctionInlining:    true,
			DeadElimination:     true,
			MaxIterations:       100,
		},
		Codegen: CodegenConfig{
			GroupVariables: true,
			Indent:         "  ",
		},
	}
}

// Load overlays a YAML settings document onto the defaults
func Load(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Optimizer.MaxIterations <= 0 {
		cfg.Optimizer.MaxIterations = 100
	}
	if cfg.Codegen.Indent == "" {
		cfg.Codegen.Indent = "  "
	}
	return cfg, nil
}
