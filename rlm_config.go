package rlmharness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of an operator-supplied run configuration,
// used by cmd/rlmcli. It carries only plain, serializable fields; wiring an
// lm.Client and a worker process from it is the caller's responsibility
// since those depend on runtime choices (API keys, provider selection) a
// config file cannot fully express.
type FileConfig struct {
	Provider                string   `yaml:"provider"` // "anthropic", "openai", or "" for a mock client
	RootModel               string   `yaml:"root_model"`
	SubModel                string   `yaml:"sub_model"`
	IterationLimit          int      `yaml:"iteration_limit"`
	SubcallLimit            int      `yaml:"subcall_limit"`
	RequestTimeoutMs        int      `yaml:"request_timeout_ms"`
	MaxExecutionOutputChars int      `yaml:"max_execution_output_chars"`
	WorkerCommand           string   `yaml:"worker_command"`
	WorkerArgs              []string `yaml:"worker_args"`
	Verbose                 bool     `yaml:"verbose"`
}

// LoadOptionsFile reads a YAML run configuration from path.
func LoadOptionsFile(path string) (FileConfig, error) {
	var cfg FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("rlmharness: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("rlmharness: parse config: %w", err)
	}
	return cfg, nil
}

// ApplyTo copies the file config's fields onto o, leaving fields the file
// left zero untouched so programmatic defaults still apply.
func (c FileConfig) ApplyTo(o *Options) {
	if c.RootModel != "" {
		o.RootModel = c.RootModel
	}
	if c.SubModel != "" {
		o.SubModel = c.SubModel
	}
	if c.IterationLimit > 0 {
		o.IterationLimit = c.IterationLimit
	}
	if c.SubcallLimit > 0 {
		o.SubcallLimit = c.SubcallLimit
	}
	if c.RequestTimeoutMs > 0 {
		o.RequestTimeoutMs = c.RequestTimeoutMs
	}
	if c.MaxExecutionOutputChars > 0 {
		o.MaxExecutionOutputChars = c.MaxExecutionOutputChars
	}
	if c.WorkerCommand != "" {
		o.WorkerCommand = c.WorkerCommand
	}
	if len(c.WorkerArgs) > 0 {
		o.WorkerArgs = c.WorkerArgs
	}
	o.Verbose = c.Verbose
}
