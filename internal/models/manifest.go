package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default execution parameters for a batch. These are the single source of
// truth; LoadManifest fills unset fields from them.
const (
	DefaultTimeoutSec = 30
	DefaultWorkers    = 4
)

// JudgeConfig selects an optional AI judge and carries its backend-specific
// parameters.
type JudgeConfig struct {
	Kind       string         `yaml:"kind" json:"kind"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// BatchManifest describes one batch of quests to evaluate. Quest patterns
// are globs resolved relative to the manifest's directory.
type BatchManifest struct {
	Name       string       `yaml:"name" json:"name"`
	Quests     []string     `yaml:"quests" json:"quests"`
	TimeoutSec int          `yaml:"timeout_sec,omitempty" json:"timeout_sec,omitempty"`
	Parallel   bool         `yaml:"parallel,omitempty" json:"parallel,omitempty"`
	Workers    int          `yaml:"workers,omitempty" json:"workers,omitempty"`
	Judge      *JudgeConfig `yaml:"judge,omitempty" json:"judge,omitempty"`
}

// LoadManifest reads and parses a batch manifest YAML file, applying
// defaults for unset execution parameters. Schema validation is the
// caller's concern (see internal/validation).
func LoadManifest(path string) (*BatchManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m BatchManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s: missing required field 'name'", path)
	}
	if len(m.Quests) == 0 {
		return nil, fmt.Errorf("manifest %s: no quest patterns configured", path)
	}

	if m.TimeoutSec <= 0 {
		m.TimeoutSec = DefaultTimeoutSec
	}
	if m.Workers <= 0 {
		m.Workers = DefaultWorkers
	}

	return &m, nil
}
