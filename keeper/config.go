package keeper

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds daemon-level clipkeeper configuration. Runtime-tunable
// behaviour (retention, filters) lives in Settings instead; Config is what
// the operator fixes at startup.
type Config struct {
	// BaseDir is the root of the history store: the index database, the
	// blob tree, and settings.json all live under it.
	BaseDir string `yaml:"base_dir"`

	// PollInterval is how often the clipboard is checked for a new token.
	PollInterval time.Duration `yaml:"poll_interval"`

	// SweepInterval is how often retention is enforced. The first sweep
	// runs at startup regardless.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// EventBuffer caps the pipeline event channel.
	EventBuffer int `yaml:"event_buffer"`
}

func (c *Config) defaults() {
	if c.BaseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.BaseDir = filepath.Join(home, ".clipkeeper")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Hour
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 128
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
