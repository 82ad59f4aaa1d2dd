package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/starkandwayne/cepler/internal/cerr"
)

// FromFile loads and normalizes the pipeline configuration at path. Unlike
// the teacher's linter, which falls back to a systemwide default when no
// project config is found, cepler's config doubles as the anchor for the
// per-repo ".cepler" state directory (spec.md §6), so a missing or
// malformed file is always a hard error rather than a silent default.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerr.Wrap(cerr.ConfigError, err, "reading config file "+path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cerr.Wrap(cerr.ConfigError, err, "parsing config file "+path)
	}
	if cfg.Environments == nil {
		cfg.Environments = make(map[string]*EnvironmentConfig)
	}
	cfg.normalize()
	return &cfg, nil
}

// MustGet returns the named environment or a PrerequisiteError-free,
// ConfigError-flavored failure explaining which name was not found.
func (c *Config) MustGet(name string) (*EnvironmentConfig, error) {
	env := c.Get(name)
	if env == nil {
		return nil, cerr.New(cerr.ConfigError, errors.Errorf("environment %q not found in configuration", name).Error())
	}
	return env, nil
}
