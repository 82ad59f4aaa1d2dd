// Package config loads the pipeline configuration: the ordered chain of
// environments, each with the glob patterns that decide which files it
// deploys from HEAD and which it propagates from its upstream.
package config

// Config is the pipeline configuration: every environment cepler knows
// about, keyed by name.
type Config struct {
	Environments map[string]*EnvironmentConfig `yaml:"environments"`
}

// EnvironmentConfig is one environment's slice of Config.
type EnvironmentConfig struct {
	Name              string   `yaml:"-"`
	HeadFiltersField  []string `yaml:"head_filters"`
	PropagatedField   []string `yaml:"propagated_filters"`
	PropagatedFromRef string   `yaml:"propagated_from"`
}

// defaultHeadFilters matches everything when an environment declares no
// head_filters of its own.
var defaultHeadFilters = []string{"**/*"}

// HeadFilters returns the glob patterns that select this environment's
// HEAD-sourced files, defaulting to "everything" when unset.
func (e *EnvironmentConfig) HeadFilters() []string {
	if len(e.HeadFiltersField) == 0 {
		return defaultHeadFilters
	}
	return e.HeadFiltersField
}

// HeadFilePatterns returns the same patterns as HeadFilters, for local
// path-matching rather than repo enumeration (spec.md §4.1/§4.6 treat these
// as two views of the same configured value).
func (e *EnvironmentConfig) HeadFilePatterns() []string {
	return e.HeadFilters()
}

// PropagatedFilePatterns returns the glob patterns that select which
// upstream-propagated files this environment carries forward.
func (e *EnvironmentConfig) PropagatedFilePatterns() []string {
	return e.PropagatedField
}

// PropagatedFrom returns the upstream environment name, if configured.
func (e *EnvironmentConfig) PropagatedFrom() (string, bool) {
	if e.PropagatedFromRef == "" {
		return "", false
	}
	return e.PropagatedFromRef, true
}

// Get returns the named environment, or nil if it is not configured.
func (c *Config) Get(name string) *EnvironmentConfig {
	return c.Environments[name]
}

// normalize back-fills derived fields (the map key into Name) after YAML
// unmarshalling, since yaml.v3 has no notion of "the key I was found
// under."
func (c *Config) normalize() {
	for name, env := range c.Environments {
		env.Name = name
	}
}
