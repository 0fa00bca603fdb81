package config

import "fmt"

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates a built-in default value.
	SourceDefault ConfigSource = "default"
	// SourceUser indicates ~/.sprout/config.yaml.
	SourceUser ConfigSource = "user"
	// SourceProject indicates .sprout/config.yaml in the working directory.
	SourceProject ConfigSource = "project"
	// SourceFile indicates a file named with --config.
	SourceFile ConfigSource = "file"
	// SourceEnv indicates an environment variable override.
	SourceEnv ConfigSource = "env"
	// SourceFlag indicates a CLI flag override.
	SourceFlag ConfigSource = "flag"
)

// TrackedSource contains both the source type and where it was read.
type TrackedSource struct {
	Source ConfigSource
	Path   string // file path, env var or flag; empty for defaults
}

// String returns a human-readable source description.
func (ts TrackedSource) String() string {
	if ts.Path == "" {
		return string(ts.Source)
	}
	return fmt.Sprintf("%s: %s", ts.Source, ts.Path)
}

// TrackedConfig wraps a Config with per-key source tracking.
type TrackedConfig struct {
	Config *Config
	// File is the config file that was read, if any.
	File    string
	sources map[string]TrackedSource
}

// NewTrackedConfig creates a tracked config with every key at its default.
func NewTrackedConfig(cfg *Config, file string) *TrackedConfig {
	return &TrackedConfig{
		Config:  cfg,
		File:    file,
		sources: make(map[string]TrackedSource),
	}
}

// SetSource records where key came from.
func (tc *TrackedConfig) SetSource(key string, src TrackedSource) {
	tc.sources[key] = src
}

// GetSource returns the source of key, defaulting to SourceDefault.
func (tc *TrackedConfig) GetSource(key string) TrackedSource {
	if src, ok := tc.sources[key]; ok {
		return src
	}
	return TrackedSource{Source: SourceDefault}
}

// Overridden returns the keys whose value did not come from defaults, in
// key order.
func (tc *TrackedConfig) Overridden() []string {
	var keys []string
	for _, key := range Keys() {
		if tc.GetSource(key).Source != SourceDefault {
			keys = append(keys, key)
		}
	}
	return keys
}
