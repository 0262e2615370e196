// Package config provides shared configuration types for leapdiff, decoupled
// from CLI concerns.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapdiff/internal/adapter"
	"github.com/leapstack-labs/leapdiff/internal/schema"
)

// ConfigurationError is the only fatal error class: no comparison target is
// resolvable, so the invocation aborts before any component runs.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// TargetConfig holds database target configuration for one comparison side.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, postgres

	// File-based databases (DuckDB)
	Path string `koanf:"path"`

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Common
	Schema string `koanf:"schema"`
}

// Validate checks the target configuration against the adapter registry.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return &ConfigurationError{Message: "target type is required"}
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &ConfigurationError{
			Message: fmt.Sprintf("unknown target type %q (available: %v)", t.Type, adapter.List()),
		}
	}
	return nil
}

// ToAdapterConfig converts the target to an adapter connection config.
func (t *TargetConfig) ToAdapterConfig() adapter.Config {
	return adapter.Config{
		Type:     strings.ToLower(t.Type),
		Path:     t.Path,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
	}
}

// Config holds all leapdiff configuration options.
type Config struct {
	ManifestPath  string `koanf:"manifest"`
	SchemaFile    string `koanf:"schema_file"`
	ModelsDir     string `koanf:"models_dir"`
	StatePath     string `koanf:"state_path"`
	OldRevision   string `koanf:"old_revision"`
	CaseSensitive bool   `koanf:"case_sensitive"`
	Matcher       string `koanf:"matcher"`
	OutputFormat  string `koanf:"output"`
	OutDir        string `koanf:"out_dir"`
	Verbose       bool   `koanf:"verbose"`

	Targets map[string]*TargetConfig `koanf:"targets"`

	// ProjectRoot is resolved at load time, not read from file.
	ProjectRoot string `koanf:"-"`
}

// Policy returns the process-wide name normalization policy.
func (c *Config) Policy() schema.NamePolicy {
	return schema.NamePolicy{CaseSensitive: c.CaseSensitive}
}

// Target returns the named comparison target.
func (c *Config) Target(name string) (*TargetConfig, error) {
	t, ok := c.Targets[name]
	if !ok || t == nil {
		return nil, &ConfigurationError{Message: fmt.Sprintf("no %q target configured", name)}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
