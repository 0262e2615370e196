// Package config loads leapdiff configuration from file, environment
// variables and CLI flags.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	intconfig "github.com/leapstack-labs/leapdiff/internal/config"
)

// Config is re-exported so commands import one config package.
type Config = intconfig.Config

// maxUpwardSearchLevels limits how far up the directory tree to search for
// config files.
const maxUpwardSearchLevels = 10

var (
	configFileUsed string
	currentConfig  *Config // stores the loaded config for access by commands
)

// loggerKey is used to store the logger in command contexts.
type loggerKey struct{}

// GetConfigFileUsed returns the path of the config file that was loaded, or
// "" when only defaults/env/flags applied.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrent returns the most recently loaded config. Commands call this
// after the root command's PersistentPreRunE has run.
func GetCurrent() *Config {
	if currentConfig != nil {
		return currentConfig
	}
	return &Config{}
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the context, or a discard logger.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// configExistsIn checks if a leapdiff config file exists in the directory.
func configExistsIn(dir string) bool {
	for _, name := range []string{"leapdiff.yaml", "leapdiff.yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// findProjectRootUpward searches upward from startDir for a leapdiff config
// file. Returns "" if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority: explicit config file directory > upward search from CWD > CWD.
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRootUpward(cwd); root != "" {
			return root
		}
		return cwd
	}
	return "."
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not
// absolute. Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	configFileUsed = ""

	projectRoot := inferProjectRoot(cfgFile)

	// 1. Defaults
	if err := k.Load(confmap.Provider(intconfig.Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		for _, name := range []string{"leapdiff.yaml", "leapdiff.yml"} {
			candidate := filepath.Join(projectRoot, name)
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
				break
			}
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		configFileUsed = cfgFile
	}

	// 3. Environment variables (LEAPDIFF_ prefix).
	// Transform: LEAPDIFF_MODELS_DIR -> models_dir
	if err := k.Load(env.Provider("LEAPDIFF_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LEAPDIFF_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// kebab-case flags map to snake_case config keys
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot
	cfg.ManifestPath = resolvePathRelativeTo(cfg.ManifestPath, projectRoot)
	cfg.SchemaFile = resolvePathRelativeTo(cfg.SchemaFile, projectRoot)
	cfg.ModelsDir = resolvePathRelativeTo(cfg.ModelsDir, projectRoot)
	cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)

	currentConfig = &cfg
	return &cfg, nil
}
