// Package config loads spreadcall configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all spreadcall configuration.
type Config struct {
	// Engine tunes speculation.
	Engine EngineConfig `yaml:"engine"`

	// Logging configures the zap logger built by the CLI.
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig tunes the speculation engine.
type EngineConfig struct {
	// Threshold is the consecutive qualifying executions before a call site
	// is specialized.
	Threshold uint32 `yaml:"threshold"`

	// BackgroundCompile installs fast paths on compiler goroutines.
	BackgroundCompile bool `yaml:"background_compile"`

	// CompileWorkers is the number of compiler goroutines.
	CompileWorkers int `yaml:"compile_workers"`

	// CompileQueue bounds pending background installs.
	CompileQueue int `yaml:"compile_queue"`

	// MaxExpandedArgs bounds the argument count of one general expansion.
	MaxExpandedArgs int `yaml:"max_expanded_args"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Threshold:       40,
			CompileWorkers:  1,
			CompileQueue:    64,
			MaxExpandedArgs: 1 << 16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies SPREADCALL_* environment variables.
func (c *Config) applyEnvOverrides() {
	env.Load()

	if env.Has("SPREADCALL_THRESHOLD") {
		if n := int64(env.Int("SPREADCALL_THRESHOLD", int(c.Engine.Threshold))); n > 0 {
			c.Engine.Threshold = uint32(min(n, math.MaxUint32))
		}
	}
	if env.Has("SPREADCALL_BACKGROUND") {
		c.Engine.BackgroundCompile = env.Bool("SPREADCALL_BACKGROUND")
	}
	if env.Has("SPREADCALL_WORKERS") {
		c.Engine.CompileWorkers = env.Int("SPREADCALL_WORKERS", c.Engine.CompileWorkers)
	}
	if level := env.Str("SPREADCALL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// ValidLevels lists the accepted logging levels.
var ValidLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Engine.Threshold == 0 {
		return fmt.Errorf("engine.threshold must be positive")
	}
	if c.Engine.BackgroundCompile && c.Engine.CompileWorkers <= 0 {
		return fmt.Errorf("engine.compile_workers must be positive when background_compile is set (got %d)", c.Engine.CompileWorkers)
	}
	if c.Engine.MaxExpandedArgs < 0 {
		return fmt.Errorf("engine.max_expanded_args must not be negative")
	}

	for _, l := range ValidLevels {
		if c.Logging.Level == l {
			return nil
		}
	}
	return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLevels)
}
