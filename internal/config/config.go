// Package config provides unified configuration loading for octorun.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/nvandessel/octorun/internal/engine"
	"github.com/nvandessel/octorun/internal/workdir"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user directory holding config, history and event logs.
const DirName = ".octorun"

// FileName is the config file inside DirName.
const FileName = "config.yaml"

// OctorunConfig contains all octorun configuration settings.
type OctorunConfig struct {
	// Engine configures how the simulation executable is launched.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Workdir configures the calculation folder.
	Workdir WorkdirConfig `json:"workdir" yaml:"workdir"`

	// History configures the SQLite run history.
	History HistoryConfig `json:"history" yaml:"history"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Tracing configures OpenTelemetry export.
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// EngineConfig configures the engine subprocess.
type EngineConfig struct {
	// Program is the executable, optionally with a launcher prefix such as
	// "mpirun -np 4 octopus". Overridden by $OCTOPUS.
	Program string `json:"program" yaml:"program"`

	// Timeout bounds a single engine run. Zero disables the limit.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// WorkdirConfig configures where calculations run.
type WorkdirConfig struct {
	// Path is the calculation folder. Relative paths resolve against the
	// current directory.
	Path string `json:"path" yaml:"path"`

	// Keep leaves the folder in place after a run.
	Keep bool `json:"keep" yaml:"keep"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	// Enabled records every run in the history database.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file. Empty means ~/.octorun/history.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures octorun's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "warn", "info" (default), "debug", or "trace".
	// "debug" enables event logging to ~/.octorun/events.jsonl.
	// "trace" additionally logs the rendered input file.
	Level string `json:"level" yaml:"level"`
}

// TracingConfig configures span export. Tracing is off while Endpoint is
// empty.
type TracingConfig struct {
	// Endpoint is an OTLP/HTTP collector URL, e.g. http://localhost:4318.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// envOverrides lists the environment variables that override file settings.
// Nil pointers mean the variable is unset.
type envOverrides struct {
	Program     *string        `env:"OCTOPUS"`
	Timeout     *time.Duration `env:"OCTORUN_TIMEOUT"`
	WorkdirPath *string        `env:"OCTORUN_WORKDIR"`
	Keep        *bool          `env:"OCTORUN_KEEP_FOLDER"`
	History     *bool          `env:"OCTORUN_HISTORY"`
	HistoryPath *string        `env:"OCTORUN_HISTORY_PATH"`
	LogLevel    *string        `env:"OCTORUN_LOG_LEVEL"`
	OTelURL     *string        `env:"OCTORUN_OTEL_ENDPOINT"`
}

// Default returns an OctorunConfig with sensible defaults.
func Default() *OctorunConfig {
	return &OctorunConfig{
		Engine: EngineConfig{
			Program: engine.DefaultProgram,
		},
		Workdir: WorkdirConfig{
			Path: workdir.DefaultName,
			Keep: false,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Dir returns ~/.octorun.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// DefaultPath returns ~/.octorun/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load loads configuration from path, or from the default location when
// path is empty, then applies environment variables.
// Order: defaults -> config file -> environment variables
func Load(path string) (*OctorunConfig, error) {
	config := Default()

	if path == "" {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			fileConfig, loadErr := LoadFromFile(path)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*OctorunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Workdir.Path = expandEnvVars(config.Workdir.Path)
	config.History.Path = expandEnvVars(config.History.Path)

	return config, nil
}

// Save writes the configuration to path as YAML, creating parent folders.
func (c *OctorunConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *OctorunConfig) Validate() error {
	if strings.TrimSpace(c.Engine.Program) == "" {
		return fmt.Errorf("engine.program must not be empty")
	}

	if c.Engine.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", c.Engine.Timeout)
	}

	validLevels := map[string]bool{"warn": true, "info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// HistoryPath returns the configured database path or ~/.octorun/history.db.
func (c *OctorunConfig) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// Get returns the value of a dotted key such as "engine.program".
func (c *OctorunConfig) Get(key string) (any, bool) {
	switch key {
	case "engine.program":
		return c.Engine.Program, true
	case "engine.timeout":
		return c.Engine.Timeout, true
	case "workdir.path":
		return c.Workdir.Path, true
	case "workdir.keep":
		return c.Workdir.Keep, true
	case "history.enabled":
		return c.History.Enabled, true
	case "history.path":
		return c.History.Path, true
	case "logging.level":
		return c.Logging.Level, true
	case "tracing.endpoint":
		return c.Tracing.Endpoint, true
	default:
		return nil, false
	}
}

// Set parses value and assigns it to a dotted key.
func (c *OctorunConfig) Set(key, value string) error {
	switch key {
	case "engine.program":
		c.Engine.Program = value
	case "engine.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		c.Engine.Timeout = d
	case "workdir.path":
		c.Workdir.Path = value
	case "workdir.keep":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %w", key, err)
		}
		c.Workdir.Keep = b
	case "history.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %w", key, err)
		}
		c.History.Enabled = b
	case "history.path":
		c.History.Path = value
	case "logging.level":
		c.Logging.Level = value
	case "tracing.endpoint":
		c.Tracing.Endpoint = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return c.Validate()
}

// Keys lists every key accepted by Get and Set.
func Keys() []string {
	return []string{
		"engine.program",
		"engine.timeout",
		"workdir.path",
		"workdir.keep",
		"history.enabled",
		"history.path",
		"logging.level",
		"tracing.endpoint",
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *OctorunConfig) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return err
	}

	if o.Program != nil && *o.Program != "" {
		config.Engine.Program = *o.Program
	}
	if o.Timeout != nil {
		config.Engine.Timeout = *o.Timeout
	}
	if o.WorkdirPath != nil && *o.WorkdirPath != "" {
		config.Workdir.Path = *o.WorkdirPath
	}
	if o.Keep != nil {
		config.Workdir.Keep = *o.Keep
	}
	if o.History != nil {
		config.History.Enabled = *o.History
	}
	if o.HistoryPath != nil && *o.HistoryPath != "" {
		config.History.Path = *o.HistoryPath
	}
	if o.LogLevel != nil && *o.LogLevel != "" {
		config.Logging.Level = *o.LogLevel
	}
	if o.OTelURL != nil {
		config.Tracing.Endpoint = *o.OTelURL
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
