package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/vango-dev/effects/internal/errors"
)

const (
	// JSONFileName is the name of the JSON configuration file.
	JSONFileName = "effects.json"

	// TOMLFileName is the name of the TOML configuration file.
	TOMLFileName = "effects.toml"

	// DefaultPolicy is the default callback failure policy.
	DefaultPolicy = "fail-fast"

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "effects"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "effects"

	// DefaultDevtoolsAddr is the default devtools listen address.
	DefaultDevtoolsAddr = "localhost:7070"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"
)

// Config represents the complete effects.json / effects.toml configuration.
type Config struct {
	// Runtime configures the effect runtime.
	Runtime RuntimeConfig `json:"runtime" toml:"runtime"`

	// Metrics configures Prometheus instrumentation.
	Metrics MetricsConfig `json:"metrics" toml:"metrics"`

	// Tracing configures OpenTelemetry instrumentation.
	Tracing TracingConfig `json:"tracing" toml:"tracing"`

	// Devtools configures the devtools server.
	Devtools DevtoolsConfig `json:"devtools" toml:"devtools"`

	// Log configures logging.
	Log LogConfig `json:"log" toml:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// RuntimeConfig contains effect runtime settings.
type RuntimeConfig struct {
	// CallbackPolicy is "fail-fast" or "isolate".
	CallbackPolicy string `json:"callbackPolicy,omitempty" toml:"callbackPolicy,omitempty"`

	// PanicOnUsageError panics on usage errors instead of returning them.
	PanicOnUsageError bool `json:"panicOnUsageError,omitempty" toml:"panicOnUsageError,omitempty"`

	// MaxEffectRunsPerCommit aborts a commit that runs more effects than
	// this. Zero means unlimited.
	MaxEffectRunsPerCommit int `json:"maxEffectRunsPerCommit,omitempty" toml:"maxEffectRunsPerCommit,omitempty"`

	// LogEffectRuns logs every effect run at debug level.
	LogEffectRuns bool `json:"logEffectRuns,omitempty" toml:"logEffectRuns,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty" toml:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty" toml:"namespace,omitempty"`
	Subsystem string `json:"subsystem,omitempty" toml:"subsystem,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled    bool   `json:"enabled,omitempty" toml:"enabled,omitempty"`
	TracerName string `json:"tracerName,omitempty" toml:"tracerName,omitempty"`
}

// DevtoolsConfig contains devtools server settings.
type DevtoolsConfig struct {
	// Addr is the address the devtools server listens on.
	Addr string `json:"addr,omitempty" toml:"addr,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" toml:"level,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			CallbackPolicy: DefaultPolicy,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			TracerName: DefaultTracerName,
		},
		Devtools: DevtoolsConfig{
			Addr: DefaultDevtoolsAddr,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load reads configuration from the specified directory.
// effects.json takes precedence over effects.toml.
func Load(dir string) (*Config, error) {
	for _, name := range []string{JSONFileName, TOMLFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E140").
		WithDetail("No " + JSONFileName + " or " + TOMLFileName + " found in " + dir).
		WithSuggestion("Run 'effectctl init' to create one")
}

// LoadFile reads configuration from the specified file path. The format is
// chosen by extension: .toml is TOML, anything else is JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E140").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("E141").Wrap(err)
	}

	cfg := New()
	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errors.New("E141").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid TOML")
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E141").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the file is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as TOML when the
// path ends in .toml and as indented JSON otherwise.
func (c *Config) SaveTo(path string) error {
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return errors.New("E141").Wrap(err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return errors.New("E141").Wrap(err)
		}
		// Add newline at end of file
		data = append(data, '\n')
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E141").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Runtime.CallbackPolicy == "" {
		c.Runtime.CallbackPolicy = DefaultPolicy
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}
	if c.Devtools.Addr == "" {
		c.Devtools.Addr = DefaultDevtoolsAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Runtime.CallbackPolicy {
	case "fail-fast", "isolate":
	default:
		return errors.New("E140").
			WithDetailf("runtime.callbackPolicy must be \"fail-fast\" or \"isolate\", got %q", c.Runtime.CallbackPolicy)
	}
	if c.Runtime.MaxEffectRunsPerCommit < 0 {
		return errors.New("E140").
			WithDetail("runtime.maxEffectRunsPerCommit must not be negative")
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("E140").
			WithDetailf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Exists checks if a configuration file exists in the directory.
func Exists(dir string) bool {
	for _, name := range []string{JSONFileName, TOMLFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up from startDir looking for a configuration file.
// It returns "" and no error when none is found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the configuration found by walking up from the
// current directory, or the defaults when there is none.
func LoadFromWorkingDir() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := FindProjectRoot(cwd)
	if err != nil {
		return nil, err
	}
	if root == "" {
		return New(), nil
	}
	return Load(root)
}
