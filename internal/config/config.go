// Package config loads the planner's runtime configuration.
//
// Values come from (lowest to highest precedence) built-in defaults, an
// optional YAML config file, and environment variables. Environment keys
// use the PLANNER_ prefix with dots replaced by underscores, e.g.
// PLANNER_GEMINI_TIMEOUT for gemini.timeout. The legacy variable names
// understood by earlier releases (GEMINI_MODEL, GEMINI_API_KEY,
// GEMINI_CLI_PATH, CONTEXT7_URL) are bound as well.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config is the complete planner configuration.
type Config struct {
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Docs     DocsConfig     `mapstructure:"docs"`
	Registry RegistryConfig `mapstructure:"registry"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Events   EventsConfig   `mapstructure:"events"`
	Updater  UpdaterConfig  `mapstructure:"updater"`
}

// GeminiConfig controls how the external generator CLI is invoked.
type GeminiConfig struct {
	// Model is passed as --model. Required for serving.
	Model string `mapstructure:"model"`
	// APIKey is exported to the child process as APIKeyEnv, never on argv.
	APIKey    string `mapstructure:"api_key"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	CLIPath   string `mapstructure:"cli_path"`
	// Timeout bounds a single invocation.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxOutputBytes caps captured stdout/stderr; exceeding it fails the call.
	MaxOutputBytes int `mapstructure:"max_output_bytes"`
	// NoisePatterns are substrings of stderr lines that are dropped before logging.
	NoisePatterns []string `mapstructure:"noise_patterns"`
}

// DocsConfig points at the documentation lookup service.
type DocsConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RegistryConfig points at the package registry used for version pinning.
type RegistryConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects where planning contexts are persisted.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
	// Watch evicts cached contexts when their files change on disk.
	Watch bool `mapstructure:"watch"`
}

// LoggingConfig controls the stderr logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	// Addr is a listen address such as ":9464". Empty disables the listener.
	Addr string `mapstructure:"addr"`
}

// EventsConfig controls publishing of context change events.
type EventsConfig struct {
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// UpdaterConfig controls the self-update command.
type UpdaterConfig struct {
	Repo string `mapstructure:"repo"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Gemini: GeminiConfig{
			APIKeyEnv:      "GEMINI_API_KEY",
			CLIPath:        "gemini",
			Timeout:        60 * time.Second,
			MaxOutputBytes: 10 * 1024 * 1024,
			NoisePatterns:  []string{"DEP0040", "punycode", "trace-deprecation"},
		},
		Docs: DocsConfig{
			URL:     "https://mcp.context7.com/mcp",
			Timeout: 30 * time.Second,
		},
		Registry: RegistryConfig{
			URL:     "https://registry.npmjs.org",
			Timeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver: DriverFile,
			Dir:    "./contexts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Events: EventsConfig{
			SubjectPrefix: "planner.context",
		},
		Updater: UpdaterConfig{
			Repo: "HendryAvila/gemini-planner",
		},
	}
}

// legacyEnv maps config keys to the unprefixed variables older setups export.
var legacyEnv = map[string]string{
	"gemini.model":    "GEMINI_MODEL",
	"gemini.api_key":  "GEMINI_API_KEY",
	"gemini.cli_path": "GEMINI_CLI_PATH",
	"docs.url":        "CONTEXT7_URL",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("gemini.model", d.Gemini.Model)
	v.SetDefault("gemini.api_key", d.Gemini.APIKey)
	v.SetDefault("gemini.api_key_env", d.Gemini.APIKeyEnv)
	v.SetDefault("gemini.cli_path", d.Gemini.CLIPath)
	v.SetDefault("gemini.timeout", d.Gemini.Timeout)
	v.SetDefault("gemini.max_output_bytes", d.Gemini.MaxOutputBytes)
	v.SetDefault("gemini.noise_patterns", d.Gemini.NoisePatterns)

	v.SetDefault("docs.url", d.Docs.URL)
	v.SetDefault("docs.timeout", d.Docs.Timeout)

	v.SetDefault("registry.url", d.Registry.URL)
	v.SetDefault("registry.timeout", d.Registry.Timeout)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("storage.watch", d.Storage.Watch)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetDefault("events.nats_url", d.Events.NATSURL)
	v.SetDefault("events.subject_prefix", d.Events.SubjectPrefix)

	v.SetDefault("updater.repo", d.Updater.Repo)
}

// NewViper builds a viper instance with defaults, environment bindings and,
// when present, the config file. An explicit cfgFile that cannot be read is
// an error; a missing default config file is not.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("PLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "PLANNER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(Dir())
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Gemini.CLIPath == "" {
		errs = append(errs, errors.New("gemini.cli_path must not be empty"))
	}
	if c.Gemini.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("gemini.timeout must be positive, got %s", c.Gemini.Timeout))
	}
	if c.Gemini.MaxOutputBytes <= 0 {
		errs = append(errs, fmt.Errorf("gemini.max_output_bytes must be positive, got %d", c.Gemini.MaxOutputBytes))
	}
	if c.Docs.URL == "" {
		errs = append(errs, errors.New("docs.url must not be empty"))
	}
	if c.Registry.URL == "" {
		errs = append(errs, errors.New("registry.url must not be empty"))
	}
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q: must be one of: file, sqlite", c.Storage.Driver))
	}
	if c.Storage.Dir == "" {
		errs = append(errs, errors.New("storage.dir must not be empty"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: must be text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// RequireModel is the extra check the MCP server needs before starting;
// the CLI viewer commands work without a model.
func (c *Config) RequireModel() error {
	if strings.TrimSpace(c.Gemini.Model) == "" {
		return errors.New("gemini.model is required: set GEMINI_MODEL or PLANNER_GEMINI_MODEL")
	}
	return nil
}

// Dir returns the per-user config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gemini-planner")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gemini-planner"
	}
	return filepath.Join(home, ".config", "gemini-planner")
}
