// Package config provides configuration management for txtwatch.
//
// Configuration is loaded from three sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (TXTWATCH_ prefix)
//  3. Config file (.txtwatch.yaml)
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Defaults for the watch pipeline.
const (
	DefaultSettleDelay   = 300 * time.Millisecond
	DefaultRetryAttempts = 10
	DefaultRetryBackoff  = 100 * time.Millisecond
	DefaultRenameWindow  = 100 * time.Millisecond
	DefaultExtension     = ".txt"
)

// Config represents the global configuration for txtwatch.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat"`

	// LogFile sends logs to a rotating file instead of stderr.
	LogFile string `mapstructure:"log-file" json:"logFile"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" json:"noColor"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet"`

	// SettleDelay is the wait between a change event and the re-read.
	SettleDelay time.Duration `mapstructure:"settle-delay" json:"settleDelay"`

	// RetryAttempts is the total number of reads tried on a locked file.
	RetryAttempts int `mapstructure:"retry-attempts" json:"retryAttempts"`

	// RetryBackoff is the wait between read attempts.
	RetryBackoff time.Duration `mapstructure:"retry-backoff" json:"retryBackoff"`

	// RenameWindow pairs a rename's old and new name events.
	RenameWindow time.Duration `mapstructure:"rename-window" json:"renameWindow"`

	// Extension filters the file picker, including the leading dot.
	Extension string `mapstructure:"extension" json:"extension"`

	// MaxLogEntries bounds the change log. Zero keeps everything.
	MaxLogEntries int `mapstructure:"max-log-entries" json:"maxLogEntries"`

	// ConfigFile is the resolved path to the config file used.
	// Set after Load(), not read from config itself.
	ConfigFile string `mapstructure:"-" json:"-"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:      LogLevelInfo,
		LogFormat:     LogFormatText,
		SettleDelay:   DefaultSettleDelay,
		RetryAttempts: DefaultRetryAttempts,
		RetryBackoff:  DefaultRetryBackoff,
		RenameWindow:  DefaultRenameWindow,
		Extension:     DefaultExtension,
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	if c.RetryAttempts < 1 {
		return fmt.Errorf("invalid retry attempts %d: must be at least 1", c.RetryAttempts)
	}

	for name, d := range map[string]time.Duration{
		"settle delay":  c.SettleDelay,
		"retry backoff": c.RetryBackoff,
		"rename window": c.RenameWindow,
	} {
		if d < 0 {
			return fmt.Errorf("invalid %s %s: must not be negative", name, d)
		}
	}

	if c.MaxLogEntries < 0 {
		return fmt.Errorf("invalid max log entries %d: must not be negative", c.MaxLogEntries)
	}

	if !strings.HasPrefix(c.Extension, ".") || len(c.Extension) < 2 {
		return fmt.Errorf("invalid extension %q: must start with a dot, e.g. .txt", c.Extension)
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// Load initialises configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so that
// Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("log-file", "")
	v.SetDefault("no-color", false)
	v.SetDefault("quiet", false)
	v.SetDefault("settle-delay", d.SettleDelay)
	v.SetDefault("retry-attempts", d.RetryAttempts)
	v.SetDefault("retry-backoff", d.RetryBackoff)
	v.SetDefault("rename-window", d.RenameWindow)
	v.SetDefault("extension", d.Extension)
	v.SetDefault("max-log-entries", 0)
}

func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("TXTWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	v.SetConfigName(".txtwatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "txtwatch"))
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file found is fine in auto-discovery.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}

		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
