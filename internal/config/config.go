// Package config loads Cape's server configuration from (in ascending
// precedence) built-in defaults, an optional YAML file, CAPE_* environment
// variables, and CLI flags applied by the command layer.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/cape/internal/bytesize"
	"github.com/marmos91/cape/internal/capeproto"
)

// Config represents the Cape server configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority, applied by cmd/capesrv)
//  2. Environment variables (CAPE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Server holds the listener, timeout, and home-directory settings.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Limits bounds every variable-length wire field.
	Limits LimitsConfig `mapstructure:"limits" yaml:"limits"`

	// Pool sizes the worker pool and its bounded job queue.
	Pool PoolConfig `mapstructure:"pool" yaml:"pool"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig holds the core server settings supplied by the operator.
type ServerConfig struct {
	// Port is the TCP port the acceptor binds on all interfaces.
	Port int `mapstructure:"port" yaml:"port"`

	// Timeout is the session-inactivity timeout in seconds, also used as
	// the per-connection read deadline. Bounded to 255 by the wire
	// protocol's single-byte timeout representation.
	Timeout int `mapstructure:"timeout" yaml:"timeout"`

	// Home is the directory all client paths are confined to.
	Home string `mapstructure:"home" yaml:"home"`

	// ShutdownTimeout is the maximum time to wait for in-flight and
	// queued requests to drain on shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// TimeoutDuration returns the session timeout as a time.Duration.
func (s ServerConfig) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// LimitsConfig bounds the wire protocol's variable-length fields.
// MaxStream accepts human-readable sizes like "1Gi" or "512Mi".
type LimitsConfig struct {
	MaxUsernameLen int               `mapstructure:"max_username_len" yaml:"max_username_len"`
	MaxPasswordLen int               `mapstructure:"max_password_len" yaml:"max_password_len"`
	MaxPathLen     int               `mapstructure:"max_path_len" yaml:"max_path_len"`
	MaxStream      bytesize.ByteSize `mapstructure:"max_stream" yaml:"max_stream"`
}

// Wire converts the configured limits into the codec's Limits value.
func (l LimitsConfig) Wire() capeproto.Limits {
	return capeproto.Limits{
		MaxUsernameLen: l.MaxUsernameLen,
		MaxPasswordLen: l.MaxPasswordLen,
		MaxPathLen:     l.MaxPathLen,
		MaxStreamLen:   l.MaxStream.Uint64(),
	}
}

// PoolConfig sizes the worker pool. Zero values mean "derive from the
// host's CPU count" (see pool.DefaultConfig).
type PoolConfig struct {
	Workers   int `mapstructure:"workers" yaml:"workers"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults. It does
// not validate: the command layer applies CLI flags on top of the loaded
// value first, then calls Validate. configPath may be empty, in which
// case only defaults and environment variables apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// setupViper configures environment variable support and the config file
// location. Environment variables use the CAPE_ prefix with underscores,
// e.g. CAPE_LOGGING_LEVEL=DEBUG or CAPE_SERVER_PORT=4040.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	// AutomaticEnv only resolves keys viper already knows about, so every
	// key gets its default registered here. ApplyDefaults still runs after
	// unmarshal to normalize values (e.g. log level casing).
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.timeout", DefaultTimeout)
	v.SetDefault("server.home", "")
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("limits.max_username_len", 20)
	v.SetDefault("limits.max_password_len", 32)
	v.SetDefault("limits.max_path_len", 4096)
	v.SetDefault("limits.max_stream", "1Gi")
	v.SetDefault("pool.workers", 0)
	v.SetDefault("pool.queue_size", 0)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}

// readConfigFile reads the config file if one was specified; a missing
// file at an explicit path is an error, no path at all is not.
func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath == "" {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("configuration file not found: %s", configPath)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// configDecodeHooks returns the combined decode hook for custom types:
// human-readable byte sizes and duration strings.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize,
// so config files can say "1Gi" or "500MB" rather than raw byte counts.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch val := data.(type) {
		case string:
			return bytesize.ParseByteSize(val)
		case int:
			return bytesize.ByteSize(val), nil
		case int64:
			return bytesize.ByteSize(val), nil
		case uint64:
			return bytesize.ByteSize(val), nil
		case float64:
			return bytesize.ByteSize(val), nil
		default:
			return data, nil
		}
	}
}

// Validate rejects configurations the server could not safely run with.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", cfg.Server.Port)
	}
	if cfg.Server.Timeout < 1 || cfg.Server.Timeout > 255 {
		return fmt.Errorf("server.timeout must be in [1, 255] seconds, got %d", cfg.Server.Timeout)
	}
	if cfg.Server.Home == "" {
		return fmt.Errorf("server.home is required")
	}
	switch strings.ToUpper(cfg.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR, got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}
	if cfg.Limits.MaxUsernameLen < 1 || cfg.Limits.MaxPasswordLen < 1 || cfg.Limits.MaxPathLen < 1 {
		return fmt.Errorf("limits must all be positive")
	}
	if cfg.Limits.MaxStream == 0 {
		return fmt.Errorf("limits.max_stream must be positive")
	}
	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be in [1, 65535], got %d", cfg.Metrics.Port)
	}
	return nil
}
