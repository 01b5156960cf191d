package config

import (
	"strings"
	"time"

	"github.com/marmos91/cape/internal/bytesize"
)

const (
	// DefaultPort is the TCP port the server listens on when none is
	// configured.
	DefaultPort = 4040

	// DefaultTimeout is the session-inactivity timeout in seconds.
	DefaultTimeout = 60

	// DefaultShutdownTimeout bounds how long shutdown waits for the
	// worker pool to drain.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMetricsPort is where the optional /metrics endpoint listens.
	DefaultMetricsPort = 9090
)

// ApplyDefaults fills in any zero-valued configuration fields and
// normalizes values. Explicitly-set values are preserved.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)
	applyLimitsDefaults(&cfg.Limits)
	applyMetricsDefaults(&cfg.Metrics)
	// Pool zero values are intentional: the server derives worker count
	// from the CPU count when Workers is 0.
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyLimitsDefaults(cfg *LimitsConfig) {
	if cfg.MaxUsernameLen == 0 {
		cfg.MaxUsernameLen = 20
	}
	if cfg.MaxPasswordLen == 0 {
		cfg.MaxPasswordLen = 32
	}
	if cfg.MaxPathLen == 0 {
		cfg.MaxPathLen = 4096
	}
	if cfg.MaxStream == 0 {
		cfg.MaxStream = bytesize.GiB
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}
