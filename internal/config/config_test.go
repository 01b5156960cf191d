package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cape/internal/bytesize"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "server:\n  home: /srv/cape\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultTimeout, cfg.Server.Timeout)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 20, cfg.Limits.MaxUsernameLen)
	assert.Equal(t, 32, cfg.Limits.MaxPasswordLen)
	assert.Equal(t, bytesize.GiB, cfg.Limits.MaxStream)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 5050
  timeout: 120
  home: /srv/cape
logging:
  level: debug
  format: json
limits:
  max_stream: 512Mi
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Server.Timeout)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 512*bytesize.MiB, cfg.Limits.MaxStream)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("CAPE_SERVER_PORT", "6060")
	t.Setenv("CAPE_LOGGING_LEVEL", "ERROR")

	path := writeConfigFile(t, "server:\n  port: 5050\n  home: /srv/cape\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
}

func TestValidateRejectsMissingHome(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 5050\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsOutOfRangeTimeout(t *testing.T) {
	path := writeConfigFile(t, "server:\n  home: /srv/cape\n  timeout: 300\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Error(t, Validate(cfg))
}

func TestLoadRejectsMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWireLimits(t *testing.T) {
	l := LimitsConfig{MaxUsernameLen: 20, MaxPasswordLen: 32, MaxPathLen: 4096, MaxStream: bytesize.GiB}
	wire := l.Wire()
	assert.Equal(t, 20, wire.MaxUsernameLen)
	assert.Equal(t, uint64(1<<30), wire.MaxStreamLen)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	path := writeConfigFile(t, "server:\n  home: /srv/cape\nlogging:\n  level: verbose\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Error(t, Validate(cfg))
}
