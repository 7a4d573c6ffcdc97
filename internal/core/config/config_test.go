package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/deskwire/pulse/internal/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pulse.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"), "/data")
	require.NoError(t, err)

	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, 100, cfg.Store.MaxEntries)
	assert.Equal(t, 3*time.Second, cfg.Dedup.Window.Std())
	assert.Equal(t, 10, cfg.Socket.MaxReconnects)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
api_origin: https://api.example.test
socket_origin: wss://rt.example.test
store:
  max_entries: 50
dedup:
  window: 5s
  throttle_window: 250ms
socket:
  connect_timeout: 10s
  max_reconnects: 4
`)

	cfg, err := config.Load(path, "/data")
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.test", cfg.APIOrigin)
	assert.Equal(t, 50, cfg.Store.MaxEntries)
	assert.Equal(t, 5*time.Second, cfg.Dedup.Window.Std())
	assert.Equal(t, 250*time.Millisecond, cfg.Dedup.ThrottleWindow.Std())
	assert.Equal(t, 10*time.Second, cfg.Socket.ConnectTimeout.Std())
	assert.Equal(t, 4, cfg.Socket.MaxReconnects)

	// Untouched sections keep defaults.
	assert.Equal(t, 7*24*time.Hour, cfg.Store.ReadTTL.Std())
	assert.Equal(t, 5, cfg.Toast.MaxVisible)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "dedup:\n  window: three-seconds\n")

	_, err := config.Load(path, "/data")
	assert.ErrorContains(t, err, "parse duration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*config.Config) {},
		},
		{
			name:    "zero cap",
			mutate:  func(c *config.Config) { c.Store.MaxEntries = 0 },
			wantErr: "max_entries",
		},
		{
			name:    "zero reconnects",
			mutate:  func(c *config.Config) { c.Socket.MaxReconnects = 0 },
			wantErr: "max_reconnects",
		},
		{
			name: "throttle wider than dedup window",
			mutate: func(c *config.Config) {
				c.Dedup.ThrottleWindow = config.Duration(5 * time.Second)
			},
			wantErr: "throttle_window",
		},
		{
			name: "cap below base",
			mutate: func(c *config.Config) {
				c.Socket.BackoffCap = config.Duration(time.Millisecond)
			},
			wantErr: "backoff",
		},
		{
			name:    "unknown theme",
			mutate:  func(c *config.Config) { c.TUI.Theme = "solarized-disco" },
			wantErr: "tui.theme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAuthConfig_ReadsEnv(t *testing.T) {
	t.Setenv("PULSE_TEST_TOKEN", "tok-123")

	auth := config.AuthConfig{TokenEnv: "PULSE_TEST_TOKEN"}
	assert.Equal(t, "tok-123", auth.Token())
}
