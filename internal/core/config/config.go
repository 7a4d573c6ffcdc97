// Package config handles configuration loading and validation for pulse.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deskwire/pulse/internal/core/styles"
)

// Config holds the application configuration.
type Config struct {
	// APIOrigin is the base origin of the support-desk REST API.
	APIOrigin string `yaml:"api_origin"`
	// SocketOrigin is the origin of the real-time WebSocket endpoint.
	// The connection path below the origin is fixed by the protocol.
	SocketOrigin string `yaml:"socket_origin"`

	Auth   AuthConfig   `yaml:"auth"`
	Store  StoreConfig  `yaml:"store"`
	Dedup  DedupConfig  `yaml:"dedup"`
	Socket SocketConfig `yaml:"socket"`
	Toast  ToastConfig  `yaml:"toast"`
	TUI    TUIConfig    `yaml:"tui"`

	DataDir string `yaml:"-"` // set by caller, not from config file
}

// AuthConfig names the environment variables holding credentials so
// tokens never live in the config file itself.
type AuthConfig struct {
	TokenEnv        string `yaml:"token_env"`
	RefreshTokenEnv string `yaml:"refresh_token_env"`
}

// Token reads the bearer token from the configured environment variable.
func (a AuthConfig) Token() string {
	return os.Getenv(a.TokenEnv)
}

// RefreshToken reads the refresh token from the configured environment variable.
func (a AuthConfig) RefreshToken() string {
	return os.Getenv(a.RefreshTokenEnv)
}

// StoreConfig bounds the local notification cache.
type StoreConfig struct {
	// MaxEntries is the hard cap on retained records.
	MaxEntries int `yaml:"max_entries"`
	// ReadTTL is how long read records are retained before becoming
	// eviction candidates.
	ReadTTL Duration `yaml:"read_ttl"`
}

// DedupConfig tunes the duplicate-suppression filter.
type DedupConfig struct {
	// Window suppresses notifications with an identical fingerprint
	// accepted within this interval.
	Window Duration `yaml:"window"`
	// ThrottleWindow collapses identical rapid repeats into a counted
	// message instead of suppressing them.
	ThrottleWindow Duration `yaml:"throttle_window"`
	// PurgeAfter bounds fingerprint bookkeeping memory.
	PurgeAfter Duration `yaml:"purge_after"`
}

// SocketConfig tunes the connection manager.
type SocketConfig struct {
	ConnectTimeout     Duration `yaml:"connect_timeout"`
	RetryDelay         Duration `yaml:"retry_delay"`
	BackoffBase        Duration `yaml:"backoff_base"`
	BackoffCap         Duration `yaml:"backoff_cap"`
	MaxJitter          Duration `yaml:"max_jitter"`
	MaxReconnects      int      `yaml:"max_reconnects"`
	NavigationDebounce Duration `yaml:"navigation_debounce"`
}

// ToastConfig tunes transient notification display.
type ToastConfig struct {
	// Duration is the default auto-dismiss interval for toasts that do
	// not carry their own.
	Duration Duration `yaml:"duration"`
	// MaxVisible caps the toast stack; older toasts are evicted first.
	MaxVisible int `yaml:"max_visible"`
}

// TUIConfig selects display options for the terminal UI.
type TUIConfig struct {
	Theme string `yaml:"theme"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Auth: AuthConfig{
			TokenEnv:        "PULSE_TOKEN",
			RefreshTokenEnv: "PULSE_REFRESH_TOKEN",
		},
		Store: StoreConfig{
			MaxEntries: 100,
			ReadTTL:    Duration(7 * 24 * time.Hour),
		},
		Dedup: DedupConfig{
			Window:         Duration(3 * time.Second),
			ThrottleWindow: Duration(500 * time.Millisecond),
			PurgeAfter:     Duration(10 * time.Second),
		},
		Socket: SocketConfig{
			ConnectTimeout:     Duration(30 * time.Second),
			RetryDelay:         Duration(3 * time.Second),
			BackoffBase:        Duration(time.Second),
			BackoffCap:         Duration(30 * time.Second),
			MaxJitter:          Duration(time.Second),
			MaxReconnects:      10,
			NavigationDebounce: Duration(300 * time.Millisecond),
		},
		Toast: ToastConfig{
			Duration:   Duration(5 * time.Second),
			MaxVisible: 5,
		},
		TUI: TUIConfig{
			Theme: styles.DefaultTheme,
		},
	}
}

// Load reads the config file at path, applying defaults for anything
// unset. A missing file is not an error; defaults are returned.
func Load(path string, dataDir string) (*Config, error) {
	cfg := Default()
	cfg.DataDir = dataDir

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot
// operate with.
func (c *Config) Validate() error {
	if c.Store.MaxEntries <= 0 {
		return fmt.Errorf("store.max_entries must be positive, got %d", c.Store.MaxEntries)
	}
	if c.Socket.MaxReconnects <= 0 {
		return fmt.Errorf("socket.max_reconnects must be positive, got %d", c.Socket.MaxReconnects)
	}
	if c.Dedup.Window <= 0 {
		return fmt.Errorf("dedup.window must be positive, got %s", c.Dedup.Window)
	}
	if c.Dedup.ThrottleWindow > c.Dedup.Window {
		return fmt.Errorf("dedup.throttle_window (%s) must not exceed dedup.window (%s)", c.Dedup.ThrottleWindow, c.Dedup.Window)
	}
	if c.Socket.BackoffBase <= 0 || c.Socket.BackoffCap < c.Socket.BackoffBase {
		return fmt.Errorf("socket backoff base/cap invalid: base=%s cap=%s", c.Socket.BackoffBase, c.Socket.BackoffCap)
	}
	if _, ok := styles.GetPalette(c.TUI.Theme); !ok {
		return fmt.Errorf("unknown tui.theme %q, valid themes: %s", c.TUI.Theme, strings.Join(styles.ThemeNames(), ", "))
	}
	return nil
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "3s" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
