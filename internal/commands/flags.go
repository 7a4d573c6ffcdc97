// Package commands implements the pulse CLI subcommands.
package commands

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/deskwire/pulse/internal/core/config"
	"github.com/deskwire/pulse/internal/rest"
	"github.com/deskwire/pulse/internal/store/jsonfile"
)

// requestTimeout bounds one REST round trip.
const requestTimeout = 15 * time.Second

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// Store opens the local notification cache under the data directory.
func (f *Flags) Store() *jsonfile.Store {
	cfg := f.Config
	return jsonfile.New(cfg.DataDir, cfg.Store.MaxEntries, cfg.Store.ReadTTL.Std())
}

// REST creates a client for the support-desk API, reading the bearer
// token per request.
func (f *Flags) REST() *rest.Client {
	cfg := f.Config
	return rest.NewClient(cfg.APIOrigin, requestTimeout, cfg.Auth.Token)
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "pulse", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "pulse")
}

// DefaultLogFile returns the default log file path using the system's state directory.
// On macOS: ~/Library/Logs/pulse/pulse.log
// On Linux: $XDG_STATE_HOME/pulse/pulse.log (defaults to ~/.local/state/pulse/pulse.log)
func DefaultLogFile() string {
	// Check XDG_STATE_HOME first (works on both macOS and Linux)
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome != "" {
		return filepath.Join(stateHome, "pulse", "pulse.log")
	}

	home, _ := os.UserHomeDir()

	// On macOS, use ~/Library/Logs
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", "pulse", "pulse.log")
	}

	// On Linux, use ~/.local/state
	return filepath.Join(home, ".local", "state", "pulse", "pulse.log")
}
