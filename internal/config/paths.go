package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "pcloud-go"

const (
	configFileName     = "config.toml"
	credentialsFile    = "credentials.json"
	credentialsDBFile  = "credentials.db"
	downloadTempSubdir = "partial"
)

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/pcloud-go).
// On macOS, uses ~/Library/Application Support/pcloud-go.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_CONFIG_HOME", home, ".config")
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultDataDir returns the platform-specific directory for credentials and
// partial downloads. On Linux, respects XDG_DATA_HOME (defaults to
// ~/.local/share/pcloud-go). macOS collapses config and data into one
// directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_DATA_HOME", home, filepath.Join(".local", "share"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

func xdgDir(envVar, home, fallback string) string {
	if xdg := os.Getenv(envVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, fallback, appName)
}

// DefaultConfigPath returns the full path to the default config file, used
// when neither PCLOUD_GO_CONFIG nor --config is given.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// CredentialsPath returns where a store of the given kind keeps its data.
// The memory store has no path.
func CredentialsPath(store string) string {
	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}

	switch store {
	case StoreFile:
		return filepath.Join(dir, credentialsFile)
	case StoreSQLite:
		return filepath.Join(dir, credentialsDBFile)
	default:
		return ""
	}
}

// DownloadTempDir returns the directory partial downloads are staged in.
func DownloadTempDir() string {
	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, downloadTempSubdir)
}
