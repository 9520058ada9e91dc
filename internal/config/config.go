// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for pcloud-go. Values resolve through a
// four-layer override chain: defaults -> config file -> environment -> CLI
// flags.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth      AuthConfig      `toml:"auth"`
	Network   NetworkConfig   `toml:"network"`
	Transfers TransfersConfig `toml:"transfers"`
	Logging   LoggingConfig   `toml:"logging"`
}

// AuthConfig names the OAuth client, the account to act as, and where
// credentials are stored.
type AuthConfig struct {
	ClientID string `toml:"client_id"`
	Account  string `toml:"account"` // decimal user id; empty = the only stored account
	Store    string `toml:"store"`   // "file", "sqlite" or "memory"
}

// NetworkConfig controls the API endpoint and HTTP client behavior.
type NetworkConfig struct {
	Host           string `toml:"host"`
	Scheme         string `toml:"scheme"`
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent"`
	MaxRetries     int    `toml:"max_retries"`
}

// TransfersConfig controls how many files get/put move at once.
type TransfersConfig struct {
	Parallel int `toml:"parallel"`
}

// LoggingConfig controls log level and output format.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Empty strings mean "not specified".
type CLIOverrides struct {
	ConfigPath string // --config
	Account    string // --account
	Host       string // --host
}

// Resolved is a fully merged and validated configuration with its durations
// parsed.
type Resolved struct {
	Config

	ConfigPath     string
	ConnectTimeout time.Duration
	DataTimeout    time.Duration
}
