package config

// Default values for configuration options. These are layer 0 of the
// override chain.
const (
	defaultStore          = StoreFile
	defaultHost           = "api.pcloud.com"
	defaultScheme         = "https"
	defaultConnectTimeout = "10s"
	defaultDataTimeout    = "60s"
	defaultMaxRetries     = 5
	defaultParallel       = 4
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
)

// Credential store kinds.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			Store: defaultStore,
		},
		Network: NetworkConfig{
			Host:           defaultHost,
			Scheme:         defaultScheme,
			ConnectTimeout: defaultConnectTimeout,
			DataTimeout:    defaultDataTimeout,
			MaxRetries:     defaultMaxRetries,
		},
		Transfers: TransfersConfig{
			Parallel: defaultParallel,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
