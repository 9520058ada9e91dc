package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig  = "PCLOUD_GO_CONFIG"
	EnvAccount = "PCLOUD_GO_ACCOUNT"
	EnvHost    = "PCLOUD_GO_HOST"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // PCLOUD_GO_CONFIG: override config file path
	Account    string // PCLOUD_GO_ACCOUNT: account to act as
	Host       string // PCLOUD_GO_HOST: API host
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Account:    os.Getenv(EnvAccount),
		Host:       os.Getenv(EnvHost),
	}
}
