package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Validation range constants.
const (
	minParallel       = 1
	maxParallel       = 32
	maxRetriesLimit   = 10
	minConnectTimeout = 1 * time.Second
	minDataTimeout    = 5 * time.Second
)

var (
	validStores     = []string{StoreFile, StoreSQLite, StoreMemory}
	validSchemes    = []string{"https", "http"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"auto", "text", "json"}
)

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateTransfers(&cfg.Transfers)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	errs = append(errs, validateOneOf("auth.store", a.Store, validStores)...)

	if a.Account != "" {
		if _, err := strconv.ParseUint(a.Account, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("auth.account: must be a numeric user id, got %q", a.Account))
		}
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	if n.Host == "" {
		errs = append(errs, errors.New("network.host: must not be empty"))
	}

	errs = append(errs, validateOneOf("network.scheme", n.Scheme, validSchemes)...)
	errs = append(errs, validateDuration("network.connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDuration("network.data_timeout", n.DataTimeout, minDataTimeout)...)

	if n.MaxRetries < 0 || n.MaxRetries > maxRetriesLimit {
		errs = append(errs, fmt.Errorf("network.max_retries: must be between 0 and %d, got %d",
			maxRetriesLimit, n.MaxRetries))
	}

	return errs
}

func validateTransfers(t *TransfersConfig) []error {
	if t.Parallel < minParallel || t.Parallel > maxParallel {
		return []error{fmt.Errorf("transfers.parallel: must be between %d and %d, got %d",
			minParallel, maxParallel, t.Parallel)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateOneOf("logging.level", l.Level, validLogLevels)...)
	errs = append(errs, validateOneOf("logging.format", l.Format, validLogFormats)...)

	return errs
}

func validateDuration(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateOneOf(field, value string, valid []string) []error {
	for _, v := range valid {
		if v == value {
			return nil
		}
	}

	return []error{fmt.Errorf("%s: must be one of %v; got %q", field, valid, value)}
}
