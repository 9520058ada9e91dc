package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/tonimelisma/pcloud-go/internal/config"
	"github.com/tonimelisma/pcloud-go/internal/credstore"
	"github.com/tonimelisma/pcloud-go/internal/task"
	"github.com/tonimelisma/pcloud-go/internal/transport"
)

// errNotLoggedIn is returned when no stored credential matches the account.
var errNotLoggedIn = errors.New("not logged in; run 'pcloud-go login' first")

// Session bundles what authenticated commands need: the task controller and
// the credential store it was authenticated from.
type Session struct {
	Ctrl    *task.Controller
	Store   credstore.Store
	Account string
	Scheme  string

	closeStore func() error
}

// Close releases the credential store.
func (s *Session) Close() error {
	if s.closeStore == nil {
		return nil
	}

	return s.closeStore()
}

// openStore opens the configured credential store. The returned func closes
// it.
func openStore(ctx context.Context, cfg *config.Resolved, logger *slog.Logger) (credstore.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Auth.Store {
	case config.StoreMemory:
		return &credstore.MemoryStore{}, noop, nil
	case config.StoreSQLite:
		s, err := credstore.OpenSQLite(ctx, config.CredentialsPath(config.StoreSQLite), logger)
		if err != nil {
			return nil, nil, err
		}

		return s, s.Close, nil
	default:
		return credstore.NewFileStore(config.CredentialsPath(config.StoreFile)), noop, nil
	}
}

// resolveAccount picks the store key to act as: the configured account, or
// the only stored one.
func resolveAccount(store credstore.Store, account string) (string, error) {
	if account != "" {
		return account, nil
	}

	keys, err := store.Keys()
	if err != nil {
		return "", fmt.Errorf("listing stored accounts: %w", err)
	}

	switch len(keys) {
	case 0:
		return "", errNotLoggedIn
	case 1:
		return keys[0], nil
	default:
		slices.SortFunc(keys, compareAccounts)

		return "", fmt.Errorf("several accounts are logged in (%s); choose one with --account",
			strings.Join(keys, ", "))
	}
}

// compareAccounts orders numeric user IDs by value and anything else
// after them, lexically.
func compareAccounts(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)

	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// newHTTPClient builds the HTTP client from network settings. data_timeout
// bounds the wait for response headers, not the whole transfer.
func newHTTPClient(cfg *config.Resolved) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			ResponseHeaderTimeout: cfg.DataTimeout,
			ForceAttemptHTTP2:     true,
		},
	}
}

// newController wires a Transport into a task Controller. auth may be nil
// for unauthenticated use.
func newController(cfg *config.Resolved, auth task.Authenticator, logger *slog.Logger) *task.Controller {
	retries := cfg.Network.MaxRetries
	if retries == 0 {
		retries = -1
	}

	tr := transport.New(newHTTPClient(cfg), transport.Options{
		Scheme:     cfg.Network.Scheme,
		UserAgent:  cfg.Network.UserAgent,
		MaxRetries: retries,
	}, logger)

	ctrl := task.NewController(
		task.StaticHost(cfg.Network.Host),
		auth,
		task.Dispatchers{Call: tr.Call, Upload: tr.Upload, Download: tr.Download},
		logger,
	)

	if dir := config.DownloadTempDir(); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err == nil {
			ctrl = ctrl.WithTempDir(dir)
		} else {
			logger.Warn("using system temp dir for downloads", slog.String("error", err.Error()))
		}
	}

	return ctrl
}

// openSession loads the account's token and returns an authenticated
// Session. Close it when done.
func openSession(ctx context.Context, cc *CLIContext) (*Session, error) {
	store, closeStore, err := openStore(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return nil, err
	}

	account, err := resolveAccount(store, cc.Cfg.Auth.Account)
	if err != nil {
		closeStore()
		return nil, err
	}

	token, err := store.Get(account)
	if errors.Is(err, credstore.ErrNotFound) {
		closeStore()
		return nil, fmt.Errorf("account %s: %w", account, errNotLoggedIn)
	}

	if err != nil {
		closeStore()
		return nil, err
	}

	cc.Logger.Debug("session opened", slog.String("account", account))

	return &Session{
		Ctrl:       newController(cc.Cfg, task.TokenAuth(token), cc.Logger),
		Store:      store,
		Account:    account,
		Scheme:     cc.Cfg.Network.Scheme,
		closeStore: closeStore,
	}, nil
}
