package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/pcloud-go/internal/config"
)

func resolvedWithLogging(level, format string) *config.Resolved {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = level
	cfg.Logging.Format = format

	return &config.Resolved{Config: *cfg}
}

func TestBuildLogger_Default(t *testing.T) {
	logger := buildLogger(nil, CLIFlags{}, &bytes.Buffer{})

	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_ConfigLevel(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		below   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := buildLogger(resolvedWithLogging(tt.level, "text"), CLIFlags{}, &bytes.Buffer{})

			assert.True(t, logger.Enabled(context.Background(), tt.enabled))
			assert.False(t, logger.Enabled(context.Background(), tt.below))
		})
	}
}

func TestBuildLogger_VerboseOverrides(t *testing.T) {
	logger := buildLogger(resolvedWithLogging("error", "text"), CLIFlags{Verbose: true}, &bytes.Buffer{})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_QuietOverrides(t *testing.T) {
	logger := buildLogger(resolvedWithLogging("debug", "text"), CLIFlags{Quiet: true}, &bytes.Buffer{})

	assert.False(t, logger.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestBuildLogger_Format(t *testing.T) {
	var text, js bytes.Buffer

	buildLogger(resolvedWithLogging("info", "text"), CLIFlags{}, &text).Info("hello", "k", "v")
	buildLogger(resolvedWithLogging("info", "json"), CLIFlags{}, &js).Info("hello", "k", "v")

	assert.Contains(t, text.String(), "msg=hello k=v")
	assert.Contains(t, js.String(), `"msg":"hello"`)
}

func TestUseTextFormat_AutoOnNonTerminal(t *testing.T) {
	assert.False(t, useTextFormat("auto", &bytes.Buffer{}))

	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, useTextFormat("auto", f))
	assert.True(t, useTextFormat("text", f))
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	for _, want := range []string{"login", "logout", "whoami", "ls", "stat", "mkdir", "rm", "get", "put"} {
		assert.Contains(t, names, want)
	}
}

func TestNewRootCmd_PersistentFlags(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"config", "account", "host", "json", "verbose", "quiet"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestLoadConfig_UnknownKeyFails(t *testing.T) {
	env := newCLIEnv(t, "127.0.0.1:1", "[transfers]\nparalel = 2\n")

	_, _, err := env.run(nil, "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
	assert.Contains(t, err.Error(), `unknown config key "transfers.paralel", did you mean "transfers.parallel"?`)
}

func TestLoadConfig_HostFlagOverrides(t *testing.T) {
	srv := newFakeAPI(t, "tok")
	srv.handleJSON("userinfo", `{"result":0,"userid":42,"email":"me@example.com"}`)

	env := newCLIEnv(t, "127.0.0.1:1", "")
	env.login("42", "tok")

	out, _, err := env.run(nil, "--host", srv.host(), "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "me@example.com")
}

func TestUsageError_IsDetectable(t *testing.T) {
	err := errors.Join(errors.New("context"), usageError{msg: "bad flag"})

	var ue usageError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "bad flag", ue.Error())
}

func TestMustCLIContext_PanicsWithoutPreRun(t *testing.T) {
	assert.Panics(t, func() { mustCLIContext(context.Background()) })
}
