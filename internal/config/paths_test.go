package config

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaths_XDG(t *testing.T) {
	if runtime.GOOS != platformLinux {
		t.Skip("XDG variables only apply on Linux")
	}

	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	assert.Equal(t, filepath.Join("/xdg/config", appName, configFileName), DefaultConfigPath())
	assert.Equal(t, filepath.Join("/xdg/data", appName, credentialsFile), CredentialsPath(StoreFile))
	assert.Equal(t, filepath.Join("/xdg/data", appName, credentialsDBFile), CredentialsPath(StoreSQLite))
	assert.Equal(t, filepath.Join("/xdg/data", appName, downloadTempSubdir), DownloadTempDir())
	assert.Empty(t, CredentialsPath(StoreMemory))
}

func TestPaths_HomeFallback(t *testing.T) {
	if runtime.GOOS != platformLinux {
		t.Skip("Linux layout")
	}

	t.Setenv("HOME", "/home/u")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")

	assert.Equal(t, "/home/u/.config/pcloud-go", DefaultConfigDir())
	assert.Equal(t, "/home/u/.local/share/pcloud-go", DefaultDataDir())
}
