//go:build e2e

// Package e2e drives the built binary against a live pCloud account. It
// needs PCLOUD_GO_TEST_TOKEN and PCLOUD_GO_TEST_USERID; PCLOUD_GO_TEST_HOST
// selects the region (default api.pcloud.com).
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/pcloud-go/internal/config"
	"github.com/tonimelisma/pcloud-go/internal/credstore"
)

var (
	binaryPath string
	configPath string
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	token := os.Getenv("PCLOUD_GO_TEST_TOKEN")
	userID := os.Getenv("PCLOUD_GO_TEST_USERID")

	if token == "" || userID == "" {
		fmt.Fprintln(os.Stderr, "PCLOUD_GO_TEST_TOKEN and PCLOUD_GO_TEST_USERID must be set")
		return 1
	}

	host := os.Getenv("PCLOUD_GO_TEST_HOST")
	if host == "" {
		host = "api.pcloud.com"
	}

	tmpDir, err := os.MkdirTemp("", "pcloud-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		return 1
	}
	defer os.RemoveAll(tmpDir)

	// Isolate the binary from the developer's real config and credentials.
	for k, v := range map[string]string{
		"HOME":            tmpDir,
		"XDG_CONFIG_HOME": filepath.Join(tmpDir, "config"),
		"XDG_DATA_HOME":   filepath.Join(tmpDir, "data"),
	} {
		os.Setenv(k, v)
	}

	configPath = filepath.Join(tmpDir, "config.toml")
	cfg := fmt.Sprintf("[network]\nhost = %q\n\n[logging]\nformat = \"text\"\n", host)

	if err := os.WriteFile(configPath, []byte(cfg), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "writing config: %v\n", err)
		return 1
	}

	if err := credstore.NewFileStore(config.CredentialsPath(config.StoreFile)).Set(userID, token); err != nil {
		fmt.Fprintf(os.Stderr, "seeding credentials: %v\n", err)
		return 1
	}

	binaryPath = filepath.Join(tmpDir, "pcloud-go")

	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = findModuleRoot()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		return 1
	}

	return m.Run()
}

// findModuleRoot walks up from the current dir to find go.mod.
func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ".."
		}

		dir = parent
	}
}

func runCLI(t *testing.T, args ...string) (string, string) {
	t.Helper()

	cmd := exec.Command(binaryPath, append([]string{"--config", configPath}, args...)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("CLI command %v failed: %v\nstdout: %s\nstderr: %s", args, err, stdout.String(), stderr.String())
	}

	return stdout.String(), stderr.String()
}

func TestE2E_RoundTrip(t *testing.T) {
	testFolder := fmt.Sprintf("/pcloud-go-e2e-%d", time.Now().UnixNano())
	testContent := []byte("Hello from pcloud-go E2E test!\n")

	t.Cleanup(func() {
		cmd := exec.Command(binaryPath, "--config", configPath, "rm", "-r", testFolder)
		_ = cmd.Run()
	})

	t.Run("whoami", func(t *testing.T) {
		stdout, _ := runCLI(t, "--json", "whoami")

		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Contains(t, out, "email")
		assert.Equal(t, os.Getenv("PCLOUD_GO_TEST_USERID"), fmt.Sprint(out["userid"]))
	})

	t.Run("mkdir", func(t *testing.T) {
		_, stderr := runCLI(t, "mkdir", "-p", testFolder+"/sub/deeper")
		assert.Contains(t, stderr, "Created")
	})

	local := filepath.Join(t.TempDir(), "café test.txt")
	require.NoError(t, os.WriteFile(local, testContent, 0o600))

	t.Run("put", func(t *testing.T) {
		_, stderr := runCLI(t, "put", local, testFolder)
		assert.Contains(t, stderr, "Uploaded")
	})

	t.Run("ls", func(t *testing.T) {
		stdout, _ := runCLI(t, "ls", testFolder)
		assert.Contains(t, stdout, "café test.txt")
		assert.Contains(t, stdout, "sub/")
	})

	t.Run("stat", func(t *testing.T) {
		stdout, _ := runCLI(t, "stat", testFolder+"/café test.txt")
		assert.Contains(t, stdout, fmt.Sprintf("%d bytes", len(testContent)))
	})

	t.Run("get", func(t *testing.T) {
		outDir := t.TempDir()

		_, stderr := runCLI(t, "get", "--verify", testFolder+"/café test.txt", outDir)
		assert.Contains(t, stderr, "Downloaded")

		got, err := os.ReadFile(filepath.Join(outDir, "café test.txt"))
		require.NoError(t, err)
		assert.Equal(t, testContent, got)
	})

	t.Run("rm", func(t *testing.T) {
		_, stderr := runCLI(t, "rm", "-r", testFolder)
		assert.Contains(t, stderr, "Deleted")
	})
}
