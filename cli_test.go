package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/pcloud-go/internal/config"
	"github.com/tonimelisma/pcloud-go/internal/credstore"
)

// lockedBuffer is a bytes.Buffer safe for the concurrent writes of parallel
// transfers and the logger.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// cliEnv is an isolated config and data directory pointing at a fake API.
type cliEnv struct {
	t          *testing.T
	configPath string
	dataDir    string
}

// newCLIEnv writes a config file for host and points XDG_DATA_HOME at a
// temp dir. extra is appended to the config file verbatim.
func newCLIEnv(t *testing.T, host, extra string) *cliEnv {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("PCLOUD_GO_CONFIG", "")
	t.Setenv("PCLOUD_GO_ACCOUNT", "")
	t.Setenv("PCLOUD_GO_HOST", "")

	cfg := fmt.Sprintf(`[auth]
client_id = "abc123"

[network]
host = %q
scheme = "http"
max_retries = 0

[logging]
level = "debug"
format = "text"
%s`, host, extra)

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	return &cliEnv{t: t, configPath: path, dataDir: filepath.Join(dir, "data", "pcloud-go")}
}

// writeConfig replaces the config file with content.
func (e *cliEnv) writeConfig(content string) {
	e.t.Helper()
	require.NoError(e.t, os.WriteFile(e.configPath, []byte(content), 0o600))
}

// login seeds the file store with a token for account.
func (e *cliEnv) login(account, token string) {
	e.t.Helper()

	store := credstore.NewFileStore(config.CredentialsPath(config.StoreFile))
	require.NoError(e.t, store.Set(account, token))
}

// run executes the root command with args and returns stdout and stderr.
func (e *cliEnv) run(stdin io.Reader, args ...string) (string, string, error) {
	e.t.Helper()

	var out, errOut lockedBuffer

	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	if stdin == nil {
		stdin = strings.NewReader("")
	}

	cmd.SetIn(stdin)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := cmd.ExecuteContext(ctx)

	return out.String(), errOut.String(), err
}

// fakeAPI serves pCloud API methods from handlers keyed by method name and
// checks the access token on every call.
type fakeAPI struct {
	t        *testing.T
	srv      *httptest.Server
	token    string
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	calls    []string
}

func newFakeAPI(t *testing.T, token string) *fakeAPI {
	t.Helper()

	f := &fakeAPI{t: t, token: token, handlers: make(map[string]http.HandlerFunc)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeAPI) host() string {
	u, err := url.Parse(f.srv.URL)
	require.NoError(f.t, err)

	return u.Host
}

func (f *fakeAPI) handle(method string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handlers[method] = h
}

// handleJSON answers method with a fixed body.
func (f *fakeAPI) handleJSON(method, body string) {
	f.handle(method, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	})
}

func (f *fakeAPI) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/")

	f.mu.Lock()
	h, ok := f.handlers[method]
	f.calls = append(f.calls, method)
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	// Download paths carry no token; API methods must.
	if !strings.HasPrefix(method, "dl/") && r.URL.Query().Get("access_token") != f.token {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"result":2000,"error":"Log in failed."}`)

		return
	}

	h(w, r)
}
