package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/pcloud-go/internal/netop"
)

// noopSleep is a sleep function that returns immediately, for fast tests.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

// newTestTransport returns a Transport speaking plain HTTP with instant
// retry sleeps, plus the host of srv.
func newTestTransport(t *testing.T, srv *httptest.Server) (*Transport, string) {
	t.Helper()

	tr := New(srv.Client(), Options{Scheme: "http", UserAgent: "test-agent"}, nil)
	tr.sleepFunc = noopSleep

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	return tr, u.Host
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func TestCall_Success(t *testing.T) {
	var gotURI, gotUA string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"result":0,"userid":42}`))
	}))
	defer srv.Close()

	tr, host := newTestTransport(t, srv)

	op := tr.Call(netop.CallRequest{
		Command: netop.NewCommand("userinfo", netop.String("b", "2"), netop.String("a", "1")),
		Host:    host,
	})
	assert.Equal(t, netop.StateSuspended, op.State())

	op.Start()

	doc, err := op.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.True(t, doc.Has("userid"))
	assert.Equal(t, "/userinfo?b=2&a=1", gotURI)
	assert.Equal(t, "test-agent", gotUA)
}

func TestCall_LargeBodyStreamsInChunks(t *testing.T) {
	name := strings.Repeat("x", 3*readChunkSize+17)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"` + name + `"}`))
	}))
	defer srv.Close()

	tr, host := newTestTransport(t, srv)
	op := tr.Call(netop.CallRequest{Command: netop.NewCommand("stat"), Host: host})
	op.Start()

	doc, err := op.Wait(waitCtx(t))
	require.NoError(t, err)

	var got string
	require.NoError(t, doc.Field("name", &got))
	assert.Equal(t, name, got)
}

func TestCall_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = w.Write([]byte(`{"result":0}`))
	}))
	defer srv.Close()

	tr, host := newTestTransport(t, srv)
	op := tr.Call(netop.CallRequest{Command: netop.NewCommand("userinfo"), Host: host})
	op.Start()

	_, err := op.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"bad request", http.StatusBadRequest, ErrBadRequest},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrForbidden},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"gone", http.StatusGone, ErrGone},
		{"teapot", http.StatusTeapot, ErrUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`nope`))
			}))
			defer srv.Close()

			tr, host := newTestTransport(t, srv)
			op := tr.Call(netop.CallRequest{Command: netop.NewCommand("stat"), Host: host})
			op.Start()

			_, err := op.Wait(waitCtx(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var te *netop.TransportError
			require.ErrorAs(t, err, &te)

			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, "nope", httpErr.Message)
			assert.Equal(t, netop.StateFailed, op.State())
		})
	}
}

func TestCall_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tr, host := newTestTransport(t, srv)
	op := tr.Call(netop.CallRequest{Command: netop.NewCommand("stat"), Host: host})
	op.Start()

	_, err := op.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(defaultMaxRetries+1), calls.Load())
}

func TestRetryBackoff_HonorsRetryAfter(t *testing.T) {
	tr := New(nil, Options{}, nil)

	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "7")

	assert.Equal(t, 7*time.Second, tr.retryBackoff(resp, 0))
}

func TestCalcBackoff_Bounds(t *testing.T) {
	tr := New(nil, Options{}, nil)

	for attempt := range 10 {
		d := tr.calcBackoff(attempt)
		assert.LessOrEqual(t, d, time.Duration(float64(maxBackoff)*(1+jitterFraction)))
		assert.Greater(t, d, time.Duration(0))
	}
}

// flakyRoundTripper fails the first n requests with a network error.
type flakyRoundTripper struct {
	fails atomic.Int32
	next  http.RoundTripper
}

func (f *flakyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.fails.Add(-1) >= 0 {
		return nil, errors.New("connection refused")
	}

	return f.next.RoundTrip(req)
}

func TestCall_RetriesNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	rt := &flakyRoundTripper{next: srv.Client().Transport}
	rt.fails.Store(2)

	tr, host := newTestTransport(t, srv)
	tr.httpClient = &http.Client{Transport: rt}

	op := tr.Call(netop.CallRequest{Command: netop.NewCommand("stat"), Host: host})
	op.Start()

	_, err := op.Wait(waitCtx(t))
	assert.NoError(t, err)
}

func TestCall_MissingHost(t *testing.T) {
	tr := New(nil, Options{}, nil)

	op := tr.Call(netop.CallRequest{Command: netop.NewCommand("stat")})
	op.Start()

	_, err := op.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no host")
}

func TestCall_CancelAbortsInFlightRequest(t *testing.T) {
	started := make(chan struct{})
	aborted := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
		close(aborted)
	}))
	defer srv.Close()

	tr, host := newTestTransport(t, srv)
	op := tr.Call(netop.CallRequest{Command: netop.NewCommand("stat"), Host: host})

	var fired atomic.Bool
	op.SetCompletionHandler(nil, func(netop.Document, error) { fired.Store(true) })
	op.Start()

	<-started
	op.Cancel()

	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("server never observed the abort")
	}

	_, err := op.Wait(waitCtx(t))
	assert.ErrorIs(t, err, netop.ErrCanceled)
	assert.Equal(t, netop.StateCancelled, op.State())
	assert.False(t, fired.Load())
}

func TestUpload_SendsBodyWithoutRetry(t *testing.T) {
	var (
		calls    atomic.Int32
		gotBody  string
		gotType  string
		gotQuery string
		gotMeth  string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			data, _ := io.ReadAll(r.Body)
			gotBody = string(data)
			gotType = r.Header.Get("Content-Type")
			gotQuery = r.URL.RawQuery
			gotMeth = r.Method
		}

		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr, host := newTestTransport(t, srv)
	op := tr.Upload(netop.UploadRequest{
		Command: netop.NewCommand("uploadfile", netop.String("path", "/"), netop.String("filename", "a.txt")),
		Host:    host,
		Body:    netop.BytesBody([]byte("file contents")),
	})
	op.Start()

	_, err := op.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(1), calls.Load(), "uploads must not be retried")
	assert.Equal(t, "file contents", gotBody)
	assert.Equal(t, "application/octet-stream", gotType)
	assert.Equal(t, "path=%2F&filename=a.txt", gotQuery)
	assert.Equal(t, http.MethodPut, gotMeth)
}

func TestUpload_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, int64(len(data)), r.ContentLength)
		_, _ = w.Write([]byte(`{"result":0,"metadata":[{"name":"a.txt"}]}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("local file"), 0o600))

	tr, host := newTestTransport(t, srv)
	op := tr.Upload(netop.UploadRequest{
		Command: netop.NewCommand("uploadfile"),
		Host:    host,
		Body:    netop.FileBody(path),
	})
	op.Start()

	doc, err := op.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.True(t, doc.Has("metadata"))
}

func TestUpload_MissingBody(t *testing.T) {
	tr := New(nil, Options{}, nil)
	op := tr.Upload(netop.UploadRequest{Command: netop.NewCommand("uploadfile"), Host: "example.com"})
	op.Start()

	_, err := op.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no body")
}

func TestDownload_WritesDestination(t *testing.T) {
	content := strings.Repeat("0123456789", 10000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "/files/abc/report.pdf", r.URL.Path)
		_, _ = w.Write([]byte(content))
	}))
	defer srv.Close()

	addr, err := url.Parse(srv.URL + "/files/abc/report.pdf")
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "out", "report.pdf")

	tr, _ := newTestTransport(t, srv)
	op := tr.Download(netop.DownloadRequest{
		Address:     addr,
		Destination: func(string) (string, error) { return target, nil },
		TempDir:     t.TempDir(),
	})
	op.Start()

	path, err := op.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, target, path)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestDownload_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	addr, err := url.Parse(srv.URL + "/gone")
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "x")

	tr, _ := newTestTransport(t, srv)
	op := tr.Download(netop.DownloadRequest{
		Address:     addr,
		Destination: func(string) (string, error) { return target, nil },
		TempDir:     t.TempDir(),
	})
	op.Start()

	_, err = op.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoFileExists(t, target)
}
