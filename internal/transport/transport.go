package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tonimelisma/pcloud-go/internal/netop"
)

// Retry and backoff constants.
const (
	defaultMaxRetries = 5
	baseBackoff       = 1 * time.Second
	maxBackoff        = 60 * time.Second
	backoffFactor     = 2.0
	jitterFraction    = 0.25
	defaultUserAgent  = "pcloud-go/0.1"
	defaultScheme     = "https"
)

// readChunkSize is the size of the buffer response bodies are streamed
// through; each filled chunk becomes one Receive callback.
const readChunkSize = 32 * 1024

// maxErrorBody caps how much of a failed response is kept for HTTPError.
const maxErrorBody = 4096

// Options configures a Transport. Zero values select defaults.
type Options struct {
	Scheme     string // "https" unless overridden; tests use "http"
	UserAgent  string
	MaxRetries int // 0 = default (5); negative disables retries
}

// Transport is the HTTP implementation of the Call, Upload and Download
// dispatchers. Each dispatch returns a suspended operation whose exchange
// runs on its own goroutine once started.
type Transport struct {
	scheme     string
	userAgent  string
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// New creates a Transport. A nil httpClient uses http.DefaultClient and a
// nil logger uses slog.Default().
func New(httpClient *http.Client, opts Options, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	t := &Transport{
		scheme:     opts.Scheme,
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		httpClient: httpClient,
		logger:     logger,
		sleepFunc:  timeSleep,
	}

	if t.scheme == "" {
		t.scheme = defaultScheme
	}

	if t.userAgent == "" {
		t.userAgent = defaultUserAgent
	}

	switch {
	case t.maxRetries == 0:
		t.maxRetries = defaultMaxRetries
	case t.maxRetries < 0:
		t.maxRetries = 0
	}

	return t
}

// Call dispatches a request/response command as GET <scheme>://<host>/<method>.
func (t *Transport) Call(req netop.CallRequest) *netop.CallOperation {
	label := req.Command.Method

	return netop.NewCall(req, t.bind(label, true, func(ctx context.Context) (*http.Request, error) {
		if req.Host == "" {
			return nil, fmt.Errorf("transport: no host for %s", label)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.commandURL(req.Host, req.Command), http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("transport: creating request: %w", err)
		}

		httpReq.Header.Set("User-Agent", t.userAgent)

		return httpReq, nil
	}), t.logger)
}

// Upload dispatches a command whose body is streamed with PUT. Uploads are
// never retried: the body source may not be replayable.
func (t *Transport) Upload(req netop.UploadRequest) *netop.UploadOperation {
	label := req.Command.Method

	return netop.NewUpload(req, t.bind(label, false, func(ctx context.Context) (*http.Request, error) {
		if req.Host == "" {
			return nil, fmt.Errorf("transport: no host for %s", label)
		}

		if req.Body == nil {
			return nil, fmt.Errorf("transport: %s has no body", label)
		}

		rc, size, err := req.Body.Open()
		if err != nil {
			return nil, fmt.Errorf("transport: opening %s body: %w", label, err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, t.commandURL(req.Host, req.Command), rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("transport: creating upload request: %w", err)
		}

		switch {
		case size == 0:
			rc.Close()
			httpReq.Body = http.NoBody
			httpReq.ContentLength = 0
		case size > 0:
			httpReq.ContentLength = size
		}

		httpReq.Header.Set("Content-Type", "application/octet-stream")
		httpReq.Header.Set("User-Agent", t.userAgent)

		return httpReq, nil
	}), t.logger)
}

// Download dispatches a GET of the request's resolved address. The address
// is pre-authenticated, so it is never logged; the host is used as label.
func (t *Transport) Download(req netop.DownloadRequest) *netop.DownloadOperation {
	label := "download"
	if req.Address != nil {
		label = "download from " + req.Address.Host
	}

	return netop.NewDownload(req, t.bind(label, true, func(ctx context.Context) (*http.Request, error) {
		if req.Address == nil {
			return nil, errors.New("transport: download has no address")
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Address.String(), http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("transport: creating download request: %w", err)
		}

		httpReq.Header.Set("User-Agent", t.userAgent)

		return httpReq, nil
	}), t.logger)
}

func (t *Transport) commandURL(host string, cmd netop.Command) string {
	u := t.scheme + "://" + host + "/" + cmd.Method
	if q := cmd.Query(); q != "" {
		u += "?" + q
	}

	return u
}

// requestFunc builds a fresh *http.Request for each attempt.
type requestFunc func(ctx context.Context) (*http.Request, error)

func (t *Transport) bind(label string, retry bool, build requestFunc) netop.Binder {
	return func(sink netop.Sink) netop.Exchange {
		ctx, cancel := context.WithCancel(context.Background())

		return &exchange{
			t:      t,
			label:  label,
			retry:  retry,
			build:  build,
			sink:   sink,
			ctx:    ctx,
			cancel: cancel,
		}
	}
}

// exchange is one live HTTP exchange. It runs on its own goroutine after
// Resume and reports to the sink; Cancel aborts it through its context.
type exchange struct {
	t     *Transport
	label string
	retry bool
	build requestFunc
	sink  netop.Sink

	ctx    context.Context //nolint:containedctx // owned by the exchange, canceled by Cancel
	cancel context.CancelFunc
	once   sync.Once
}

func (e *exchange) Resume() {
	e.once.Do(func() {
		go e.run()
	})
}

func (e *exchange) Cancel() {
	e.cancel()
}

func (e *exchange) run() {
	defer e.cancel()

	resp, err := e.t.do(e.ctx, e.label, e.retry, e.build)
	if err != nil {
		e.sink.Complete(err)
		return
	}
	defer resp.Body.Close()

	buf := make([]byte, readChunkSize)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			e.sink.Receive(buf[:n])
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			e.t.logger.Warn("streaming response failed",
				slog.String("label", e.label),
				slog.String("error", readErr.Error()),
			)

			e.sink.Complete(fmt.Errorf("transport: reading %s response: %w", e.label, readErr))

			return
		}
	}

	e.sink.Complete(nil)
}

// do executes the request with retry for idempotent exchanges. Only the
// request/response-header cycle is retried; once a 2xx response is returned,
// body streaming failures are final.
func (t *Transport) do(ctx context.Context, label string, retry bool, build requestFunc) (*http.Response, error) {
	var attempt int

	for {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("transport: request canceled: %w", ctx.Err())
			}

			if retry && attempt < t.maxRetries {
				backoff := t.calcBackoff(attempt)
				t.logger.Warn("retrying after network error",
					slog.String("label", label),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := t.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("transport: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("transport: %s failed after %d attempts: %w", label, attempt+1, err)
		}

		// 2xx: success.
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			t.logger.Debug("request succeeded",
				slog.String("label", label),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		// Read and close body for error responses.
		errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if retry && isRetryable(resp.StatusCode) && attempt < t.maxRetries {
			backoff := t.retryBackoff(resp, attempt)
			t.logger.Warn("retrying after HTTP error",
				slog.String("label", label),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := t.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("transport: request canceled: %w", err)
			}

			attempt++

			continue
		}

		if attempt > 0 {
			t.logger.Error("request failed after retries",
				slog.String("label", label),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", attempt+1),
			)
		}

		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (t *Transport) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return t.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (t *Transport) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
