package task

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/tonimelisma/pcloud-go/internal/netop"
)

// AddressProvider resolves the download address asynchronously and reports
// it through resolved exactly once. ctx is canceled if the task is
// cancelled while resolution is pending.
type AddressProvider func(ctx context.Context, resolved func(*url.URL, error))

type downloadState int

const (
	downloadPending downloadState = iota
	downloadResolving
	downloadRunning
	downloadCancelled
	downloadDone
)

// DownloadTask resolves an address, then downloads it into a destination
// chosen by a DestinationFunc. The download operation is constructed only
// after resolution succeeds; cancelling before that guarantees it is never
// constructed.
type DownloadTask struct {
	resolve  AddressProvider
	dest     netop.DestinationFunc
	tempDir  string
	dispatch func(netop.DownloadRequest) *netop.DownloadOperation
	logger   *slog.Logger

	mu            sync.Mutex
	state         downloadState
	op            *netop.DownloadOperation
	cancelResolve context.CancelFunc

	done netop.Completion[string]
}

// Start begins address resolution. Repeated calls do nothing.
func (t *DownloadTask) Start() {
	t.mu.Lock()
	if t.state != downloadPending {
		t.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.state = downloadResolving
	t.cancelResolve = cancel
	t.mu.Unlock()

	t.logger.Debug("resolving download address")

	t.resolve(ctx, t.onResolved)
}

func (t *DownloadTask) onResolved(addr *url.URL, err error) {
	t.mu.Lock()
	if t.state != downloadResolving {
		state := t.state
		t.mu.Unlock()

		t.logger.Debug("ignoring late address resolution", slog.Int("state", int(state)))

		return
	}

	t.cancelResolve()

	if err == nil && addr == nil {
		err = fmt.Errorf("task: address provider returned no address")
	}

	if err != nil {
		t.state = downloadDone
		t.mu.Unlock()

		t.done.Resolve("", fmt.Errorf("task: resolving download address: %w", err))

		return
	}

	op := t.dispatch(netop.DownloadRequest{
		Address:     addr,
		Destination: t.dest,
		TempDir:     t.tempDir,
	})
	t.op = op
	t.state = downloadRunning
	t.mu.Unlock()

	op.SetCompletionHandler(nil, func(path string, opErr error) {
		t.mu.Lock()
		if t.state == downloadRunning {
			t.state = downloadDone
		}
		t.mu.Unlock()

		t.done.Resolve(path, opErr)
	})

	// A Cancel that slipped in after the unlock has already cancelled op,
	// which makes this Start a no-op.
	op.Start()
}

// Cancel stops the task in any non-terminal state. During resolution the
// resolver's context is canceled and its eventual result is ignored; while
// downloading, the operation is cancelled. A download whose transport has
// already completed is not cancelled: its result is delivered.
func (t *DownloadTask) Cancel() {
	t.mu.Lock()

	switch t.state {
	case downloadPending:
	case downloadResolving:
		t.cancelResolve()
	case downloadRunning:
		op := t.op
		t.mu.Unlock()

		if !op.Cancel() {
			return
		}

		// The operation will never report, so nothing else moves the state.
		t.mu.Lock()
	default:
		t.mu.Unlock()
		return
	}

	t.state = downloadCancelled
	t.mu.Unlock()

	t.done.Abandon(netop.ErrCanceled)
}

// Operation returns the download operation, or nil while the address is
// unresolved (or if it never resolved).
func (t *DownloadTask) Operation() *netop.DownloadOperation {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.op
}

// SetCompletionHandler registers the single completion callback. The result
// is the final path of the downloaded file.
func (t *DownloadTask) SetCompletionHandler(q netop.Queue, fn func(string, error)) {
	t.done.SetHandler(q, fn)
}

// Wait blocks until the download completes, is cancelled, or ctx is done.
func (t *DownloadTask) Wait(ctx context.Context) (string, error) {
	return t.done.Wait(ctx)
}

// Run starts the task and waits for it, cancelling it if ctx is done first.
func (t *DownloadTask) Run(ctx context.Context) (string, error) {
	t.Start()

	path, err := t.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		t.Cancel()
	}

	return path, err
}
