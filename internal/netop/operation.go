package netop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Exchange is the transport-side handle of one network exchange. Resume
// starts a suspended exchange; Cancel aborts it. Both may be called from any
// goroutine.
type Exchange interface {
	Resume()
	Cancel()
}

// Sink receives transport callbacks for one exchange. Receive is called zero
// or more times, in transport order, and p is only valid for the duration of
// the call. Complete is called once, with nil on success.
type Sink interface {
	Receive(p []byte)
	Complete(err error)
}

// Binder constructs a suspended Exchange that reports to sink.
type Binder func(sink Sink) Exchange

// payload accumulates received bytes and turns them into the variant result.
type payload[R any] interface {
	append(p []byte) error
	build() (R, error)
	discard()
}

// Operation wraps one network exchange. It is safe for concurrent use: Start
// and Cancel may race with transport callbacks, and every transition is
// checked against the current state under a single mutex.
type Operation[R any] struct {
	id     uuid.UUID
	kind   string
	label  string
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	payload  payload[R]
	exchange Exchange
	received int64
	writeErr error

	done Completion[R]
}

func newOperation[R any](kind, label string, p payload[R], bind Binder, logger *slog.Logger) *Operation[R] {
	if logger == nil {
		logger = slog.Default()
	}

	op := &Operation[R]{
		id:      uuid.New(),
		kind:    kind,
		label:   label,
		logger:  logger,
		payload: p,
	}

	op.exchange = bind(operationSink[R]{op: op})

	op.logger.Debug("operation created",
		slog.String("op", op.id.String()),
		slog.String("kind", kind),
		slog.String("label", label),
	)

	return op
}

// ID returns the operation's unique identifier.
func (o *Operation[R]) ID() uuid.UUID {
	return o.id
}

// Kind returns "call", "upload" or "download".
func (o *Operation[R]) Kind() string {
	return o.kind
}

// State returns the current lifecycle state.
func (o *Operation[R]) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

// Received returns the number of payload bytes accepted so far.
func (o *Operation[R]) Received() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.received
}

// Start resumes a suspended exchange. On any other state it does nothing.
func (o *Operation[R]) Start() {
	o.mu.Lock()
	if o.state != StateSuspended {
		o.mu.Unlock()
		return
	}

	o.state = StateRunning
	o.mu.Unlock()

	o.logger.Debug("operation started", slog.String("op", o.id.String()))

	o.exchange.Resume()
}

// Cancel moves a suspended or running operation to StateCancelled and
// aborts the exchange; the completion handler will never fire afterwards.
// Once the transport has completed, Cancel does nothing. It reports whether
// the operation was cancelled.
func (o *Operation[R]) Cancel() bool {
	o.mu.Lock()
	if o.state != StateSuspended && o.state != StateRunning {
		state := o.state
		o.mu.Unlock()

		o.logger.Debug("cancel ignored",
			slog.String("op", o.id.String()),
			slog.String("state", state.String()),
		)

		return false
	}

	prev := o.state
	o.state = StateCancelled
	o.mu.Unlock()

	o.logger.Debug("operation cancelled",
		slog.String("op", o.id.String()),
		slog.String("from", prev.String()),
	)

	o.exchange.Cancel()
	o.payload.discard()
	o.done.Abandon(ErrCanceled)

	return true
}

// SetCompletionHandler registers the single completion callback, delivered
// on q (nil = the transport goroutine). If the operation already completed,
// fn is delivered immediately. Later registrations are ignored.
func (o *Operation[R]) SetCompletionHandler(q Queue, fn func(R, error)) {
	o.done.SetHandler(q, fn)
}

// Wait blocks until the operation reaches a terminal state or ctx is done.
// A cancelled operation yields ErrCanceled.
func (o *Operation[R]) Wait(ctx context.Context) (R, error) {
	return o.done.Wait(ctx)
}

func (o *Operation[R]) receive(p []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateRunning {
		o.logger.Debug("dropping data for inactive operation",
			slog.String("op", o.id.String()),
			slog.String("state", o.state.String()),
			slog.Int("bytes", len(p)),
		)

		return
	}

	if o.writeErr != nil {
		return
	}

	if err := o.payload.append(p); err != nil {
		o.writeErr = err
		return
	}

	o.received += int64(len(p))
}

func (o *Operation[R]) complete(transportErr error) {
	o.mu.Lock()

	if o.state != StateRunning {
		state := o.state
		o.mu.Unlock()

		o.logger.Debug("ignoring completion for inactive operation",
			slog.String("op", o.id.String()),
			slog.String("state", state.String()),
		)

		return
	}

	// The payload is no longer touched by receive or Cancel, so the result is
	// built without holding the lock.
	o.state = StateCompleting
	writeErr := o.writeErr
	o.mu.Unlock()

	var (
		v   R
		err error
	)

	switch {
	case transportErr != nil:
		o.payload.discard()
		err = &TransportError{Err: transportErr}
	case writeErr != nil:
		o.payload.discard()
		err = fmt.Errorf("netop: storing payload: %w", writeErr)
	default:
		v, err = o.payload.build()
	}

	o.mu.Lock()
	if err != nil {
		o.state = StateFailed
	} else {
		o.state = StateCompleted
	}

	state, received := o.state, o.received
	o.mu.Unlock()

	if err != nil {
		o.logger.Debug("operation failed",
			slog.String("op", o.id.String()),
			slog.String("label", o.label),
			slog.Int64("bytes", received),
			slog.String("error", err.Error()),
		)
	} else {
		o.logger.Debug("operation completed",
			slog.String("op", o.id.String()),
			slog.String("label", o.label),
			slog.String("state", state.String()),
			slog.Int64("bytes", received),
		)
	}

	o.done.Resolve(v, err)
}

// operationSink keeps the Sink methods off the Operation's exported API.
type operationSink[R any] struct {
	op *Operation[R]
}

func (s operationSink[R]) Receive(p []byte) {
	s.op.receive(p)
}

func (s operationSink[R]) Complete(err error) {
	s.op.complete(err)
}
