package task

import (
	"context"

	"github.com/google/uuid"

	"github.com/tonimelisma/pcloud-go/internal/netop"
)

// Task wraps one call or upload operation together with the parser that
// turns its document into T. The parser runs exactly once, when the
// operation completes, before the caller's handler is delivered.
type Task[T any] struct {
	op    *netop.Operation[netop.Document]
	parse func(netop.Document) (T, error)
	done  netop.Completion[T]
}

func newTask[T any](op *netop.Operation[netop.Document], parse func(netop.Document) (T, error)) *Task[T] {
	t := &Task[T]{op: op, parse: parse}

	op.SetCompletionHandler(nil, t.transform)

	return t
}

// failedTask returns a task that is already complete with err. It has no
// operation; Start and Cancel do nothing.
func failedTask[T any](err error) *Task[T] {
	t := &Task[T]{}

	var zero T
	t.done.Resolve(zero, err)

	return t
}

func (t *Task[T]) transform(doc netop.Document, err error) {
	if err != nil {
		var zero T
		t.done.Resolve(zero, err)

		return
	}

	v, parseErr := t.parse(doc)
	t.done.Resolve(v, parseErr)
}

// ID returns the identifier of the underlying operation, or uuid.Nil for a
// task that failed before an operation existed.
func (t *Task[T]) ID() uuid.UUID {
	if t.op == nil {
		return uuid.Nil
	}

	return t.op.ID()
}

// State returns the underlying operation's state.
func (t *Task[T]) State() netop.State {
	if t.op == nil {
		return netop.StateFailed
	}

	return t.op.State()
}

// Start starts the underlying operation. Repeated calls do nothing.
func (t *Task[T]) Start() {
	if t.op != nil {
		t.op.Start()
	}
}

// Cancel cancels the underlying operation. If that succeeds the completion
// handler will not fire and Wait returns netop.ErrCanceled. Once the
// operation has completed, Cancel does nothing and the result is delivered.
func (t *Task[T]) Cancel() {
	if t.op != nil && t.op.Cancel() {
		t.done.Abandon(netop.ErrCanceled)
	}
}

// SetCompletionHandler registers the single completion callback, delivered on
// q (nil = the goroutine that completed the operation).
func (t *Task[T]) SetCompletionHandler(q netop.Queue, fn func(T, error)) {
	t.done.SetHandler(q, fn)
}

// Wait blocks until the task completes, is cancelled, or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	return t.done.Wait(ctx)
}

// Run starts the task and waits for it. If ctx is done first, the task is
// cancelled.
func (t *Task[T]) Run(ctx context.Context) (T, error) {
	t.Start()

	v, err := t.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		t.Cancel()
	}

	return v, err
}
