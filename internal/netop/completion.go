package netop

import (
	"context"
	"sync"
)

// Queue runs completion callbacks on a caller-chosen execution context.
// A nil Queue means "deliver on the goroutine that completed the work".
type Queue interface {
	Dispatch(fn func())
}

// QueueFunc adapts a function to the Queue interface.
type QueueFunc func(fn func())

// Dispatch calls q(fn).
func (q QueueFunc) Dispatch(fn func()) {
	q(fn)
}

// Completion is a one-shot result slot with at most one handler. The handler
// fires exactly once when the slot is resolved, or never if it is abandoned.
// The zero value is ready to use.
type Completion[R any] struct {
	mu        sync.Mutex
	handler   func(R, error)
	queue     Queue
	settled   bool
	abandoned bool
	fired     bool
	value     R
	err       error
	done      chan struct{}
}

// doneChLocked returns the done channel, creating it on first use.
func (c *Completion[R]) doneChLocked() chan struct{} {
	if c.done == nil {
		c.done = make(chan struct{})
	}

	return c.done
}

// SetHandler registers fn to be delivered on q. Only the first registration
// is kept. If the slot was already resolved, fn is delivered immediately.
// Reports whether fn was accepted.
func (c *Completion[R]) SetHandler(q Queue, fn func(R, error)) bool {
	c.mu.Lock()

	if c.handler != nil || c.fired || fn == nil {
		c.mu.Unlock()
		return false
	}

	if c.settled {
		if c.abandoned {
			c.mu.Unlock()
			return false
		}

		c.fired = true
		v, err := c.value, c.err
		c.mu.Unlock()

		deliver(q, fn, v, err)

		return true
	}

	c.handler = fn
	c.queue = q
	c.mu.Unlock()

	return true
}

// Resolve settles the slot with (v, err) and delivers the handler, if any.
// Reports false if the slot was already settled.
func (c *Completion[R]) Resolve(v R, err error) bool {
	c.mu.Lock()

	if c.settled {
		c.mu.Unlock()
		return false
	}

	c.settled = true
	c.value, c.err = v, err
	close(c.doneChLocked())

	fn, q := c.handler, c.queue
	c.handler, c.queue = nil, nil

	if fn != nil {
		c.fired = true
	}
	c.mu.Unlock()

	if fn != nil {
		deliver(q, fn, v, err)
	}

	return true
}

// Abandon settles the slot with err without ever delivering a handler.
// Wait callers observe err. Reports false if the slot was already settled.
func (c *Completion[R]) Abandon(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.settled {
		return false
	}

	c.settled = true
	c.abandoned = true
	c.err = err
	c.handler, c.queue = nil, nil
	close(c.doneChLocked())

	return true
}

// Done is closed once the slot is settled.
func (c *Completion[R]) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.doneChLocked()
}

// Wait blocks until the slot settles or ctx is done.
func (c *Completion[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-c.Done():
		c.mu.Lock()
		defer c.mu.Unlock()

		return c.value, c.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

func deliver[R any](q Queue, fn func(R, error), v R, err error) {
	if q == nil {
		fn(v, err)
		return
	}

	q.Dispatch(func() { fn(v, err) })
}
