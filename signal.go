package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// errInterrupted is the cancellation cause of a context ended by a signal.
var errInterrupted = errors.New("interrupted")

// exitInterrupted is the exit status after an interrupt, 128+SIGINT.
const exitInterrupted = 130

// interruptContext cancels the returned context, with cause errInterrupted,
// on the first SIGINT or SIGTERM. Every task started through Run under that
// context is then cancelled, which removes its partial download. A second
// signal calls exit without waiting for in-flight transfers to unwind.
// stop releases the signal handler.
func interruptContext(parent context.Context, logger *slog.Logger, exit func(int)) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancelCause(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})

	go func() {
		defer signal.Stop(sigCh)

		for interrupts := 0; ; interrupts++ {
			var sig os.Signal

			select {
			case sig = <-sigCh:
			case <-parent.Done():
				return
			case <-stopped:
				return
			}

			if interrupts == 0 {
				logger.Info("interrupted, cancelling transfers",
					slog.String("signal", sig.String()),
				)
				cancel(errInterrupted)

				continue
			}

			logger.Warn("interrupted again, exiting without waiting for transfers",
				slog.String("signal", sig.String()),
			)
			exit(exitInterrupted)

			return
		}
	}()

	return ctx, func() {
		close(stopped)
		cancel(context.Canceled)
	}
}

// interrupted reports whether ctx was ended by a signal.
func interrupted(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), errInterrupted)
}
