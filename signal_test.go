package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noExit(t *testing.T) func(int) {
	return func(code int) { t.Errorf("unexpected exit(%d)", code) }
}

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled within 2 seconds")
	}
}

func TestInterruptContext_FirstSignalCancels(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctx, stop := interruptContext(parent, discardLogger(), noExit(t))
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	waitDone(t, ctx)
	require.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, interrupted(ctx))
	require.NoError(t, parent.Err(), "a signal must not cancel the parent")
}

func TestInterruptContext_SecondSignalExits(t *testing.T) {
	codes := make(chan int, 1)

	ctx, stop := interruptContext(context.Background(), discardLogger(), func(code int) { codes <- code })
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	waitDone(t, ctx)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case code := <-codes:
		assert.Equal(t, exitInterrupted, code)
	case <-time.After(2 * time.Second):
		t.Fatal("second signal did not exit")
	}
}

func TestInterruptContext_StopIsNotInterrupt(t *testing.T) {
	ctx, stop := interruptContext(context.Background(), discardLogger(), noExit(t))
	stop()

	waitDone(t, ctx)
	assert.False(t, interrupted(ctx))
}

func TestInterruptContext_ParentCancelStopsGoroutine(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := interruptContext(parent, discardLogger(), noExit(t))
	defer stop()

	cancel()

	waitDone(t, ctx)
	assert.False(t, interrupted(ctx))
}
