package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

func main() {
	ctx, stop := interruptContext(context.Background(), slog.Default(), os.Exit)

	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}

	if interrupted(ctx) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", errInterrupted)
		os.Exit(exitInterrupted)
	}

	exitOnError(err)
}
