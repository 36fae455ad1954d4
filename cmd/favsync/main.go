// File: cmd/favsync/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/mlecomte/favsync/cmd"
	"github.com/mlecomte/favsync/internal/observability"
)

func main() {
	// Ctrl+C aborts the run; the pipeline sees a canceled context and the
	// browser still gets its graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
