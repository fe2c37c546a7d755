package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clearlens/governance-backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	runner, err := a.WireWorker()
	if err != nil {
		a.Log.Error("Worker wiring failed", "error", err)
		os.Exit(1)
	}

	if err := runner.Start(ctx); err != nil {
		a.Log.Error("Worker failed to start", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	a.Log.Info("Shutting down worker")
}
