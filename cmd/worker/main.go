package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/coursebuilder/backend/internal/app"
	"github.com/coursebuilder/backend/internal/temporalx/temporalworker"
)

// The worker process hosts the same pipeline registry as the API but
// without the HTTP surface. With Temporal configured it serves the
// job_run workflow; either way the database poller picks up queued work.
func main() {
	_ = godotenv.Load()

	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Start()

	if a.Clients.Temporal != nil {
		runner, err := temporalworker.NewRunner(a.Log, a.Clients.Temporal, a.DB, a.Repos.JobRun, a.Services.JobRegistry)
		if err != nil {
			a.Log.Error("Failed to init Temporal worker", "error", err)
			os.Exit(1)
		}
		if err := runner.Start(ctx); err != nil {
			a.Log.Error("Failed to start Temporal worker", "error", err)
			os.Exit(1)
		}
	} else {
		a.Log.Info("Temporal not configured; running database poller only")
	}

	<-ctx.Done()
	a.Log.Info("Shutting down worker...")
}
