package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/coursebuilder/backend/internal/app"
)

func main() {
	// Missing .env is fine in containers; env comes from the runtime.
	_ = godotenv.Load()

	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	addr := ":" + a.Cfg.Port
	a.Log.Info("Starting HTTP server...", "addr", addr)
	if err := a.Run(addr); err != nil {
		a.Log.Error("HTTP server exited", "error", err)
		os.Exit(1)
	}
}
