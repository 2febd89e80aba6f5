package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"persistor/internal/adapters/driving/cliadapter"
	"persistor/internal/config"
	"syscall"
)

func main() {
	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// watch runs until interrupted, every other command ignores this
	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := cliadapter.NewHandler(cfg, cliadapter.NewPersistorFactory(logger), logger)

	if err := handler.NewRootCommand().ExecuteContext(appCtx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(cliadapter.ExitCode(err))
	}
}
