package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"PoolsAgent/internal/app"
	"PoolsAgent/internal/config"
	"PoolsAgent/internal/logging"
)

func main() {
	once := flag.String("once", "", "run a single pass of the named pipeline (generation|grading) and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	switch *once {
	case "":
		if err := application.Start(ctx); err != nil {
			logger.Error("application stopped", "error", err)
			os.Exit(1)
		}
	case "generation":
		err = application.RunGeneration(ctx)
	case "grading":
		err = application.RunGrading(ctx)
	default:
		logger.Error("unknown pipeline", "name", *once)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("run failed", "pipeline", *once, "error", err)
		os.Exit(1)
	}

	if *once != "" {
		if err := application.Shutdown(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}
}
