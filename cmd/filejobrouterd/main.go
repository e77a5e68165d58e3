package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"filejobrouter/internal/config"
	"filejobrouter/internal/engine"
	"filejobrouter/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		logger.Error("build engine", logging.Error(err))
		os.Exit(1)
	}

	if err := eng.Run(ctx); err != nil {
		logger.Error("engine run", logging.Error(err))
		os.Exit(1)
	}
}
