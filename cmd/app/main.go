package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"retail-ledger/internal/adapters/cli"
	"retail-ledger/internal/app"
	"retail-ledger/internal/config"
	"retail-ledger/internal/db"
)

func main() {
	cfg, err := config.Load(false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.SetOutput(os.Stderr)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database")
	}
	defer pool.Close()

	svc := app.NewAppService(app.NewServices(pool, cfg.TxMaxAttempts), logger)

	if err := cli.Run(ctx, svc, os.Stdout, os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrInconsistent) {
			pool.Close()
			os.Exit(2)
		}
		config.LogError(logger, "cli", "Run", "command failed", os.Args[1:], err)
		pool.Close()
		os.Exit(1)
	}
}
