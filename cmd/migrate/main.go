package main

import (
	"context"
	"flag"
	"time"

	"retail-ledger/internal/config"
	"retail-ledger/internal/db"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding NNN_description.sql files")
	flag.Parse()

	cfg, err := config.Load(false)
	if err != nil {
		panic(err)
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, *dir, logger); err != nil {
		logger.WithError(err).Fatal("migrate")
	}
	logger.Info("all migrations processed")
}
