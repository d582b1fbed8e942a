package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"printstore/internal/config"
	"printstore/internal/db"
	"printstore/internal/logging"
	"printstore/internal/migrate"
	"printstore/internal/repository/product"
	"printstore/internal/seed"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{ServiceName: "printstore-seed", Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Error(ctx, "connect db", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrate.Apply(ctx, pool, logger); err != nil {
		logger.Error(ctx, "apply migrations", err)
		os.Exit(1)
	}
	if err := seed.Apply(ctx, product.NewPostgres(pool, logger)); err != nil {
		logger.Error(ctx, "seed apply", err)
		os.Exit(1)
	}

	logger.Info(logger.WithField(ctx, "products", len(seed.Products())), "seed applied")
}
