package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"printstore/internal/config"
	"printstore/internal/logging"
	"printstore/internal/migrate"
)

func main() {
	var (
		down    int
		version bool
	)
	flag.IntVar(&down, "down", 0, "Roll back this many migrations instead of applying pending ones")
	flag.BoolVar(&version, "version", false, "Print the applied schema version and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{ServiceName: "printstore-migrate", Level: cfg.Log.Level, Format: cfg.Log.Format})
	ctx := context.Background()

	runner, err := migrate.Open(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Error(ctx, "open migrations", err)
		os.Exit(1)
	}
	defer runner.Close()

	switch {
	case version:
		v, dirty, ok, err := runner.Version()
		if err != nil {
			logger.Error(ctx, "read version", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Println("no migrations applied")
			return
		}
		fmt.Printf("version %d (dirty=%t)\n", v, dirty)
	case down > 0:
		if err := runner.Down(down); err != nil {
			logger.Error(ctx, "roll back migrations", err)
			os.Exit(1)
		}
		logger.Info(logger.WithField(ctx, "steps", down), "migrations rolled back")
	default:
		if err := runner.Up(); err != nil {
			logger.Error(ctx, "apply migrations", err)
			os.Exit(1)
		}
		logger.Info(ctx, "migrations applied")
	}
}
