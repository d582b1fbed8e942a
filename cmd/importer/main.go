package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"printstore/internal/config"
	"printstore/internal/db"
	"printstore/internal/importer"
	"printstore/internal/logging"
	"printstore/internal/repository/product"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to product catalog CSV (one row per product, extra rows per bulk tier)")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{ServiceName: "printstore-importer", Level: cfg.Log.Level, Format: cfg.Log.Format})
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Error(ctx, "connect db", err)
		os.Exit(1)
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Error(ctx, "open file", err)
		os.Exit(1)
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, product.NewPostgres(pool, logger))

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Error(ctx, "import failed", err)
		os.Exit(1)
	}

	fmt.Printf("Imported %d products in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
