package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"

	"printstore/internal/logging"
)

// Connect opens a pgx connection pool and verifies connectivity with a ping.
// Slow or failing queries are reported through logger at warn level.
func Connect(ctx context.Context, dsn string, logger *logging.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute
	if logger != nil {
		cfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   queryLogger(logger),
			LogLevel: tracelog.LogLevelWarn,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

func queryLogger(logger *logging.Logger) tracelog.Logger {
	return tracelog.LoggerFunc(func(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		logger.Zerolog().WithLevel(zerologLevel(level)).Fields(data).Str("component", "pgx").Msg(msg)
	})
}

func zerologLevel(level tracelog.LogLevel) zerolog.Level {
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		return zerolog.DebugLevel
	case tracelog.LogLevelInfo:
		return zerolog.InfoLevel
	case tracelog.LogLevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
