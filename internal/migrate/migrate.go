// Package migrate applies the embedded schema for the product catalog and
// saved cart slots.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"printstore/internal/logging"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Runner drives migrations against one database.
type Runner struct {
	m      *migrate.Migrate
	logger *logging.Logger
}

// Open prepares a Runner over connString using the embedded migration files.
func Open(ctx context.Context, connString string, logger *logging.Logger) (*Runner, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	srcDriver, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("init iofs: %w", err)
	}

	sqlDB, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sql db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("init db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "pgx", dbDriver)
	if err != nil {
		dbDriver.Close()
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	m.Log = migrateLogger{ctx: ctx, logger: logger}
	return &Runner{m: m, logger: logger}, nil
}

// Up applies every pending migration. Being already current is not an error.
func (r *Runner) Up() error {
	if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("migrate up: %w (each version needs both .up.sql and .down.sql)", err)
		}
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back steps migrations.
func (r *Runner) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("migrate down: steps must be positive, got %d", steps)
	}
	if err := r.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version reports the applied version. ok is false on an empty database.
func (r *Runner) Version() (version uint, dirty bool, ok bool, err error) {
	version, dirty, err = r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("migrate version: %w", err)
	}
	return version, dirty, true, nil
}

func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Apply runs all migrations up on the database behind pool.
func Apply(ctx context.Context, pool *pgxpool.Pool, logger *logging.Logger) error {
	r, err := Open(ctx, pool.Config().ConnString(), logger)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Up()
}

type migrateLogger struct {
	ctx    context.Context
	logger *logging.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(l.ctx, fmt.Sprintf(format, v...))
}

func (l migrateLogger) Verbose() bool { return false }
