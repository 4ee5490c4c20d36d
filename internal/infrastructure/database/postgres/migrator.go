package postgres

import (
	"database/sql"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/plantsaathi/market-intelligence/internal/config"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

// Migrate applies every pending schema migration from the configured source
// (a file:// URL in deployments).  Already up to date is not an error.
func Migrate(cfg config.DatabaseConfig, logger logging.Logger) error {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to open migration connection")
	}
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to init migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationsPath, cfg.DBName, driver)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to load migrations")
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, errors.CodeDatabaseError, "migration failed")
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied",
		logging.Int("version", int(version)),
		logging.Bool("dirty", dirty))
	return nil
}
