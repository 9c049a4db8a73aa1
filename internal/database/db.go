package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/mdobak/go-xerrors"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open opens a connection pool for driver and checks it with a ping.
func Open(ctx context.Context, driver, dsn string, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, xerrors.Newf("open %s database: %w", driver, err)
	}

	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(10 * time.Second)
	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY on the slot table.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, xerrors.Newf("ping %s database: %w", driver, err)
	}

	log.Debug("database connection established", slog.String("driver", driver))
	return db, nil
}
