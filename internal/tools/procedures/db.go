package procedures

import (
	"context"
	"database/sql"
	"fmt"

	"code.cloudfoundry.org/lager/v3"
	"github.com/cenkalti/backoff/v5"
	_ "github.com/microsoft/go-mssqldb"
)

// DriverName is the go-mssqldb driver registered for sqlserver:// URLs.
const DriverName = "sqlserver"

// Connect opens a pool for dsn. It does not contact the server; see Ping.
func Connect(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, nil
}

// Ping checks the database is reachable, retrying with exponential backoff
// up to tries attempts.
func Ping(ctx context.Context, logger lager.Logger, db *sql.DB, tries uint) error {
	if tries < 1 {
		tries = 1
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			logger.Info("ping-failed", lager.Data{"attempt": attempt, "error": err.Error()})
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(tries),
	)
	if err != nil {
		return fmt.Errorf("ping database after %d attempt(s): %w", attempt, err)
	}
	return nil
}
