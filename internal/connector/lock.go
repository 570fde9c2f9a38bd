package connector

import (
	"context"

	"github.com/sqldef/schemacore/pkg/sqlerr"
)

// The fixed lock names every connector instance acquires (§5):
// migrationLockKey is the MySQL named lock, migrationLockKeyInt the 64-bit
// Postgres advisory-lock key, and mssqlLockResource the MSSQL
// application-lock resource. One fixed key per dialect is sufficient
// because a single façade instance only ever mutates one main database at
// a time, per §5's single-threaded cooperative model.
const migrationLockKey = "schemacore_migrate"
const migrationLockKeyInt = 7814281455912
const mssqlLockResource = "schemacore_migrate"

// AcquireLock takes the dialect-specific migration lock before any
// mutating migration is applied to the main database (§5). It returns a
// release function the caller must invoke (typically deferred)
// regardless of whether the subsequent apply succeeds.
func (c *Connector) AcquireLock(ctx context.Context) (release func(context.Context) error, err error) {
	switch c.Dial.Name() {
	case "postgres", "cockroachdb":
		if _, err := c.db.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrationLockKeyInt); err != nil {
			return nil, sqlerr.LockAcquisitionFailed(err)
		}
		return func(ctx context.Context) error {
			_, err := c.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", migrationLockKeyInt)
			return err
		}, nil

	case "mysql", "mariadb", "vitess":
		var acquired int
		if err := c.db.QueryRowContext(ctx, "SELECT GET_LOCK(?, 10)", migrationLockKey).Scan(&acquired); err != nil {
			return nil, sqlerr.LockAcquisitionFailed(err)
		}
		if acquired != 1 {
			return nil, sqlerr.LockAcquisitionFailed(nil)
		}
		return func(ctx context.Context) error {
			_, err := c.db.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", migrationLockKey)
			return err
		}, nil

	case "sqlserver":
		var result int
		if err := c.db.QueryRowContext(ctx,
			"DECLARE @res INT; EXEC @res = sp_getapplock @Resource = ?, @LockMode = 'Exclusive', @LockTimeout = 10000; SELECT @res",
			mssqlLockResource,
		).Scan(&result); err != nil {
			return nil, sqlerr.LockAcquisitionFailed(err)
		}
		if result < 0 {
			return nil, sqlerr.LockAcquisitionFailed(nil)
		}
		return func(ctx context.Context) error {
			_, err := c.db.ExecContext(ctx, "EXEC sp_releaseapplock @Resource = ?", mssqlLockResource)
			return err
		}, nil

	default: // sqlite: no-op, per §5
		return func(context.Context) error { return nil }, nil
	}
}
