package connector

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sqldef/schemacore/pkg/sqlerr"
)

// migrationsTableName is "_prisma_migrations" (§6): created and owned by
// the façade, never by user migrations.
const migrationsTableName = "_prisma_migrations"

// Migration is one entry in a migration history, the shape
// sql_schema_from_migration_history (§4.8) walks in order.
type Migration struct {
	Name   string
	Script string
}

// createMigrationsTableDDL renders the §6 migrations table for dial.
// Columns and nullability match the spec table literally; only the
// concrete type spellings vary per dialect.
func createMigrationsTableDDL(dialName string) string {
	text, datetime := columnTypesFor(dialName)
	return fmt.Sprintf(`CREATE TABLE %s (
  id %s NOT NULL,
  checksum %s NOT NULL,
  finished_at %s,
  migration_name %s NOT NULL,
  logs %s,
  rolled_back_at %s,
  started_at %s NOT NULL,
  applied_steps_count INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (id)
)`, migrationsTableName, text, text, datetime, text, text, datetime, datetime)
}

func columnTypesFor(dialName string) (text, datetime string) {
	switch dialName {
	case "sqlserver":
		return "NVARCHAR(255)", "DATETIME2"
	case "mysql", "mariadb", "vitess":
		return "VARCHAR(255)", "DATETIME(3)"
	default:
		return "TEXT", "TIMESTAMP"
	}
}

// checksum is the SHA-256 of a migration script body, recorded in the
// migrations table's checksum column (§6).
func checksum(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}

// ApplyMigrationScript is a suspension point (§5): execute one migration
// script's statements in order, recording it in the migrations table.
// Statements are split on the renderer's own "stmt;\n" convention and run
// sequentially inside a transaction, mirroring the teacher's RunDDLs
// (database/database.go) transaction-per-script shape.
func (c *Connector) ApplyMigrationScript(ctx context.Context, name, script string) error {
	if err := c.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	id := uuid.NewString()
	startedAt := nowFunc()

	if err := c.insertMigrationRow(ctx, id, checksum(script), name, startedAt); err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return sqlerr.Classify(dialectNameForClassify(c.Dial.Name()), err)
	}

	applied := 0
	for _, stmt := range splitStatements(script) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return sqlerr.MigrationFailedToApply(name, err)
		}
		applied++
	}
	if err := tx.Commit(); err != nil {
		return sqlerr.MigrationFailedToApply(name, err)
	}

	return c.finishMigrationRow(ctx, id, applied)
}

func splitStatements(script string) []string {
	return strings.Split(script, ";\n")
}

func (c *Connector) ensureMigrationsTable(ctx context.Context) error {
	exists, err := c.tableExists(ctx, migrationsTableName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return c.RawCmd(ctx, createMigrationsTableDDL(c.Dial.Name()))
}

// tableExists runs a minimal catalog probe rather than DescribeSchema,
// since every describer deliberately filters the migrations table out of
// its user-facing result (it is façade bookkeeping, not user schema).
func (c *Connector) tableExists(ctx context.Context, name string) (bool, error) {
	var query string
	switch c.Dial.Name() {
	case "postgres", "cockroachdb":
		query = "SELECT 1 FROM pg_catalog.pg_tables WHERE tablename = $1"
	case "mysql", "mariadb", "vitess":
		query = "SELECT 1 FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?"
	case "sqlserver":
		query = "SELECT 1 FROM sys.tables WHERE name = ?"
	case "sqlite":
		query = "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?"
	default:
		return false, sqlerr.Other(fmt.Sprintf("unsupported dialect %q", c.Dial.Name()), nil)
	}

	var found int
	err := c.db.QueryRowContext(ctx, query, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, sqlerr.Classify(dialectNameForClassify(c.Dial.Name()), err)
	}
	return true, nil
}

func (c *Connector) insertMigrationRow(ctx context.Context, id, sum, name string, startedAt time.Time) error {
	q := fmt.Sprintf("INSERT INTO %s (id, checksum, migration_name, started_at) VALUES (?, ?, ?, ?)", migrationsTableName)
	if c.Dial.Name() == "postgres" || c.Dial.Name() == "cockroachdb" {
		q = fmt.Sprintf("INSERT INTO %s (id, checksum, migration_name, started_at) VALUES ($1, $2, $3, $4)", migrationsTableName)
	}
	_, err := c.db.ExecContext(ctx, q, id, sum, name, startedAt)
	if err != nil {
		return sqlerr.Classify(dialectNameForClassify(c.Dial.Name()), err)
	}
	return nil
}

func (c *Connector) finishMigrationRow(ctx context.Context, id string, appliedSteps int) error {
	q := fmt.Sprintf("UPDATE %s SET finished_at = ?, applied_steps_count = ? WHERE id = ?", migrationsTableName)
	args := []any{nowFunc(), appliedSteps, id}
	if c.Dial.Name() == "postgres" || c.Dial.Name() == "cockroachdb" {
		q = fmt.Sprintf("UPDATE %s SET finished_at = $1, applied_steps_count = $2 WHERE id = $3", migrationsTableName)
	}
	_, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return sqlerr.Classify(dialectNameForClassify(c.Dial.Name()), err)
	}
	return nil
}

// nowFunc is a seam over time.Now so migration-row timestamps can be
// stubbed in tests without touching the wall clock through an interface.
var nowFunc = time.Now

// dropMigrationsTable implements the shadow-database normalization step
// of §4.8: the migrations table is a façade-owned bookkeeping artifact,
// never part of the schema a diff should see.
func (c *Connector) dropMigrationsTable(ctx context.Context) error {
	exists, err := c.tableExists(ctx, migrationsTableName)
	if err != nil || !exists {
		return err
	}
	return c.RawCmd(ctx, fmt.Sprintf("DROP TABLE %s", c.Dial.QuoteIdentifier(migrationsTableName)))
}
