package connector

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sqldef/schemacore/internal/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockConnector(t *testing.T, dial dialect.SqlDialect) (*Connector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Connector{Info: ConnectionInfo{Scheme: "postgres", Database: "app"}, Dial: dial, db: db}, mock
}

func TestConnectorVersion(t *testing.T) {
	c, mock := newMockConnector(t, dialect.Postgres)
	mock.ExpectQuery("SELECT version\\(\\)").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("PostgreSQL 16.1"))

	version, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PostgreSQL 16.1", version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectorEnsureConnectionValidity(t *testing.T) {
	c, mock := newMockConnector(t, dialect.Postgres)
	mock.ExpectPing()
	assert.NoError(t, c.EnsureConnectionValidity(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectorCountRows(t *testing.T) {
	c, mock := newMockConnector(t, dialect.Postgres)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := c.CountRows(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestConnectorRawCmd(t *testing.T) {
	c, mock := newMockConnector(t, dialect.Postgres)
	mock.ExpectExec("CREATE TABLE foo").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.NoError(t, c.RawCmd(context.Background(), "CREATE TABLE foo (id int)"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContainsFoldAndEqualFold(t *testing.T) {
	assert.True(t, containsFold("PostgreSQL CockroachDB-v23", "cockroachdb"))
	assert.False(t, containsFold("PostgreSQL 16.1", "cockroachdb"))
	assert.True(t, equalFold("MariaDB", "MARIADB"))
	assert.False(t, equalFold("MariaDB", "MySQL"))
}

func TestResolveVersionAliasDetectsCockroachDB(t *testing.T) {
	c, mock := newMockConnector(t, dialect.Postgres)
	mock.ExpectQuery("SELECT version\\(\\)").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("CockroachDB CCL v23.1.0"))

	assert.Equal(t, "cockroachdb", c.resolveVersionAlias(context.Background()))
}

func TestResolveVersionAliasDetectsMariaDB(t *testing.T) {
	c, mock := newMockConnector(t, dialect.MySQL)
	mock.ExpectQuery("SELECT version\\(\\)").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("10.11.2-MariaDB"))

	assert.Equal(t, "mariadb", c.resolveVersionAlias(context.Background()))
}

func TestResolveVersionAliasNoneForPlainMysql(t *testing.T) {
	c, mock := newMockConnector(t, dialect.MySQL)
	mock.ExpectQuery("SELECT version\\(\\)").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("8.0.35"))

	assert.Equal(t, "", c.resolveVersionAlias(context.Background()))
}

func TestExecScriptSplitsAndRunsEachStatement(t *testing.T) {
	c, mock := newMockConnector(t, dialect.Postgres)
	mock.ExpectExec("CREATE TABLE a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE b").WillReturnResult(sqlmock.NewResult(0, 0))

	script := "CREATE TABLE a (id int);\nCREATE TABLE b (id int);\n"
	assert.NoError(t, c.execScript(context.Background(), script))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableExistsPostgres(t *testing.T) {
	c, mock := newMockConnector(t, dialect.Postgres)
	mock.ExpectQuery("SELECT 1 FROM pg_catalog.pg_tables").
		WithArgs("_prisma_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := c.tableExists(context.Background(), migrationsTableName)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestTableExistsSqliteNotFound(t *testing.T) {
	c, mock := newMockConnector(t, dialect.SQLite)
	mock.ExpectQuery("SELECT 1 FROM sqlite_master").
		WithArgs(migrationsTableName).
		WillReturnError(sql.ErrNoRows)

	exists, err := c.tableExists(context.Background(), migrationsTableName)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestApplyMigrationScriptRunsAndRecords(t *testing.T) {
	c, mock := newMockConnector(t, dialect.SQLite)
	old := nowFunc
	nowFunc = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { nowFunc = old })

	mock.ExpectQuery("SELECT 1 FROM sqlite_master").
		WithArgs(migrationsTableName).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("CREATE TABLE _prisma_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO _prisma_migrations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("UPDATE _prisma_migrations").WillReturnResult(sqlmock.NewResult(0, 1))

	err := c.ApplyMigrationScript(context.Background(), "001_init", "CREATE TABLE users (id int);\n")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChecksumIsStableAndDiffersOnContent(t *testing.T) {
	a := checksum("CREATE TABLE foo (id int);")
	b := checksum("CREATE TABLE foo (id int);")
	c := checksum("CREATE TABLE bar (id int);")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestCreateMigrationsTableDDLVariesByDialect(t *testing.T) {
	pg := createMigrationsTableDDL("postgres")
	assert.Contains(t, pg, "TEXT")
	assert.Contains(t, pg, "TIMESTAMP")

	ms := createMigrationsTableDDL("sqlserver")
	assert.Contains(t, ms, "NVARCHAR(255)")
	assert.Contains(t, ms, "DATETIME2")

	my := createMigrationsTableDDL("mysql")
	assert.Contains(t, my, "VARCHAR(255)")
	assert.Contains(t, my, "DATETIME(3)")
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (id int);\nCREATE TABLE b (id int);\n")
	require.Len(t, got, 3)
	assert.Equal(t, "CREATE TABLE a (id int)", got[0])
	assert.Equal(t, "CREATE TABLE b (id int)", got[1])
	assert.Equal(t, "", got[2])
}

func TestAcquireLockPostgres(t *testing.T) {
	c, mock := newMockConnector(t, dialect.Postgres)
	mock.ExpectExec("SELECT pg_advisory_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT pg_advisory_unlock").WillReturnResult(sqlmock.NewResult(0, 0))

	release, err := c.AcquireLock(context.Background())
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.NoError(t, release(context.Background()))
}

func TestAcquireLockMysqlFailsWhenNotAcquired(t *testing.T) {
	c, mock := newMockConnector(t, dialect.MySQL)
	mock.ExpectQuery("SELECT GET_LOCK").
		WillReturnRows(sqlmock.NewRows([]string{"lock"}).AddRow(0))

	_, err := c.AcquireLock(context.Background())
	assert.Error(t, err)
}

func TestAcquireLockSqliteIsNoop(t *testing.T) {
	c, _ := newMockConnector(t, dialect.SQLite)
	release, err := c.AcquireLock(context.Background())
	require.NoError(t, err)
	assert.NoError(t, release(context.Background()))
}
