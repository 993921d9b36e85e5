package database

import (
	"context"
	"regexp"
	"testing"

	"gmdl/pkg/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockMySQL(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestMySQLCreateDatabase(t *testing.T) {
	db, mock := newMockMySQL(t)
	d := &mysqlDialect{}

	mock.ExpectExec(regexp.QuoteMeta("CREATE DATABASE IF NOT EXISTS `gmdl_tenant_demo` CHARACTER SET utf8mb4 COLLATE utf8mb4_0900_ai_ci")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, d.CreateDatabase(context.Background(), db, "gmdl_tenant_demo"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLCurrentDatabase(t *testing.T) {
	db, mock := newMockMySQL(t)
	d := &mysqlDialect{}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DATABASE() AS db")).
		WillReturnRows(sqlmock.NewRows([]string{"db"}).AddRow("gmdl_tenant_demo"))

	name, err := d.CurrentDatabase(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, "gmdl_tenant_demo", name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDSN(t *testing.T) {
	d := &mysqlDialect{cfg: config.DatabaseConfig{Host: "db.internal", Port: "3306", User: "gmdl", Password: "pw"}}
	dsn := d.DSN("gmdl_tenant_demo")
	assert.Contains(t, dsn, "gmdl:pw@tcp(db.internal:3306)/gmdl_tenant_demo?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestPostgresDSNDefaultsPort(t *testing.T) {
	d := &postgresDialect{cfg: config.DatabaseConfig{Host: "pg", Port: "3306", User: "u", Password: "p", SSLMode: "disable"}}
	assert.Contains(t, d.DSN("gmdl_t1"), "port=5432")
	assert.Contains(t, d.DSN("gmdl_t1"), "dbname=gmdl_t1")
}

func TestNewDialect(t *testing.T) {
	for driver, want := range map[string]string{"mysql": DriverMySQL, "": DriverMySQL, "pgsql": DriverPostgres, "sqlite": DriverSQLite} {
		d, err := NewDialect(config.DatabaseConfig{Driver: driver})
		require.NoError(t, err)
		assert.Equal(t, want, d.Name())
	}
	_, err := NewDialect(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestSQLiteCurrentDatabase(t *testing.T) {
	d, err := NewDialect(config.DatabaseConfig{Driver: DriverSQLite, SQLiteDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, d.CreateDatabase(context.Background(), nil, "gmdl_tenant_x"))
	// 重复建库不报错
	require.NoError(t, d.CreateDatabase(context.Background(), nil, "gmdl_tenant_x"))

	db, err := Open(d, "gmdl_tenant_x", 1, 1, 0)
	require.NoError(t, err)
	defer func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	}()

	name, err := d.CurrentDatabase(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, "gmdl_tenant_x", name)
}
