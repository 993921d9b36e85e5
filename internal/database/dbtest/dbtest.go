// Package dbtest 为测试提供基于 sqlite 临时目录的注册库与租户库
package dbtest

import (
	"context"
	"testing"
	"time"

	"gmdl/internal/database"
	"gmdl/pkg/config"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// RegistryName 测试注册库名
const RegistryName = "gmdl_registry"

// Env 测试数据库环境
type Env struct {
	Dir      string
	Dialect  database.Dialect
	Registry *gorm.DB
	Tenants  *database.TenantConnections
}

// New 在 t.TempDir() 下建立已迁移的注册库
func New(t *testing.T) *Env {
	t.Helper()

	dir := t.TempDir()
	dialect, err := database.NewDialect(config.DatabaseConfig{Driver: database.DriverSQLite, SQLiteDir: dir})
	require.NoError(t, err)
	require.NoError(t, dialect.CreateDatabase(context.Background(), nil, RegistryName))

	registry, err := database.Open(dialect, RegistryName, 1, 1, 0)
	require.NoError(t, err)
	require.NoError(t, database.MigrateRegistry(registry))

	tenants := database.NewTenantConnections(dialect, config.TenantConfig{
		ConnIdleTTL:    time.Minute,
		ConnMaxOpen:    1,
		MaxCachedPools: 16,
	})

	t.Cleanup(func() {
		tenants.Close()
		if sqlDB, err := registry.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &Env{Dir: dir, Dialect: dialect, Registry: registry, Tenants: tenants}
}
