package database

import (
	"context"
	"errors"
	"testing"

	"gmdl/internal/models"
	"gmdl/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTenantDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	f, d := newSQLiteConnections(t, config.TenantConfig{})
	createDB(t, d, name)
	db, release, err := f.For(name)
	require.NoError(t, err)
	t.Cleanup(release)
	return db
}

func TestTenantRunnerMigrateIsIdempotent(t *testing.T) {
	db := openTenantDB(t, "gmdl_tenant_m")
	r := NewTenantRunner()
	ctx := context.Background()

	res := r.Migrate(ctx, db, "database/migrations/tenant")
	require.True(t, res.OK(), res.Output)
	assert.Contains(t, res.Output, "Migrated:  2025_12_30_153521_create_tenant_settings_table")
	assert.True(t, db.Migrator().HasTable(&models.TenantSetting{}))

	res = r.Migrate(ctx, db, "database/migrations/tenant")
	require.True(t, res.OK(), res.Output)
	assert.Contains(t, res.Output, "Nothing to migrate.")

	var count int64
	require.NoError(t, db.Model(&models.SchemaMigration{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTenantRunnerUnknownPath(t *testing.T) {
	db := openTenantDB(t, "gmdl_tenant_p")
	res := NewTenantRunner().Migrate(context.Background(), db, "database/migrations/unknown")
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Output, "Migration path not found")
}

func TestTenantRunnerFailingMigration(t *testing.T) {
	db := openTenantDB(t, "gmdl_tenant_f")
	RegisterTenantMigrations("broken_set", TenantMigration{
		ID: "0001_broken",
		Up: func(tx *gorm.DB) error { return errors.New("boom") },
	})

	res := NewTenantRunner().Migrate(context.Background(), db, "database/migrations/broken_set")
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Output, "0001_broken: boom")

	var count int64
	require.NoError(t, db.Model(&models.SchemaMigration{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestTenantRunnerSeed(t *testing.T) {
	db := openTenantDB(t, "gmdl_tenant_s")
	r := NewTenantRunner()
	ctx := context.Background()

	require.True(t, r.Migrate(ctx, db, "tenant").OK())

	res := r.Seed(ctx, db, DefaultTenantSeeder)
	require.True(t, res.OK(), res.Output)
	res = r.Seed(ctx, db, DefaultTenantSeeder)
	require.True(t, res.OK(), res.Output)

	var count int64
	require.NoError(t, db.Model(&models.TenantSetting{}).Count(&count).Error)
	assert.Equal(t, int64(len(defaultTenantSettings)), count)

	res = r.Seed(ctx, db, "MissingSeeder")
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Output, "Seeder not found")
}
