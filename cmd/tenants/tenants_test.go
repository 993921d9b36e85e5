package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"gmdl/internal/database"
	"gmdl/internal/database/dbtest"
	"gmdl/internal/models"
	"gmdl/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testLoader(t *testing.T, env *dbtest.Env) loader {
	t.Helper()
	return func() (*app, error) {
		a, err := newApp(env.Registry, env.Tenants, config.TenantConfig{
			MigrationsPath: "database/migrations/tenant",
			SeedClass:      database.DefaultTenantSeeder,
			LockTimeout:    2 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		// 连接由 dbtest 负责关闭
		a.close = func() {}
		return a, nil
	}
}

func execute(t *testing.T, env *dbtest.Env, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(testLoader(t, env), &out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func createTenant(t *testing.T, env *dbtest.Env, key, dbName, status string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Key: key, Name: key, DBName: dbName, Status: status}
	require.NoError(t, env.Registry.Create(tenant).Error)
	return tenant
}

func decode(t *testing.T, out string) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &body), out)
	return body
}

func TestProvisionCommand(t *testing.T) {
	env := dbtest.New(t)
	createTenant(t, env, "acme", "gmdl_tenant_acme", models.TenantStatusActive)

	out, err := execute(t, env, "provision", "acme")
	require.NoError(t, err)

	body := decode(t, out)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "acme", body["tenant_key"])
	assert.Equal(t, float64(0), body["migrate_exit"])
	assert.Equal(t, float64(0), body["seed_exit"])
	assert.Equal(t, database.DefaultTenantSeeder, body["seed_class"])
}

func TestProvisionCommandDryRunSkipSeed(t *testing.T) {
	env := dbtest.New(t)
	createTenant(t, env, "acme", "gmdl_tenant_acme", models.TenantStatusActive)

	out, err := execute(t, env, "provision", "acme", "--dry-run", "--skip-seed")
	require.NoError(t, err)

	body := decode(t, out)
	assert.Equal(t, true, body["dry_run"])
	assert.Equal(t, []interface{}{
		"create_database_if_not_exists",
		"configure_tenant_connection",
		"assert_tenant_connection",
		"migrate_tenant_path_database/migrations/tenant",
		"skip_seed",
	}, body["actions"])

	var count int64
	require.NoError(t, env.Registry.Model(&models.TenantOperationRun{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUnknownTenantExitsNonZero(t *testing.T) {
	env := dbtest.New(t)

	out, err := execute(t, env, "repair", "nobody")
	assert.ErrorIs(t, err, errOperationFailed)

	body := decode(t, out)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "TENANT_NOT_FOUND", body["error"])
}

func TestUnsafeDBNameExitsNonZero(t *testing.T) {
	env := dbtest.New(t)
	createTenant(t, env, "bad", "bad name", models.TenantStatusActive)

	out, err := execute(t, env, "migrate", "bad")
	assert.ErrorIs(t, err, errOperationFailed)

	body := decode(t, out)
	assert.Equal(t, false, body["ok"])
	assert.NotEmpty(t, body["error"])
}

func TestMigrateAllCommand(t *testing.T) {
	env := dbtest.New(t)
	createTenant(t, env, "acme", "gmdl_tenant_acme", models.TenantStatusActive)
	createTenant(t, env, "zeta", "gmdl_tenant_zeta", models.TenantStatusActive)
	createTenant(t, env, "old", "gmdl_tenant_old", models.TenantStatusSuspended)

	for _, args := range [][]string{{"migrate-all"}, {"migrate", "--all"}, {"migrate", "all"}} {
		out, err := execute(t, env, args...)
		require.NoError(t, err, args)

		body := decode(t, out)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, "all", body["mode"])
		assert.Equal(t, float64(2), body["total"])
		assert.NotEmpty(t, body["batch_id"])
		assert.Nil(t, body["seed_class"])
	}
}

func TestMigrateWithoutTenantShowsHelp(t *testing.T) {
	env := dbtest.New(t)

	out, err := execute(t, env, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "--all")
}

func TestRunsCommand(t *testing.T) {
	env := dbtest.New(t)
	createTenant(t, env, "acme", "gmdl_tenant_acme", models.TenantStatusActive)
	createTenant(t, env, "zeta", "gmdl_tenant_zeta", models.TenantStatusActive)

	_, err := execute(t, env, "provision", "acme")
	require.NoError(t, err)
	_, err = execute(t, env, "migrate-all")
	require.NoError(t, err)

	t.Run("json with filters", func(t *testing.T) {
		out, err := execute(t, env, "runs", "--tenant", "acme", "--action", "migrate", "--json")
		require.NoError(t, err)

		body := decode(t, out)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, float64(1), body["count"])
		data := body["data"].([]interface{})
		run := data[0].(map[string]interface{})
		assert.Equal(t, "acme", run["tenant_key"])
		assert.Equal(t, "migrate", run["action"])
		assert.Equal(t, "success", run["status"])
		assert.NotEmpty(t, run["batch_id"])
	})

	t.Run("newest first with clamped limit", func(t *testing.T) {
		out, err := execute(t, env, "runs", "--limit", "0", "-o", "json")
		require.NoError(t, err)

		body := decode(t, out)
		assert.Equal(t, float64(1), body["count"])
		run := body["data"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "zeta", run["tenant_key"])
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := execute(t, env, "runs", "-o", "yaml")
		require.NoError(t, err)

		var runs []map[string]interface{}
		require.NoError(t, yaml.Unmarshal([]byte(out), &runs))
		assert.Len(t, runs, 3)
	})

	t.Run("table", func(t *testing.T) {
		out, err := execute(t, env, "runs", "--status", "success")
		require.NoError(t, err)
		assert.Contains(t, out, "BATCH_ID")
		assert.Contains(t, out, "provision")
		assert.Contains(t, out, "zeta")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := execute(t, env, "runs", "-o", "xml")
		assert.Error(t, err)
	})
}

func TestRunsTableEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeRunsTable(&out, nil))
	assert.Equal(t, "No runs found.\n", out.String())
}
