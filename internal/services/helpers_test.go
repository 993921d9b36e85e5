package services

import (
	"context"
	"testing"

	"gmdl/internal/database/dbtest"
	"gmdl/internal/models"
	"gmdl/internal/tenancy"

	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T) *dbtest.Env {
	t.Helper()
	return dbtest.New(t)
}

func createTenant(t *testing.T, env *dbtest.Env, key, dbName, status string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Key: key, Name: key, DBName: dbName, Status: status}
	require.NoError(t, env.Registry.Create(tenant).Error)
	return tenant
}

func createUser(t *testing.T, env *dbtest.Env, email, role string, tenantID *uint, active bool) *models.User {
	t.Helper()
	user, err := NewUserService(env.Registry).Upsert(context.Background(), UpsertUserInput{
		Name:     email,
		Email:    email,
		Password: "Password123",
		Role:     role,
		TenantID: tenantID,
		IsActive: active,
	})
	require.NoError(t, err)
	return user
}

func seedPlans(t *testing.T, env *dbtest.Env) {
	t.Helper()
	require.NoError(t, NewRegistrySeeder(env.Registry, testBilling()).SeedPlans(context.Background()))
}

func testBilling() tenancy.BillingPolicy {
	return tenancy.BillingPolicy{
		TrialDays:       14,
		GraceDays:       7,
		AllowedStatuses: []string{"trial", "active", "past_due"},
	}
}
