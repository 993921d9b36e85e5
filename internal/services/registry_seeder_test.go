package services

import (
	"context"
	"testing"

	"gmdl/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySeedIsIdempotent(t *testing.T) {
	env := newEnv(t)
	seeder := NewRegistrySeeder(env.Registry, testBilling())
	opts := RegistrySeedOptions{
		DemoTenant:         true,
		SuperAdminEmail:    "root@gmdl.test",
		SuperAdminPassword: "secret123",
	}

	require.NoError(t, seeder.Seed(context.Background(), opts))
	require.NoError(t, seeder.Seed(context.Background(), opts))

	var plans, tenants, users, subs int64
	env.Registry.Model(&models.Plan{}).Count(&plans)
	env.Registry.Model(&models.Tenant{}).Count(&tenants)
	env.Registry.Model(&models.User{}).Count(&users)
	env.Registry.Model(&models.Subscription{}).Count(&subs)
	assert.Equal(t, int64(2), plans)
	assert.Equal(t, int64(1), tenants)
	assert.Equal(t, int64(2), users)
	assert.Equal(t, int64(1), subs)

	tenant, err := NewTenantService(env.Registry).GetByKey(context.Background(), DemoTenantKey)
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, DemoTenantDBName, tenant.DBName)

	loaded, err := NewTenantService(env.Registry).GetWithSubscription(context.Background(), tenant.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.CurrentSubscription)
	assert.Equal(t, models.SubscriptionStatusTrial, loaded.CurrentSubscription.Status)
	assert.Equal(t, DefaultPlanCode, loaded.CurrentSubscription.Plan.Code)

	admin, err := NewUserService(env.Registry).GetByEmail(context.Background(), "root@gmdl.test")
	require.NoError(t, err)
	assert.True(t, admin.IsSuperAdmin())
	assert.True(t, admin.CheckPassword("secret123"))
}
