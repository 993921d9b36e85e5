package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gmdl/internal/models"
	"gmdl/internal/tenancy"
	apperrors "gmdl/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignClosesPreviousSubscription(t *testing.T) {
	env := newEnv(t)
	seedPlans(t, env)
	tenant := createTenant(t, env, "acme", "gmdl_tenant_acme", models.TenantStatusActive)
	svc := NewSubscriptionService(env.Registry, testBilling())
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	ctx := context.Background()

	first, err := svc.Assign(ctx, tenant.ID, AssignInput{PlanCode: "monthly_basic"})
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, first.Status)
	assert.Equal(t, ProviderManual, first.Provider)
	require.NotNil(t, first.Plan)
	assert.Equal(t, "monthly_basic", first.Plan.Code)
	assert.True(t, first.CurrentPeriodEndAt.Equal(clock.AddDate(0, 0, 30)))

	admin := uint(1)
	second, err := svc.Assign(ctx, tenant.ID, AssignInput{PlanCode: "yearly_basic", AssignedBy: &admin})
	require.NoError(t, err)
	assert.True(t, second.CurrentPeriodEndAt.Equal(clock.AddDate(0, 0, 365)))
	assert.EqualValues(t, 1, second.Meta["assigned_by"])

	var old models.Subscription
	require.NoError(t, env.Registry.First(&old, first.ID).Error)
	assert.Equal(t, models.SubscriptionStatusCanceled, old.Status)
	assert.False(t, old.CancelAtPeriodEnd)

	var reloaded models.Tenant
	require.NoError(t, env.Registry.First(&reloaded, tenant.ID).Error)
	require.NotNil(t, reloaded.CurrentSubscriptionID)
	assert.Equal(t, second.ID, *reloaded.CurrentSubscriptionID)
}

func TestAssignValidation(t *testing.T) {
	env := newEnv(t)
	seedPlans(t, env)
	tenant := createTenant(t, env, "acme", "gmdl_tenant_acme", models.TenantStatusActive)
	require.NoError(t, env.Registry.Model(&models.Plan{}).Where("code = ?", "yearly_basic").Update("is_active", false).Error)
	svc := NewSubscriptionService(env.Registry, testBilling())
	ctx := context.Background()

	_, err := svc.Assign(ctx, tenant.ID, AssignInput{PlanCode: "missing"})
	assert.Equal(t, apperrors.CodePlanNotFound, apperrors.CodeOf(err))

	_, err = svc.Assign(ctx, tenant.ID, AssignInput{PlanCode: "yearly_basic"})
	assert.Equal(t, apperrors.CodePlanNotFound, apperrors.CodeOf(err))

	_, err = svc.Assign(ctx, tenant.ID, AssignInput{PlanCode: "monthly_basic", Status: "bogus"})
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))

	_, err = svc.Assign(ctx, tenant.ID, AssignInput{PlanCode: "monthly_basic", PeriodDays: 4000})
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))

	_, err = svc.Assign(ctx, 999, AssignInput{PlanCode: "monthly_basic"})
	assert.Equal(t, apperrors.CodeTenantNotFound, apperrors.CodeOf(err))
}

func TestConcurrentAssignLeavesOneOpenSubscription(t *testing.T) {
	env := newEnv(t)
	seedPlans(t, env)
	tenant := createTenant(t, env, "acme", "gmdl_tenant_acme", models.TenantStatusActive)
	svc := NewSubscriptionService(env.Registry, testBilling())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Assign(context.Background(), tenant.ID, AssignInput{PlanCode: "monthly_basic"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var open []models.Subscription
	require.NoError(t, env.Registry.Where("tenant_id = ? AND status IN ?", tenant.ID, models.OpenSubscriptionStatuses).Find(&open).Error)
	require.Len(t, open, 1)

	var reloaded models.Tenant
	require.NoError(t, env.Registry.First(&reloaded, tenant.ID).Error)
	assert.Equal(t, open[0].ID, *reloaded.CurrentSubscriptionID)
}

func TestStartTrialIsIdempotent(t *testing.T) {
	env := newEnv(t)
	seedPlans(t, env)
	tenant := createTenant(t, env, "acme", "gmdl_tenant_acme", models.TenantStatusActive)
	svc := NewSubscriptionService(env.Registry, testBilling())
	ctx := context.Background()

	first, err := svc.StartTrial(ctx, tenant.ID, "monthly_basic", nil)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusTrial, first.Status)
	assert.Equal(t, 14, int(first.CurrentPeriodEndAt.Sub(*first.CurrentPeriodStartAt).Hours()/24))

	second, err := svc.StartTrial(ctx, tenant.ID, "monthly_basic", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestBillingStatusReportsVerdict(t *testing.T) {
	env := newEnv(t)
	seedPlans(t, env)
	tenant := createTenant(t, env, "acme", "gmdl_tenant_acme", models.TenantStatusActive)
	user := createUser(t, env, "admin@acme.test", models.RoleTenantAdmin, &tenant.ID, true)
	svc := NewSubscriptionService(env.Registry, testBilling())
	ctx := context.Background()

	rc := tenancy.RequestContext{
		Host: "acme.gmdl.test", TenantKey: "acme", TenantID: &tenant.ID,
		Authenticated: true, UserID: user.ID, Role: user.Role, UserTenantID: user.TenantID, UserActive: true,
	}

	status, err := svc.Status(ctx, rc, user)
	require.NoError(t, err)
	require.NotNil(t, status.Tenant)
	assert.Nil(t, status.Subscription)
	assert.False(t, status.Access.Allowed)
	assert.Equal(t, apperrors.CodeSubscriptionMissing, status.Access.Error)
	assert.Equal(t, 7, status.Config.GraceDays)

	_, err = svc.Assign(ctx, tenant.ID, AssignInput{PlanCode: "monthly_basic"})
	require.NoError(t, err)

	// 过期超过宽限期
	svc.now = func() time.Time { return time.Now().AddDate(0, 0, 40) }
	status, err = svc.Status(ctx, rc, user)
	require.NoError(t, err)
	require.NotNil(t, status.Subscription)
	assert.Equal(t, apperrors.CodeSubscriptionExpired, status.Access.Error)

	svc.now = time.Now
	status, err = svc.Status(ctx, rc, user)
	require.NoError(t, err)
	assert.True(t, status.Access.Allowed)
}

func TestBillingStatusRequiresTenantForTenantUsers(t *testing.T) {
	env := newEnv(t)
	user := createUser(t, env, "loose@gmdl.test", models.RoleOperator, nil, true)
	svc := NewSubscriptionService(env.Registry, testBilling())

	rc := tenancy.RequestContext{Host: "localhost", Authenticated: true, UserID: user.ID, Role: user.Role, UserActive: true}
	_, err := svc.Status(context.Background(), rc, user)
	assert.Equal(t, apperrors.CodeTenantRequired, apperrors.CodeOf(err))

	root := createUser(t, env, "root@gmdl.test", models.RoleSuperAdmin, nil, true)
	rc = tenancy.RequestContext{Host: "localhost", Authenticated: true, UserID: root.ID, Role: root.Role, UserActive: true}
	status, err := svc.Status(context.Background(), rc, root)
	require.NoError(t, err)
	assert.Nil(t, status.Tenant)
	assert.True(t, status.Access.Allowed)
}

func TestPlanListOrdering(t *testing.T) {
	env := newEnv(t)
	seedPlans(t, env)
	plans, err := NewPlanService(env.Registry).List(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "monthly_basic", plans[0].Code)
	assert.Equal(t, "yearly_basic", plans[1].Code)
}
