package services

import (
	"context"
	"testing"
	"time"

	"gmdl/internal/models"
	"gmdl/internal/tenancy"
	apperrors "gmdl/pkg/errors"
	"gmdl/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth(t *testing.T) (*AuthService, *jwt.MemoryRevocationStore, func() *models.Tenant) {
	t.Helper()
	env := newEnv(t)
	store := jwt.NewMemoryRevocationStore()
	svc := NewAuthService(env.Registry, jwt.NewJWTManager("test-secret", time.Hour), store, tenancy.AdminPolicy{
		AllowedHosts:      []string{"localhost"},
		AllowDevSubdomain: true,
	})

	tenant := createTenant(t, env, "acme", "gmdl_tenant_acme", models.TenantStatusActive)
	createUser(t, env, "root@gmdl.test", models.RoleSuperAdmin, nil, true)
	createUser(t, env, "admin@acme.test", models.RoleTenantAdmin, &tenant.ID, true)
	createUser(t, env, "off@acme.test", models.RoleOperator, &tenant.ID, false)

	return svc, store, func() *models.Tenant { return tenant }
}

func TestLoginTenantUserOnOwnDomain(t *testing.T) {
	svc, _, tenant := newAuth(t)
	id := tenant().ID

	res, err := svc.Login(context.Background(), LoginInput{
		Email:            "ADMIN@acme.test",
		Password:         "Password123",
		Host:             "acme.gmdl.test",
		ResolvedTenantID: &id,
	})
	require.NoError(t, err)
	assert.Equal(t, "bearer", res.TokenType)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleTenantAdmin, res.User.Role)
	assert.NotNil(t, res.User.LastLoginAt)
}

func TestLoginRejections(t *testing.T) {
	svc, _, tenant := newAuth(t)
	id := tenant().ID
	other := id + 100

	cases := []struct {
		name string
		in   LoginInput
		code string
	}{
		{"wrong password", LoginInput{Email: "admin@acme.test", Password: "nope", Host: "acme.gmdl.test", ResolvedTenantID: &id}, apperrors.CodeInvalidCredentials},
		{"unknown user", LoginInput{Email: "ghost@acme.test", Password: "Password123", Host: "acme.gmdl.test", ResolvedTenantID: &id}, apperrors.CodeInvalidCredentials},
		{"disabled", LoginInput{Email: "off@acme.test", Password: "Password123", Host: "acme.gmdl.test", ResolvedTenantID: &id}, apperrors.CodeUserDisabled},
		{"super admin on tenant host", LoginInput{Email: "root@gmdl.test", Password: "Password123", Host: "acme.gmdl.test", ResolvedTenantID: &id}, apperrors.CodeAdminDomainOnly},
		{"tenant user on admin host", LoginInput{Email: "admin@acme.test", Password: "Password123", Host: "localhost"}, apperrors.CodeTenantDomainRequired},
		{"tenant user on other tenant", LoginInput{Email: "admin@acme.test", Password: "Password123", Host: "beta.gmdl.test", ResolvedTenantID: &other}, apperrors.CodeTenantMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tc.in)
			assert.Equal(t, tc.code, apperrors.CodeOf(err))
		})
	}
}

func TestLoginRejectsInactiveTenant(t *testing.T) {
	env := newEnv(t)
	svc := NewAuthService(env.Registry, jwt.NewJWTManager("s", time.Hour), nil, tenancy.AdminPolicy{})
	tenant := createTenant(t, env, "frozen", "gmdl_tenant_frozen", models.TenantStatusSuspended)
	createUser(t, env, "u@frozen.test", models.RoleOperator, &tenant.ID, true)

	_, err := svc.Login(context.Background(), LoginInput{
		Email: "u@frozen.test", Password: "Password123", Host: "frozen.gmdl.test", ResolvedTenantID: &tenant.ID,
	})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeTenantNotActive, appErr.Code)
	assert.Equal(t, 403, appErr.Status)
}

func TestSuperAdminLoginOnAdminHost(t *testing.T) {
	svc, _, _ := newAuth(t)
	for _, host := range []string{"localhost", "admin.gmdl.test"} {
		_, err := svc.Login(context.Background(), LoginInput{Email: "root@gmdl.test", Password: "Password123", Host: host})
		assert.NoError(t, err, host)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _, _ := newAuth(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, LoginInput{Email: "root@gmdl.test", Password: "Password123", Host: "localhost"})
	require.NoError(t, err)

	claims, user, err := svc.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "root@gmdl.test", user.Email)

	require.NoError(t, svc.Logout(ctx, claims))

	_, _, err = svc.Authenticate(ctx, res.AccessToken)
	assert.Equal(t, apperrors.CodeTokenInvalid, apperrors.CodeOf(err))
}

func TestRefreshIssuesNewTokenAndRevokesOld(t *testing.T) {
	svc, _, _ := newAuth(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, LoginInput{Email: "root@gmdl.test", Password: "Password123", Host: "localhost"})
	require.NoError(t, err)
	claims, user, err := svc.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, claims, user)
	require.NoError(t, err)
	assert.NotEqual(t, res.AccessToken, refreshed.AccessToken)

	_, _, err = svc.Authenticate(ctx, res.AccessToken)
	assert.Error(t, err)
	_, _, err = svc.Authenticate(ctx, refreshed.AccessToken)
	assert.NoError(t, err)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	svc, _, _ := newAuth(t)
	_, _, err := svc.Authenticate(context.Background(), "not-a-token")
	assert.Equal(t, apperrors.CodeTokenInvalid, apperrors.CodeOf(err))
}
