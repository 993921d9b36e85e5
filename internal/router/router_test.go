package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gmdl/internal/database/dbtest"
	"gmdl/internal/models"
	"gmdl/internal/services"
	"gmdl/internal/tenancy"
	"gmdl/pkg/config"
	"gmdl/pkg/jwt"
	"gmdl/pkg/metrics"
	"gmdl/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminHost  = "localhost"
	tenantHost = "acme.gmdl.test"
	superEmail = "root@gmdl.test"
	password   = "Password123"
)

type testServer struct {
	engine *gin.Engine
	env    *dbtest.Env
	audit  *services.AuditRecorder
}

func testConfig() *config.Config {
	return &config.Config{
		App:   config.AppConfig{Env: "testing"},
		Admin: config.AdminConfig{AllowedHosts: []string{"localhost", "127.0.0.1"}},
		Billing: config.BillingConfig{
			TrialDays:       14,
			GraceDays:       7,
			AllowedStatuses: []string{"trial", "active", "past_due"},
		},
		RateLimit: config.RateLimitConfig{LoginPerMinute: 5, AdminPerMinute: 60},
		CORS:      config.CORSConfig{AllowOrigins: []string{"*"}, AllowMethods: []string{"GET", "POST"}},
	}
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	env := dbtest.New(t)
	err := services.NewRegistrySeeder(env.Registry, tenancy.BillingPolicyFromConfig(cfg)).Seed(context.Background(), services.RegistrySeedOptions{
		DemoTenant:         true,
		SuperAdminEmail:    superEmail,
		SuperAdminPassword: password,
	})
	require.NoError(t, err)

	audit := services.NewAuditRecorder(env.Registry, 64)
	audit.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = audit.Close(ctx)
	})

	engine := SetupRouter(Dependencies{
		Config:      cfg,
		Registry:    env.Registry,
		Tenants:     env.Tenants,
		JWT:         jwt.NewJWTManager("router-test-secret", time.Hour),
		Revocations: jwt.NewMemoryRevocationStore(),
		Limiter:     ratelimit.NewMemoryRateLimiter(),
		Audit:       audit,
		Metrics:     metrics.Default(),
	})
	return &testServer{engine: engine, env: env, audit: audit}
}

func (s *testServer) do(t *testing.T, method, host, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Host = host
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, host, email string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, host, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "bearer", body["token_type"])
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) map[string]interface{} {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, code, body["error"])
	return body
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	t.Run("admin host", func(t *testing.T) {
		w := s.do(t, http.MethodGet, adminHost+":8080", "/api/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, "localhost", body["host"])
		assert.Equal(t, "sqlite", body["driver"])
		assert.Nil(t, body["tenant_key"])
		assert.Equal(t, dbtest.RegistryName, body["registry_db"])
		assert.Nil(t, body["tenant_db"])
	})

	t.Run("tenant host", func(t *testing.T) {
		w := s.do(t, http.MethodGet, tenantHost, "/api/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "acme", body["tenant_key"])
		assert.Equal(t, services.DemoTenantDBName, body["tenant_db_resolved"])
		assert.Equal(t, services.DemoTenantDBName, body["tenant_db"])
		assert.Equal(t, true, body["tenant_connection_ok"])
	})

	t.Run("unknown tenant", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "ghost.gmdl.test", "/api/health", "", nil)
		body := assertError(t, w, http.StatusNotFound, "TENANT_NOT_FOUND")
		assert.Equal(t, "ghost", body["tenant_key"])
		assert.Equal(t, "ghost.gmdl.test", body["host"])
	})
}

func TestLoginDomainRules(t *testing.T) {
	s := newServer(t)

	s.login(t, tenantHost, services.DemoTenantAdmin)
	s.login(t, adminHost, superEmail)

	tests := []struct {
		name   string
		host   string
		email  string
		pass   string
		status int
		code   string
	}{
		{"tenant user on admin host", adminHost, services.DemoTenantAdmin, password, http.StatusForbidden, "TENANT_DOMAIN_REQUIRED"},
		{"super admin on tenant host", tenantHost, superEmail, password, http.StatusForbidden, "ADMIN_DOMAIN_ONLY"},
		{"wrong password", tenantHost, services.DemoTenantAdmin, "wrong-password", http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"invalid email", tenantHost, "not-an-email", password, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.host, "/api/auth/login", "", gin.H{"email": tt.email, "password": tt.pass})
			assertError(t, w, tt.status, tt.code)
		})
	}
}

func TestLoginRateLimited(t *testing.T) {
	s := newServer(t)
	creds := gin.H{"email": services.DemoTenantAdmin, "password": "wrong-password"}

	for i := 0; i < 5; i++ {
		w := s.do(t, http.MethodPost, tenantHost, "/api/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := s.do(t, http.MethodPost, tenantHost, "/api/auth/login", "", creds)
	body := assertError(t, w, http.StatusTooManyRequests, "RATE_LIMITED")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.NotNil(t, body["retry_after"])

	// 其他邮箱不受影响
	s.login(t, adminHost, superEmail)
}

func TestMeLogoutRefresh(t *testing.T) {
	s := newServer(t)
	token := s.login(t, tenantHost, services.DemoTenantAdmin)

	w := s.do(t, http.MethodGet, tenantHost, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := decode(t, w)["user"].(map[string]interface{})
	assert.Equal(t, services.DemoTenantAdmin, user["email"])
	assert.Equal(t, models.RoleTenantAdmin, user["role"])

	// 令牌只能在自己的租户域名使用
	w = s.do(t, http.MethodGet, adminHost, "/api/auth/me", token, nil)
	assertError(t, w, http.StatusForbidden, "TENANT_DOMAIN_REQUIRED")

	w = s.do(t, http.MethodPost, tenantHost, "/api/auth/refresh", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	refreshed := decode(t, w)["access_token"].(string)
	assert.NotEqual(t, token, refreshed)

	w = s.do(t, http.MethodGet, tenantHost, "/api/auth/me", token, nil)
	assertError(t, w, http.StatusUnauthorized, "TOKEN_INVALID")

	w = s.do(t, http.MethodPost, tenantHost, "/api/auth/logout", refreshed, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, tenantHost, "/api/auth/me", refreshed, nil)
	assertError(t, w, http.StatusUnauthorized, "TOKEN_INVALID")

	w = s.do(t, http.MethodGet, tenantHost, "/api/auth/me", "", nil)
	assertError(t, w, http.StatusUnauthorized, "UNAUTHENTICATED")
}

func TestProtectedPingSubscriptionGate(t *testing.T) {
	s := newServer(t)
	token := s.login(t, tenantHost, services.DemoTenantAdmin)

	w := s.do(t, http.MethodGet, tenantHost, "/api/protected/ping", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["ok"])

	// 周期结束超过宽限期
	past := time.Now().UTC().AddDate(0, 0, -30)
	require.NoError(t, s.env.Registry.Model(&models.Subscription{}).
		Where("1 = 1").
		Update("current_period_end_at", past).Error)

	w = s.do(t, http.MethodGet, tenantHost, "/api/protected/ping", token, nil)
	body := assertError(t, w, http.StatusPaymentRequired, "SUBSCRIPTION_EXPIRED")
	assert.Equal(t, float64(7), body["grace_days"])

	// 计费状态不受闸门限制
	w = s.do(t, http.MethodGet, tenantHost, "/api/billing/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	access := status["access"].(map[string]interface{})
	assert.Equal(t, false, access["allowed"])
	assert.Equal(t, "SUBSCRIPTION_EXPIRED", access["error"])
	assert.Equal(t, "acme", status["tenant"].(map[string]interface{})["key"])
}

func TestProtectedPingRejectsSuperAdmin(t *testing.T) {
	s := newServer(t)
	token := s.login(t, adminHost, superEmail)

	w := s.do(t, http.MethodGet, adminHost, "/api/protected/ping", token, nil)
	assertError(t, w, http.StatusForbidden, "TENANT_DOMAIN_REQUIRED")
}

func TestAdminRoutes(t *testing.T) {
	s := newServer(t)
	token := s.login(t, adminHost, superEmail)

	t.Run("plans", func(t *testing.T) {
		w := s.do(t, http.MethodGet, adminHost, "/api/admin/plans", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		plans := decode(t, w)["data"].([]interface{})
		require.Len(t, plans, 2)
		assert.Equal(t, "monthly_basic", plans[0].(map[string]interface{})["code"])
	})

	t.Run("assign subscription", func(t *testing.T) {
		w := s.do(t, http.MethodPost, adminHost, "/api/admin/tenants/acme/subscription", token, gin.H{"plan_code": "yearly_basic"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		sub := decode(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "active", sub["status"])
		assert.Equal(t, "manual", sub["provider"])
		assert.NotNil(t, sub["meta"].(map[string]interface{})["assigned_by"])

		var open int64
		require.NoError(t, s.env.Registry.Model(&models.Subscription{}).
			Where("status IN ?", models.OpenSubscriptionStatuses).
			Count(&open).Error)
		assert.Equal(t, int64(1), open)
	})

	t.Run("assign validation", func(t *testing.T) {
		w := s.do(t, http.MethodPost, adminHost, "/api/admin/tenants/acme/subscription", token, gin.H{"plan_code": "nope"})
		assertError(t, w, http.StatusUnprocessableEntity, "PLAN_NOT_FOUND")

		w = s.do(t, http.MethodPost, adminHost, "/api/admin/tenants/acme/subscription", token, gin.H{"plan_code": "monthly_basic", "period_days": 5000})
		assertError(t, w, http.StatusUnprocessableEntity, "VALIDATION_FAILED")

		w = s.do(t, http.MethodPost, adminHost, "/api/admin/tenants/999/subscription", token, gin.H{"plan_code": "monthly_basic"})
		assertError(t, w, http.StatusNotFound, "TENANT_NOT_FOUND")
	})

	t.Run("runs", func(t *testing.T) {
		w := s.do(t, http.MethodGet, adminHost, "/api/admin/runs?limit=500", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, float64(200), body["page_info"].(map[string]interface{})["page_size"])
	})

	t.Run("tenant admin denied", func(t *testing.T) {
		tenantToken := s.login(t, tenantHost, services.DemoTenantAdmin)
		w := s.do(t, http.MethodGet, tenantHost, "/api/admin/plans", tenantToken, nil)
		assertError(t, w, http.StatusForbidden, "ADMIN_ACCESS_DENIED")
	})
}

func TestAuditTrail(t *testing.T) {
	s := newServer(t)
	s.login(t, tenantHost, services.DemoTenantAdmin)
	w := s.do(t, http.MethodPost, tenantHost, "/api/auth/login", "", gin.H{"email": "Nobody@Example.com", "password": "whatever"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	s.do(t, http.MethodGet, adminHost, "/api/health", "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.audit.Close(ctx))

	var logs []models.AuditLog
	require.NoError(t, s.env.Registry.Order("id ASC").Find(&logs).Error)
	require.Len(t, logs, 2)

	assert.Equal(t, models.AuditEventLoginSuccess, logs[0].Event)
	assert.Equal(t, services.DemoTenantAdmin, logs[0].Meta["email"])
	assert.NotNil(t, logs[0].TenantID)

	assert.Equal(t, models.AuditEventLoginFailed, logs[1].Event)
	assert.Equal(t, "nobody@example.com", logs[1].Meta["email"])
	assert.Equal(t, "INVALID_CREDENTIALS", logs[1].Meta["error"])
	assert.Equal(t, http.StatusUnauthorized, logs[1].StatusCode)
}

func TestNoRouteAndMetrics(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, adminHost, "/api/missing", "", nil)
	assertError(t, w, http.StatusNotFound, "NOT_FOUND")

	w = s.do(t, http.MethodGet, adminHost, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gmdl_http_requests_total")
}
