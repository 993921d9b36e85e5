package router

import (
	"time"

	"gmdl/internal/database"
	"gmdl/internal/handlers"
	"gmdl/internal/middleware"
	"gmdl/internal/models"
	"gmdl/internal/services"
	"gmdl/internal/tenancy"
	"gmdl/pkg/config"
	"gmdl/pkg/jwt"
	"gmdl/pkg/metrics"
	"gmdl/pkg/ratelimit"
	"gmdl/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies 路由所需的共享组件
type Dependencies struct {
	Config      *config.Config
	Registry    *gorm.DB
	Tenants     *database.TenantConnections
	JWT         *jwt.JWTManager
	Revocations jwt.RevocationStore
	Limiter     ratelimit.RateLimiter
	Audit       *services.AuditRecorder
	Metrics     *metrics.Metrics
}

// SetupRouter 设置路由
func SetupRouter(d Dependencies) *gin.Engine {
	router := gin.New()

	adminPolicy := tenancy.AdminPolicyFromConfig(d.Config)
	tenantService := services.NewTenantService(d.Registry)

	// 中间件：先解析租户，审计在最外层以便拿到最终状态码
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Metrics(d.Metrics))
	router.Use(middleware.SetupCORS(d.Config.CORS))
	router.Use(middleware.ResolveTenant(tenantService, d.Tenants, adminPolicy))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.AuditTrail(d.Audit))

	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "Route not found.")
	})

	registerRoutes(router, d, adminPolicy, tenantService)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, d Dependencies, adminPolicy tenancy.AdminPolicy, tenantService *services.TenantService) {
	billingPolicy := tenancy.BillingPolicyFromConfig(d.Config)

	authService := services.NewAuthService(d.Registry, d.JWT, d.Revocations, adminPolicy)
	subscriptionService := services.NewSubscriptionService(d.Registry, billingPolicy)
	auth := middleware.NewAuthMiddleware(authService)

	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := router.Group("/api")
	{
		healthHandler := handlers.NewHealthHandler(d.Registry, d.Tenants, d.Config.Tenant.DefaultDatabase)
		api.GET("/health", healthHandler.Health)

		// 认证
		authHandler := handlers.NewAuthHandler(authService)
		scoped := []gin.HandlerFunc{auth.RequireLogin(), middleware.DomainScope(adminPolicy), middleware.UserActive()}
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login",
				middleware.RateLimit(d.Limiter, "login", d.Config.RateLimit.LoginPerMinute, time.Minute, middleware.ByIPAndEmail),
				authHandler.Login)
			authGroup.POST("/logout", append(scoped, authHandler.Logout)...)
			authGroup.GET("/me", append(scoped, authHandler.Me)...)
			authGroup.POST("/refresh", append(scoped, authHandler.Refresh)...)
		}

		// 计费状态：不经过订阅闸门，过期后也能查看
		billingHandler := handlers.NewBillingHandler(subscriptionService)
		api.GET("/billing/status", append(scoped, billingHandler.Status)...)

		// 控制面
		adminHandler := handlers.NewAdminHandler(
			services.NewPlanService(d.Registry),
			tenantService,
			subscriptionService,
			services.NewOperationRunService(d.Registry),
		)
		admin := api.Group("/admin",
			auth.RequireLogin(),
			middleware.UserActive(),
			middleware.RateLimit(d.Limiter, "admin", d.Config.RateLimit.AdminPerMinute, time.Minute, middleware.ByIP),
			middleware.AdminDomainOnly(adminPolicy),
			middleware.RequireSuperAdmin(),
		)
		{
			admin.GET("/plans", adminHandler.Plans)
			admin.POST("/tenants/:id/subscription", adminHandler.AssignSubscription)
			admin.GET("/runs", adminHandler.Runs)
		}

		// 租户域名 + 订阅闸门示例
		protected := api.Group("/protected",
			auth.RequireLogin(),
			middleware.DomainScope(adminPolicy),
			middleware.TenantDomainOnly(),
			middleware.RequireRole(models.RoleTenantAdmin, models.RoleOperator),
			middleware.SubscriptionGate(tenantService, billingPolicy),
		)
		{
			protected.GET("/ping", handlers.Ping)
		}
	}
}
