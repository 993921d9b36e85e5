package middleware

import (
	"time"

	"gmdl/internal/models"
	"gmdl/internal/services"
	"gmdl/internal/tenancy"
	apperrors "gmdl/pkg/errors"
	"gmdl/pkg/metrics"
	"gmdl/pkg/response"

	"github.com/gin-gonic/gin"
)

// Guard 把一个基于 RequestContext 的校验函数包装成中间件
func Guard(check func(rc tenancy.RequestContext) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := check(RequestContext(c)); err != nil {
			reject(c, err)
			return
		}
		c.Next()
	}
}

// DomainScope 超级管理员只能在管理域名，租户用户只能在自己的租户域名
func DomainScope(policy tenancy.AdminPolicy) gin.HandlerFunc {
	return Guard(func(rc tenancy.RequestContext) error {
		return tenancy.CheckDomainScope(rc, policy)
	})
}

// AdminDomainOnly 控制面路由
func AdminDomainOnly(policy tenancy.AdminPolicy) gin.HandlerFunc {
	return Guard(func(rc tenancy.RequestContext) error {
		return tenancy.CheckAdminDomainOnly(rc, policy)
	})
}

// TenantDomainOnly 仅租户域名
func TenantDomainOnly() gin.HandlerFunc {
	return Guard(tenancy.CheckTenantDomainOnly)
}

// RequireRole 角色白名单
func RequireRole(roles ...string) gin.HandlerFunc {
	return Guard(func(rc tenancy.RequestContext) error {
		return tenancy.CheckRole(rc, roles...)
	})
}

// RequireSuperAdmin 仅超级管理员
func RequireSuperAdmin() gin.HandlerFunc {
	return Guard(tenancy.CheckSuperAdmin)
}

// UserActive 已禁用用户拒绝访问
func UserActive() gin.HandlerFunc {
	return Guard(tenancy.CheckUserActive)
}

// SubscriptionGate 订阅闸门，只用于需要计费的路由
func SubscriptionGate(tenants *services.TenantService, policy tenancy.BillingPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		load := func(id uint) (*models.Tenant, error) {
			return tenants.GetWithSubscription(c.Request.Context(), id)
		}
		if err := tenancy.CheckSubscription(RequestContext(c), load, policy, time.Now()); err != nil {
			reject(c, err)
			return
		}
		c.Next()
	}
}

func reject(c *gin.Context, err error) {
	if appErr, ok := apperrors.As(err); ok {
		metrics.Default().Rejections.WithLabelValues(appErr.Code).Inc()
	}
	response.Error(c, err)
}
