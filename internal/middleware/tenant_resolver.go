package middleware

import (
	"gmdl/internal/database"
	"gmdl/internal/services"
	"gmdl/internal/tenancy"
	apperrors "gmdl/pkg/errors"
	"gmdl/pkg/response"

	"github.com/gin-gonic/gin"
)

// ResolveTenant 按主机名解析租户，并把该租户库的连接句柄放进请求上下文
// 管理域名与无法提取租户 key 的主机都按控制面请求处理；租户库连接在 TenantDB 首次调用时才打开
func ResolveTenant(tenants *services.TenantService, conns *database.TenantConnections, policy tenancy.AdminPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		host := tenancy.NormalizeHost(c.Request.Host)
		rc := tenancy.RequestContext{Host: host}

		key := ""
		if !policy.IsAdminHost(host) {
			key = tenancy.ExtractTenantKey(host)
		}
		if key == "" {
			setRequestContext(c, rc)
			c.Next()
			return
		}

		tenant, err := tenants.GetByKey(c.Request.Context(), key)
		if err != nil {
			response.Error(c, err)
			return
		}
		if tenant == nil {
			reject(c, apperrors.NotFound(apperrors.CodeTenantNotFound, "Tenant not found.").
				With("tenant_key", key).
				With("host", host))
			return
		}

		id := tenant.ID
		rc.TenantKey = tenant.Key
		rc.TenantID = &id
		rc.TenantDBName = tenant.DBName
		setRequestContext(c, rc)

		conn := &tenantConn{conns: conns, dbName: tenant.DBName}
		c.Set(tenantDBKey, conn)
		defer conn.close()

		c.Next()
	}
}
