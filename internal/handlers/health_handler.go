package handlers

import (
	"gmdl/internal/database"
	"gmdl/internal/middleware"
	"gmdl/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler 诊断接口，不需要登录
type HealthHandler struct {
	registry        *gorm.DB
	conns           *database.TenantConnections
	defaultTenantDB string
}

func NewHealthHandler(registry *gorm.DB, conns *database.TenantConnections, defaultTenantDB string) *HealthHandler {
	return &HealthHandler{registry: registry, conns: conns, defaultTenantDB: defaultTenantDB}
}

// Health 返回解析出的租户信息以及两个连接实际所在的库
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	rc := middleware.RequestContext(c)
	dialect := h.conns.Dialect()

	body := gin.H{
		"ok":                 true,
		"host":               rc.Host,
		"driver":             dialect.Name(),
		"tenant_key":         nullable(rc.TenantKey),
		"tenant_id":          rc.TenantID,
		"tenant_db_resolved": nullable(rc.TenantDBName),
	}

	registryDB, err := dialect.CurrentDatabase(ctx, h.registry)
	if err != nil {
		body["ok"] = false
		body["registry_error"] = err.Error()
	} else {
		body["registry_db"] = registryDB
	}

	body["tenant_db"] = nil
	body["tenant_connection_ok"] = true

	tenantDB, err := middleware.TenantDB(c)
	if err != nil {
		body["ok"] = false
		body["tenant_connection_ok"] = false
		body["tenant_error"] = err.Error()
	}
	if tenantDB == nil && err == nil && h.defaultTenantDB != "" {
		if db, release, err := h.conns.For(h.defaultTenantDB); err == nil {
			defer release()
			tenantDB = db.WithContext(ctx)
		}
	}

	if tenantDB != nil {
		name, err := dialect.CurrentDatabase(ctx, tenantDB)
		if err != nil {
			body["ok"] = false
			body["tenant_connection_ok"] = false
			body["tenant_error"] = err.Error()
		} else {
			body["tenant_db"] = name
			if rc.TenantDBName != "" && name != rc.TenantDBName {
				body["tenant_connection_ok"] = false
			}
		}
	}

	response.Success(c, body)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
