package middleware

import (
	"sync"

	"gmdl/internal/database"
	"gmdl/internal/models"
	"gmdl/internal/tenancy"
	"gmdl/pkg/jwt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// gin 上下文中的键
const (
	requestContextKey = "tenancy.request_context"
	tenantDBKey       = "tenancy.tenant_db"
	userKey           = "auth.user"
	claimsKey         = "auth.claims"

	// AuditEmailKey 登录处理器写入，审计中间件读取
	AuditEmailKey = "audit.email"
)

// RequestContext 取出本次请求的上下文；没有时按主机名构造一个空的
func RequestContext(c *gin.Context) tenancy.RequestContext {
	if v, ok := c.Get(requestContextKey); ok {
		if rc, ok := v.(tenancy.RequestContext); ok {
			return rc
		}
	}
	return tenancy.RequestContext{Host: c.Request.Host}
}

func setRequestContext(c *gin.Context, rc tenancy.RequestContext) {
	c.Set(requestContextKey, rc)
}

// tenantConn 请求内首次使用时才打开的租户库连接
type tenantConn struct {
	conns  *database.TenantConnections
	dbName string

	once    sync.Once
	db      *gorm.DB
	release func()
	err     error
}

func (t *tenantConn) get() (*gorm.DB, error) {
	t.once.Do(func() {
		t.db, t.release, t.err = t.conns.For(t.dbName)
	})
	return t.db, t.err
}

func (t *tenantConn) close() {
	if t.release != nil {
		t.release()
	}
}

// TenantDB 当前租户库连接，首次调用时打开；未解析到租户时返回 nil, nil
func TenantDB(c *gin.Context) (*gorm.DB, error) {
	v, ok := c.Get(tenantDBKey)
	if !ok {
		return nil, nil
	}
	conn, ok := v.(*tenantConn)
	if !ok {
		return nil, nil
	}
	db, err := conn.get()
	if err != nil {
		return nil, err
	}
	return db.WithContext(c.Request.Context()), nil
}

// CurrentUser 当前登录用户
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// CurrentClaims 当前令牌声明
func CurrentClaims(c *gin.Context) *jwt.JWTClaims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*jwt.JWTClaims); ok {
			return claims
		}
	}
	return nil
}
