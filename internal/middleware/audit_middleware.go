package middleware

import (
	"strings"
	"time"
	"unicode/utf8"

	"gmdl/internal/models"
	"gmdl/internal/services"
	"gmdl/internal/tenancy"
	"gmdl/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuditTrail 请求结束后分类并异步写审计日志，永远不影响响应
func AuditTrail(recorder *services.AuditRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		rc := RequestContext(c)
		status := c.Writer.Status()
		event := services.ClassifyAudit(services.AuditRequest{
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			Status:         status,
			TenantResolved: rc.HasResolvedTenant(),
		})
		if event == "" {
			return
		}

		meta := map[string]interface{}{
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if event == models.AuditEventLoginSuccess || event == models.AuditEventLoginFailed {
			meta["email"] = strings.ToLower(c.GetString(AuditEmailKey))
			if code := c.GetString(response.ErrorCodeKey); code != "" {
				meta["error"] = code
			}
		}

		entry := &models.AuditLog{
			TenantID:   rc.TenantID,
			Event:      event,
			Method:     strings.ToUpper(c.Request.Method),
			Path:       "/" + strings.TrimLeft(c.Request.URL.Path, "/"),
			StatusCode: status,
			IP:         c.ClientIP(),
			Host:       tenancy.NormalizeHost(c.Request.Host),
			UserAgent:  truncate(c.Request.UserAgent(), 512),
			Meta:       meta,
		}
		if rc.Authenticated {
			userID := rc.UserID
			entry.UserID = &userID
		}
		recorder.Record(entry)
	}
}

// truncate 按字符截断，不拆开多字节字符
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
