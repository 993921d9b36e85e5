package middleware

import (
	"runtime/debug"

	"gmdl/pkg/logger"
	"gmdl/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorHandler 错误处理中间件 - 主要处理panic
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.GetLogger().WithFields(logrus.Fields{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"panic":  err,
					"stack":  string(debug.Stack()),
				}).Error("Panic recovered")
				response.ServerError(c, "Internal server error.")
			}
		}()

		c.Next()
	}
}

// RequestLogger 访问日志
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		rc := RequestContext(c)
		fields := logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
			"ip":     c.ClientIP(),
			"host":   rc.Host,
		}
		if rc.TenantKey != "" {
			fields["tenant_key"] = rc.TenantKey
		}
		if rc.Authenticated {
			fields["user_id"] = rc.UserID
		}
		if code := c.GetString(response.ErrorCodeKey); code != "" {
			fields["error"] = code
		}
		logger.GetLogger().WithFields(fields).Debug("Request handled")
	}
}
