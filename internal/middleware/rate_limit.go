package middleware

import (
	"math"
	"strconv"
	"strings"
	"time"

	"gmdl/pkg/logger"
	"gmdl/pkg/metrics"
	"gmdl/pkg/ratelimit"
	"gmdl/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"
)

// KeyFunc 生成限流键
type KeyFunc func(c *gin.Context) string

// RateLimit 固定窗口限流；限流器不可用时放行
func RateLimit(limiter ratelimit.RateLimiter, scope string, limit int, window time.Duration, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), scope+":"+key(c), limit, window)
		if err != nil {
			logger.GetLogger().WithFields(logrus.Fields{
				"scope": scope,
				"error": err.Error(),
			}).Warn("Rate limiter unavailable")
			c.Next()
			return
		}
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			metrics.Default().RateLimited.WithLabelValues(scope).Inc()
			c.Header("Retry-After", strconv.Itoa(seconds))
			response.TooManyRequests(c, seconds)
			return
		}
		c.Next()
	}
}

// ByIP 按客户端 IP
func ByIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByIPAndEmail 登录限流键：IP + 请求体中的邮箱（请求体缓存在上下文中，处理器需用 ShouldBindBodyWith 读取）
func ByIPAndEmail(c *gin.Context) string {
	var body struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindBodyWith(&body, binding.JSON)
	return c.ClientIP() + "|" + strings.ToLower(strings.TrimSpace(body.Email))
}
