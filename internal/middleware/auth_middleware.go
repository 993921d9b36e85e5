package middleware

import (
	"strings"

	"gmdl/internal/services"
	"gmdl/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 令牌认证
type AuthMiddleware struct {
	auth *services.AuthService
}

func NewAuthMiddleware(auth *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireLogin 校验 Bearer 令牌，把用户信息补进请求上下文
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "Unauthenticated.")
			return
		}

		claims, user, err := m.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			return
		}

		rc := RequestContext(c)
		rc.Authenticated = true
		rc.UserID = user.ID
		rc.Role = user.Role
		rc.UserTenantID = user.TenantID
		rc.UserActive = user.IsActive
		setRequestContext(c, rc)

		c.Set(userKey, user)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
