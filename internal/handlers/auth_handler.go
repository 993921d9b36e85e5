package handlers

import (
	"gmdl/internal/middleware"
	"gmdl/internal/services"
	"gmdl/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=255"`
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	// 请求体可能已被登录限流读取过，必须用 ShouldBindBodyWith
	err := c.ShouldBindBodyWith(&req, binding.JSON)
	c.Set(middleware.AuditEmailKey, req.Email)
	if err != nil {
		response.Fail(c, bindError(err))
		return
	}

	rc := middleware.RequestContext(c)
	result, err := h.auth.Login(c.Request.Context(), services.LoginInput{
		Email:            req.Email,
		Password:         req.Password,
		Host:             rc.Host,
		ResolvedTenantID: rc.TenantID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Me 当前用户
func (h *AuthHandler) Me(c *gin.Context) {
	response.Success(c, gin.H{"user": services.NewUserView(middleware.CurrentUser(c))})
}

// Logout 吊销当前令牌
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.CurrentClaims(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

// Refresh 换发新令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	result, err := h.auth.Refresh(c.Request.Context(), middleware.CurrentClaims(c), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
