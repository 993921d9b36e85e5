package services

import (
	"context"
	"net/http"
	"time"

	"gmdl/internal/models"
	"gmdl/internal/tenancy"
	apperrors "gmdl/pkg/errors"
	"gmdl/pkg/jwt"
	"gmdl/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LoginInput 登录参数；Host 与 ResolvedTenantID 来自租户解析
type LoginInput struct {
	Email            string
	Password         string
	Host             string
	ResolvedTenantID *uint
}

// UserView 返回给客户端的用户信息
type UserView struct {
	ID          uint       `json:"id"`
	TenantID    *uint      `json:"tenant_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// NewUserView 转换
func NewUserView(u *models.User) *UserView {
	return &UserView{
		ID:          u.ID,
		TenantID:    u.TenantID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		LastLoginAt: u.LastLoginAt,
	}
}

// TokenResult 令牌签发结果
type TokenResult struct {
	TokenType   string    `json:"token_type"`
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        *UserView `json:"user,omitempty"`
}

// AuthService 登录、令牌校验、登出与刷新
type AuthService struct {
	users       *UserService
	tenants     *TenantService
	jwtManager  *jwt.JWTManager
	revocations jwt.RevocationStore
	policy      tenancy.AdminPolicy
	now         func() time.Time
}

// NewAuthService 创建认证服务；revocations 为 nil 时登出不吊销令牌
func NewAuthService(db *gorm.DB, jwtManager *jwt.JWTManager, revocations jwt.RevocationStore, policy tenancy.AdminPolicy) *AuthService {
	return &AuthService{
		users:       NewUserService(db),
		tenants:     NewTenantService(db),
		jwtManager:  jwtManager,
		revocations: revocations,
		policy:      policy,
		now:         time.Now,
	}
}

// Login 校验凭证、账号状态、域名范围和租户状态后签发令牌
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenResult, error) {
	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.CheckPassword(in.Password) {
		return nil, apperrors.New(http.StatusUnauthorized, apperrors.CodeInvalidCredentials, "Invalid credentials.")
	}

	if !user.IsActive {
		return nil, apperrors.Forbidden(apperrors.CodeUserDisabled, "Account disabled.")
	}

	// 登录时与已认证请求使用同一套域名规则
	rc := tenancy.RequestContext{
		Host:          in.Host,
		TenantID:      in.ResolvedTenantID,
		Authenticated: true,
		UserID:        user.ID,
		Role:          user.Role,
		UserTenantID:  user.TenantID,
		UserActive:    user.IsActive,
	}
	if err := tenancy.CheckDomainScope(rc, s.policy); err != nil {
		return nil, err
	}

	if user.TenantID != nil {
		tenant, err := s.tenants.GetWithSubscription(ctx, *user.TenantID)
		if err != nil {
			return nil, err
		}
		if tenant == nil {
			return nil, apperrors.Forbidden(apperrors.CodeTenantNotFound, "Tenant linked to the user was not found.")
		}
		if !tenant.IsActive() {
			return nil, apperrors.Forbidden(apperrors.CodeTenantNotActive, "Tenant is not active.")
		}
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		logger.GetLogger().WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("Failed to update last_login_at")
	} else {
		user.LastLoginAt = &now
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	result.User = NewUserView(user)
	return result, nil
}

// Authenticate 校验令牌并加载用户
func (s *AuthService) Authenticate(ctx context.Context, token string) (*jwt.JWTClaims, *models.User, error) {
	claims, err := s.jwtManager.VerifyToken(token)
	if err != nil {
		return nil, nil, apperrors.New(http.StatusUnauthorized, apperrors.CodeTokenInvalid, "Token is invalid or expired.")
	}

	if s.revocations != nil && claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			// 吊销存储不可用时放行，只记录日志
			logger.GetLogger().WithFields(logrus.Fields{
				"user_id": claims.UserID,
				"error":   err.Error(),
			}).Warn("Token revocation check failed")
		} else if revoked {
			return nil, nil, apperrors.New(http.StatusUnauthorized, apperrors.CodeTokenInvalid, "Token has been revoked.")
		}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, apperrors.Unauthenticated("User not found.")
	}
	return claims, user, nil
}

// Logout 吊销当前令牌
func (s *AuthService) Logout(ctx context.Context, claims *jwt.JWTClaims) error {
	if s.revocations == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Refresh 签发新令牌并吊销旧令牌
func (s *AuthService) Refresh(ctx context.Context, claims *jwt.JWTClaims, user *models.User) (*TokenResult, error) {
	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.Logout(ctx, claims); err != nil {
		logger.GetLogger().WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("Failed to revoke refreshed token")
	}
	return result, nil
}

func (s *AuthService) issue(user *models.User) (*TokenResult, error) {
	token, _, err := s.jwtManager.GenerateToken(user.ID, user.TenantID, user.Role, user.Email)
	if err != nil {
		return nil, err
	}
	return &TokenResult{
		TokenType:   "bearer",
		AccessToken: token,
		ExpiresIn:   int64(s.jwtManager.GetTokenDuration().Seconds()),
	}, nil
}
