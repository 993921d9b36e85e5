package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gmdl/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserService 注册库用户
type UserService struct {
	db *gorm.DB
}

// NewUserService 创建用户服务
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// UpsertUserInput 创建或更新用户
type UpsertUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	TenantID *uint
	IsActive bool
}

// ========== 基础方法 ==========

// GetByID 根据ID获取用户，不存在时返回 nil, nil
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户（不区分大小写），不存在时返回 nil, nil
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(&models.User{Email: normalizeEmail(email)}).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin 更新最后登录时间
func (s *UserService) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}

// Upsert 按邮箱创建或更新用户（种子数据使用）
func (s *UserService) Upsert(ctx context.Context, in UpsertUserInput) (*models.User, error) {
	return upsertUser(s.db.WithContext(ctx), in)
}

func upsertUser(db *gorm.DB, in UpsertUserInput) (*models.User, error) {
	if in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("邮箱和密码不能为空")
	}

	user := models.User{
		Name:     in.Name,
		Email:    normalizeEmail(in.Email),
		Role:     in.Role,
		TenantID: in.TenantID,
		IsActive: in.IsActive,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("密码加密失败: %v", err)
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "password_hash", "role", "tenant_id", "is_active", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return nil, err
	}

	var saved models.User
	if err := db.Where(&models.User{Email: user.Email}).First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
