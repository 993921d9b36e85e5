package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gmdl/internal/models"
	apperrors "gmdl/pkg/errors"

	"gorm.io/gorm"
)

// TenantService 注册库中的租户查询
type TenantService struct {
	db *gorm.DB
}

// NewTenantService 创建租户服务
func NewTenantService(db *gorm.DB) *TenantService {
	return &TenantService{db: db}
}

// GetByKey 按 key 查询，不存在时返回 nil, nil
func (s *TenantService) GetByKey(ctx context.Context, key string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).Where(&models.Tenant{Key: key}).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// GetWithSubscription 加载租户及其当前订阅和套餐，不存在时返回 nil, nil
func (s *TenantService) GetWithSubscription(ctx context.Context, id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).
		Preload("CurrentSubscription").
		Preload("CurrentSubscription.Plan").
		First(&tenant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// Find 按 ID 或 key 查询，不存在时返回 TENANT_NOT_FOUND
func (s *TenantService) Find(ctx context.Context, identifier string) (*models.Tenant, error) {
	return findTenant(ctx, s.db, identifier)
}

// ListActive 所有 active 租户，按 ID 升序
func (s *TenantService) ListActive(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := s.db.WithContext(ctx).
		Where("status = ?", models.TenantStatusActive).
		Order("id ASC").
		Find(&tenants).Error
	return tenants, err
}

func findTenant(ctx context.Context, db *gorm.DB, identifier string) (*models.Tenant, error) {
	identifier = strings.TrimSpace(identifier)

	var tenant models.Tenant
	query := db.WithContext(ctx)
	if id, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		query = query.Where("id = ?", uint(id))
	} else {
		query = query.Where(&models.Tenant{Key: strings.ToLower(identifier)})
	}

	err := query.First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound(apperrors.CodeTenantNotFound, "Tenant not found.").With("tenant", identifier)
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}
