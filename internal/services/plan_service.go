package services

import (
	"context"
	"errors"
	"net/http"

	"gmdl/internal/models"
	apperrors "gmdl/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanService 套餐目录
type PlanService struct {
	db *gorm.DB
}

// NewPlanService 创建套餐服务
func NewPlanService(db *gorm.DB) *PlanService {
	return &PlanService{db: db}
}

// List 按计费周期、价格排序
func (s *PlanService) List(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	err := s.db.WithContext(ctx).
		Order("billing_period ASC").
		Order("price_cents ASC").
		Find(&plans).Error
	return plans, err
}

// Upsert 按 code 创建或更新（种子数据使用）
func (s *PlanService) Upsert(ctx context.Context, plan *models.Plan) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "billing_period", "price_cents", "currency", "is_active", "features", "limits", "updated_at"}),
	}).Create(plan).Error
}

// activePlanByCode 只返回启用中的套餐，否则 PLAN_NOT_FOUND
func activePlanByCode(db *gorm.DB, code string) (*models.Plan, error) {
	var plan models.Plan
	err := db.Where(&models.Plan{Code: code}).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !plan.IsActive) {
		return nil, apperrors.New(http.StatusUnprocessableEntity, apperrors.CodePlanNotFound, "Invalid plan.").With("plan_code", code)
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
