package services

import (
	"context"
	"errors"
	"time"

	"gmdl/internal/models"
	"gmdl/internal/tenancy"
	apperrors "gmdl/pkg/errors"
	"gmdl/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 手动分配的订阅
const (
	ProviderManual = "manual"
	MaxPeriodDays  = 3650
)

// AssignInput 管理员为租户分配套餐
type AssignInput struct {
	PlanCode   string
	Status     string // 为空时为 active
	PeriodDays int    // 为空时按套餐周期：月付 30，年付 365
	AssignedBy *uint
	Meta       map[string]interface{}
}

// SubscriptionService 订阅分配与计费状态
type SubscriptionService struct {
	db     *gorm.DB
	policy tenancy.BillingPolicy
	now    func() time.Time
}

// NewSubscriptionService 创建订阅服务
func NewSubscriptionService(db *gorm.DB, policy tenancy.BillingPolicy) *SubscriptionService {
	return &SubscriptionService{db: db, policy: policy, now: time.Now}
}

// Assign 在一个事务内锁定租户行、关闭仍处于 trial/active/past_due 的订阅、创建新订阅并切换当前订阅指针
func (s *SubscriptionService) Assign(ctx context.Context, tenantID uint, in AssignInput) (*models.Subscription, error) {
	status := in.Status
	if status == "" {
		status = models.SubscriptionStatusActive
	}
	if !isSubscriptionStatus(status) {
		return nil, apperrors.Validation("Invalid subscription status.").
			With("status", status).
			With("allowed", models.SubscriptionStatuses)
	}
	if in.PeriodDays < 0 || in.PeriodDays > MaxPeriodDays {
		return nil, apperrors.Validation("period_days must be between 1 and 3650.").With("period_days", in.PeriodDays)
	}

	var created models.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tenant models.Tenant
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&tenant, tenantID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(apperrors.CodeTenantNotFound, "Tenant not found.").With("tenant_id", tenantID)
		}
		if err != nil {
			return err
		}

		plan, err := activePlanByCode(tx, in.PlanCode)
		if err != nil {
			return err
		}

		periodDays := in.PeriodDays
		if periodDays == 0 {
			periodDays = plan.DefaultPeriodDays()
		}

		// 关闭仍然有效的订阅
		err = tx.Model(&models.Subscription{}).
			Where("tenant_id = ? AND status IN ?", tenant.ID, models.OpenSubscriptionStatuses).
			Updates(map[string]interface{}{
				"status":               models.SubscriptionStatusCanceled,
				"cancel_at_period_end": false,
			}).Error
		if err != nil {
			return err
		}

		meta := datatypes.JSONMap{}
		for k, v := range in.Meta {
			meta[k] = v
		}
		if in.AssignedBy != nil {
			meta["assigned_by"] = *in.AssignedBy
		}

		start := s.now().UTC()
		end := start.AddDate(0, 0, periodDays)
		created = models.Subscription{
			TenantID:             tenant.ID,
			PlanID:               plan.ID,
			Status:               status,
			CurrentPeriodStartAt: &start,
			CurrentPeriodEndAt:   &end,
			CancelAtPeriodEnd:    false,
			Provider:             ProviderManual,
			Meta:                 meta,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		return tx.Model(&models.Tenant{}).
			Where("id = ?", tenant.ID).
			Update("current_subscription_id", created.ID).Error
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Preload("Plan").First(&created, created.ID).Error; err != nil {
		return nil, err
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"tenant_id":       tenantID,
		"subscription_id": created.ID,
		"plan_code":       in.PlanCode,
		"status":          created.Status,
	}).Info("Subscription assigned")

	return &created, nil
}

// StartTrial 没有当前订阅时创建试用订阅，已有则原样返回
func (s *SubscriptionService) StartTrial(ctx context.Context, tenantID uint, planCode string, meta map[string]interface{}) (*models.Subscription, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).Preload("CurrentSubscription").First(&tenant, tenantID).Error; err != nil {
		return nil, err
	}
	if tenant.CurrentSubscription != nil {
		return tenant.CurrentSubscription, nil
	}
	return s.Assign(ctx, tenantID, AssignInput{
		PlanCode:   planCode,
		Status:     models.SubscriptionStatusTrial,
		PeriodDays: s.policy.TrialDays,
		Meta:       meta,
	})
}

func isSubscriptionStatus(status string) bool {
	for _, s := range models.SubscriptionStatuses {
		if s == status {
			return true
		}
	}
	return false
}
