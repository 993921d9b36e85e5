package tenancy

import (
	"time"

	"gmdl/internal/models"
	"gmdl/pkg/config"
	apperrors "gmdl/pkg/errors"
)

// BillingPolicy 订阅放行规则
type BillingPolicy struct {
	TrialDays       int
	GraceDays       int
	AllowedStatuses []string
}

// BillingPolicyFromConfig 从配置构造
func BillingPolicyFromConfig(cfg *config.Config) BillingPolicy {
	return BillingPolicy{
		TrialDays:       cfg.Billing.TrialDays,
		GraceDays:       cfg.Billing.GraceDays,
		AllowedStatuses: cfg.Billing.AllowedStatuses,
	}
}

// IsStatusAllowed 订阅状态是否在放行集合中
func (p BillingPolicy) IsStatusAllowed(status string) bool {
	for _, s := range p.AllowedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Deadline 周期结束后再加宽限天数
func (p BillingPolicy) Deadline(periodEnd time.Time) time.Time {
	return periodEnd.AddDate(0, 0, p.GraceDays)
}

// TenantLoader 按 ID 加载租户（需预加载当前订阅及套餐），不存在时返回 nil, nil
type TenantLoader func(tenantID uint) (*models.Tenant, error)

// EffectiveTenantID 优先取主机名解析出的租户，其次取用户所属租户
func EffectiveTenantID(rc RequestContext) (uint, error) {
	if rc.TenantID != nil && rc.UserTenantID != nil && *rc.TenantID != *rc.UserTenantID {
		return 0, apperrors.Forbidden(apperrors.CodeTenantMismatch, "Tenant does not match the current domain.")
	}
	if rc.TenantID != nil {
		return *rc.TenantID, nil
	}
	if rc.UserTenantID != nil {
		return *rc.UserTenantID, nil
	}
	return 0, apperrors.Forbidden(apperrors.CodeTenantRequired, "A tenant is required to access this resource.")
}

// CheckSubscription 订阅闸门：超级管理员直接放行，其余按租户状态与当前订阅判定
func CheckSubscription(rc RequestContext, load TenantLoader, policy BillingPolicy, now time.Time) error {
	if err := CheckAuthenticated(rc); err != nil {
		return err
	}
	if rc.IsSuperAdmin() {
		return nil
	}

	tenantID, err := EffectiveTenantID(rc)
	if err != nil {
		return err
	}

	tenant, err := load(tenantID)
	if err != nil {
		return err
	}
	return EvaluateSubscription(tenant, policy, now)
}

// EvaluateSubscription 对已加载的租户及其当前订阅做判定
func EvaluateSubscription(tenant *models.Tenant, policy BillingPolicy, now time.Time) error {
	if tenant == nil {
		return apperrors.Forbidden(apperrors.CodeTenantNotFound, "Tenant not found.")
	}
	if !tenant.IsActive() {
		return apperrors.Forbidden(apperrors.CodeTenantNotActive, "Tenant is not active.")
	}

	sub := tenant.CurrentSubscription
	if sub == nil {
		return apperrors.PaymentRequired(apperrors.CodeSubscriptionMissing, "Subscription missing.")
	}

	if !policy.IsStatusAllowed(sub.Status) {
		return apperrors.PaymentRequired(apperrors.CodeSubscriptionInactive, "Subscription is not active.").
			With("status", sub.Status)
	}

	if sub.CurrentPeriodEndAt != nil {
		if now.After(policy.Deadline(*sub.CurrentPeriodEndAt)) {
			return apperrors.PaymentRequired(apperrors.CodeSubscriptionExpired, "Subscription expired.").
				With("status", sub.Status).
				With("current_period_end_at", sub.CurrentPeriodEndAt.UTC().Format(time.RFC3339)).
				With("grace_days", policy.GraceDays)
		}
	}
	return nil
}
