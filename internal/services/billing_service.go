package services

import (
	"context"

	"gmdl/internal/models"
	"gmdl/internal/tenancy"
	apperrors "gmdl/pkg/errors"
)

// BillingStatus /api/billing/status 的返回
type BillingStatus struct {
	User         BillingUser          `json:"user"`
	Tenant       *BillingTenant       `json:"tenant"`
	Subscription *models.Subscription `json:"subscription"`
	Config       BillingConfigView    `json:"config"`
	Access       AccessVerdict        `json:"access"`
}

type BillingUser struct {
	ID       uint   `json:"id"`
	TenantID *uint  `json:"tenant_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type BillingTenant struct {
	ID                    uint   `json:"id"`
	Key                   string `json:"key"`
	Name                  string `json:"name"`
	Status                string `json:"status"`
	CurrentSubscriptionID *uint  `json:"current_subscription_id"`
}

type BillingConfigView struct {
	TrialDays int `json:"trial_days"`
	GraceDays int `json:"grace_days"`
}

// AccessVerdict 订阅闸门的判定结果（只展示，不拦截）
type AccessVerdict struct {
	Allowed bool                   `json:"allowed"`
	Error   string                 `json:"error,omitempty"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Status 计费状态：超级管理员可以没有租户；其他用户必须能确定租户
func (s *SubscriptionService) Status(ctx context.Context, rc tenancy.RequestContext, user *models.User) (*BillingStatus, error) {
	var tenantID *uint
	if rc.IsSuperAdmin() {
		if rc.TenantID != nil {
			tenantID = rc.TenantID
		} else {
			tenantID = rc.UserTenantID
		}
	} else {
		id, err := tenancy.EffectiveTenantID(rc)
		if err != nil {
			return nil, err
		}
		tenantID = &id
	}

	var tenant *models.Tenant
	if tenantID != nil {
		loaded, err := NewTenantService(s.db).GetWithSubscription(ctx, *tenantID)
		if err != nil {
			return nil, err
		}
		tenant = loaded
	}

	status := &BillingStatus{
		User: BillingUser{
			ID:       user.ID,
			TenantID: user.TenantID,
			Email:    user.Email,
			Role:     user.Role,
		},
		Config: BillingConfigView{
			TrialDays: s.policy.TrialDays,
			GraceDays: s.policy.GraceDays,
		},
	}
	if tenant != nil {
		status.Tenant = &BillingTenant{
			ID:                    tenant.ID,
			Key:                   tenant.Key,
			Name:                  tenant.Name,
			Status:                tenant.Status,
			CurrentSubscriptionID: tenant.CurrentSubscriptionID,
		}
		status.Subscription = tenant.CurrentSubscription
	}

	loader := func(uint) (*models.Tenant, error) { return tenant, nil }
	status.Access = verdict(tenancy.CheckSubscription(rc, loader, s.policy, s.now()))
	return status, nil
}

func verdict(err error) AccessVerdict {
	if err == nil {
		return AccessVerdict{Allowed: true}
	}
	if appErr, ok := apperrors.As(err); ok {
		return AccessVerdict{Error: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}
	return AccessVerdict{Error: apperrors.CodeInternal, Message: err.Error()}
}
