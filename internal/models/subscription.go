package models

import (
	"time"

	"gorm.io/datatypes"
)

// Subscription 订阅（计费周期记录）
type Subscription struct {
	BaseModel
	TenantID             uint              `json:"tenant_id" gorm:"not null;index"`
	PlanID               uint              `json:"plan_id" gorm:"not null;index"`
	Plan                 *Plan             `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
	Status               string            `json:"status" gorm:"not null;size:20;index"`
	CurrentPeriodStartAt *time.Time        `json:"current_period_start_at"`
	CurrentPeriodEndAt   *time.Time        `json:"current_period_end_at"`
	CancelAtPeriodEnd    bool              `json:"cancel_at_period_end" gorm:"not null"`
	Provider             string            `json:"provider" gorm:"size:40"`
	ProviderRef          *string           `json:"provider_ref" gorm:"size:191"`
	Meta                 datatypes.JSONMap `json:"meta"`
}

// TableName 表名
func (s *Subscription) TableName() string {
	return "subscriptions"
}

// 订阅状态
const (
	SubscriptionStatusTrial     = "trial"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusPastDue   = "past_due"
	SubscriptionStatusCanceled  = "canceled"
	SubscriptionStatusSuspended = "suspended"
	SubscriptionStatusExpired   = "expired"
)

// SubscriptionStatuses 所有合法订阅状态
var SubscriptionStatuses = []string{
	SubscriptionStatusTrial,
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
	SubscriptionStatusCanceled,
	SubscriptionStatusSuspended,
	SubscriptionStatusExpired,
}

// OpenSubscriptionStatuses 分配新订阅时需要关闭的状态
var OpenSubscriptionStatuses = []string{
	SubscriptionStatusTrial,
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
}
