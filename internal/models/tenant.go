package models

// Tenant 租户（注册库）
type Tenant struct {
	BaseModel
	Key                   string        `json:"key" gorm:"uniqueIndex;not null;size:63"`
	Name                  string        `json:"name" gorm:"not null;size:120"`
	DBName                string        `json:"db_name" gorm:"column:db_name;uniqueIndex;not null;size:64"`
	Status                string        `json:"status" gorm:"not null;size:20;index"`
	CurrentSubscriptionID *uint         `json:"current_subscription_id"`
	CurrentSubscription   *Subscription `json:"current_subscription,omitempty" gorm:"foreignKey:CurrentSubscriptionID"`
}

// TableName 表名
func (t *Tenant) TableName() string {
	return "tenants"
}

// 租户状态常量
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
	TenantStatusDisabled  = "disabled"
)

// IsActive 租户是否处于可用状态
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}
