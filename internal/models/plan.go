package models

import "gorm.io/datatypes"

// Plan 套餐目录
type Plan struct {
	BaseModel
	Code          string            `json:"code" gorm:"uniqueIndex;not null;size:80"`
	Name          string            `json:"name" gorm:"not null;size:120"`
	BillingPeriod string            `json:"billing_period" gorm:"not null;size:20;index"`
	PriceCents    int               `json:"price_cents" gorm:"not null"`
	Currency      string            `json:"currency" gorm:"not null;size:3"`
	IsActive      bool              `json:"is_active" gorm:"not null;index"`
	Features      datatypes.JSONMap `json:"features"`
	Limits        datatypes.JSONMap `json:"limits"`
}

// TableName 表名
func (p *Plan) TableName() string {
	return "plans"
}

// 计费周期
const (
	BillingPeriodMonthly = "monthly"
	BillingPeriodYearly  = "yearly"
)

// DefaultPeriodDays 套餐默认周期天数
func (p *Plan) DefaultPeriodDays() int {
	if p.BillingPeriod == BillingPeriodYearly {
		return 365
	}
	return 30
}
