package models

import (
	"time"

	"gorm.io/datatypes"
)

// TenantSetting 租户库内的键值配置
type TenantSetting struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	Key       string         `json:"key" gorm:"uniqueIndex;not null;size:120"`
	Value     datatypes.JSON `json:"value"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName 表名
func (s *TenantSetting) TableName() string {
	return "tenant_settings"
}

// SchemaMigration 租户库已执行的迁移版本
type SchemaMigration struct {
	ID        string    `json:"id" gorm:"primaryKey;size:191"`
	AppliedAt time.Time `json:"applied_at"`
}

// TableName 表名
func (m *SchemaMigration) TableName() string {
	return "schema_migrations"
}
