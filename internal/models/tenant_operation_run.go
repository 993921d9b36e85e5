package models

import (
	"time"

	"gorm.io/datatypes"
)

// TenantOperationRun 租户运维操作（provision/migrate/repair）执行记录
type TenantOperationRun struct {
	BaseModel
	TenantID          *uint             `json:"tenant_id" gorm:"index"`
	Tenant            *Tenant           `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Action            string            `json:"action" gorm:"not null;size:40;index"`
	Status            string            `json:"status" gorm:"not null;size:20;index"`
	StartedAt         time.Time         `json:"started_at" gorm:"not null;index"`
	FinishedAt        *time.Time        `json:"finished_at"`
	DurationMs        *int64            `json:"duration_ms"`
	TriggeredByUserID *uint             `json:"triggered_by_user_id" gorm:"index"`
	Meta              datatypes.JSONMap `json:"meta"`
}

// TableName 表名
func (r *TenantOperationRun) TableName() string {
	return "tenant_operation_runs"
}

// 操作类型
const (
	RunActionProvision = "provision"
	RunActionMigrate   = "migrate"
	RunActionRepair    = "repair"
)

// 执行状态
const (
	RunStatusStarted = "started"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// IsTerminal 是否已结束
func (r *TenantOperationRun) IsTerminal() bool {
	return r.Status == RunStatusSuccess || r.Status == RunStatusFailed
}

// BatchID 批量执行标识（migrate-all）
func (r *TenantOperationRun) BatchID() string {
	if r.Meta == nil {
		return ""
	}
	if v, ok := r.Meta["batch_id"].(string); ok {
		return v
	}
	return ""
}
