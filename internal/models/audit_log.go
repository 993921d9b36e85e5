package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog 审计日志，只写不改
type AuditLog struct {
	ID         uint              `json:"id" gorm:"primarykey"`
	TenantID   *uint             `json:"tenant_id" gorm:"index"`
	UserID     *uint             `json:"user_id" gorm:"index"`
	Event      string            `json:"event" gorm:"not null;size:60;index"`
	Method     string            `json:"method" gorm:"size:10"`
	Path       string            `json:"path" gorm:"size:255"`
	StatusCode int               `json:"status_code"`
	IP         string            `json:"ip" gorm:"size:45"`
	Host       string            `json:"host" gorm:"size:255"`
	UserAgent  string            `json:"user_agent" gorm:"size:512"`
	Meta       datatypes.JSONMap `json:"meta"`
	CreatedAt  time.Time         `json:"created_at" gorm:"index"`
}

// TableName 表名
func (a *AuditLog) TableName() string {
	return "audit_logs"
}

// 审计事件
const (
	AuditEventLoginSuccess = "AUTH_LOGIN_SUCCESS"
	AuditEventLoginFailed  = "AUTH_LOGIN_FAILED"
	AuditEventAdminRequest = "ADMIN_REQUEST"
	AuditEventTenantWrite  = "TENANT_WRITE"
)
