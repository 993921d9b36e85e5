package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User 用户模型（注册库）；super_admin 不归属任何租户
type User struct {
	BaseModel
	Name         string     `json:"name" gorm:"not null;size:100"`
	Email        string     `json:"email" gorm:"uniqueIndex;not null;size:191"`
	PasswordHash string     `json:"-" gorm:"not null;size:255"`
	Role         string     `json:"role" gorm:"not null;size:30;index"`
	TenantID     *uint      `json:"tenant_id" gorm:"index"`
	Tenant       *Tenant    `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	IsActive     bool       `json:"is_active" gorm:"not null"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// 角色
const (
	RoleSuperAdmin  = "super_admin"
	RoleTenantAdmin = "tenant_admin"
	RoleOperator    = "operator"
)

// IsSuperAdmin 是否平台超级管理员
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// SetPassword 设置密码
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
