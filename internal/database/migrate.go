package database

import (
	"gmdl/internal/models"
	"gmdl/pkg/logger"

	"gorm.io/gorm"
)

// Migrate 执行注册库迁移
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting registry migration...")

	if err := MigrateRegistry(DB); err != nil {
		appLogger.Errorf("Registry migration failed: %v", err)
		return err
	}

	appLogger.Info("Registry migration completed successfully")
	return nil
}

// MigrateRegistry 迁移注册库表结构
func MigrateRegistry(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.Plan{},
		&models.Subscription{},
		&models.User{},
		&models.TenantOperationRun{},
		&models.AuditLog{},
	)
}
