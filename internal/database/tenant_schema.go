package database

import (
	"gmdl/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTenantSeeder 默认 seeder 类名
const DefaultTenantSeeder = "TenantDatabaseSeeder"

func init() {
	RegisterTenantMigrations("tenant",
		TenantMigration{
			ID: "2025_12_30_153521_create_tenant_settings_table",
			Up: func(tx *gorm.DB) error {
				return tx.Migrator().CreateTable(&models.TenantSetting{})
			},
		},
	)

	RegisterSeeder(DefaultTenantSeeder, seedTenantDefaults)
}

// 默认租户配置，已存在的 key 不覆盖
var defaultTenantSettings = map[string]string{
	"locale":   `"it"`,
	"timezone": `"Europe/Rome"`,
	"features": `{}`,
}

func seedTenantDefaults(tx *gorm.DB) error {
	for key, value := range defaultTenantSettings {
		setting := models.TenantSetting{Key: key, Value: datatypes.JSON(value)}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&setting).Error
		if err != nil {
			return err
		}
	}
	return nil
}
