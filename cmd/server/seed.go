package main

import (
	"context"
	"fmt"

	"gmdl/internal/database"
	"gmdl/internal/services"
	"gmdl/internal/tenancy"
	"gmdl/pkg/config"
)

// seedData 初始化注册库种子数据
func seedData(cfg *config.Config) error {
	seeder := services.NewRegistrySeeder(database.GetDB(), tenancy.BillingPolicyFromConfig(cfg))
	err := seeder.Seed(context.Background(), services.RegistrySeedOptions{
		DemoTenant:         cfg.Seed.DemoTenant,
		SuperAdminEmail:    cfg.Seed.SuperAdminEmail,
		SuperAdminPassword: cfg.Seed.SuperAdminPassword,
	})
	if err != nil {
		return fmt.Errorf("初始化种子数据失败: %w", err)
	}
	return nil
}
