package services

import (
	"context"
	"fmt"

	"gmdl/internal/models"
	"gmdl/internal/tenancy"
	"gmdl/pkg/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 演示数据
const (
	DemoTenantKey      = "acme"
	DemoTenantDBName   = "gmdl_tenant_demo"
	DemoTenantAdmin    = "acme.admin@gmdl.test"
	DemoTenantPassword = "Password123"
	DefaultPlanCode    = "monthly_basic"
)

// RegistrySeedOptions 注册库种子参数
type RegistrySeedOptions struct {
	DemoTenant         bool
	SuperAdminEmail    string
	SuperAdminPassword string
}

// RegistrySeeder 注册库种子数据，可重复执行
type RegistrySeeder struct {
	db            *gorm.DB
	plans         *PlanService
	users         *UserService
	subscriptions *SubscriptionService
}

// NewRegistrySeeder 创建种子服务
func NewRegistrySeeder(db *gorm.DB, billing tenancy.BillingPolicy) *RegistrySeeder {
	return &RegistrySeeder{
		db:            db,
		plans:         NewPlanService(db),
		users:         NewUserService(db),
		subscriptions: NewSubscriptionService(db, billing),
	}
}

// Seed 套餐 → 超级管理员（可选）→ 演示租户（可选）
func (s *RegistrySeeder) Seed(ctx context.Context, opts RegistrySeedOptions) error {
	log := logger.GetLogger()
	log.Info("Starting registry seed...")

	if err := s.SeedPlans(ctx); err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}

	if opts.SuperAdminEmail != "" && opts.SuperAdminPassword != "" {
		_, err := s.users.Upsert(ctx, UpsertUserInput{
			Name:     "Super Admin",
			Email:    opts.SuperAdminEmail,
			Password: opts.SuperAdminPassword,
			Role:     models.RoleSuperAdmin,
			IsActive: true,
		})
		if err != nil {
			return fmt.Errorf("seed super admin: %w", err)
		}
	}

	if opts.DemoTenant {
		if _, err := s.SeedDemoTenant(ctx); err != nil {
			return fmt.Errorf("seed demo tenant: %w", err)
		}
	}

	log.Info("Registry seed completed")
	return nil
}

// SeedPlans 基础月付 / 年付套餐
func (s *RegistrySeeder) SeedPlans(ctx context.Context) error {
	features := datatypes.JSONMap{
		"portal":           false,
		"signing":          false,
		"advanced_reports": false,
	}
	limits := datatypes.JSONMap{
		"max_companies": 999999,
		"max_workers":   999999,
		"max_users":     1,
	}

	plans := []models.Plan{
		{Code: "monthly_basic", Name: "Basic - Monthly", BillingPeriod: models.BillingPeriodMonthly, PriceCents: 4900},
		{Code: "yearly_basic", Name: "Basic - Yearly", BillingPeriod: models.BillingPeriodYearly, PriceCents: 49000},
	}
	for i := range plans {
		plans[i].Currency = "EUR"
		plans[i].IsActive = true
		plans[i].Features = features
		plans[i].Limits = limits
		if err := s.plans.Upsert(ctx, &plans[i]); err != nil {
			return err
		}
	}
	return nil
}

// SeedDemoTenant 演示租户、租户管理员与试用订阅；已有当前订阅时不再创建
func (s *RegistrySeeder) SeedDemoTenant(ctx context.Context) (*models.Tenant, error) {
	db := s.db.WithContext(ctx)

	tenant := models.Tenant{
		Key:    DemoTenantKey,
		Name:   "Acme Demo",
		DBName: DemoTenantDBName,
		Status: models.TenantStatusActive,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "db_name", "status", "updated_at"}),
	}).Create(&tenant).Error
	if err != nil {
		return nil, err
	}

	var saved models.Tenant
	if err := db.Where(&models.Tenant{Key: DemoTenantKey}).First(&saved).Error; err != nil {
		return nil, err
	}

	tenantID := saved.ID
	_, err = s.users.Upsert(ctx, UpsertUserInput{
		Name:     "Acme Admin",
		Email:    DemoTenantAdmin,
		Password: DemoTenantPassword,
		Role:     models.RoleTenantAdmin,
		TenantID: &tenantID,
		IsActive: true,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.subscriptions.StartTrial(ctx, saved.ID, DefaultPlanCode, map[string]interface{}{"seed": true}); err != nil {
		return nil, err
	}
	return &saved, nil
}
