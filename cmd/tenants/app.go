package main

import (
	"fmt"

	"gmdl/internal/database"
	"gmdl/internal/services"
	"gmdl/pkg/config"
	"gmdl/pkg/logger"

	"gorm.io/gorm"
)

// app 各子命令共享的依赖
type app struct {
	tenants      *services.TenantService
	provisioning *services.ProvisioningService
	runs         *services.OperationRunService
	close        func()
}

// loader 按需建立依赖，测试中替换为临时库
type loader func() (*app, error)

// newApp 基于已打开的注册库组装服务
func newApp(registry *gorm.DB, conns *database.TenantConnections, cfg config.TenantConfig) (*app, error) {
	locks, err := services.NewLockManager(registry)
	if err != nil {
		return nil, err
	}
	runs := services.NewOperationRunService(registry)
	return &app{
		tenants:      services.NewTenantService(registry),
		provisioning: services.NewProvisioningService(registry, conns, locks, runs, database.NewTenantRunner(), cfg),
		runs:         runs,
		close:        conns.Close,
	}, nil
}

// bootstrap 读取环境配置并连接注册库
func bootstrap() (*app, error) {
	cfg := config.GetConfig()
	if err := logger.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	if err := database.Initialize(cfg); err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		_ = database.Close()
		return nil, err
	}

	conns := database.NewTenantConnections(database.Registry, cfg.Tenant)
	a, err := newApp(database.GetDB(), conns, cfg.Tenant)
	if err != nil {
		conns.Close()
		_ = database.Close()
		return nil, err
	}
	a.close = func() {
		conns.Close()
		_ = database.Close()
	}
	return a, nil
}
