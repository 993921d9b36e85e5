package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gmdl/internal/database"
	"gmdl/internal/router"
	"gmdl/internal/services"
	"gmdl/pkg/config"
	"gmdl/pkg/jwt"
	"gmdl/pkg/logger"
	"gmdl/pkg/metrics"
	"gmdl/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.GetConfig()

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting gmdl control plane...")

	// 初始化注册库
	if err := database.Initialize(cfg); err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
		if err := database.CloseRedis(); err != nil {
			appLogger.Error("Failed to close Redis:", err)
		}
	}()

	// 注册库迁移
	if err := database.Migrate(); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	// 种子数据
	if err := seedData(cfg); err != nil {
		appLogger.Fatalf("Failed to initialize seed data: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)

	// 租户连接池，后台回收空闲连接
	tenants := database.NewTenantConnections(database.Registry, cfg.Tenant)
	evictCtx, stopEvict := context.WithCancel(context.Background())
	go tenants.Run(evictCtx)
	defer func() {
		stopEvict()
		tenants.Close()
	}()

	// Redis 不可用时退回进程内限流与吊销
	var (
		limiter     ratelimit.RateLimiter
		revocations jwt.RevocationStore
	)
	if err := database.PingRedis(); err != nil {
		appLogger.WithError(err).Warn("Redis unavailable, using in-process rate limiter and token revocation")
		limiter = ratelimit.NewMemoryRateLimiter()
		revocations = jwt.NewMemoryRevocationStore()
	} else {
		limiter = ratelimit.NewRedisRateLimiter(database.GetRedisClient(), cfg.Redis.Prefix)
		revocations = jwt.NewRedisRevocationStore(database.GetRedisClient(), cfg.Redis.Prefix)
	}

	// 审计日志写入协程
	audit := services.NewAuditRecorder(database.GetDB(), cfg.Audit.QueueSize)
	audit.Start()

	// 定时 migrate-all
	locks, err := services.NewLockManager(database.GetDB())
	if err != nil {
		appLogger.Fatalf("Failed to initialize lock manager: %v", err)
	}
	provisioning := services.NewProvisioningService(
		database.GetDB(), tenants, locks,
		services.NewOperationRunService(database.GetDB()),
		database.NewTenantRunner(), cfg.Tenant,
	)
	scheduler := services.NewTenantMigrateScheduler(provisioning, cfg.Tenant.MigrateSchedule)
	if err := scheduler.Start(); err != nil {
		appLogger.Errorf("Failed to start tenant migrate scheduler: %v", err)
		// 不影响主服务启动
	}
	defer scheduler.Stop()

	r := router.SetupRouter(router.Dependencies{
		Config:      cfg,
		Registry:    database.GetDB(),
		Tenants:     tenants,
		JWT:         jwt.GetJWTManager(),
		Revocations: revocations,
		Limiter:     limiter,
		Audit:       audit,
		Metrics:     metrics.Default(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	if err := audit.Close(ctx); err != nil {
		appLogger.Warn("Audit queue not fully flushed:", err)
	}
	appLogger.Info("Server exited")
}
