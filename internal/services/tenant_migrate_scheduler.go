package services

import (
	"context"
	"fmt"
	"sync"

	"gmdl/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TenantMigrateScheduler 按 cron 表达式定时执行 migrate-all
type TenantMigrateScheduler struct {
	provisioning *ProvisioningService
	cron         *cron.Cron
	spec         string

	mu      sync.Mutex
	running bool
	entryID cron.EntryID
}

// NewTenantMigrateScheduler 创建调度器；spec 为空表示不启用
func NewTenantMigrateScheduler(provisioning *ProvisioningService, spec string) *TenantMigrateScheduler {
	return &TenantMigrateScheduler{
		provisioning: provisioning,
		// 上一次批量迁移未结束时跳过本次
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec: spec,
	}
}

// Start 启动调度器
func (s *TenantMigrateScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.spec == "" {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(context.Background()) })
	if err != nil {
		return fmt.Errorf("invalid TENANT_MIGRATE_SCHEDULE %q: %w", s.spec, err)
	}
	s.entryID = entryID
	s.cron.Start()
	s.running = true

	logger.GetLogger().WithField("schedule", s.spec).Info("Tenant migrate scheduler started")
	return nil
}

// Stop 停止调度器并等待正在执行的任务结束
func (s *TenantMigrateScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron.Remove(s.entryID)
	s.running = false

	logger.GetLogger().Info("Tenant migrate scheduler stopped")
}

// IsRunning 调度器是否运行中
func (s *TenantMigrateScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce 执行一次批量迁移
func (s *TenantMigrateScheduler) RunOnce(ctx context.Context) *BatchResult {
	opts := s.provisioning.DefaultOptions(TriggerSchedule)
	// 定时任务只迁移，不跑种子
	opts.Seed = false

	batch, err := s.provisioning.MigrateAll(ctx, opts)
	log := logger.GetLogger()
	if err != nil {
		log.WithError(err).Error("Scheduled tenant migrate-all failed")
		return nil
	}
	if !batch.OK {
		log.WithFields(logrus.Fields{
			"batch_id": batch.BatchID,
			"failed":   batch.Failed,
		}).Warn("Scheduled tenant migrate-all finished with failures")
	}
	return batch
}
