package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gmdl/internal/database"
	"gmdl/internal/models"
	"gmdl/internal/tenancy"
	"gmdl/pkg/config"
	apperrors "gmdl/pkg/errors"
	"gmdl/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 触发来源
const (
	TriggerCLI      = "cli"
	TriggerHTTP     = "http"
	TriggerSchedule = "schedule"
)

// OperationOptions provision / migrate / repair 的参数
type OperationOptions struct {
	Timeout     time.Duration
	DryRun      bool
	CreateDB    bool
	Seed        bool
	SeedClass   string
	Trigger     string
	TriggeredBy *uint
	Mode        string // single / all
	BatchID     string
}

// OperationResult 单个租户的执行结果
type OperationResult struct {
	OK          bool     `json:"ok"`
	DryRun      bool     `json:"dry_run"`
	Mode        string   `json:"mode,omitempty"`
	TenantID    uint     `json:"tenant_id"`
	TenantKey   string   `json:"tenant_key"`
	DBName      string   `json:"db_name"`
	Actions     []string `json:"actions,omitempty"`
	CreateDB    *bool    `json:"create_db,omitempty"`
	MigrateExit *int     `json:"migrate_exit"`
	Seed        bool     `json:"seed"`
	SeedClass   *string  `json:"seed_class"`
	SeedExit    *int     `json:"seed_exit"`
	RunID       uint     `json:"run_id,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// BatchResult migrate-all 汇总
type BatchResult struct {
	OK        bool              `json:"ok"`
	Mode      string            `json:"mode"`
	BatchID   string            `json:"batch_id"`
	Total     int               `json:"total"`
	Failed    int               `json:"failed"`
	Seed      bool              `json:"seed"`
	SeedClass *string           `json:"seed_class"`
	Results   []OperationResult `json:"results"`
}

// ProvisioningService 租户库生命周期操作：建库、连接校验、迁移、种子，统一加租户锁并记录执行
type ProvisioningService struct {
	registry       *gorm.DB
	tenants        *database.TenantConnections
	locks          LockManager
	runs           *OperationRunService
	runner         database.TenantRunner
	migrationsPath string
	seedClass      string
	lockTimeout    time.Duration
}

// NewProvisioningService 创建服务
func NewProvisioningService(registry *gorm.DB, tenants *database.TenantConnections, locks LockManager, runs *OperationRunService, runner database.TenantRunner, cfg config.TenantConfig) *ProvisioningService {
	return &ProvisioningService{
		registry:       registry,
		tenants:        tenants,
		locks:          locks,
		runs:           runs,
		runner:         runner,
		migrationsPath: cfg.MigrationsPath,
		seedClass:      cfg.SeedClass,
		lockTimeout:    cfg.LockTimeout,
	}
}

// DefaultOptions 默认参数
func (s *ProvisioningService) DefaultOptions(trigger string) OperationOptions {
	return OperationOptions{
		Timeout:   s.lockTimeout,
		CreateDB:  true,
		Seed:      true,
		SeedClass: s.seedClass,
		Trigger:   trigger,
		Mode:      "single",
	}
}

// ========== 组成步骤 ==========

// WithTenantLock 持有租户锁执行 fn，无论成功失败都会释放；purpose 只用于诊断
func (s *ProvisioningService) WithTenantLock(ctx context.Context, tenantID uint, purpose string, timeout time.Duration, fn func(ctx context.Context) error) error {
	key := TenantLockKey(tenantID)
	lock, err := s.locks.Acquire(ctx, key, timeout)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return apperrors.New(http.StatusInternalServerError, apperrors.CodeTenantLockTimeout, "Timed out waiting for the tenant lock.").
				With("lock_key", key).
				With("purpose", purpose).
				With("timeout_seconds", int(timeout.Seconds()))
		}
		return err
	}
	defer lock.Release()

	return fn(ctx)
}

// CreateDatabaseIfNotExists 在注册库连接上建库
func (s *ProvisioningService) CreateDatabaseIfNotExists(ctx context.Context, dbName string) error {
	if err := tenancy.AssertSafeDBName(dbName); err != nil {
		return err
	}
	return s.tenants.Dialect().CreateDatabase(ctx, s.registry, dbName)
}

// ConfigureTenantConnection 为本次操作打开一个全新的租户库连接
func (s *ProvisioningService) ConfigureTenantConnection(dbName string) (*gorm.DB, func(), error) {
	return s.tenants.Dedicated(dbName)
}

// AssertTenantConnection 确认连接确实落在期望的库上
func (s *ProvisioningService) AssertTenantConnection(ctx context.Context, db *gorm.DB, dbName string) error {
	return s.tenants.Assert(ctx, db, dbName)
}

// RunMigrations 执行租户迁移，非零退出码转为 TENANT_MIGRATE_FAILED
func (s *ProvisioningService) RunMigrations(ctx context.Context, db *gorm.DB) (database.StepResult, error) {
	res := s.runner.Migrate(ctx, db, s.migrationsPath)
	if !res.OK() {
		return res, apperrors.Newf(http.StatusInternalServerError, apperrors.CodeTenantMigrateFailed, "Tenant migration failed (exit=%d).", res.ExitCode).
			With("exit_code", res.ExitCode).
			With("output", Truncate(res.Output, metaMaxOutput))
	}
	return res, nil
}

// RunSeed 执行租户种子，非零退出码转为 TENANT_SEED_FAILED
func (s *ProvisioningService) RunSeed(ctx context.Context, db *gorm.DB, class string) (database.StepResult, error) {
	res := s.runner.Seed(ctx, db, class)
	if !res.OK() {
		return res, apperrors.Newf(http.StatusInternalServerError, apperrors.CodeTenantSeedFailed, "Tenant seeding failed (exit=%d).", res.ExitCode).
			With("exit_code", res.ExitCode).
			With("output", Truncate(res.Output, metaMaxOutput))
	}
	return res, nil
}

// ========== 操作 ==========

// Provision 建库 → 连接 → 校验 → 迁移 → 种子（可选）
func (s *ProvisioningService) Provision(ctx context.Context, tenant *models.Tenant, opts OperationOptions) (*OperationResult, error) {
	opts.CreateDB = true
	return s.operate(ctx, tenant, models.RunActionProvision, opts)
}

// Repair 与 Provision 相同的步骤，允许跳过建库
func (s *ProvisioningService) Repair(ctx context.Context, tenant *models.Tenant, opts OperationOptions) (*OperationResult, error) {
	return s.operate(ctx, tenant, models.RunActionRepair, opts)
}

// Migrate 不建库，只迁移（及可选种子）
func (s *ProvisioningService) Migrate(ctx context.Context, tenant *models.Tenant, opts OperationOptions) (*OperationResult, error) {
	opts.CreateDB = false
	return s.operate(ctx, tenant, models.RunActionMigrate, opts)
}

// MigrateAll 按 ID 升序迁移所有 active 租户；单个租户失败不影响后续租户
func (s *ProvisioningService) MigrateAll(ctx context.Context, opts OperationOptions) (*BatchResult, error) {
	tenants, err := NewTenantService(s.registry).ListActive(ctx)
	if err != nil {
		return nil, err
	}

	opts.Mode = "all"
	opts.BatchID = uuid.New().String()
	opts.DryRun = false

	batch := &BatchResult{
		Mode:      "all",
		BatchID:   opts.BatchID,
		Seed:      opts.Seed,
		SeedClass: seedClassOrNil(opts),
		Results:   make([]OperationResult, 0, len(tenants)),
	}

	for i := range tenants {
		if ctx.Err() != nil {
			break
		}
		res, err := s.Migrate(ctx, &tenants[i], opts)
		if err != nil {
			batch.Failed++
		}
		batch.Results = append(batch.Results, *res)
	}

	batch.Total = len(batch.Results)
	batch.OK = batch.Failed == 0 && ctx.Err() == nil

	logger.GetLogger().WithFields(logrus.Fields{
		"batch_id": batch.BatchID,
		"total":    batch.Total,
		"failed":   batch.Failed,
		"trigger":  opts.Trigger,
	}).Info("Tenant migrate-all finished")

	return batch, nil
}

func seedClassOrNil(opts OperationOptions) *string {
	if !opts.Seed {
		return nil
	}
	class := opts.SeedClass
	return &class
}

// DryRunActions 生成不执行的动作清单
func (s *ProvisioningService) DryRunActions(opts OperationOptions) []string {
	actions := make([]string, 0, 5)
	if opts.CreateDB {
		actions = append(actions, "create_database_if_not_exists")
	} else {
		actions = append(actions, "skip_create_database")
	}
	actions = append(actions,
		"configure_tenant_connection",
		"assert_tenant_connection",
		"migrate_tenant_path_"+s.migrationsPath,
	)
	if opts.Seed {
		actions = append(actions, "seed_"+opts.SeedClass)
	} else {
		actions = append(actions, "skip_seed")
	}
	return actions
}

func (s *ProvisioningService) operate(ctx context.Context, tenant *models.Tenant, action string, opts OperationOptions) (*OperationResult, error) {
	if opts.SeedClass == "" {
		opts.SeedClass = s.seedClass
	}
	if opts.Timeout <= 0 {
		opts.Timeout = s.lockTimeout
	}

	result := &OperationResult{
		DryRun:    opts.DryRun,
		Mode:      opts.Mode,
		TenantID:  tenant.ID,
		TenantKey: tenant.Key,
		DBName:    tenant.DBName,
		Seed:      opts.Seed,
		SeedClass: seedClassOrNil(opts),
	}
	if action != models.RunActionMigrate {
		createDB := opts.CreateDB
		result.CreateDB = &createDB
	}

	if err := tenancy.AssertSafeDBName(tenant.DBName); err != nil {
		result.Error = err.Error()
		return result, err
	}

	if opts.DryRun {
		result.OK = true
		result.Actions = s.DryRunActions(opts)
		return result, nil
	}

	log := logger.GetLogger().WithFields(logrus.Fields{
		"tenant_id":  tenant.ID,
		"tenant_key": tenant.Key,
		"db_name":    tenant.DBName,
		"action":     action,
	})
	if opts.BatchID != "" {
		log = log.WithField("batch_id", opts.BatchID)
	}

	run, err := s.runs.Start(ctx, tenant, action, s.startMeta(tenant, action, opts), opts.TriggeredBy)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	result.RunID = run.ID
	log = log.WithField("run_id", run.ID)
	log.Info("Tenant operation started")

	err = s.WithTenantLock(ctx, tenant.ID, action, opts.Timeout, func(ctx context.Context) error {
		return s.execute(ctx, tenant.DBName, opts, result)
	})

	if err != nil {
		result.Error = err.Error()
		failMeta := map[string]interface{}{}
		if appErr, ok := apperrors.As(err); ok {
			for k, v := range appErr.Details {
				failMeta[k] = v
			}
		}
		if _, markErr := s.runs.MarkFailed(ctx, run, err, failMeta); markErr != nil {
			log.WithError(markErr).Warn("Failed to record tenant operation failure")
		}
		log.WithError(err).Error("Tenant operation failed")
		return result, err
	}

	result.OK = true
	successMeta := map[string]interface{}{
		"migrate_exit": intOrNil(result.MigrateExit),
		"seed_exit":    intOrNil(result.SeedExit),
	}
	if result.CreateDB != nil {
		successMeta["create_db"] = *result.CreateDB
	}
	if _, markErr := s.runs.MarkSuccess(ctx, run, successMeta); markErr != nil {
		log.WithError(markErr).Warn("Failed to record tenant operation success")
	}
	return result, nil
}

// execute 各步骤依次执行，遇到第一个错误即返回
func (s *ProvisioningService) execute(ctx context.Context, dbName string, opts OperationOptions, result *OperationResult) error {
	if opts.CreateDB {
		if err := s.CreateDatabaseIfNotExists(ctx, dbName); err != nil {
			return err
		}
	}

	db, release, err := s.ConfigureTenantConnection(dbName)
	if err != nil {
		return err
	}
	defer release()

	if err := s.AssertTenantConnection(ctx, db, dbName); err != nil {
		return err
	}

	migrated, err := s.RunMigrations(ctx, db)
	exit := migrated.ExitCode
	result.MigrateExit = &exit
	if err != nil {
		return err
	}

	if opts.Seed {
		seeded, err := s.RunSeed(ctx, db, opts.SeedClass)
		seedExit := seeded.ExitCode
		result.SeedExit = &seedExit
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *ProvisioningService) startMeta(tenant *models.Tenant, action string, opts OperationOptions) map[string]interface{} {
	meta := map[string]interface{}{
		"tenant_key": tenant.Key,
		"db_name":    tenant.DBName,
		"seed":       opts.Seed,
		"seed_class": nil,
		"timeout":    int(opts.Timeout.Seconds()),
		"trigger":    opts.Trigger,
	}
	if opts.Seed {
		meta["seed_class"] = opts.SeedClass
	}
	if action != models.RunActionProvision {
		meta["mode"] = opts.Mode
	}
	if action == models.RunActionRepair {
		meta["create_db"] = opts.CreateDB
	}
	if opts.BatchID != "" {
		meta["batch_id"] = opts.BatchID
	}
	return meta
}

func intOrNil(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
