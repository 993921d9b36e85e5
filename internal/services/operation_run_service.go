package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gmdl/internal/models"
	apperrors "gmdl/pkg/errors"
	"gmdl/pkg/logger"
	"gmdl/pkg/metrics"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OperationRunService 租户运维操作执行记录
type OperationRunService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewOperationRunService 创建执行记录服务
func NewOperationRunService(db *gorm.DB) *OperationRunService {
	return &OperationRunService{db: db, now: time.Now}
}

// Start 创建 started 状态的记录，meta 中写入毫秒级 started_ts_ms
func (s *OperationRunService) Start(ctx context.Context, tenant *models.Tenant, action string, meta map[string]interface{}, triggeredBy *uint) (*models.TenantOperationRun, error) {
	now := s.now()

	merged := mergeMeta(map[string]interface{}{"started_ts_ms": now.UnixMilli()}, meta)

	run := &models.TenantOperationRun{
		Action:            action,
		Status:            models.RunStatusStarted,
		StartedAt:         now.UTC(),
		TriggeredByUserID: triggeredBy,
		Meta:              datatypes.JSONMap(SanitizeMeta(merged)),
	}
	if tenant != nil {
		id := tenant.ID
		run.TenantID = &id
	}

	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// MarkSuccess 结束为 success
func (s *OperationRunService) MarkSuccess(ctx context.Context, run *models.TenantOperationRun, meta map[string]interface{}) (*models.TenantOperationRun, error) {
	return s.finish(ctx, run, models.RunStatusSuccess, meta)
}

// MarkFailed 结束为 failed，自动记录 exception_class / exception_message
func (s *OperationRunService) MarkFailed(ctx context.Context, run *models.TenantOperationRun, cause error, meta map[string]interface{}) (*models.TenantOperationRun, error) {
	base := map[string]interface{}{
		"exception_class":   ErrorClass(cause),
		"exception_message": Truncate(errorMessage(cause), metaMaxString),
	}
	return s.finish(ctx, run, models.RunStatusFailed, mergeMeta(base, meta))
}

func (s *OperationRunService) finish(ctx context.Context, run *models.TenantOperationRun, status string, meta map[string]interface{}) (*models.TenantOperationRun, error) {
	finishedAt := s.now()
	finishedTsMs := finishedAt.UnixMilli()

	current := map[string]interface{}{}
	if run.Meta != nil {
		current = map[string]interface{}(run.Meta)
	}
	merged := mergeMeta(current, SanitizeMeta(meta))

	var durationMs int64
	if startedTsMs, ok := toInt64(merged["started_ts_ms"]); ok {
		durationMs = finishedTsMs - startedTsMs
	} else {
		durationMs = finishedAt.Sub(run.StartedAt).Milliseconds()
	}
	if durationMs < 0 {
		durationMs = 0
	}
	merged["finished_ts_ms"] = finishedTsMs

	finishedUTC := finishedAt.UTC()
	err := s.db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":      status,
		"finished_at": finishedUTC,
		"duration_ms": durationMs,
		"meta":        datatypes.JSONMap(merged),
	}).Error
	if err != nil {
		return nil, err
	}

	m := metrics.Default()
	m.OperationRuns.WithLabelValues(run.Action, status).Inc()
	m.RunDuration.WithLabelValues(run.Action, status).Observe(float64(durationMs) / 1000)
	logger.GetLogger().WithFields(logrus.Fields{
		"run_id":      run.ID,
		"tenant_id":   run.TenantID,
		"action":      run.Action,
		"status":      status,
		"duration_ms": durationMs,
	}).Info("Tenant operation finished")

	var fresh models.TenantOperationRun
	if err := s.db.WithContext(ctx).First(&fresh, run.ID).Error; err != nil {
		return nil, err
	}
	return &fresh, nil
}

// ErrorClass 错误类别：AppError 取错误码，否则取 Go 类型名
func ErrorClass(err error) string {
	if err == nil {
		return ""
	}
	if code := apperrors.CodeOf(err); code != "" {
		return code
	}
	return fmt.Sprintf("%T", err)
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// RunFilter 执行记录查询条件
type RunFilter struct {
	Tenant string // 租户 ID 或 key
	Action string
	Status string
	Limit  int
	Offset int
}

// List 最新的在前
func (s *OperationRunService) List(ctx context.Context, filter RunFilter) ([]models.TenantOperationRun, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.TenantOperationRun{})

	if filter.Tenant != "" {
		tenant, err := findTenant(ctx, s.db, filter.Tenant)
		if err != nil {
			return nil, 0, err
		}
		query = query.Where("tenant_id = ?", tenant.ID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.TenantOperationRun
	err := query.Preload("Tenant").
		Order("id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&runs).Error
	return runs, total, err
}

// RunView 列表输出
type RunView struct {
	ID                uint                   `json:"id" yaml:"id"`
	TenantID          *uint                  `json:"tenant_id" yaml:"tenant_id"`
	TenantKey         *string                `json:"tenant_key" yaml:"tenant_key"`
	Action            string                 `json:"action" yaml:"action"`
	Status            string                 `json:"status" yaml:"status"`
	StartedAt         time.Time              `json:"started_at" yaml:"started_at"`
	FinishedAt        *time.Time             `json:"finished_at" yaml:"finished_at"`
	DurationMs        *int64                 `json:"duration_ms" yaml:"duration_ms"`
	BatchID           *string                `json:"batch_id" yaml:"batch_id"`
	TriggeredByUserID *uint                  `json:"triggered_by_user_id" yaml:"triggered_by_user_id"`
	Meta              map[string]interface{} `json:"meta" yaml:"meta"`
}

// NewRunView 转换，Tenant 需已预加载
func NewRunView(run models.TenantOperationRun) RunView {
	view := RunView{
		ID:                run.ID,
		TenantID:          run.TenantID,
		Action:            run.Action,
		Status:            run.Status,
		StartedAt:         run.StartedAt,
		FinishedAt:        run.FinishedAt,
		DurationMs:        run.DurationMs,
		TriggeredByUserID: run.TriggeredByUserID,
		Meta:              run.Meta,
	}
	if run.Tenant != nil {
		key := run.Tenant.Key
		view.TenantKey = &key
	}
	if batch := run.BatchID(); batch != "" {
		view.BatchID = &batch
	}
	return view
}
