package services

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"gmdl/internal/models"
	"gmdl/pkg/logger"
	"gmdl/pkg/metrics"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuditRequest 分类所需的请求信息
type AuditRequest struct {
	Method         string
	Path           string
	Status         int
	TenantResolved bool
}

// ClassifyAudit 返回审计事件，空串表示该请求不记录
func ClassifyAudit(req AuditRequest) string {
	path := "/" + strings.Trim(req.Path, "/")
	method := strings.ToUpper(req.Method)

	if path == "/api/health" {
		return ""
	}

	if path == "/api/auth/login" && method == http.MethodPost {
		if req.Status >= 200 && req.Status < 300 {
			return models.AuditEventLoginSuccess
		}
		return models.AuditEventLoginFailed
	}

	isAdmin := strings.HasPrefix(path, "/api/admin/")
	if isAdmin {
		return models.AuditEventAdminRequest
	}

	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		if req.TenantResolved && !strings.HasPrefix(path, "/api/auth/") {
			return models.AuditEventTenantWrite
		}
	}
	return ""
}

// AuditRecorder 异步写审计日志：队列满时丢弃并计数，写入失败只记日志
type AuditRecorder struct {
	db    *gorm.DB
	queue chan *models.AuditLog

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	started sync.Once
}

// NewAuditRecorder 创建审计记录器
func NewAuditRecorder(db *gorm.DB, queueSize int) *AuditRecorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &AuditRecorder{
		db:    db,
		queue: make(chan *models.AuditLog, queueSize),
	}
}

// Start 启动写入协程
func (r *AuditRecorder) Start() {
	r.started.Do(func() {
		r.wg.Add(1)
		go r.loop()
	})
}

// Record 投递一条审计日志，不阻塞调用方；返回是否入队
func (r *AuditRecorder) Record(entry *models.AuditLog) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false
	}
	select {
	case r.queue <- entry:
		return true
	default:
		metrics.Default().AuditDropped.Inc()
		logger.GetLogger().WithFields(logrus.Fields{
			"event": entry.Event,
			"path":  entry.Path,
		}).Warn("Audit queue full, record dropped")
		return false
	}
}

// Close 停止接收并等待队列写完，ctx 到期则放弃剩余记录
func (r *AuditRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	// 未启动时直接排空
	r.Start()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *AuditRecorder) loop() {
	defer r.wg.Done()
	for entry := range r.queue {
		r.write(entry)
	}
}

func (r *AuditRecorder) write(entry *models.AuditLog) {
	if err := r.db.Create(entry).Error; err != nil {
		logger.GetLogger().WithFields(logrus.Fields{
			"event": entry.Event,
			"path":  entry.Path,
			"error": err.Error(),
		}).Warn("Failed to write audit log")
	}
}
