package database

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"gmdl/internal/tenancy"
	"gmdl/pkg/config"
	apperrors "gmdl/pkg/errors"
	"gmdl/pkg/logger"
	"gmdl/pkg/metrics"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TenantConnections 按库名缓存租户连接池，替代"改写全局 tenant 连接"的做法
type TenantConnections struct {
	dialect  Dialect
	idleTTL  time.Duration
	maxPools int
	maxOpen  int

	mu    sync.Mutex
	pools map[string]*tenantPool
	now   func() time.Time
}

// refs 为正在使用该连接池的请求数；retired 表示已移出缓存，最后一个使用者释放时关闭
type tenantPool struct {
	db       *gorm.DB
	lastUsed time.Time
	refs     int
	retired  bool
}

// NewTenantConnections 创建租户连接工厂
func NewTenantConnections(dialect Dialect, cfg config.TenantConfig) *TenantConnections {
	return &TenantConnections{
		dialect:  dialect,
		idleTTL:  cfg.ConnIdleTTL,
		maxPools: cfg.MaxCachedPools,
		maxOpen:  cfg.ConnMaxOpen,
		pools:    make(map[string]*tenantPool),
		now:      time.Now,
	}
}

// Dialect 工厂使用的方言
func (f *TenantConnections) Dialect() Dialect {
	return f.dialect
}

// For 获取指定租户库的连接，已缓存时直接复用；用完必须调用 release
// 被淘汰的连接池在所有使用者释放之前不会关闭
func (f *TenantConnections) For(dbName string) (*gorm.DB, func(), error) {
	if err := tenancy.AssertSafeDBName(dbName); err != nil {
		return nil, nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pools[dbName]
	if !ok {
		var err error
		if p, err = f.openLocked(dbName); err != nil {
			return nil, nil, err
		}
	}
	p.refs++
	p.lastUsed = f.now()
	return p.db, f.releaser(dbName, p), nil
}

func (f *TenantConnections) releaser(dbName string, p *tenantPool) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			p.refs--
			p.lastUsed = f.now()
			if p.retired && p.refs == 0 {
				closePool(dbName, p.db)
			}
		})
	}
}

// Dedicated 为运维操作新建一个不进入缓存的连接池，调用方用完后执行 release
func (f *TenantConnections) Dedicated(dbName string) (*gorm.DB, func(), error) {
	if err := tenancy.AssertSafeDBName(dbName); err != nil {
		return nil, nil, err
	}

	db, err := Open(f.dialect, dbName, 1, 1, 0)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, release, nil
}

// Assert 校验连接实际所在的库与期望一致
func (f *TenantConnections) Assert(ctx context.Context, db *gorm.DB, expected string) error {
	actual, err := f.dialect.CurrentDatabase(ctx, db)
	if err != nil {
		return err
	}
	if actual != expected {
		return apperrors.New(http.StatusInternalServerError, apperrors.CodeTenantConnectionMismatch, "Tenant connection is not bound to the expected database.").
			With("expected", expected).
			With("actual", actual)
	}
	return nil
}

// Len 当前缓存的连接池数量
func (f *TenantConnections) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pools)
}

// EvictIdle 回收超过空闲时间且无人使用的连接池，返回回收数量
func (f *TenantConnections) EvictIdle() int {
	if f.idleTTL <= 0 {
		return 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.now().Add(-f.idleTTL)
	evicted := 0
	for name, p := range f.pools {
		if p.refs == 0 && p.lastUsed.Before(cutoff) {
			f.purgeLocked(name)
			evicted++
		}
	}
	return evicted
}

// Run 周期性回收空闲连接池，直到 ctx 结束
func (f *TenantConnections) Run(ctx context.Context) {
	interval := f.idleTTL / 2
	if interval <= 0 {
		return
	}
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := f.EvictIdle(); n > 0 {
				logger.GetLogger().WithField("evicted", n).Debug("Evicted idle tenant connection pools")
			}
		}
	}
}

// Close 关闭所有连接池，仍在使用的在释放时关闭
func (f *TenantConnections) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name := range f.pools {
		f.purgeLocked(name)
	}
}

func (f *TenantConnections) openLocked(dbName string) (*tenantPool, error) {
	if f.maxPools > 0 && len(f.pools) >= f.maxPools {
		f.evictOldestLocked(len(f.pools) - f.maxPools + 1)
	}

	db, err := Open(f.dialect, dbName, f.maxOpen, f.maxOpen, 0)
	if err != nil {
		return nil, err
	}
	p := &tenantPool{db: db, lastUsed: f.now()}
	f.pools[dbName] = p
	metrics.Default().TenantPools.Set(float64(len(f.pools)))
	return p, nil
}

// purgeLocked 移出缓存；无人使用时立即关闭，否则留给最后一个 release
func (f *TenantConnections) purgeLocked(dbName string) {
	p, ok := f.pools[dbName]
	if !ok {
		return
	}
	delete(f.pools, dbName)
	metrics.Default().TenantPools.Set(float64(len(f.pools)))

	p.retired = true
	if p.refs == 0 {
		closePool(dbName, p.db)
	}
}

func closePool(dbName string, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.GetLogger().WithFields(logrus.Fields{
			"db_name": dbName,
			"error":   err.Error(),
		}).Warn("Failed to close tenant connection pool")
	}
}

// evictOldestLocked 优先淘汰无人使用的连接池，其次按最久未使用
func (f *TenantConnections) evictOldestLocked(n int) {
	names := make([]string, 0, len(f.pools))
	for name := range f.pools {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := f.pools[names[i]], f.pools[names[j]]
		if (a.refs == 0) != (b.refs == 0) {
			return a.refs == 0
		}
		return a.lastUsed.Before(b.lastUsed)
	})
	for i := 0; i < n && i < len(names); i++ {
		f.purgeLocked(names[i])
	}
}
