package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"sync"
	"time"

	"gmdl/pkg/logger"
	"gmdl/pkg/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// tableLockStaleAfter 锁表中超过该时长未刷新的记录视为崩溃遗留
const tableLockStaleAfter = 30 * time.Minute

// ErrLockTimeout 在超时时间内未能获得锁
var ErrLockTimeout = errors.New("lock timeout")

// Lock 已获得的锁；Release 尽力释放，失败只记日志
type Lock interface {
	Key() string
	Release()
}

// LockManager 跨进程互斥锁（基于注册库的 advisory lock）
type LockManager interface {
	Acquire(ctx context.Context, key string, timeout time.Duration) (Lock, error)
}

// TenantLockKey 每个租户一把锁，不区分操作类型
func TenantLockKey(tenantID uint) string {
	return fmt.Sprintf("gmdl:tenant:%d", tenantID)
}

// NewLockManager 按注册库方言选择锁实现：MySQL GET_LOCK、PostgreSQL advisory lock，其余用锁表
func NewLockManager(db *gorm.DB) (LockManager, error) {
	switch db.Dialector.Name() {
	case "mysql":
		return &mysqlLockManager{db: db}, nil
	case "postgres":
		return &pgLockManager{db: db, pollInterval: 100 * time.Millisecond}, nil
	default:
		if err := db.AutoMigrate(&tenantLockRecord{}); err != nil {
			return nil, fmt.Errorf("prepare lock table: %w", err)
		}
		return &tableLockManager{db: db, pollInterval: 50 * time.Millisecond, staleAfter: tableLockStaleAfter}, nil
	}
}

func observeLockWait(start time.Time, result string) {
	metrics.Default().LockWait.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

func logReleaseFailure(key string, err error) {
	logger.GetLogger().WithFields(logrus.Fields{
		"lock_key": key,
		"error":    err.Error(),
	}).Warn("Failed to release lock")
}

// ========== MySQL ==========

// GET_LOCK 属于会话，获取和释放必须在同一条连接上
type mysqlLockManager struct {
	db *gorm.DB
}

type connLock struct {
	key     string
	conn    *sql.Conn
	release func(ctx context.Context, conn *sql.Conn) error
}

func (l *connLock) Key() string { return l.key }

func (l *connLock) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.release(ctx, l.conn); err != nil {
		logReleaseFailure(l.key, err)
	}
	if err := l.conn.Close(); err != nil {
		logReleaseFailure(l.key, err)
	}
}

func (m *mysqlLockManager) Acquire(ctx context.Context, key string, timeout time.Duration) (Lock, error) {
	start := time.Now()
	sqlDB, err := m.db.DB()
	if err != nil {
		return nil, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, err
	}

	seconds := int(math.Ceil(timeout.Seconds()))
	if seconds < 0 {
		seconds = 0
	}

	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", key, seconds).Scan(&got); err != nil {
		_ = conn.Close()
		observeLockWait(start, "error")
		return nil, fmt.Errorf("GET_LOCK %s: %w", key, err)
	}
	if !got.Valid || got.Int64 != 1 {
		_ = conn.Close()
		observeLockWait(start, "timeout")
		return nil, ErrLockTimeout
	}

	observeLockWait(start, "acquired")
	return &connLock{
		key:  key,
		conn: conn,
		release: func(ctx context.Context, conn *sql.Conn) error {
			var released sql.NullInt64
			return conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", key).Scan(&released)
		},
	}, nil
}

// ========== PostgreSQL ==========

type pgLockManager struct {
	db           *gorm.DB
	pollInterval time.Duration
}

func advisoryLockID(key string) int64 {
	return int64(crc32.ChecksumIEEE([]byte(key)))
}

func (m *pgLockManager) Acquire(ctx context.Context, key string, timeout time.Duration) (Lock, error) {
	start := time.Now()
	sqlDB, err := m.db.DB()
	if err != nil {
		return nil, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, err
	}

	lockID := advisoryLockID(key)
	deadline := start.Add(timeout)
	for {
		var got bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&got); err != nil {
			_ = conn.Close()
			observeLockWait(start, "error")
			return nil, fmt.Errorf("pg_try_advisory_lock %s: %w", key, err)
		}
		if got {
			break
		}
		if !time.Now().Before(deadline) {
			_ = conn.Close()
			observeLockWait(start, "timeout")
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return nil, ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}

	observeLockWait(start, "acquired")
	return &connLock{
		key:  key,
		conn: conn,
		release: func(ctx context.Context, conn *sql.Conn) error {
			var released bool
			return conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", lockID).Scan(&released)
		},
	}, nil
}

// ========== 锁表（sqlite 等） ==========

type tenantLockRecord struct {
	Key      string    `gorm:"primaryKey;size:191"`
	Owner    string    `gorm:"size:64;not null"`
	LockedBy string    `gorm:"size:191"`
	LockedAt time.Time `gorm:"not null"`
}

func (tenantLockRecord) TableName() string { return "tenant_locks" }

type tableLockManager struct {
	db           *gorm.DB
	pollInterval time.Duration
	staleAfter   time.Duration
}

// tableLock 持有期间定期刷新 locked_at，避免长时间操作被当成遗留锁清理
type tableLock struct {
	key   string
	owner string
	db    *gorm.DB

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (l *tableLock) Key() string { return l.key }

func (l *tableLock) heartbeat(interval time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			err := l.db.Model(&tenantLockRecord{}).
				Where(&tenantLockRecord{Key: l.key, Owner: l.owner}).
				Update("locked_at", time.Now()).Error
			if err != nil {
				logger.GetLogger().WithFields(logrus.Fields{
					"lock_key": l.key,
					"error":    err.Error(),
				}).Warn("Failed to refresh tenant lock")
			}
		}
	}
}

func (l *tableLock) Release() {
	l.once.Do(func() {
		close(l.stop)
		<-l.done
		err := l.db.Where(&tenantLockRecord{Key: l.key, Owner: l.owner}).Delete(&tenantLockRecord{}).Error
		if err != nil {
			logReleaseFailure(l.key, err)
		}
	})
}

func (m *tableLockManager) Acquire(ctx context.Context, key string, timeout time.Duration) (Lock, error) {
	start := time.Now()
	hostname, _ := os.Hostname()
	record := tenantLockRecord{Key: key, Owner: uuid.New().String(), LockedBy: fmt.Sprintf("%s:%d", hostname, os.Getpid())}

	deadline := start.Add(timeout)
	for {
		// 进程崩溃遗留的锁
		m.db.WithContext(ctx).Where(&tenantLockRecord{Key: key}).Where("locked_at < ?", time.Now().Add(-m.staleAfter)).Delete(&tenantLockRecord{})

		record.LockedAt = time.Now()
		if err := m.db.WithContext(ctx).Create(&record).Error; err == nil {
			observeLockWait(start, "acquired")
			lock := &tableLock{
				key:   key,
				owner: record.Owner,
				db:    m.db,
				stop:  make(chan struct{}),
				done:  make(chan struct{}),
			}
			go lock.heartbeat(m.staleAfter / 3)
			return lock, nil
		}

		if !time.Now().Before(deadline) {
			observeLockWait(start, "timeout")
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
}
