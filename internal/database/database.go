package database

import (
	"context"
	"fmt"
	"time"

	"gmdl/pkg/config"
	"gmdl/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// DB 注册库（控制面）连接
	DB *gorm.DB
	// Registry 注册库所用方言
	Registry Dialect
)

// Initialize 打开注册库连接
func Initialize(cfg *config.Config) error {
	appLogger := logger.GetLogger()

	dialect, err := NewDialect(cfg.Database)
	if err != nil {
		return err
	}

	if dialect.Name() == DriverSQLite {
		// sqlite 下注册库文件需要先存在
		if err := dialect.CreateDatabase(context.Background(), nil, cfg.Database.DBName); err != nil {
			return fmt.Errorf("prepare sqlite registry: %w", err)
		}
	}

	db, err := Open(dialect, cfg.Database.DBName, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		return fmt.Errorf("failed to connect registry database: %w", err)
	}

	DB = db
	Registry = dialect
	appLogger.WithFields(logrus.Fields{
		"driver":   dialect.Name(),
		"database": cfg.Database.DBName,
	}).Info("Registry database connected")
	return nil
}

// Open 打开指定库的连接池
func Open(dialect Dialect, dbName string, maxOpen, maxIdle int, maxLifetime time.Duration) (*gorm.DB, error) {
	db, err := gorm.Open(dialect.Dialector(dbName), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dialect.Name() == DriverSQLite {
		// sqlite 单写者
		maxOpen, maxIdle = 1, 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(maxLifetime)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// GetDB 获取注册库连接
func GetDB() *gorm.DB {
	return DB
}

// Close 关闭注册库连接
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
