package database

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gmdl/pkg/config"

	"github.com/glebarez/sqlite"
	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// 支持的数据库驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Dialect 屏蔽各数据库在"按库名连接 / 建库 / 查询当前库"上的差异
type Dialect interface {
	Name() string
	// Dialector 返回连接指定库的 gorm dialector
	Dialector(dbName string) gorm.Dialector
	// CreateDatabase 在注册库连接上执行建库（库名须已通过安全校验）
	CreateDatabase(ctx context.Context, registry *gorm.DB, dbName string) error
	// CurrentDatabase 查询连接实际所在的库
	CurrentDatabase(ctx context.Context, db *gorm.DB) (string, error)
}

// NewDialect 根据配置选择方言
func NewDialect(cfg config.DatabaseConfig) (Dialect, error) {
	switch cfg.Driver {
	case DriverMySQL, "":
		return &mysqlDialect{cfg: cfg}, nil
	case DriverPostgres, "pgsql", "postgresql":
		return &postgresDialect{cfg: cfg}, nil
	case DriverSQLite:
		return &sqliteDialect{dir: cfg.SQLiteDir}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

type mysqlDialect struct {
	cfg config.DatabaseConfig
}

func (d *mysqlDialect) Name() string { return DriverMySQL }

// DSN 构造指定库名的 MySQL DSN
func (d *mysqlDialect) DSN(dbName string) string {
	c := mysqldriver.NewConfig()
	c.User = d.cfg.User
	c.Passwd = d.cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(d.cfg.Host, d.cfg.Port)
	c.DBName = dbName
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

func (d *mysqlDialect) Dialector(dbName string) gorm.Dialector {
	return mysql.New(mysql.Config{DSN: d.DSN(dbName)})
}

func (d *mysqlDialect) CreateDatabase(ctx context.Context, registry *gorm.DB, dbName string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_0900_ai_ci", dbName)
	return registry.WithContext(ctx).Exec(sql).Error
}

func (d *mysqlDialect) CurrentDatabase(ctx context.Context, db *gorm.DB) (string, error) {
	var row struct {
		DB *string
	}
	if err := db.WithContext(ctx).Raw("SELECT DATABASE() AS db").Scan(&row).Error; err != nil {
		return "", err
	}
	if row.DB == nil {
		return "", nil
	}
	return *row.DB, nil
}

type postgresDialect struct {
	cfg config.DatabaseConfig
}

func (d *postgresDialect) Name() string { return DriverPostgres }

func (d *postgresDialect) DSN(dbName string) string {
	port := d.cfg.Port
	if port == "" || port == "3306" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.cfg.Host, port, d.cfg.User, d.cfg.Password, dbName, d.cfg.SSLMode)
}

func (d *postgresDialect) Dialector(dbName string) gorm.Dialector {
	return postgres.Open(d.DSN(dbName))
}

// CreateDatabase PostgreSQL 没有 IF NOT EXISTS，先查 pg_database
func (d *postgresDialect) CreateDatabase(ctx context.Context, registry *gorm.DB, dbName string) error {
	var count int64
	if err := registry.WithContext(ctx).Raw("SELECT COUNT(*) FROM pg_database WHERE datname = ?", dbName).Scan(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return registry.WithContext(ctx).Exec(fmt.Sprintf(`CREATE DATABASE "%s" ENCODING 'UTF8'`, dbName)).Error
}

func (d *postgresDialect) CurrentDatabase(ctx context.Context, db *gorm.DB) (string, error) {
	var name string
	err := db.WithContext(ctx).Raw("SELECT current_database()").Scan(&name).Error
	return name, err
}

// sqliteDialect 每个库是目录下的一个文件，用于本地开发与测试
type sqliteDialect struct {
	dir string
}

func (d *sqliteDialect) Name() string { return DriverSQLite }

// Path 库文件路径
func (d *sqliteDialect) Path(dbName string) string {
	return filepath.Join(d.dir, dbName+".sqlite")
}

func (d *sqliteDialect) Dialector(dbName string) gorm.Dialector {
	return sqlite.Open(d.Path(dbName) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
}

func (d *sqliteDialect) CreateDatabase(_ context.Context, _ *gorm.DB, dbName string) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(d.Path(dbName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// CurrentDatabase 取 main 库文件名（去掉扩展名）
func (d *sqliteDialect) CurrentDatabase(ctx context.Context, db *gorm.DB) (string, error) {
	rows, err := db.WithContext(ctx).Raw("PRAGMA database_list").Rows()
	if err != nil {
		return "", err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int
		var name, file string
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return "", err
		}
		if name == "main" {
			base := filepath.Base(file)
			return strings.TrimSuffix(base, filepath.Ext(base)), nil
		}
	}
	return "", rows.Err()
}
