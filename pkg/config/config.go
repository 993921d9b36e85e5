package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	App       AppConfig
	Database  DatabaseConfig
	Tenant    TenantConfig
	Admin     AdminConfig
	Billing   BillingConfig
	JWT       JWTConfig `mapstructure:"jwt"`
	Log       LogConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	CORS      CORSConfig
	Seed      SeedConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

// AppConfig 运行环境（local / development / testing / production）
type AppConfig struct {
	Env string
}

// IsProduction 非开发环境一律按生产处理
func (a AppConfig) IsProduction() bool {
	switch strings.ToLower(a.Env) {
	case "local", "development", "dev", "testing", "test":
		return false
	default:
		return true
	}
}

type DatabaseConfig struct {
	Driver          string // mysql / postgres / sqlite
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string // registry（控制面）数据库
	SSLMode         string
	SQLiteDir       string // sqlite 下每个数据库对应目录中的一个文件
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// TenantConfig 租户库相关配置
type TenantConfig struct {
	MigrationsPath  string        // 租户迁移集合
	SeedClass       string        // 默认 seeder
	LockTimeout     time.Duration // 租户锁等待时间
	ConnIdleTTL     time.Duration // 租户连接池空闲回收时间
	ConnMaxOpen     int           // 每个租户库的最大连接数
	MaxCachedPools  int           // 同时缓存的租户连接池上限
	MigrateSchedule string        // cron 表达式，空表示不启用
	DefaultDatabase string        // 未解析到租户时 health 展示的租户库
}

type AdminConfig struct {
	Domain                 string
	AllowedHosts           []string
	AllowDevAdminSubdomain bool
}

type BillingConfig struct {
	TrialDays       int
	GraceDays       int
	AllowedStatuses []string
}

type JWTConfig struct {
	SecretKey       string `mapstructure:"secret_key"`       // JWT密钥
	TokenDuration   string `mapstructure:"token_duration"`   // 令牌有效期，如 "24h"
	RefreshDuration string `mapstructure:"refresh_duration"` // 刷新窗口
}

type LogConfig struct {
	Level      string
	FilePath   string
	MaxSize    int    // MB
	MaxBackups int    // 保留的备份文件数
	MaxAge     int    // 保留天数
	Compress   bool   // 是否压缩
	Format     string // json 或 text
}

type RedisConfig struct {
	Host     string // Redis主机地址
	Port     int    // Redis端口
	Password string // Redis密码
	DB       int    // Redis数据库编号
	Prefix   string // 键前缀
}

// RateLimitConfig 限流配置（每分钟）
type RateLimitConfig struct {
	LoginPerMinute int
	AdminPerMinute int
}

type AuditConfig struct {
	QueueSize int
}

type CORSConfig struct {
	AllowOrigins     []string // 允许的源
	AllowMethods     []string // 允许的HTTP方法
	AllowHeaders     []string // 允许的请求头
	ExposeHeaders    []string // 暴露的响应头
	AllowCredentials bool     // 是否允许携带凭证
	MaxAge           int      // 预检请求缓存时间（小时）
}

// SeedConfig 注册库种子数据
type SeedConfig struct {
	DemoTenant         bool
	SuperAdminEmail    string
	SuperAdminPassword string
}

// 全局配置实例和同步锁
var (
	globalConfig *Config
	once         sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		var err error
		globalConfig, err = LoadConfig()
		if err != nil {
			panic("Failed to load config: " + err.Error())
		}
	})
	return globalConfig
}

// 获取环境变量，如果不存在则使用默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// 获取环境变量转换为int
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// 获取环境变量转换为bool
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true"
	}
	return defaultValue
}

// 获取环境变量转换为时长，同时接受纯数字（秒）
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

// 获取环境变量转换为字符串数组（逗号分隔）
func getEnvAsStringArray(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

func LoadConfig() (*Config, error) {
	// .env 不存在时直接使用环境变量
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Mode: getEnv("SERVER_MODE", "debug"),
		},
		App: AppConfig{
			Env: getEnv("APP_ENV", "production"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", "mysql")),
			Host:            getEnv("DB_HOST", "127.0.0.1"),
			Port:            getEnv("DB_PORT", "3306"),
			User:            getEnv("DB_USER", "root"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "gmdl_registry"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			SQLiteDir:       getEnv("DB_SQLITE_DIR", "storage/databases"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Tenant: TenantConfig{
			MigrationsPath:  getEnv("TENANT_MIGRATIONS_PATH", "database/migrations/tenant"),
			SeedClass:       getEnv("TENANT_SEED_CLASS", "TenantDatabaseSeeder"),
			LockTimeout:     getEnvAsDuration("TENANT_LOCK_TIMEOUT", 10*time.Second),
			ConnIdleTTL:     getEnvAsDuration("TENANT_CONN_IDLE_TTL", 10*time.Minute),
			ConnMaxOpen:     getEnvAsInt("TENANT_CONN_MAX_OPEN", 5),
			MaxCachedPools:  getEnvAsInt("TENANT_CONN_MAX_POOLS", 64),
			MigrateSchedule: getEnv("TENANT_MIGRATE_SCHEDULE", ""),
			DefaultDatabase: getEnv("TENANT_DB_DEFAULT", ""),
		},
		Admin: AdminConfig{
			Domain:                 strings.ToLower(getEnv("ADMIN_DOMAIN", "")),
			AllowedHosts:           getEnvAsStringArray("ADMIN_ALLOWED_HOSTS", []string{"localhost", "127.0.0.1", "::1"}),
			AllowDevAdminSubdomain: getEnvAsBool("ADMIN_ALLOW_DEV_SUBDOMAIN", true),
		},
		Billing: BillingConfig{
			TrialDays:       getEnvAsInt("BILLING_TRIAL_DAYS", 14),
			GraceDays:       getEnvAsInt("BILLING_GRACE_DAYS", 7),
			AllowedStatuses: getEnvAsStringArray("BILLING_ALLOWED_STATUSES", []string{"trial", "active", "past_due"}),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET_KEY", "default-secret-change-me"),
			TokenDuration:   getEnv("JWT_TOKEN_DURATION", "1h"),
			RefreshDuration: getEnv("JWT_REFRESH_DURATION", "336h"),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   getEnv("LOG_FILE_PATH", "logs/app.log"),
			MaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 7),
			MaxAge:     getEnvAsInt("LOG_MAX_AGE", 30),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
			Format:     getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "gmdl"),
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: getEnvAsInt("RATE_LIMIT_LOGIN", 5),
			AdminPerMinute: getEnvAsInt("RATE_LIMIT_ADMIN", 60),
		},
		Audit: AuditConfig{
			QueueSize: getEnvAsInt("AUDIT_QUEUE_SIZE", 1024),
		},
		CORS: CORSConfig{
			AllowOrigins:     getEnvAsStringArray("CORS_ALLOW_ORIGINS", []string{"*"}),
			AllowMethods:     getEnvAsStringArray("CORS_ALLOW_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			AllowHeaders:     getEnvAsStringArray("CORS_ALLOW_HEADERS", []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"}),
			ExposeHeaders:    getEnvAsStringArray("CORS_EXPOSE_HEADERS", []string{"Content-Length", "Content-Type"}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 12),
		},
		Seed: SeedConfig{
			DemoTenant:         getEnvAsBool("SEED_DEMO_TENANT", false),
			SuperAdminEmail:    getEnv("SEED_SUPER_ADMIN_EMAIL", ""),
			SuperAdminPassword: getEnv("SEED_SUPER_ADMIN_PASSWORD", ""),
		},
	}

	return config, nil
}
