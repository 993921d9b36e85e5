package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gmdl/internal/models"

	"gorm.io/gorm"
)

// TenantMigration 一个租户库迁移版本
type TenantMigration struct {
	ID string
	Up func(tx *gorm.DB) error
}

// Seeder 租户库种子数据
type Seeder func(tx *gorm.DB) error

// StepResult 迁移 / 种子执行结果：退出码 + 输出
type StepResult struct {
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output"`
}

// OK 是否成功
func (r StepResult) OK() bool {
	return r.ExitCode == 0
}

// TenantRunner 在租户连接上执行迁移与种子
type TenantRunner interface {
	Migrate(ctx context.Context, db *gorm.DB, path string) StepResult
	Seed(ctx context.Context, db *gorm.DB, class string) StepResult
}

var (
	registryMu        sync.RWMutex
	migrationSets     = map[string][]TenantMigration{}
	registeredSeeders = map[string]Seeder{}
)

// RegisterTenantMigrations 注册迁移集合，集合名取路径最后一段（database/migrations/tenant -> tenant）
func RegisterTenantMigrations(path string, migrations ...TenantMigration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	set := migrationSetName(path)
	migrationSets[set] = append(migrationSets[set], migrations...)
	sort.SliceStable(migrationSets[set], func(i, j int) bool {
		return migrationSets[set][i].ID < migrationSets[set][j].ID
	})
}

// RegisterSeeder 按类名注册 seeder
func RegisterSeeder(class string, seeder Seeder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registeredSeeders[class] = seeder
}

func migrationSetName(path string) string {
	return filepath.Base(filepath.Clean(path))
}

// GormTenantRunner 基于 schema_migrations 表的版本化迁移
type GormTenantRunner struct{}

// NewTenantRunner 创建租户迁移执行器
func NewTenantRunner() *GormTenantRunner {
	return &GormTenantRunner{}
}

// Migrate 按 ID 顺序执行未执行过的迁移，每个版本一个事务
func (r *GormTenantRunner) Migrate(ctx context.Context, db *gorm.DB, path string) StepResult {
	registryMu.RLock()
	migrations, ok := migrationSets[migrationSetName(path)]
	registryMu.RUnlock()

	var out strings.Builder
	if !ok {
		fmt.Fprintf(&out, "Migration path not found: %s\n", path)
		return StepResult{ExitCode: 1, Output: out.String()}
	}

	db = db.WithContext(ctx)
	if err := db.AutoMigrate(&models.SchemaMigration{}); err != nil {
		fmt.Fprintf(&out, "Unable to prepare migration table: %v\n", err)
		return StepResult{ExitCode: 1, Output: out.String()}
	}

	var applied []string
	if err := db.Model(&models.SchemaMigration{}).Pluck("id", &applied).Error; err != nil {
		fmt.Fprintf(&out, "Unable to read migration table: %v\n", err)
		return StepResult{ExitCode: 1, Output: out.String()}
	}
	done := make(map[string]struct{}, len(applied))
	for _, id := range applied {
		done[id] = struct{}{}
	}

	ran := 0
	for _, m := range migrations {
		if _, ok := done[m.ID]; ok {
			continue
		}
		fmt.Fprintf(&out, "Migrating: %s\n", m.ID)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&models.SchemaMigration{ID: m.ID, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			fmt.Fprintf(&out, "Migration failed: %s: %v\n", m.ID, err)
			return StepResult{ExitCode: 1, Output: out.String()}
		}
		fmt.Fprintf(&out, "Migrated:  %s\n", m.ID)
		ran++
	}

	if ran == 0 {
		out.WriteString("Nothing to migrate.\n")
	}
	return StepResult{ExitCode: 0, Output: out.String()}
}

// Seed 执行指定 seeder
func (r *GormTenantRunner) Seed(ctx context.Context, db *gorm.DB, class string) StepResult {
	registryMu.RLock()
	seeder, ok := registeredSeeders[class]
	registryMu.RUnlock()

	if !ok {
		return StepResult{ExitCode: 1, Output: fmt.Sprintf("Seeder not found: %s\n", class)}
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return seeder(tx)
	})
	if err != nil {
		return StepResult{ExitCode: 1, Output: fmt.Sprintf("Seeding failed: %s: %v\n", class, err)}
	}
	return StepResult{ExitCode: 0, Output: fmt.Sprintf("Seeded: %s\n", class)}
}
