package data

import (
	"context"
	"time"

	"github.com/ramakeerthi/file-vault-backend/internal/pkg/database"
	"github.com/ramakeerthi/file-vault-backend/internal/vault/biz"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// storageStatsRowID 单行聚合的固定主键
const storageStatsRowID = 1

// StorageStatsPO 存储统计数据库模型（单行）
type StorageStatsPO struct {
	ID                     int       `gorm:"primarykey"`
	TotalFiles             int64     `gorm:"not null;default:0"`
	TotalUniqueFiles       int64     `gorm:"not null;default:0"`
	TotalStorageUsed       int64     `gorm:"not null;default:0"`
	TotalStorageSaved      int64     `gorm:"not null;default:0"`
	StorageSavedPercentage float64   `gorm:"type:double precision;not null;default:0"`
	LastUpdated            time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (StorageStatsPO) TableName() string {
	return "storage_stats"
}

// StatsRepo 存储统计仓储实现
type StatsRepo struct {
	db *database.DB
}

// NewStatsRepo 创建统计仓储
func NewStatsRepo(db *database.DB) biz.StatsRepo {
	return &StatsRepo{db: db}
}

func (r *StatsRepo) conn(ctx context.Context) *gorm.DB {
	return r.db.GetDBFromContext(ctx).WithContext(ctx)
}

// EnsureStatsRow 迁移后预置统计单行，已存在时不做任何事
func EnsureStatsRow(ctx context.Context, db *database.DB) error {
	return db.GetDB().WithContext(ctx).Exec(
		`INSERT INTO storage_stats (id, last_updated) VALUES (?, CURRENT_TIMESTAMP) ON CONFLICT (id) DO NOTHING`,
		storageStatsRowID,
	).Error
}

// Get 读取当前快照，行不存在时返回全零
func (r *StatsRepo) Get(ctx context.Context) (*biz.StorageStats, error) {
	var po StorageStatsPO
	err := r.conn(ctx).Where("id = ?", storageStatsRowID).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return &biz.StorageStats{}, nil
		}
		return nil, err
	}
	return toStorageStats(&po), nil
}

// ApplyDelta 在当前事务内锁行应用增量，返回更新后的快照。
// 必须在写事务中调用。
func (r *StatsRepo) ApplyDelta(ctx context.Context, delta biz.StatsDelta) (*biz.StorageStats, error) {
	conn := r.conn(ctx)

	var po StorageStatsPO
	err := conn.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", storageStatsRowID).
		First(&po).Error
	if err != nil {
		if !database.IsRecordNotFoundError(err) {
			return nil, err
		}
		// 并发首写可能同时走到这里：ON CONFLICT DO NOTHING 让败者
		// 等待胜者提交后重读锁行，而不是撞主键失败
		seed := StorageStatsPO{ID: storageStatsRowID, LastUpdated: time.Now().UTC()}
		if err := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return nil, err
		}
		if err := conn.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", storageStatsRowID).
			First(&po).Error; err != nil {
			return nil, err
		}
	}

	po.TotalFiles += delta.Files
	po.TotalUniqueFiles += delta.UniqueFiles
	po.TotalStorageUsed += delta.StorageUsed
	po.TotalStorageSaved += delta.StorageSaved
	po.StorageSavedPercentage = biz.SavedPercentage(po.TotalStorageUsed, po.TotalStorageSaved)
	po.LastUpdated = time.Now().UTC()

	if err := conn.Save(&po).Error; err != nil {
		return nil, err
	}
	return toStorageStats(&po), nil
}

func toStorageStats(po *StorageStatsPO) *biz.StorageStats {
	return &biz.StorageStats{
		TotalFiles:             po.TotalFiles,
		TotalUniqueFiles:       po.TotalUniqueFiles,
		TotalStorageUsed:       po.TotalStorageUsed,
		TotalStorageSaved:      po.TotalStorageSaved,
		StorageSavedPercentage: po.StorageSavedPercentage,
		LastUpdated:            po.LastUpdated,
	}
}
