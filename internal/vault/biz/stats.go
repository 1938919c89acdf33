package biz

import (
	"fmt"
	"time"
)

// StorageStats 全局存储统计（单行聚合）
type StorageStats struct {
	TotalFiles             int64
	TotalUniqueFiles       int64
	TotalStorageUsed       int64 // 物理占用：每个 hash 只计一份
	TotalStorageSaved      int64 // 去重节省：所有 is_duplicate 记录的 size 之和
	StorageSavedPercentage float64
	LastUpdated            time.Time
}

// StatsDelta 单次写操作对统计的增量
type StatsDelta struct {
	Files        int64
	UniqueFiles  int64
	StorageUsed  int64
	StorageSaved int64
}

// deltaForUpload 上传一条记录的统计增量
func deltaForUpload(size int64, isDuplicate bool) StatsDelta {
	if isDuplicate {
		return StatsDelta{Files: 1, StorageSaved: size}
	}
	return StatsDelta{Files: 1, UniqueFiles: 1, StorageUsed: size}
}

// deltaForDelete 删除一条记录的统计增量。
// lastForHash 表示该 hash 的最后一条记录被删除。
// 删除被提升替代的原始记录时，提升者的 size 与被删者相同（同 hash 即同内容），
// 物理占用不变，节省量减少一份。
func deltaForDelete(size int64, lastForHash bool) StatsDelta {
	if lastForHash {
		return StatsDelta{Files: -1, UniqueFiles: -1, StorageUsed: -size}
	}
	return StatsDelta{Files: -1, StorageSaved: -size}
}

// SavedPercentage 计算节省百分比，分母为 0 时返回 0
func SavedPercentage(used, saved int64) float64 {
	denom := used + saved
	if denom == 0 {
		return 0
	}
	return float64(saved) / float64(denom) * 100
}

// Validate 校验统计快照的不变量
func (s *StorageStats) Validate() error {
	if s.TotalFiles < 0 || s.TotalUniqueFiles < 0 || s.TotalStorageUsed < 0 || s.TotalStorageSaved < 0 {
		return fmt.Errorf("storage stats contain negative values: %+v", *s)
	}
	if s.TotalUniqueFiles > s.TotalFiles {
		return fmt.Errorf("unique files (%d) exceed total files (%d)", s.TotalUniqueFiles, s.TotalFiles)
	}
	if s.StorageSavedPercentage < 0 || s.StorageSavedPercentage >= 100 {
		return fmt.Errorf("storage saved percentage out of range: %f", s.StorageSavedPercentage)
	}
	return nil
}
