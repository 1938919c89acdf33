package data

import (
	"context"
	"time"

	"github.com/ramakeerthi/file-vault-backend/internal/pkg/database"
	"github.com/ramakeerthi/file-vault-backend/internal/vault/biz"
	"gorm.io/gorm"
)

// FilePO 文件目录数据库模型
type FilePO struct {
	ID               string `gorm:"type:uuid;primarykey"`
	OriginalFilename string `gorm:"size:512;not null"`
	FileType         string `gorm:"size:128;not null;index:idx_files_file_type"`
	Size             int64  `gorm:"not null"`
	// 部分唯一索引保证每个 hash 至多一条原始记录，同时兜底并发首写竞争
	FileHash    string    `gorm:"size:64;not null;index:idx_files_file_hash;index:uniq_files_original_per_hash,unique,where:is_duplicate = false"`
	StorageKey  string    `gorm:"size:160;not null"`
	IsDuplicate bool      `gorm:"not null;default:false"`
	UploadedAt  time.Time `gorm:"not null;index:idx_files_uploaded_at"`

	// 该 hash 当前指定原始记录的 ID，查询时派生，不落库
	OriginalFileID *string `gorm:"->;-:migration"`
}

func (FilePO) TableName() string {
	return "files"
}

// originalFileIDSelect 派生 original_file_id 的子查询
const originalFileIDSelect = "files.*, " +
	"(SELECT o.id FROM files o WHERE o.file_hash = files.file_hash AND NOT o.is_duplicate) AS original_file_id"

// FileRepo 文件目录仓储实现
type FileRepo struct {
	db *database.DB
	tm *database.TransactionManager
}

// NewFileRepo 创建文件仓储
func NewFileRepo(db *database.DB) biz.FileRepo {
	return &FileRepo{db: db, tm: database.NewTransactionManager(db)}
}

// conn 优先使用上下文中的事务
func (r *FileRepo) conn(ctx context.Context) *gorm.DB {
	return r.db.GetDBFromContext(ctx).WithContext(ctx)
}

// Create 插入文件记录
func (r *FileRepo) Create(ctx context.Context, record *biz.FileRecord) error {
	po := &FilePO{
		ID:               record.ID,
		OriginalFilename: record.OriginalFilename,
		FileType:         record.FileType,
		Size:             record.Size,
		FileHash:         record.FileHash,
		StorageKey:       record.StorageKey,
		IsDuplicate:      record.IsDuplicate,
		UploadedAt:       record.UploadedAt,
	}
	return r.conn(ctx).Create(po).Error
}

// GetByID 根据 ID 获取记录
func (r *FileRepo) GetByID(ctx context.Context, id string) (*biz.FileRecord, error) {
	var po FilePO
	err := r.conn(ctx).
		Select(originalFileIDSelect).
		Where("files.id = ?", id).
		First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrFileNotFound
		}
		return nil, err
	}
	return r.toFileRecord(&po), nil
}

// FindOriginalByHash 查找该 hash 的指定原始记录
func (r *FileRepo) FindOriginalByHash(ctx context.Context, hash string) (*biz.FileRecord, error) {
	var po FilePO
	err := r.conn(ctx).
		Where("file_hash = ? AND NOT is_duplicate", hash).
		First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrFileNotFound
		}
		return nil, err
	}
	return r.toFileRecord(&po), nil
}

// FindEarliestByHash 查找该 hash 除 excludeID 外最早的存活记录
func (r *FileRepo) FindEarliestByHash(ctx context.Context, hash string, excludeID string) (*biz.FileRecord, error) {
	var po FilePO
	err := r.conn(ctx).
		Where("file_hash = ? AND id <> ?", hash, excludeID).
		Order("uploaded_at ASC, id ASC").
		First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrFileNotFound
		}
		return nil, err
	}
	return r.toFileRecord(&po), nil
}

// CountByHash 统计该 hash 的存活记录数
func (r *FileRepo) CountByHash(ctx context.Context, hash string) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&FilePO{}).
		Where("file_hash = ?", hash).
		Count(&count).Error
	return count, err
}

// MarkOriginal 将记录提升为该 hash 的指定原始记录
func (r *FileRepo) MarkOriginal(ctx context.Context, id string) error {
	result := r.conn(ctx).Model(&FilePO{}).
		Where("id = ?", id).
		Update("is_duplicate", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return biz.ErrFileNotFound
	}
	return nil
}

// Delete 删除记录
func (r *FileRepo) Delete(ctx context.Context, id string) error {
	result := r.conn(ctx).Where("id = ?", id).Delete(&FilePO{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return biz.ErrFileNotFound
	}
	return nil
}

// List 按条件查询文件列表。计数与取页在同一只读事务内执行，
// total 与页内容来自同一快照。
func (r *FileRepo) List(ctx context.Context, query *biz.FilterQuery, order biz.OrderSpec) ([]*biz.FileRecord, int64, error) {
	var (
		records []*biz.FileRecord
		total   int64
	)

	run := func(ctx context.Context) error {
		if err := r.conn(ctx).Model(&FilePO{}).Scopes(filterScopes(query)...).Count(&total).Error; err != nil {
			return err
		}

		direction := "ASC"
		if order.Desc {
			direction = "DESC"
		}

		var pos []FilePO
		err := r.conn(ctx).Model(&FilePO{}).Scopes(filterScopes(query)...).
			Select(originalFileIDSelect).
			Order("files." + order.Column + " " + direction).
			Order("files.id ASC"). // 相同排序键的确定性顺序
			Offset((query.Page - 1) * query.PageSize).
			Limit(query.PageSize).
			Find(&pos).Error
		if err != nil {
			return err
		}

		records = make([]*biz.FileRecord, len(pos))
		for i := range pos {
			records[i] = r.toFileRecord(&pos[i])
		}
		return nil
	}

	// 已在事务内时直接复用外层事务
	var err error
	if _, ok := database.TransactionFromContext(ctx); ok {
		err = run(ctx)
	} else {
		err = r.tm.ReadOnly(ctx, func(ctx context.Context, tx *gorm.DB) error {
			return run(database.ContextWithTransaction(ctx, tx))
		})
	}
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// DistinctFileTypes 目录中现存的 file_type 去重列表
func (r *FileRepo) DistinctFileTypes(ctx context.Context) ([]string, error) {
	var types []string
	err := r.conn(ctx).Model(&FilePO{}).
		Distinct("file_type").
		Order("file_type ASC").
		Pluck("file_type", &types).Error
	return types, err
}

// filterScopes 将 FilterQuery 翻译为 gorm 条件，AND 组合
func filterScopes(q *biz.FilterQuery) []func(*gorm.DB) *gorm.DB {
	return []func(*gorm.DB) *gorm.DB{
		database.WhereIf(q.Search != "", "original_filename ILIKE ?", "%"+escapeLike(q.Search)+"%"),
		database.WhereIf(q.FileType != "", "file_type = ?", q.FileType),
		database.WhereIf(q.MinSize != nil, "size >= ?", derefInt64(q.MinSize)),
		database.WhereIf(q.MaxSize != nil, "size <= ?", derefInt64(q.MaxSize)),
		database.WhereIf(q.StartDate != nil, "uploaded_at >= ?", derefTime(q.StartDate)),
		database.WhereIf(q.EndDate != nil, "uploaded_at < ?", derefTime(q.EndDate).AddDate(0, 0, 1)), // 日粒度闭区间
		database.WhereIf(q.IsDuplicate != nil, "is_duplicate = ?", derefBool(q.IsDuplicate)),
	}
}

// escapeLike 转义 LIKE 模式中的通配符
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefBool(v *bool) bool {
	if v == nil {
		return false
	}
	return *v
}

func derefTime(v *time.Time) time.Time {
	if v == nil {
		return time.Time{}
	}
	return *v
}

func (r *FileRepo) toFileRecord(po *FilePO) *biz.FileRecord {
	record := &biz.FileRecord{
		ID:               po.ID,
		OriginalFilename: po.OriginalFilename,
		FileType:         po.FileType,
		Size:             po.Size,
		FileHash:         po.FileHash,
		StorageKey:       po.StorageKey,
		IsDuplicate:      po.IsDuplicate,
		UploadedAt:       po.UploadedAt,
	}
	// 重复记录才暴露 original_file 指向
	if po.IsDuplicate && po.OriginalFileID != nil {
		id := *po.OriginalFileID
		record.OriginalFileID = &id
	}
	return record
}
