package biz

import (
	"context"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// FileRecord 文件目录条目，每次逻辑上传一条（重复上传也各占一条）
type FileRecord struct {
	ID               string
	OriginalFilename string
	FileType         string
	Size             int64
	FileHash         string
	StorageKey       string // 相同 hash 的记录共享同一 storage key
	IsDuplicate      bool
	OriginalFileID   *string // 该 hash 当前指定原始记录的 ID，非重复记录为 nil
	UploadedAt       time.Time
}

// FileRepo 文件目录仓储接口
type FileRepo interface {
	Create(ctx context.Context, record *FileRecord) error
	GetByID(ctx context.Context, id string) (*FileRecord, error)
	// FindOriginalByHash 查找该 hash 的指定原始记录（is_duplicate = false），无则返回 ErrFileNotFound
	FindOriginalByHash(ctx context.Context, hash string) (*FileRecord, error)
	// FindEarliestByHash 查找该 hash 除 excludeID 外最早的存活记录
	FindEarliestByHash(ctx context.Context, hash string, excludeID string) (*FileRecord, error)
	CountByHash(ctx context.Context, hash string) (int64, error)
	// MarkOriginal 将记录提升为该 hash 的指定原始记录
	MarkOriginal(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, query *FilterQuery, order OrderSpec) ([]*FileRecord, int64, error)
	DistinctFileTypes(ctx context.Context) ([]string, error)
}

// StatsRepo 存储统计仓储接口
type StatsRepo interface {
	Get(ctx context.Context) (*StorageStats, error)
	// ApplyDelta 应用增量并返回更新后的快照
	ApplyDelta(ctx context.Context, delta StatsDelta) (*StorageStats, error)
}

// BlobStore 物理存储接口，按内容 hash 寻址
type BlobStore interface {
	Put(ctx context.Context, hash string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Remove(ctx context.Context, storageKey string) error
}

// IngestLock 按内容 hash 的互斥锁，串行化同一 hash 的并发写入
type IngestLock interface {
	// Acquire 获取锁并返回释放函数
	Acquire(ctx context.Context, hash string) (release func(), err error)
}

// TxManager 事务管理接口
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IsDuplicateKeyFunc 判断仓储错误是否为唯一约束冲突
type IsDuplicateKeyFunc func(err error) bool

// Config 文件用例配置
type Config struct {
	MaxUploadSize int64         // 单文件最大字节数，0 表示不限制
	BlobTimeout   time.Duration // blob 读写超时
	BatchMaxFiles int           // 批量上传单次最大文件数
}

// maxIngestAttempts 并发首写冲突的最大重试次数
const maxIngestAttempts = 3

// FileUseCase 文件目录用例
type FileUseCase struct {
	repo     FileRepo
	stats    StatsRepo
	blobs    BlobStore
	lock     IngestLock
	tx       TxManager
	isDupKey IsDuplicateKeyFunc
	config   Config
	log      *logger.Logger
	frozen   atomic.Bool // 统计不变量被破坏后冻结所有写操作
}

// NewFileUseCase 创建文件目录用例
func NewFileUseCase(
	repo FileRepo,
	stats StatsRepo,
	blobs BlobStore,
	lock IngestLock,
	tx TxManager,
	isDupKey IsDuplicateKeyFunc,
	config Config,
	log *logger.Logger,
) *FileUseCase {
	if config.BlobTimeout == 0 {
		config.BlobTimeout = 30 * time.Second
	}
	if config.BatchMaxFiles == 0 {
		config.BatchMaxFiles = 20
	}
	if isDupKey == nil {
		isDupKey = func(error) bool { return false }
	}
	return &FileUseCase{
		repo:     repo,
		stats:    stats,
		blobs:    blobs,
		lock:     lock,
		tx:       tx,
		isDupKey: isDupKey,
		config:   config,
		log:      log,
	}
}

// Frozen 统计是否已冻结写操作
func (uc *FileUseCase) Frozen() bool {
	return uc.frozen.Load()
}

// Upload 上传文件并执行去重
func (uc *FileUseCase) Upload(ctx context.Context, filename, declaredType string, r io.Reader) (*FileRecord, error) {
	if uc.frozen.Load() {
		return nil, ErrStatsInconsistent
	}
	if strings.TrimSpace(filename) == "" {
		return nil, ErrFilenameMissing
	}

	content, err := ReadAndHash(r)
	if err != nil {
		return nil, err
	}
	if content.Size == 0 {
		return nil, ErrEmptyUpload
	}
	if uc.config.MaxUploadSize > 0 && content.Size > uc.config.MaxUploadSize {
		return nil, ErrFileTooLarge
	}

	fileType := detectFileType(filename, declaredType, content.Data)

	// 同一 hash 的并发首写串行化；锁失效时由部分唯一索引兜底
	release, err := uc.lock.Acquire(ctx, content.Hash)
	if err != nil {
		uc.log.WithContext(ctx).Warn("failed to acquire ingest lock",
			zap.String("file_hash", content.Hash),
			zap.Error(err),
		)
		return nil, ErrIngestContention
	}
	defer release()

	var record *FileRecord
	for attempt := 1; attempt <= maxIngestAttempts; attempt++ {
		record, err = uc.ingestOnce(ctx, filename, fileType, content)
		if err == nil {
			return record, nil
		}
		if err != errDuplicateRace {
			return nil, err
		}
		uc.log.WithContext(ctx).Warn("duplicate race detected, retrying as duplicate",
			zap.String("file_hash", content.Hash),
			zap.Int("attempt", attempt),
		)
	}
	return nil, ErrIngestContention
}

// ingestOnce 单次入库尝试：查原始记录、写 blob、插入记录、更新统计，同一事务提交
func (uc *FileUseCase) ingestOnce(ctx context.Context, filename, fileType string, content *HashedContent) (*FileRecord, error) {
	record := &FileRecord{
		ID:               uuid.New().String(),
		OriginalFilename: filename,
		FileType:         fileType,
		Size:             content.Size,
		FileHash:         content.Hash,
		UploadedAt:       time.Now().UTC(),
	}

	var blobWritten bool

	err := uc.tx.Transaction(ctx, func(txCtx context.Context) error {
		original, err := uc.repo.FindOriginalByHash(txCtx, content.Hash)
		switch {
		case err == nil:
			record.IsDuplicate = true
			record.StorageKey = original.StorageKey
			record.OriginalFileID = &original.ID
		case err == ErrFileNotFound:
			record.IsDuplicate = false

			blobCtx, cancel := context.WithTimeout(txCtx, uc.config.BlobTimeout)
			defer cancel()

			key, putErr := uc.blobs.Put(blobCtx, content.Hash, content.Reader(), content.Size, fileType)
			if putErr != nil {
				uc.log.WithContext(ctx).Error("blob write failed",
					zap.String("file_hash", content.Hash),
					zap.Error(putErr),
				)
				if errors.Is(putErr, context.DeadlineExceeded) {
					return ErrStorageTimeout
				}
				return ErrStorageFailed
			}
			blobWritten = true
			record.StorageKey = key
		default:
			return err
		}

		if err := uc.repo.Create(txCtx, record); err != nil {
			if uc.isDupKey(err) {
				// 锁失效窗口内另一写入者抢先成为原始记录
				return errDuplicateRace
			}
			return err
		}

		snapshot, err := uc.stats.ApplyDelta(txCtx, deltaForUpload(content.Size, record.IsDuplicate))
		if err != nil {
			return err
		}
		return uc.checkStats(ctx, snapshot)
	})

	if err != nil {
		// blob 以 hash 寻址：竞争失败时胜者引用同一对象，不能删；
		// 其它失败则回收本次写入的对象
		if blobWritten && err != errDuplicateRace {
			uc.removeBlobQuietly(record.StorageKey, content.Hash)
		}
		return nil, err
	}

	uc.log.WithContext(ctx).Info("file ingested",
		zap.String("file_id", record.ID),
		zap.String("file_hash", record.FileHash),
		zap.Int64("size", record.Size),
		zap.Bool("is_duplicate", record.IsDuplicate),
	)
	return record, nil
}

// Get 获取单条记录
func (uc *FileUseCase) Get(ctx context.Context, id string) (*FileRecord, error) {
	return uc.repo.GetByID(ctx, id)
}

// Delete 删除记录。删除指定原始记录时提升最早的存活重复记录；
// 删除该 hash 的最后一条记录时回收物理 blob。
func (uc *FileUseCase) Delete(ctx context.Context, id string) error {
	if uc.frozen.Load() {
		return ErrStatsInconsistent
	}

	record, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// 与同一 hash 的入库互斥
	release, err := uc.lock.Acquire(ctx, record.FileHash)
	if err != nil {
		return ErrIngestContention
	}
	defer release()

	var removeBlob bool

	err = uc.tx.Transaction(ctx, func(txCtx context.Context) error {
		record, err = uc.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}

		count, err := uc.repo.CountByHash(txCtx, record.FileHash)
		if err != nil {
			return err
		}
		lastForHash := count <= 1

		// 先选定继任者，删除后再提升：部分唯一索引不允许同一 hash
		// 同时存在两条原始记录，先升后删会撞索引
		var successorID string
		if !lastForHash && !record.IsDuplicate {
			successor, err := uc.repo.FindEarliestByHash(txCtx, record.FileHash, record.ID)
			if err != nil {
				return err
			}
			successorID = successor.ID
		}

		if err := uc.repo.Delete(txCtx, record.ID); err != nil {
			return err
		}

		if successorID != "" {
			if err := uc.repo.MarkOriginal(txCtx, successorID); err != nil {
				return err
			}
		}

		snapshot, err := uc.stats.ApplyDelta(txCtx, deltaForDelete(record.Size, lastForHash))
		if err != nil {
			return err
		}
		removeBlob = lastForHash
		return uc.checkStats(ctx, snapshot)
	})
	if err != nil {
		return err
	}

	// 事务提交后回收 blob；失败只告警，目录已一致
	if removeBlob {
		uc.removeBlobQuietly(record.StorageKey, record.FileHash)
	}

	uc.log.WithContext(ctx).Info("file deleted",
		zap.String("file_id", record.ID),
		zap.String("file_hash", record.FileHash),
		zap.Bool("blob_removed", removeBlob),
	)
	return nil
}

// Download 返回记录与内容流，调用方负责关闭
func (uc *FileUseCase) Download(ctx context.Context, id string) (*FileRecord, io.ReadCloser, error) {
	record, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	blobCtx, cancel := context.WithTimeout(ctx, uc.config.BlobTimeout)
	rc, err := uc.blobs.Get(blobCtx, record.StorageKey)
	if err != nil {
		cancel()
		uc.log.WithContext(ctx).Error("blob read failed",
			zap.String("file_id", record.ID),
			zap.String("storage_key", record.StorageKey),
			zap.Error(err),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, ErrStorageTimeout
		}
		return nil, nil, ErrStorageFailed
	}

	return record, &cancelReadCloser{ReadCloser: rc, cancel: cancel}, nil
}

// List 查询文件列表
func (uc *FileUseCase) List(ctx context.Context, query *FilterQuery) ([]*FileRecord, int64, error) {
	order, err := query.Normalize()
	if err != nil {
		return nil, 0, err
	}
	return uc.repo.List(ctx, query, order)
}

// StorageStats 当前统计快照
func (uc *FileUseCase) StorageStats(ctx context.Context) (*StorageStats, error) {
	return uc.stats.Get(ctx)
}

// FileTypes 目录中现存的 file_type 去重列表
func (uc *FileUseCase) FileTypes(ctx context.Context) ([]string, error) {
	return uc.repo.DistinctFileTypes(ctx)
}

// checkStats 校验统计快照，违反不变量则冻结写操作
func (uc *FileUseCase) checkStats(ctx context.Context, snapshot *StorageStats) error {
	if err := snapshot.Validate(); err != nil {
		uc.frozen.Store(true)
		uc.log.WithContext(ctx).Error("storage stats invariant violated, freezing mutations",
			zap.Error(err),
		)
		return ErrStatsInconsistent
	}
	return nil
}

func (uc *FileUseCase) removeBlobQuietly(storageKey, hash string) {
	ctx, cancel := context.WithTimeout(context.Background(), uc.config.BlobTimeout)
	defer cancel()

	if err := uc.blobs.Remove(ctx, storageKey); err != nil {
		uc.log.Warn("failed to remove blob",
			zap.String("storage_key", storageKey),
			zap.String("file_hash", hash),
			zap.Error(err),
		)
	}
}

// detectFileType 推断文件类型：请求声明 → 内容嗅探 → 扩展名 → octet-stream
func detectFileType(filename, declaredType string, data []byte) string {
	declared := strings.TrimSpace(declaredType)
	if declared != "" && declared != "application/octet-stream" {
		if t, _, err := mime.ParseMediaType(declared); err == nil {
			return t
		}
	}

	if detected := mimetype.Detect(data); detected.String() != "application/octet-stream" {
		t, _, err := mime.ParseMediaType(detected.String())
		if err == nil {
			return t
		}
	}

	if ext := filepath.Ext(filename); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			if t, _, err := mime.ParseMediaType(byExt); err == nil {
				return t
			}
		}
	}

	return "application/octet-stream"
}

// ExtensionForType 根据 file_type 推断下载文件扩展名
func ExtensionForType(fileType string) string {
	if exts, err := mime.ExtensionsByType(fileType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
