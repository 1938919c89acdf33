package biz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ramakeerthi/file-vault-backend/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==================== fakes ====================

type fakeCatalog struct {
	mu      sync.Mutex
	records map[string]*FileRecord
	seq     int

	createErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{records: make(map[string]*FileRecord)}
}

func (f *fakeCatalog) Create(_ context.Context, record *FileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if !record.IsDuplicate {
		for _, r := range f.records {
			if r.FileHash == record.FileHash && !r.IsDuplicate {
				return errUniqueViolation
			}
		}
	}
	f.seq++
	clone := *record
	clone.UploadedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.seq) * time.Second)
	record.UploadedAt = clone.UploadedAt
	f.records[record.ID] = &clone
	return nil
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (*FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	clone := *r
	return &clone, nil
}

func (f *fakeCatalog) FindOriginalByHash(_ context.Context, hash string) (*FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.FileHash == hash && !r.IsDuplicate {
			clone := *r
			return &clone, nil
		}
	}
	return nil, ErrFileNotFound
}

func (f *fakeCatalog) FindEarliestByHash(_ context.Context, hash string, excludeID string) (*FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var earliest *FileRecord
	for _, r := range f.records {
		if r.FileHash != hash || r.ID == excludeID {
			continue
		}
		if earliest == nil || r.UploadedAt.Before(earliest.UploadedAt) {
			earliest = r
		}
	}
	if earliest == nil {
		return nil, ErrFileNotFound
	}
	clone := *earliest
	return &clone, nil
}

func (f *fakeCatalog) CountByHash(_ context.Context, hash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.records {
		if r.FileHash == hash {
			n++
		}
	}
	return n, nil
}

func (f *fakeCatalog) MarkOriginal(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return ErrFileNotFound
	}
	// 与部分唯一索引一致：同一 hash 同时只允许一条原始记录，
	// 提升时旧原始记录必须已经删除
	for _, other := range f.records {
		if other.ID != id && other.FileHash == r.FileHash && !other.IsDuplicate {
			return errUniqueViolation
		}
	}
	r.IsDuplicate = false
	return nil
}

func (f *fakeCatalog) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return ErrFileNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeCatalog) List(_ context.Context, _ *FilterQuery, _ OrderSpec) ([]*FileRecord, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FileRecord, 0, len(f.records))
	for _, r := range f.records {
		clone := *r
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, int64(len(out)), nil
}

func (f *fakeCatalog) DistinctFileTypes(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	for _, r := range f.records {
		seen[r.FileType] = true
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, nil
}

var errUniqueViolation = fmt.Errorf("duplicate key value violates unique constraint")

type fakeStats struct {
	mu    sync.Mutex
	stats StorageStats

	// corrupt 强制下一次增量产生非法快照
	corrupt bool
}

func (f *fakeStats) Get(_ context.Context) (*StorageStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := f.stats
	return &clone, nil
}

func (f *fakeStats) ApplyDelta(_ context.Context, delta StatsDelta) (*StorageStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.TotalFiles += delta.Files
	f.stats.TotalUniqueFiles += delta.UniqueFiles
	f.stats.TotalStorageUsed += delta.StorageUsed
	f.stats.TotalStorageSaved += delta.StorageSaved
	f.stats.StorageSavedPercentage = SavedPercentage(f.stats.TotalStorageUsed, f.stats.TotalStorageSaved)
	f.stats.LastUpdated = time.Now().UTC()
	if f.corrupt {
		f.stats.TotalUniqueFiles = f.stats.TotalFiles + 1
	}
	clone := f.stats
	return &clone, nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int

	putErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (f *fakeBlobs) Put(_ context.Context, hash string, r io.Reader, _ int64, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := "files/" + hash[:2] + "/" + hash
	f.objects[key] = data
	f.puts++
	return key, nil
}

func (f *fakeBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobs) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFakeLock() *fakeLock {
	return &fakeLock{locks: make(map[string]*sync.Mutex)}
}

func (f *fakeLock) Acquire(_ context.Context, hash string) (func(), error) {
	f.mu.Lock()
	m, ok := f.locks[hash]
	if !ok {
		m = &sync.Mutex{}
		f.locks[hash] = m
	}
	f.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

type fakeTx struct{}

func (fakeTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ==================== fixture ====================

type fixture struct {
	uc      *FileUseCase
	catalog *fakeCatalog
	stats   *fakeStats
	blobs   *fakeBlobs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "console"})
	require.NoError(t, err)

	catalog := newFakeCatalog()
	stats := &fakeStats{}
	blobs := newFakeBlobs()

	uc := NewFileUseCase(
		catalog, stats, blobs, newFakeLock(), fakeTx{},
		func(err error) bool { return err == errUniqueViolation },
		Config{MaxUploadSize: 10 << 20, BlobTimeout: 5 * time.Second},
		log,
	)
	return &fixture{uc: uc, catalog: catalog, stats: stats, blobs: blobs}
}

func (fx *fixture) upload(t *testing.T, filename, content string) *FileRecord {
	t.Helper()
	record, err := fx.uc.Upload(t.Context(), filename, "text/plain", strings.NewReader(content))
	require.NoError(t, err)
	return record
}

// ==================== tests ====================

func TestUploadFirstFile(t *testing.T) {
	fx := newFixture(t)

	record := fx.upload(t, "a.txt", "0123456789")

	assert.False(t, record.IsDuplicate)
	assert.Nil(t, record.OriginalFileID)
	assert.Equal(t, int64(10), record.Size)
	assert.Len(t, record.FileHash, 64)
	assert.Equal(t, 1, fx.blobs.count())

	stats, err := fx.uc.StorageStats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalFiles)
	assert.Equal(t, int64(1), stats.TotalUniqueFiles)
	assert.Equal(t, int64(10), stats.TotalStorageUsed)
	assert.Equal(t, int64(0), stats.TotalStorageSaved)
	assert.Equal(t, float64(0), stats.StorageSavedPercentage)
}

func TestUploadDuplicateSharesBlob(t *testing.T) {
	fx := newFixture(t)

	first := fx.upload(t, "a.txt", "0123456789")
	second := fx.upload(t, "b.txt", "0123456789")

	assert.Equal(t, first.FileHash, second.FileHash)
	assert.Equal(t, first.StorageKey, second.StorageKey)
	assert.True(t, second.IsDuplicate)
	require.NotNil(t, second.OriginalFileID)
	assert.Equal(t, first.ID, *second.OriginalFileID)

	// 物理只存一份
	assert.Equal(t, 1, fx.blobs.count())
	assert.Equal(t, 1, fx.blobs.puts)

	stats, err := fx.uc.StorageStats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalFiles)
	assert.Equal(t, int64(1), stats.TotalUniqueFiles)
	assert.Equal(t, int64(10), stats.TotalStorageUsed)
	assert.Equal(t, int64(10), stats.TotalStorageSaved)
	assert.Equal(t, 50.0, stats.StorageSavedPercentage)
}

func TestUploadDifferentContent(t *testing.T) {
	fx := newFixture(t)

	a := fx.upload(t, "a.txt", "aaaa")
	b := fx.upload(t, "b.txt", "bbbb")

	assert.NotEqual(t, a.FileHash, b.FileHash)
	assert.Equal(t, 2, fx.blobs.count())
}

func TestUploadValidation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.uc.Upload(t.Context(), "", "", strings.NewReader("data"))
	assert.ErrorIs(t, err, ErrFilenameMissing)

	_, err = fx.uc.Upload(t.Context(), "a.txt", "", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = fx.uc.Upload(t.Context(), "big.bin", "", strings.NewReader(strings.Repeat("x", 11<<20)))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestUploadBlobFailureRollsBack(t *testing.T) {
	fx := newFixture(t)
	fx.blobs.putErr = fmt.Errorf("connection refused")

	_, err := fx.uc.Upload(t.Context(), "a.txt", "", strings.NewReader("data"))
	assert.ErrorIs(t, err, ErrStorageFailed)

	// 没有记录、没有统计变化
	records, total, err := fx.catalog.List(t.Context(), nil, DefaultOrdering)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, total)

	stats, err := fx.uc.StorageStats(t.Context())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalFiles)
}

func TestUploadBlobTimeoutSurfacesAsTimeout(t *testing.T) {
	fx := newFixture(t)
	fx.blobs.putErr = fmt.Errorf("put object: %w", context.DeadlineExceeded)

	_, err := fx.uc.Upload(t.Context(), "a.txt", "", strings.NewReader("data"))
	assert.ErrorIs(t, err, ErrStorageTimeout)

	// 目录与统计均无残留
	stats, err := fx.uc.StorageStats(t.Context())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalFiles)
}

func TestUploadRaceLoserResolvesAsDuplicate(t *testing.T) {
	fx := newFixture(t)

	winner := fx.upload(t, "a.txt", "race content")

	// 第一次 FindOriginalByHash 返回未找到，插入时撞唯一索引，
	// 重试后按重复记录落库
	var calls int
	fx.uc.repo = &racingRepo{fakeCatalog: fx.catalog, winner: winner, calls: &calls}

	loser, err := fx.uc.Upload(t.Context(), "b.txt", "", strings.NewReader("race content"))
	require.NoError(t, err)
	assert.True(t, loser.IsDuplicate)
	assert.Equal(t, winner.StorageKey, loser.StorageKey)
	assert.GreaterOrEqual(t, calls, 2)

	stats, err := fx.uc.StorageStats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalFiles)
	assert.Equal(t, int64(1), stats.TotalUniqueFiles)
}

// racingRepo 第一次查询隐藏已有原始记录，模拟锁失效下的竞争窗口
type racingRepo struct {
	*fakeCatalog
	winner *FileRecord
	calls  *int
}

func (r *racingRepo) FindOriginalByHash(ctx context.Context, hash string) (*FileRecord, error) {
	*r.calls++
	if *r.calls == 1 {
		return nil, ErrFileNotFound
	}
	return r.fakeCatalog.FindOriginalByHash(ctx, hash)
}

func TestDeleteDuplicate(t *testing.T) {
	fx := newFixture(t)

	original := fx.upload(t, "a.txt", "0123456789")
	dup := fx.upload(t, "b.txt", "0123456789")

	require.NoError(t, fx.uc.Delete(t.Context(), dup.ID))

	// 原始记录与 blob 保留
	kept, err := fx.uc.Get(t.Context(), original.ID)
	require.NoError(t, err)
	assert.False(t, kept.IsDuplicate)
	assert.Equal(t, 1, fx.blobs.count())

	stats, err := fx.uc.StorageStats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalFiles)
	assert.Equal(t, int64(1), stats.TotalUniqueFiles)
	assert.Equal(t, int64(10), stats.TotalStorageUsed)
	assert.Equal(t, int64(0), stats.TotalStorageSaved)
}

func TestDeleteOriginalPromotesEarliestSurvivor(t *testing.T) {
	fx := newFixture(t)

	original := fx.upload(t, "a.txt", "0123456789")
	dup1 := fx.upload(t, "b.txt", "0123456789")
	dup2 := fx.upload(t, "c.txt", "0123456789")

	require.NoError(t, fx.uc.Delete(t.Context(), original.ID))

	// 最早的重复记录被提升为原始记录
	promoted, err := fx.uc.Get(t.Context(), dup1.ID)
	require.NoError(t, err)
	assert.False(t, promoted.IsDuplicate)

	still, err := fx.uc.Get(t.Context(), dup2.ID)
	require.NoError(t, err)
	assert.True(t, still.IsDuplicate)

	// blob 不删除
	assert.Equal(t, 1, fx.blobs.count())

	stats, err := fx.uc.StorageStats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalFiles)
	assert.Equal(t, int64(1), stats.TotalUniqueFiles)
	assert.Equal(t, int64(10), stats.TotalStorageUsed)
	assert.Equal(t, int64(10), stats.TotalStorageSaved)
}

func TestDeleteLastRecordRemovesBlob(t *testing.T) {
	fx := newFixture(t)

	record := fx.upload(t, "a.txt", "0123456789")
	require.NoError(t, fx.uc.Delete(t.Context(), record.ID))

	assert.Equal(t, 0, fx.blobs.count())

	stats, err := fx.uc.StorageStats(t.Context())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalFiles)
	assert.Zero(t, stats.TotalUniqueFiles)
	assert.Zero(t, stats.TotalStorageUsed)
	assert.Zero(t, stats.TotalStorageSaved)

	_, err = fx.uc.Get(t.Context(), record.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestDeleteUnknownID(t *testing.T) {
	fx := newFixture(t)
	err := fx.uc.Delete(t.Context(), "no-such-id")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestDownloadRoundTrip(t *testing.T) {
	fx := newFixture(t)

	content := "round trip payload"
	record := fx.upload(t, "a.txt", content)

	got, rc, err := fx.uc.Download(t.Context(), record.ID)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	assert.Equal(t, record.ID, got.ID)
}

func TestStatsViolationFreezesMutations(t *testing.T) {
	fx := newFixture(t)
	fx.stats.corrupt = true

	_, err := fx.uc.Upload(t.Context(), "a.txt", "", strings.NewReader("data"))
	assert.ErrorIs(t, err, ErrStatsInconsistent)
	assert.True(t, fx.uc.Frozen())

	// 后续写操作直接拒绝
	_, err = fx.uc.Upload(t.Context(), "b.txt", "", strings.NewReader("other"))
	assert.ErrorIs(t, err, ErrStatsInconsistent)

	err = fx.uc.Delete(t.Context(), "anything")
	assert.ErrorIs(t, err, ErrStatsInconsistent)

	// 读路径不受影响
	_, err = fx.uc.StorageStats(t.Context())
	assert.NoError(t, err)
}

func TestConcurrentIdenticalUploads(t *testing.T) {
	fx := newFixture(t)

	const n = 8
	var wg sync.WaitGroup
	records := make([]*FileRecord, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i], errs[i] = fx.uc.Upload(context.Background(),
				fmt.Sprintf("f%d.txt", i), "", strings.NewReader("identical bytes"))
		}(i)
	}
	wg.Wait()

	originals := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		if !records[i].IsDuplicate {
			originals++
		}
	}
	assert.Equal(t, 1, originals)
	assert.Equal(t, 1, fx.blobs.count())
	assert.Equal(t, 1, fx.blobs.puts)

	stats, err := fx.uc.StorageStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(n), stats.TotalFiles)
	assert.Equal(t, int64(1), stats.TotalUniqueFiles)
}

func TestFileTypesExcludeDeleted(t *testing.T) {
	fx := newFixture(t)

	record, err := fx.uc.Upload(t.Context(), "a.txt", "text/plain", strings.NewReader("text file"))
	require.NoError(t, err)

	types, err := fx.uc.FileTypes(t.Context())
	require.NoError(t, err)
	assert.Contains(t, types, "text/plain")

	require.NoError(t, fx.uc.Delete(t.Context(), record.ID))

	types, err = fx.uc.FileTypes(t.Context())
	require.NoError(t, err)
	assert.Empty(t, types)
}
