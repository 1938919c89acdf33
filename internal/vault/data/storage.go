package data

import (
	"context"
	"fmt"
	"io"

	pkgminio "github.com/ramakeerthi/file-vault-backend/internal/pkg/minio"
	"github.com/ramakeerthi/file-vault-backend/internal/vault/biz"
)

// MinIOBlobStore 实现 biz.BlobStore，按内容 hash 寻址
type MinIOBlobStore struct {
	client *pkgminio.Client
	bucket string
}

// NewMinIOBlobStore 创建 MinIO blob 存储
func NewMinIOBlobStore(client *pkgminio.Client, bucket string) biz.BlobStore {
	return &MinIOBlobStore{
		client: client,
		bucket: bucket,
	}
}

// objectKey 按 hash 前缀分片的对象路径
func objectKey(hash string) string {
	if len(hash) < 2 {
		return "files/" + hash
	}
	return fmt.Sprintf("files/%s/%s", hash[:2], hash)
}

// Put 写入 blob，返回 storage key。同一 hash 重复写入覆盖为相同内容，幂等。
func (s *MinIOBlobStore) Put(ctx context.Context, hash string, r io.Reader, size int64, contentType string) (string, error) {
	key := objectKey(hash)

	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, pkgminio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	return key, nil
}

// Get 读取 blob，调用方负责关闭
func (s *MinIOBlobStore) Get(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, storageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return obj, nil
}

// Remove 删除 blob
func (s *MinIOBlobStore) Remove(ctx context.Context, storageKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, storageKey); err != nil {
		return fmt.Errorf("failed to remove blob: %w", err)
	}
	return nil
}
