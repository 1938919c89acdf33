package data

import (
	"context"
	"fmt"
	"time"

	"github.com/ramakeerthi/file-vault-backend/internal/conf"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/database"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/logger"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/minio"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/redis"
)

// Data 共享基础设施句柄
type Data struct {
	DB          *database.DB
	RedisClient *redis.Client
	MinIOClient *minio.Client
	Logger      *logger.Logger
}

// NewData 初始化数据库、Redis 和 MinIO 连接
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	redisClient, err := redis.New(ctx, &config.Redis)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to init redis: %w", err)
	}

	minioClient, err := minio.NewClient(&config.MinIO, log.Logger)
	if err != nil {
		_ = db.Close()
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("failed to init minio: %w", err)
	}

	if err := minioClient.EnsureBucket(ctx, config.Vault.Bucket); err != nil {
		_ = db.Close()
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("failed to ensure bucket %q: %w", config.Vault.Bucket, err)
	}

	d := &Data{
		DB:          db,
		RedisClient: redisClient,
		MinIOClient: minioClient,
		Logger:      log,
	}

	cleanup := func() {
		log.Info("cleaning up data resources")

		if err := db.Close(); err != nil {
			log.Warn("failed to close database")
		}
		if err := redisClient.Close(); err != nil {
			log.Warn("failed to close redis client")
		}
		_ = minioClient.Close()
	}

	return d, cleanup, nil
}
