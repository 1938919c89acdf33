package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ramakeerthi/file-vault-backend/internal/conf"
	"github.com/ramakeerthi/file-vault-backend/internal/data"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/database"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/logger"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/workerpool"
	"github.com/ramakeerthi/file-vault-backend/internal/server"
	vaultbiz "github.com/ramakeerthi/file-vault-backend/internal/vault/biz"
	vaultdata "github.com/ramakeerthi/file-vault-backend/internal/vault/data"
	vaultservice "github.com/ramakeerthi/file-vault-backend/internal/vault/service"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if err := logger.InitGlobal(&config.Log); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	// Initialize data layer
	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	// Run migrations
	if err := d.DB.AutoMigrate(&vaultdata.FilePO{}, &vaultdata.StorageStatsPO{}); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	if err := vaultdata.EnsureStatsRow(context.Background(), d.DB); err != nil {
		log.Fatal("failed to seed storage stats row", zap.Error(err))
	}

	// Initialize repositories
	fileRepo := vaultdata.NewFileRepo(d.DB)
	statsRepo := vaultdata.NewStatsRepo(d.DB)
	blobStore := vaultdata.NewMinIOBlobStore(d.MinIOClient, config.Vault.Bucket)
	ingestLock := vaultdata.NewRedisIngestLock(
		d.RedisClient,
		config.Vault.LockTTL,
		config.Vault.LockRetries,
		config.Vault.LockRetryDelay,
	)
	txManager := vaultdata.NewTxManager(d.DB)

	// Initialize use case
	fileUseCase := vaultbiz.NewFileUseCase(
		fileRepo,
		statsRepo,
		blobStore,
		ingestLock,
		txManager,
		database.IsDuplicateKeyError,
		vaultbiz.Config{
			MaxUploadSize: config.Vault.MaxUploadSize,
			BlobTimeout:   config.Vault.BlobTimeout,
			BatchMaxFiles: config.Vault.BatchMaxFiles,
		},
		log,
	)

	// Initialize batch upload worker pool
	batchPool, err := workerpool.New(&config.Batch, log.Logger)
	if err != nil {
		log.Fatal("failed to initialize worker pool", zap.Error(err))
	}
	defer batchPool.Release(10 * time.Second)

	// Initialize HTTP service
	fileService := vaultservice.NewFileService(fileUseCase, batchPool, config.Vault.BatchMaxFiles, log)
	httpServer := server.NewHTTPServer(config, log, fileService)

	// Start server
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("failed to stop http server gracefully", zap.Error(err))
	}

	log.Info("server exited")
}
