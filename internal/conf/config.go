package conf

import (
	"fmt"
	"time"

	"github.com/ramakeerthi/file-vault-backend/internal/pkg/database"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/logger"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/minio"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/redis"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/workerpool"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Database database.Config   `mapstructure:"database"`
	Redis    redis.Config      `mapstructure:"redis"`
	MinIO    minio.Config      `mapstructure:"minio"`
	Vault    VaultConfig       `mapstructure:"vault"`
	Batch    workerpool.Config `mapstructure:"batch"`
	Log      logger.Config     `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin 模式: debug/release/test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// VaultConfig 文件仓库配置
type VaultConfig struct {
	Bucket         string        `mapstructure:"bucket"`           // blob 存储桶
	MaxUploadSize  int64         `mapstructure:"max_upload_size"`  // 单文件最大字节数
	BlobTimeout    time.Duration `mapstructure:"blob_timeout"`     // blob 读写超时
	LockTTL        time.Duration `mapstructure:"lock_ttl"`         // 单 hash 入库锁 TTL
	LockRetries    int           `mapstructure:"lock_retries"`     // 获取锁最大重试次数
	LockRetryDelay time.Duration `mapstructure:"lock_retry_delay"` // 重试间隔
	BatchMaxFiles  int           `mapstructure:"batch_max_files"`  // 批量上传单次最大文件数
}

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) setDefaults() {
	dbDefaults := database.DefaultConfig()
	if c.Database.Host == "" {
		c.Database.Host = dbDefaults.Host
	}
	if c.Database.Port == 0 {
		c.Database.Port = dbDefaults.Port
	}
	if c.Database.User == "" {
		c.Database.User = dbDefaults.User
	}
	if c.Database.DBName == "" {
		c.Database.DBName = dbDefaults.DBName
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = dbDefaults.SSLMode
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = dbDefaults.LogLevel
	}
	if c.Database.Timezone == "" {
		c.Database.Timezone = dbDefaults.Timezone
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = dbDefaults.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = dbDefaults.MaxIdleConns
	}

	if c.Redis.Addr == "" {
		c.Redis = *redis.DefaultConfig()
	}

	c.MinIO.SetDefaults()

	if c.Log.Level == "" {
		c.Log = *logger.DefaultConfig()
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Vault.Bucket == "" {
		c.Vault.Bucket = "file-vault"
	}
	if c.Vault.MaxUploadSize == 0 {
		c.Vault.MaxUploadSize = 100 << 20 // 100 MiB
	}
	if c.Vault.BlobTimeout == 0 {
		c.Vault.BlobTimeout = 30 * time.Second
	}
	if c.Vault.LockTTL == 0 {
		c.Vault.LockTTL = 30 * time.Second
	}
	if c.Vault.LockRetries == 0 {
		c.Vault.LockRetries = 50
	}
	if c.Vault.LockRetryDelay == 0 {
		c.Vault.LockRetryDelay = 100 * time.Millisecond
	}
	if c.Vault.BatchMaxFiles == 0 {
		c.Vault.BatchMaxFiles = 20
	}

	if c.Batch.Workers == 0 {
		c.Batch = *workerpool.DefaultConfig()
	}
}

func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.MinIO.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if c.Vault.MaxUploadSize < 0 {
		return fmt.Errorf("vault: max_upload_size must be >= 0")
	}
	return nil
}

// Addr 返回 HTTP 监听地址
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
