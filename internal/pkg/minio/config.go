package minio

import (
	"errors"
	"time"
)

// Config represents the configuration for the MinIO client.
type Config struct {
	// Endpoint is the S3-compatible object storage endpoint,
	// e.g. "localhost:9000" or "s3.amazonaws.com".
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// AccessKeyID is the access key for authentication.
	AccessKeyID string `mapstructure:"access_key_id" yaml:"access_key_id"`

	// SecretAccessKey is the secret key for authentication.
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`

	// Region is the region of the object storage (optional).
	Region string `mapstructure:"region" yaml:"region"`

	// UseSSL determines whether to use HTTPS (true) or HTTP (false).
	UseSSL bool `mapstructure:"use_ssl" yaml:"use_ssl"`

	// MaxRetries is the maximum number of retries for failed requests.
	// Default: 3
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// ConnectTimeout is the timeout for establishing connections.
	// Default: 10 seconds
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`

	// RequestTimeout is the timeout for individual requests.
	// Default: 30 seconds
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint is required")
	}

	if c.AccessKeyID == "" {
		return errors.New("minio: access key ID is required")
	}

	if c.SecretAccessKey == "" {
		return errors.New("minio: secret access key is required")
	}

	return nil
}

// SetDefaults sets default values for unspecified configuration fields.
func (c *Config) SetDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}

	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		UseSSL:         false,
		MaxRetries:     3,
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}
