// Package config loads CLI configuration from defaults, config files,
// S3COMPAT_* environment variables and runtime overrides, in increasing order
// of precedence.
package config

import (
	"time"

	"github.com/3leaps/s3compat/pkg/provider/s3compat"
)

// Config is the complete CLI configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StorageConfig describes the S3-compatible endpoint and bucket.
type StorageConfig struct {
	Host      string `mapstructure:"host"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Profile   string `mapstructure:"profile"`
	Region    string `mapstructure:"region"`

	EncryptUploads   bool   `mapstructure:"encrypt_uploads"`
	SignatureVersion string `mapstructure:"signature_version"`
	ListAPIVersion   int    `mapstructure:"list_api_version"`

	URLExpiry time.Duration `mapstructure:"url_expiry"`

	// PartSize and MultipartThreshold accept byte sizes like "64MiB".
	PartSize           int64 `mapstructure:"part_size"`
	MultipartThreshold int64 `mapstructure:"multipart_threshold"`

	Concurrency int     `mapstructure:"concurrency"`
	RateLimit   float64 `mapstructure:"rate_limit"`
	MaxKeys     int     `mapstructure:"max_keys"`
}

// LoggingConfig selects the CLI log level and output profile.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// OutputConfig selects how command results are rendered.
type OutputConfig struct {
	// Format is "json" or "yaml".
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus textfile written after each command.
type MetricsConfig struct {
	// File is the textfile-collector path. Empty disables the export.
	File string `mapstructure:"file"`
}

// ProviderConfig converts the storage settings into a provider config.
func (s StorageConfig) ProviderConfig() s3compat.Config {
	return s3compat.Config{
		Host:               s.Host,
		AccessKey:          s.AccessKey,
		SecretKey:          s.SecretKey,
		Profile:            s.Profile,
		Bucket:             s.Bucket,
		Prefix:             s.Prefix,
		EncryptUploads:     s.EncryptUploads,
		Region:             s.Region,
		SignatureVersion:   s.SignatureVersion,
		ListAPIVersion:     s.ListAPIVersion,
		URLExpiry:          s.URLExpiry,
		PartSize:           s.PartSize,
		MultipartThreshold: s.MultipartThreshold,
		Concurrency:        s.Concurrency,
		RateLimit:          s.RateLimit,
		MaxKeys:            s.MaxKeys,
	}
}
