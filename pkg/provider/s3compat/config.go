// Package s3compat implements the provider interface for arbitrary
// S3-compatible endpoints by speaking the S3 REST/XML protocol directly.
package s3compat

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/3leaps/s3compat/pkg/provider"
)

// Config configures an S3-compatible provider.
//
// Authentication priority:
//  1. Explicit AccessKey/SecretKey (if provided)
//  2. AWS SDK v2 default chain (environment, shared config/credentials with
//     Profile, instance metadata)
//
// Host accepts "host", "host:port" or a URL with an explicit scheme. Without
// a scheme, TLS is used when the port is 443 or omitted, plain HTTP otherwise.
type Config struct {
	// Host is the endpoint host (required).
	// Examples:
	//   - s3.wasabisys.com
	//   - minio.internal:9000
	//   - https://objects.example.org:8443
	Host string

	// AccessKey is an explicit access key. If set, SecretKey must also be set.
	AccessKey string

	// SecretKey is an explicit secret key. Required if AccessKey is set.
	SecretKey string

	// Profile is the shared-config profile used when no explicit keys are set.
	Profile string

	// Bucket is the bucket name (required).
	Bucket string

	// Prefix scopes every key this provider touches (tenant isolation within
	// one bucket). A missing trailing "/" is added, so "tenant" and "tenant/"
	// are the same scope.
	Prefix string

	// EncryptUploads requests server-side encryption (AES256) on writes.
	EncryptUploads bool

	// Region is the signing region for SigV4. Most S3-compatible stores
	// accept the default.
	Region string

	// SignatureVersion selects the URL signing algorithm: "v4" (default) or
	// "v2" for older S3-compatible servers.
	SignatureVersion string

	// ListAPIVersion selects ListObjects (1, marker pagination) or
	// ListObjectsV2 (2, continuation tokens). Zero uses 2.
	ListAPIVersion int

	// URLExpiry is the lifetime of each signed URL. Zero uses DefaultURLExpiry.
	URLExpiry time.Duration

	// PartSize is the multipart chunk size. Zero uses DefaultPartSize.
	// Backends reject parts smaller than MinPartSize except for the last one.
	PartSize int64

	// MultipartThreshold is the largest body sent with a single PUT.
	// Zero uses PartSize.
	MultipartThreshold int64

	// Concurrency bounds in-flight part uploads. Zero uses DefaultConcurrency.
	Concurrency int

	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64

	// MaxKeys is the page size for listings. Zero uses DefaultMaxKeys.
	// Values over 1000 are clamped.
	MaxKeys int
}

const (
	// DefaultURLExpiry is the signed URL lifetime.
	DefaultURLExpiry = 100 * time.Second

	// DefaultPartSize is the multipart chunk size.
	DefaultPartSize int64 = 64 << 20

	// MinPartSize is the smallest non-final part S3 accepts.
	MinPartSize int64 = 5 << 20

	// MaxUploadParts is the S3 limit on parts per upload.
	MaxUploadParts = 10000

	// DefaultConcurrency bounds in-flight part uploads.
	DefaultConcurrency = 4

	// DefaultMaxKeys is the default page size for listings.
	DefaultMaxKeys = 1000

	// MaxAllowedKeys is the maximum page size allowed by S3.
	MaxAllowedKeys = 1000

	// DefaultRegion is the signing region applied when none is configured.
	DefaultRegion = "us-east-1"

	// SignatureV4 and SignatureV2 are the supported signing algorithms.
	SignatureV4 = "v4"
	SignatureV2 = "v2"
)

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return &ConfigError{Field: "Host", Message: "endpoint host is required"}
	}
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}

	// If one explicit credential is set, both must be set
	if (c.AccessKey != "") != (c.SecretKey != "") {
		return &ConfigError{
			Field:   "AccessKey/SecretKey",
			Message: "both access key and secret key must be provided together",
		}
	}

	switch c.SignatureVersion {
	case "", SignatureV4, SignatureV2:
	default:
		return &ConfigError{Field: "SignatureVersion", Message: "must be v2 or v4"}
	}
	switch c.ListAPIVersion {
	case 0, 1, 2:
	default:
		return &ConfigError{Field: "ListAPIVersion", Message: "must be 1 or 2"}
	}

	if c.URLExpiry < 0 {
		return &ConfigError{Field: "URLExpiry", Message: "must be positive"}
	}
	if c.PartSize < 0 || c.MultipartThreshold < 0 {
		return &ConfigError{Field: "PartSize", Message: "must be positive"}
	}
	if c.Concurrency < 0 {
		return &ConfigError{Field: "Concurrency", Message: "must be positive"}
	}
	if c.RateLimit < 0 {
		return &ConfigError{Field: "RateLimit", Message: "must not be negative"}
	}
	if err := validatePrefix(c.Prefix); err != nil {
		return err
	}

	if _, err := ParseHost(c.Host); err != nil {
		return err
	}
	return nil
}

// validatePrefix rejects prefixes whose segments could not be produced by a
// valid path: empty, "." or "..".
func validatePrefix(prefix string) error {
	norm := provider.NormalizePrefix(prefix)
	if norm == "" {
		return nil
	}
	for _, seg := range strings.Split(strings.TrimSuffix(norm, provider.Delimiter), provider.Delimiter) {
		switch seg {
		case "", ".", "..":
			return &ConfigError{Field: "Prefix", Message: "invalid segment in " + strconv.Quote(prefix)}
		}
	}
	return nil
}

// withDefaults returns a copy with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	c.Prefix = provider.NormalizePrefix(c.Prefix)
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.SignatureVersion == "" {
		c.SignatureVersion = SignatureV4
	}
	if c.ListAPIVersion == 0 {
		c.ListAPIVersion = 2
	}
	if c.URLExpiry == 0 {
		c.URLExpiry = DefaultURLExpiry
	}
	if c.PartSize == 0 {
		c.PartSize = DefaultPartSize
	}
	if c.MultipartThreshold == 0 {
		c.MultipartThreshold = c.PartSize
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	c.MaxKeys = clampMaxKeys(c.MaxKeys, DefaultMaxKeys)
	return c
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "s3compat config: " + e.Field + ": " + e.Message
}

// Connection is the endpoint derived from Config.Host. It is immutable for the
// lifetime of a provider.
type Connection struct {
	Hostname string
	Port     int
	Secure   bool
}

// ParseHost derives the connection endpoint from a host string.
func ParseHost(host string) (Connection, error) {
	host = strings.TrimSpace(host)
	scheme := ""
	if i := strings.Index(host, "://"); i >= 0 {
		u, err := url.Parse(host)
		if err != nil {
			return Connection{}, &ConfigError{Field: "Host", Message: err.Error()}
		}
		switch u.Scheme {
		case "http", "https":
		default:
			return Connection{}, &ConfigError{Field: "Host", Message: "unsupported scheme " + u.Scheme}
		}
		scheme = u.Scheme
		host = u.Host
	}
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		return Connection{}, &ConfigError{Field: "Host", Message: "endpoint host is required"}
	}

	hostname, portStr, err := net.SplitHostPort(host)
	if err != nil {
		// No port present.
		hostname = strings.Trim(host, "[]")
		conn := Connection{Hostname: hostname, Port: 443, Secure: true}
		if scheme == "http" {
			conn.Port, conn.Secure = 80, false
		}
		return conn, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Connection{}, &ConfigError{Field: "Host", Message: "invalid port " + portStr}
	}

	conn := Connection{Hostname: hostname, Port: port}
	switch scheme {
	case "https":
		conn.Secure = true
	case "http":
		conn.Secure = false
	default:
		conn.Secure = port == 443
	}
	return conn, nil
}

// Scheme returns "https" or "http".
func (c Connection) Scheme() string {
	if c.Secure {
		return "https"
	}
	return "http"
}

// HostPort returns the authority for request URLs, omitting the default port.
func (c Connection) HostPort() string {
	if (c.Secure && c.Port == 443) || (!c.Secure && c.Port == 80) {
		if strings.Contains(c.Hostname, ":") {
			return "[" + c.Hostname + "]"
		}
		return c.Hostname
	}
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

// Endpoint returns the base URL, e.g. "https://s3.example.org".
func (c Connection) Endpoint() string {
	return c.Scheme() + "://" + c.HostPort()
}

// clampMaxKeys applies defaults and limits to maxKeys values.
// If requested is <= 0, uses providerDefault. Result is clamped to MaxAllowedKeys.
func clampMaxKeys(requested, providerDefault int) int {
	if requested <= 0 {
		requested = providerDefault
	}
	if requested > MaxAllowedKeys {
		return MaxAllowedKeys
	}
	return requested
}
