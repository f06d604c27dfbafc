package idempotency

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultMaxKeyLength is the maximum length for an idempotency key
	DefaultMaxKeyLength = 255

	// DefaultLockTimeout is the age after which an in-flight lock is considered stale
	DefaultLockTimeout = 5 * time.Minute

	// DefaultRetentionPeriod is how long completed keys are replayable
	DefaultRetentionPeriod = 24 * time.Hour

	// DefaultMaxResponseSize is the maximum response size to cache (1MB)
	DefaultMaxResponseSize = 1 * 1024 * 1024

	// DefaultMaxRequestSize caps the body buffered for the fingerprint (1MB)
	DefaultMaxRequestSize int64 = 1 * 1024 * 1024
)

// Config holds configuration for the idempotency middleware
type Config struct {
	// ServiceName scopes keys per service
	ServiceName string

	// Repository is the storage backend for idempotency keys
	Repository KeyRepository

	// RequireKey rejects mutating requests without an Idempotency-Key header.
	// When false, such requests proceed without replay protection.
	RequireKey bool

	// OnlyMutating skips GET/HEAD/OPTIONS requests
	OnlyMutating bool

	// UserIDExtractor scopes keys per user when set. The same key sent by two
	// users is two independent requests.
	UserIDExtractor func(*gin.Context) string

	MaxKeyLength    int
	LockTimeout     time.Duration
	RetentionPeriod time.Duration

	// MaxResponseSize caps the cached body; larger responses are not replayable
	MaxResponseSize int

	// MaxRequestSize rejects larger bodies with 413 before fingerprinting
	MaxRequestSize int64

	Metrics *Metrics
	Logger  *slog.Logger
}

// DefaultConfig returns a default configuration for the given service
func DefaultConfig(serviceName string, repository KeyRepository) *Config {
	return &Config{
		ServiceName:     serviceName,
		Repository:      repository,
		RequireKey:      false,
		OnlyMutating:    true,
		MaxKeyLength:    DefaultMaxKeyLength,
		LockTimeout:     DefaultLockTimeout,
		RetentionPeriod: DefaultRetentionPeriod,
		MaxResponseSize: DefaultMaxResponseSize,
		MaxRequestSize:  DefaultMaxRequestSize,
	}
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
