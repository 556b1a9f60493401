// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Disk names the storage backend uploads are authorized against.
type Disk string

const (
	DiskLocal Disk = "local"
	DiskS3    Disk = "s3"
)

// Config holds all runtime configuration for the service.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Port     string
	AppEnv   string
	AppURL   string // absolute base for signed local upload URLs, e.g. "http://localhost:8080"
	LogLevel string

	DatabaseURL    string // optional; enables the upload ledger
	APITokenSecret string // optional; protects /api/v1 with HS256 bearer tokens

	// Upload authorization
	DefaultDisk       Disk
	SigningSecret     string
	SignedURLTTL      time.Duration
	WorkingPrefix     string
	AllowedExtensions []string // empty means every extension known to the MIME table
	DefaultVisibility string
	MaxUploadBytes    int64

	// Local disk
	LocalRoot string

	// Object storage (S3-compatible: AWS, MinIO, any provider speaking SigV4)
	StorageEndpoint  string
	StorageRegion    string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
	StoragePathStyle bool
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, reading from environment")
	}

	return &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "development"),
		AppURL:   strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		APITokenSecret: getEnv("API_TOKEN_SECRET", ""),

		DefaultDisk:       Disk(getEnv("FILESYSTEM_DISK", string(DiskLocal))),
		SigningSecret:     getEnv("UPLOAD_SIGNING_SECRET", "change_me_in_production"),
		SignedURLTTL:      getDuration("UPLOAD_SIGNED_TTL", time.Minute),
		WorkingPrefix:     strings.Trim(getEnv("UPLOAD_WORKING_PREFIX", "tmp"), "/"),
		AllowedExtensions: getList("UPLOAD_ALLOWED_EXTENSIONS"),
		DefaultVisibility: getEnv("DEFAULT_VISIBILITY", "private"),
		MaxUploadBytes:    getInt64("UPLOAD_MAX_BYTES", 32<<20),

		LocalRoot: getEnv("LOCAL_STORAGE_ROOT", "./storage/app"),

		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageRegion:    getEnv("STORAGE_REGION", "us-east-1"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageBucket:    getEnv("STORAGE_BUCKET", "uploads"),
		StorageUseSSL:    getEnv("STORAGE_USE_SSL", "false") == "true",
		StoragePathStyle: getEnv("STORAGE_PATH_STYLE", "true") == "true",
	}
}

// Validate reports configuration that would make the service unsafe or unusable.
func (c *Config) Validate() error {
	var errs []error

	switch c.DefaultDisk {
	case DiskLocal:
	case DiskS3:
		if c.StorageBucket == "" {
			errs = append(errs, errors.New("STORAGE_BUCKET is required for the s3 disk"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown FILESYSTEM_DISK %q", c.DefaultDisk))
	}

	if c.SigningSecret == "" {
		errs = append(errs, errors.New("UPLOAD_SIGNING_SECRET must not be empty"))
	}
	if c.IsProduction() && c.SigningSecret == "change_me_in_production" {
		errs = append(errs, errors.New("UPLOAD_SIGNING_SECRET must be set in production"))
	}
	if c.SignedURLTTL <= 0 {
		errs = append(errs, errors.New("UPLOAD_SIGNED_TTL must be positive"))
	}
	if c.WorkingPrefix == "" {
		errs = append(errs, errors.New("UPLOAD_WORKING_PREFIX must not be empty"))
	}

	return errors.Join(errs...)
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// StorageURL returns the object-store endpoint as an absolute URL.
func (c *Config) StorageURL() string {
	if strings.Contains(c.StorageEndpoint, "://") {
		return c.StorageEndpoint
	}
	if c.StorageUseSSL {
		return "https://" + c.StorageEndpoint
	}
	return "http://" + c.StorageEndpoint
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
		return fallback
	}
	return n
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}
