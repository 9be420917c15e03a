package config

import (
	"log"
	neturl "net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Host    string
	Port    string
	Workers int

	AppDir   string
	DraftDir string
	TempDir  string

	DraftURL    string
	DownloadURL string
	TipURL      string

	FfprobePath    string
	FfprobeTimeout time.Duration

	DownloadSizeLimit int64
	DownloadTimeout   time.Duration
	DownloadRetry     int

	RedisURL         string
	RedisPassword    string
	DurationCacheTTL time.Duration

	AuthJWTSecret []byte

	RateLimitMax    int
	RateLimitWindow time.Duration

	TempMaxAge      time.Duration
	CleanupInterval time.Duration

	TrustProxyHeaders bool
	BodyLimit         int
	Environment       string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	appDir := GetEnvOrDefault("APP_DIR", "/app")

	cfg := &Config{
		Host:    GetEnvOrDefault("HOST", "0.0.0.0"),
		Port:    GetEnvOrDefault("PORT", "30000"),
		Workers: GetEnvAsInt("WORKERS", 4),

		AppDir:   appDir,
		DraftDir: GetEnvOrDefault("DRAFT_DIR", filepath.Join(appDir, "output", "draft")),
		TempDir:  GetEnvOrDefault("TEMP_DIR", filepath.Join(appDir, "temp")),

		DraftURL:    GetEnvOrDefault("DRAFT_URL", "https://capcut-mate.jcaigc.cn/openapi/capcut-mate/v1/get_draft"),
		DownloadURL: GetEnvOrDefault("DOWNLOAD_URL", "https://capcut-mate.jcaigc.cn/"),
		TipURL:      GetEnvOrDefault("TIP_URL", "https://docs.jcaigc.cn/"),

		FfprobePath:    GetEnvOrDefault("FFPROBE_PATH", "ffprobe"),
		FfprobeTimeout: GetEnvAsDuration("FFPROBE_TIMEOUT", 30*time.Second),

		DownloadSizeLimit: int64(GetEnvAsInt("DOWNLOAD_SIZE_LIMIT", 200*1024*1024)),
		DownloadTimeout:   GetEnvAsDuration("DOWNLOAD_TIMEOUT", 90*time.Second),
		DownloadRetry:     GetEnvAsInt("DOWNLOAD_RETRY", 3),

		RedisURL:         normalizeRedisAddress(os.Getenv("REDIS_URL")),
		RedisPassword:    resolveRedisPassword(os.Getenv("REDIS_URL"), os.Getenv("REDIS_PASSWORD")),
		DurationCacheTTL: GetEnvAsDuration("DURATION_CACHE_TTL", 24*time.Hour),

		AuthJWTSecret: []byte(os.Getenv("AUTH_JWT_SECRET")),

		RateLimitMax:    GetEnvAsInt("RATE_LIMIT_MAX", 300),
		RateLimitWindow: GetEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),

		TempMaxAge:      GetEnvAsDuration("TEMP_MAX_AGE", time.Hour),
		CleanupInterval: GetEnvAsDuration("CLEANUP_INTERVAL", 30*time.Minute),

		TrustProxyHeaders: GetEnvAsBool("TRUST_PROXY_HEADERS", false),
		BodyLimit:         GetEnvAsInt("BODY_LIMIT", 1024*1024),
		Environment:       GetEnvOrDefault("APP_ENV", "production"),
	}

	if cfg.Workers <= 0 {
		log.Fatalf("💥 [FATAL] WORKERS must be a positive worker count, got %d", cfg.Workers)
	}
	if cfg.DownloadSizeLimit <= 0 {
		log.Fatalf("💥 [FATAL] DOWNLOAD_SIZE_LIMIT must be a positive byte count, got %d", cfg.DownloadSizeLimit)
	}
	if len(cfg.AuthJWTSecret) > 0 && len(cfg.AuthJWTSecret) < 32 {
		log.Printf("⚠️  [WARNING] AUTH_JWT_SECRET is shorter than 32 characters - consider using a longer secret")
	}

	return cfg
}

// GetEnvOrDefault returns environment variable value or default
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsBool parses environment variable as boolean
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		value = strings.ToLower(value)
		if value == "true" || value == "1" || value == "yes" {
			return true
		}
		if value == "false" || value == "0" || value == "no" {
			return false
		}
	}
	return defaultValue
}

// GetEnvAsInt parses environment variable as integer
func GetEnvAsInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration parses environment variable as a duration. Bare integers
// are treated as seconds for compatibility with second-based deployments.
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// normalizeRedisAddress converts redis:// URLs into host[:port] that go-redis expects.
func normalizeRedisAddress(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	if !strings.Contains(trimmed, "://") {
		return trimmed
	}
	u, err := neturl.Parse(trimmed)
	if err != nil {
		log.Printf("Warning: could not parse REDIS_URL '%s': %v", trimmed, err)
		return trimmed
	}
	if u.Host != "" {
		return u.Host
	}
	return trimmed
}

// resolveRedisPassword returns an explicit password if provided, otherwise pulls
// the password component from a redis:// URL when available.
func resolveRedisPassword(redisURL, explicit string) string {
	if explicit != "" {
		return explicit
	}
	trimmed := strings.TrimSpace(redisURL)
	if trimmed == "" || !strings.Contains(trimmed, "://") {
		return explicit
	}
	u, err := neturl.Parse(trimmed)
	if err != nil {
		return explicit
	}
	if u.User != nil {
		if pw, ok := u.User.Password(); ok && pw != "" {
			return pw
		}
	}
	return explicit
}
