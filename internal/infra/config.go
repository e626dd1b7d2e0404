package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	JWTSecret        string
	GeoIPDBPath      string
	DefaultLocale    string
	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	ZiplineURL           string
	HostingUploadTimeout time.Duration
	HostingInfoTimeout   time.Duration
	ProviderTimeout      time.Duration
	DownloadTimeout      time.Duration
	FFmpegPath           string
	ScratchPath          string

	RedisURL         string
	ModelCacheTTL    time.Duration
	ReconcileLockTTL time.Duration

	WebhookSecret string
	PollSchedule  string
	PollMaxAge    time.Duration
	PollBatchSize int

	WorkerMetricsAddr string

	ArchiveBucket string
	ArchiveRegion string
	ArchivePrefix string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		ZiplineURL:           strings.TrimRight(os.Getenv("ZIPLINE_URL"), "/"),
		HostingUploadTimeout: getEnvDuration("HOSTING_UPLOAD_TIMEOUT", 300*time.Second),
		HostingInfoTimeout:   getEnvDuration("HOSTING_INFO_TIMEOUT", 30*time.Second),
		ProviderTimeout:      getEnvDuration("PROVIDER_TIMEOUT", 60*time.Second),
		DownloadTimeout:      getEnvDuration("DOWNLOAD_TIMEOUT", 120*time.Second),
		FFmpegPath:           getEnv("FFMPEG_PATH", "ffmpeg"),
		ScratchPath:          getEnv("SCRATCH_PATH", os.TempDir()),

		RedisURL:         os.Getenv("REDIS_URL"),
		ModelCacheTTL:    getEnvDuration("MODEL_CACHE_TTL", 5*time.Minute),
		ReconcileLockTTL: getEnvDuration("RECONCILE_LOCK_TTL", 2*time.Minute),

		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		PollSchedule:  getEnv("POLL_SCHEDULE", "@every 15s"),
		PollMaxAge:    getEnvDuration("POLL_MAX_AGE", 24*time.Hour),
		PollBatchSize: getEnvInt("POLL_BATCH_SIZE", 50),

		WorkerMetricsAddr: os.Getenv("WORKER_METRICS_ADDR"),

		ArchiveBucket: os.Getenv("ARCHIVE_S3_BUCKET"),
		ArchiveRegion: getEnv("ARCHIVE_S3_REGION", "us-east-1"),
		ArchivePrefix: getEnv("ARCHIVE_S3_PREFIX", "generations/"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.PollBatchSize <= 0 {
		return nil, fmt.Errorf("POLL_BATCH_SIZE must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "5m") or bare seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
