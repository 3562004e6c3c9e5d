package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string
	DBAutoMigrate   bool
	AllowMemory     bool

	JWTSecret          string
	RefreshSecret      string
	TokenExpiry        time.Duration
	RefreshTokenExpiry time.Duration

	PayloadMaxBytes  int64
	RateLimitWindow  time.Duration
	RateLimitMax     int
	AuthRateLimitMax int

	SectionCapacity int
	Timezone        string

	AWSRegion         string
	NotifyQueueURL    string
	BackupStoreType   string
	BackupLocalDir    string
	BackupS3Bucket    string
	BackupS3Prefix    string
	BackupSSEKMSKeyID string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", getEnv("NODE_ENV", "dev")))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "3001"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		DatabaseURL:     dbURL,
		DBAutoMigrate:   getBool("DB_AUTO_MIGRATE", env != "production"),
		AllowMemory:     getBool("ALLOW_MEMORY_STORE", env != "production"),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		RefreshSecret:      getEnv("REFRESH_TOKEN_SECRET", ""),
		TokenExpiry:        getDuration("TOKEN_EXPIRY", time.Hour),
		RefreshTokenExpiry: getDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),

		PayloadMaxBytes:  getSize("PAYLOAD_MAX_SIZE", 5<<20),
		RateLimitWindow:  getDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		RateLimitMax:     getInt("RATE_LIMIT_MAX", 100),
		AuthRateLimitMax: getInt("AUTH_RATE_LIMIT_MAX", 5),

		SectionCapacity: getInt("SECTION_CAPACITY", 10),
		Timezone:        getEnv("APP_TIMEZONE", "America/La_Paz"),

		AWSRegion:         getEnv("AWS_REGION", ""),
		NotifyQueueURL:    getEnv("NOTIFY_SQS_QUEUE_URL", ""),
		BackupStoreType:   normalizeStoreType(getEnv("BACKUP_STORE", "local")),
		BackupLocalDir:    getEnv("BACKUP_LOCAL_DIR", "./data/backups"),
		BackupS3Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
		BackupS3Prefix:    getEnv("BACKUP_S3_PREFIX", "hojaruta"),
		BackupSSEKMSKeyID: getEnv("BACKUP_SSE_KMS_KEY_ID", ""),

		ReadTimeout:     getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getDuration("HTTP_SHUTDOWN_TIMEOUT", 20*time.Second),
	}
}

// Validate reports settings that make the process unsafe to start.
func (c Config) Validate() error {
	var errs []error
	if c.IsProduction() {
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required in production"))
		}
		if len(c.JWTSecret) < 32 {
			errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters in production"))
		}
	}
	if c.SectionCapacity < 1 {
		errs = append(errs, errors.New("SECTION_CAPACITY must be positive"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, errors.New("APP_TIMEZONE is not a valid IANA zone"))
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// getDuration accepts Go durations ("90m") and the "1h"/"7d" shorthand used by token settings.
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := ParseDuration(raw)
	if err != nil {
		log.Printf("config %s invalid duration: %v", key, err)
		return def
	}
	return d
}

func getSize(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := ParseSize(raw)
	if err != nil {
		log.Printf("config %s invalid size: %v", key, err)
		return def
	}
	return n
}

// ParseDuration extends time.ParseDuration with a day unit ("7d").
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

// ParseSize parses byte sizes such as "5mb", "512kb" or "1048576".
func ParseSize(raw string) (int64, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	mult := int64(1)
	switch {
	case strings.HasSuffix(raw, "gb"):
		mult, raw = 1<<30, strings.TrimSuffix(raw, "gb")
	case strings.HasSuffix(raw, "mb"):
		mult, raw = 1<<20, strings.TrimSuffix(raw, "mb")
	case strings.HasSuffix(raw, "kb"):
		mult, raw = 1<<10, strings.TrimSuffix(raw, "kb")
	case strings.HasSuffix(raw, "b"):
		raw = strings.TrimSuffix(raw, "b")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative size")
	}
	return n * mult, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
