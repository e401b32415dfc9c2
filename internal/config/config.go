// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// HTTP server, logging, the document store, blob storage, the realtime store,
// authentication, the recording spool, rate limiting and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-sos-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BlobConfig selects and configures the blob store holding recordings.
type BlobConfig struct {
	Backend       string        // BLOB_BACKEND: local|minio
	LocalDir      string        // BLOB_LOCAL_DIR
	PublicBaseURL string        // BLOB_PUBLIC_BASE_URL, prefix for local object URLs
	Endpoint      string        // MINIO_ENDPOINT (host:port)
	AccessKey     string        // MINIO_ACCESS_KEY
	SecretKey     string        // MINIO_SECRET_KEY
	Bucket        string        // MINIO_BUCKET
	UseSSL        bool          // MINIO_USE_SSL
	URLTTL        time.Duration // BLOB_URL_TTL, lifetime of presigned URLs
}

// RedisConfig configures the realtime key-value store.
type RedisConfig struct {
	Addr      string // REDIS_ADDR
	Password  string // REDIS_PASSWORD
	DB        int    // REDIS_DB
	KeyPrefix string // REDIS_KEY_PREFIX
}

// AuthConfig configures bearer-token identity.
type AuthConfig struct {
	JWTSecret string        // JWT_SECRET
	Required  bool          // AUTH_REQUIRED; when false X-User-ID is accepted
	TokenTTL  time.Duration // JWT_TTL, used by the token issuer
}

// RecordingConfig configures the server-side recording spool.
type RecordingConfig struct {
	SpoolDir        string        // SPOOL_DIR
	MaxBytes        int64         // MAX_RECORDING_BYTES
	SpoolMaxAge     time.Duration // SPOOL_MAX_AGE, janitor cutoff for orphans
	Ext             string        // AUDIO_EXT, without the dot
	JanitorSchedule string        // JANITOR_SCHEDULE, cron spec
}

// LogFileConfig configures the optional rotating file sink.
type LogFileConfig struct {
	Path       string // LOG_FILE; empty disables the file sink
	MaxSizeMB  int    // LOG_FILE_MAX_SIZE_MB
	MaxBackups int    // LOG_FILE_MAX_BACKUPS
	MaxAgeDays int    // LOG_FILE_MAX_AGE_DAYS
	Compress   bool   // LOG_FILE_COMPRESS
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	LogFile        LogFileConfig
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath    string // SQLite path
	Blob      BlobConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Recording RecordingConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),
		LogFile: LogFileConfig{
			Path:       getenv("LOG_FILE", ""),
			MaxSizeMB:  getint("LOG_FILE_MAX_SIZE_MB", 50),
			MaxBackups: getint("LOG_FILE_MAX_BACKUPS", 5),
			MaxAgeDays: getint("LOG_FILE_MAX_AGE_DAYS", 28),
			Compress:   getbool("LOG_FILE_COMPRESS", true),
		},
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "app.db"),
		Blob: BlobConfig{
			Backend:       strings.ToLower(getenv("BLOB_BACKEND", "local")),
			LocalDir:      getenv("BLOB_LOCAL_DIR", "data/blobs"),
			PublicBaseURL: strings.TrimRight(getenv("BLOB_PUBLIC_BASE_URL", "http://localhost:8080/blobs"), "/"),
			Endpoint:      getenv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:     getenv("MINIO_ACCESS_KEY", ""),
			SecretKey:     getenv("MINIO_SECRET_KEY", ""),
			Bucket:        getenv("MINIO_BUCKET", "sos-recordings"),
			UseSSL:        getbool("MINIO_USE_SSL", false),
			URLTTL:        getdur("BLOB_URL_TTL", 7*24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:      getenv("REDIS_ADDR", "localhost:6379"),
			Password:  getenv("REDIS_PASSWORD", ""),
			DB:        getint("REDIS_DB", 0),
			KeyPrefix: getenv("REDIS_KEY_PREFIX", "sos:"),
		},
		Auth: AuthConfig{
			JWTSecret: getenv("JWT_SECRET", ""),
			Required:  getbool("AUTH_REQUIRED", false),
			TokenTTL:  getdur("JWT_TTL", 24*time.Hour),
		},
		Recording: RecordingConfig{
			SpoolDir:        getenv("SPOOL_DIR", "data/spool"),
			MaxBytes:        getint64("MAX_RECORDING_BYTES", 50<<20),
			SpoolMaxAge:     getdur("SPOOL_MAX_AGE", 6*time.Hour),
			Ext:             strings.TrimPrefix(strings.ToLower(getenv("AUDIO_EXT", "mp3")), "."),
			JanitorSchedule: getenv("JANITOR_SCHEDULE", "@every 30m"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 20),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-sos-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Recording.Ext == "" {
		cfg.Recording.Ext = "mp3"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	switch cfg.Blob.Backend {
	case "local":
		if strings.TrimSpace(cfg.Blob.LocalDir) == "" {
			return cfg, errors.New("BLOB_LOCAL_DIR must not be empty")
		}
	case "minio":
		if cfg.Blob.Endpoint == "" || cfg.Blob.Bucket == "" {
			return cfg, errors.New("MINIO_ENDPOINT and MINIO_BUCKET must be set")
		}
		if cfg.Blob.AccessKey == "" || cfg.Blob.SecretKey == "" {
			return cfg, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY must be set")
		}
	default:
		return cfg, errors.New("BLOB_BACKEND must be one of: local, minio")
	}
	if cfg.Blob.URLTTL <= 0 || cfg.Blob.URLTTL > 7*24*time.Hour {
		return cfg, errors.New("BLOB_URL_TTL must be in (0, 168h]")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return cfg, errors.New("REDIS_ADDR must not be empty")
	}
	if cfg.Redis.DB < 0 {
		return cfg, errors.New("REDIS_DB must be >= 0")
	}
	if cfg.Auth.Required && len(cfg.Auth.JWTSecret) < 16 {
		return cfg, errors.New("JWT_SECRET must be at least 16 bytes when AUTH_REQUIRED is on")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return cfg, errors.New("JWT_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.Recording.SpoolDir) == "" {
		return cfg, errors.New("SPOOL_DIR must not be empty")
	}
	if cfg.Recording.MaxBytes <= 0 {
		return cfg, errors.New("MAX_RECORDING_BYTES must be > 0")
	}
	if cfg.Recording.SpoolMaxAge <= 0 {
		return cfg, errors.New("SPOOL_MAX_AGE must be > 0")
	}
	if strings.ContainsAny(cfg.Recording.Ext, "/\\. ") {
		return cfg, errors.New("AUDIO_EXT must be a bare extension such as mp3")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
