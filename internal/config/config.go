// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, publishing credentials,
// scheduler cadence, rate limiting, and observability.
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "instabulk")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// GraphConfig holds the content-publishing platform settings.
type GraphConfig struct {
	AccessToken string        // GRAPH_ACCESS_TOKEN (long-lived user token)
	BaseURL     string        // GRAPH_BASE_URL (versioned API root)
	PollEvery   time.Duration // GRAPH_POLL_INTERVAL between container status checks
	ImageBudget time.Duration // GRAPH_IMAGE_BUDGET total wait for image containers
	VideoBudget time.Duration // GRAPH_VIDEO_BUDGET total wait for video containers
	RetryMax    int           // GRAPH_PUBLISH_RETRY_MAX publish attempts on "not ready"
	RetryBase   time.Duration // GRAPH_PUBLISH_RETRY_BASE linear backoff base
}

// CloudinaryConfig holds media storage credentials.
type CloudinaryConfig struct {
	CloudName string // CLOUDINARY_CLOUD_NAME
	APIKey    string // CLOUDINARY_API_KEY
	APISecret string // CLOUDINARY_API_SECRET
}

// SchedulerConfig bounds the periodic due-post pass.
type SchedulerConfig struct {
	MinInterval time.Duration // SCHEDULER_MIN_INTERVAL between passes
	LockStale   time.Duration // SCHEDULER_LOCK_STALE abandoned-lock threshold
	Workers     int           // SCHEDULER_WORKERS concurrent per-account publishes
	CronSpec    string        // SCHEDULER_CRON background trigger spec
}

// AuthConfig holds operator login settings. Credentials come as a CSV of
// user:password pairs; fine for the handful of operators this tool serves.
type AuthConfig struct {
	Credentials map[string]string // AUTH_CREDENTIALS ("admin:secret,editor:pw2")
	SessionTTL  time.Duration     // SESSION_TTL
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
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath     string // SQLite path
	Graph      GraphConfig
	Cloudinary CloudinaryConfig
	Scheduler  SchedulerConfig
	Auth       AuthConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

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
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "app.db"),
		Graph: GraphConfig{
			AccessToken: getenv("GRAPH_ACCESS_TOKEN", ""),
			BaseURL:     getenv("GRAPH_BASE_URL", "https://graph.facebook.com/v21.0"),
			PollEvery:   getdur("GRAPH_POLL_INTERVAL", 4*time.Second),
			ImageBudget: getdur("GRAPH_IMAGE_BUDGET", 90*time.Second),
			VideoBudget: getdur("GRAPH_VIDEO_BUDGET", 8*time.Minute),
			RetryMax:    getint("GRAPH_PUBLISH_RETRY_MAX", 3),
			RetryBase:   getdur("GRAPH_PUBLISH_RETRY_BASE", 15*time.Second),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getenv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getenv("CLOUDINARY_API_KEY", ""),
			APISecret: getenv("CLOUDINARY_API_SECRET", ""),
		},
		Scheduler: SchedulerConfig{
			MinInterval: getdur("SCHEDULER_MIN_INTERVAL", time.Minute),
			LockStale:   getdur("SCHEDULER_LOCK_STALE", 30*time.Minute),
			Workers:     getint("SCHEDULER_WORKERS", 4),
			CronSpec:    getenv("SCHEDULER_CRON", "@every 1m"),
		},
		Auth: AuthConfig{
			Credentials: parseCredentials(getenv("AUTH_CREDENTIALS", "")),
			SessionTTL:  getdur("SESSION_TTL", time.Hour),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "instabulk"),
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
	cfg.Graph.BaseURL = strings.TrimRight(cfg.Graph.BaseURL, "/")

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
	if strings.TrimSpace(cfg.Graph.BaseURL) == "" {
		return cfg, errors.New("GRAPH_BASE_URL must not be empty")
	}
	if cfg.Graph.PollEvery <= 0 || cfg.Graph.ImageBudget <= 0 || cfg.Graph.VideoBudget <= 0 {
		return cfg, errors.New("graph poll interval and budgets must be positive durations")
	}
	if cfg.Graph.RetryMax < 1 {
		return cfg, errors.New("GRAPH_PUBLISH_RETRY_MAX must be >= 1")
	}
	if cfg.Scheduler.MinInterval <= 0 {
		return cfg, errors.New("SCHEDULER_MIN_INTERVAL must be > 0")
	}
	if cfg.Scheduler.LockStale <= cfg.Graph.VideoBudget {
		return cfg, errors.New("SCHEDULER_LOCK_STALE must exceed GRAPH_VIDEO_BUDGET")
	}
	if cfg.Scheduler.Workers < 1 {
		return cfg, errors.New("SCHEDULER_WORKERS must be >= 1")
	}
	if strings.TrimSpace(cfg.Scheduler.CronSpec) == "" {
		return cfg, errors.New("SCHEDULER_CRON must not be empty")
	}
	if cfg.Auth.SessionTTL <= 0 {
		return cfg, errors.New("SESSION_TTL must be > 0")
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

// parseCredentials parses "user:password" pairs from a CSV; malformed
// entries are skipped.
func parseCredentials(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range splitCSV(s) {
		user, pw, ok := strings.Cut(pair, ":")
		user = strings.TrimSpace(user)
		if !ok || user == "" || pw == "" {
			continue
		}
		out[user] = pw
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
