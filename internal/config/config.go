package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"
)

// Data backends selectable through DATA_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// External services
	ClassifierAPIURL string
	ReceiptAPIURL    string

	// HTTP client
	HTTPTimeout time.Duration

	// RequestTimeout bounds each report computation; zero disables it.
	RequestTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// JWT / Auth
	JWTSecret string
	JWTIssuer string

	// Reporting
	Categories  []string
	TrendMonths int
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:  strings.ToLower(getEnv("DATA_BACKEND", BackendSQLite)),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tracker.db"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		ClassifierAPIURL: getEnv("CLASSIFIER_API_URL", "http://localhost:8090"),
		ReceiptAPIURL:    getEnv("RECEIPT_API_URL", "http://localhost:8091"),

		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 5*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		Categories:  getEnvList("CATEGORIES", domain.DefaultCategories),
		TrendMonths: getEnvInt("TREND_MONTHS", 6),
	}
}

// CategorySet builds the category list handed to the services.
func (c *Config) CategorySet() domain.CategorySet {
	return domain.NewCategorySet(c.Categories)
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if strings.TrimSpace(c.SQLiteDBPath) == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendSupabase:
		if c.SupabaseURL == "" {
			problems = append(problems, "SUPABASE_URL is required when using supabase backend")
		} else if u, err := url.Parse(c.SupabaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("invalid SUPABASE_URL '%s'", c.SupabaseURL))
		}
		if c.SupabaseServiceKey == "" {
			problems = append(problems, "SUPABASE_SERVICE_ROLE_KEY is required when using supabase backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s %s]",
			c.DataBackend, BackendMemory, BackendSQLite, BackendSupabase))
	}

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.HTTPTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid HTTP timeout %v: must be positive", c.HTTPTimeout))
	}
	if c.RequestTimeout < 0 {
		problems = append(problems, fmt.Sprintf("invalid request timeout %v: must not be negative", c.RequestTimeout))
	}
	if c.MaxRetries < 0 {
		problems = append(problems, fmt.Sprintf("invalid max retries %d: must not be negative", c.MaxRetries))
	}
	if c.MaxConcurrency < 1 {
		problems = append(problems, fmt.Sprintf("invalid max concurrency %d: must be at least 1", c.MaxConcurrency))
	}
	if c.TrendMonths < 1 || c.TrendMonths > 60 {
		problems = append(problems, fmt.Sprintf("invalid trend months %d: must be between 1 and 60", c.TrendMonths))
	}
	if len(c.Categories) == 0 {
		problems = append(problems, "category list cannot be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
