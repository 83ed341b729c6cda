// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSupabase = "supabase"
	StoreNATS     = "nats"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	CORSOrigins        []string

	// Auth: secret of the Supabase-issued JWTs
	JWTSecret string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	DefaultLLM          string
	LLMModel            string
	EmbeddingModel      string
	EmbeddingDimensions int

	// Hosted backend
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseTimeout    time.Duration

	// Catalog and search
	CatalogFixture       string
	SearchMatchThreshold float64

	// Chat persistence
	StoreBackend   string
	SessionIdleTTL time.Duration

	// NATS settings
	NATSURL            string
	NATSCAFile         string
	NATSCertFile       string
	NATSKeyFile        string
	NATSToken          string
	NATSJournalEnabled bool

	// Ticketing
	SeatPrice          float64
	PaymentCodeDelay   time.Duration
	PaymentSettleDelay time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		CORSOrigins:        getListEnv("CORS_ALLOWED_ORIGINS"),

		// Auth
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		DefaultLLM:          getEnv("DEFAULT_LLM", "openai"),
		LLMModel:            getEnv("LLM_MODEL", ""),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", ""),
		EmbeddingDimensions: getIntEnv("EMBEDDING_DIMENSIONS", 384),

		// Hosted backend
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseTimeout:    getDurationEnv("SUPABASE_TIMEOUT", 10*time.Second),

		// Catalog and search
		CatalogFixture:       getEnv("CATALOG_FIXTURE", ""),
		SearchMatchThreshold: getFloatEnv("SEARCH_MATCH_THRESHOLD", 0.8),

		// Chat persistence
		StoreBackend:   getEnv("STORE_BACKEND", StoreMemory),
		SessionIdleTTL: getDurationEnv("SESSION_IDLE_TTL", 15*time.Minute),

		// NATS
		NATSURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:         getEnv("NATS_CA_FILE", ""),
		NATSCertFile:       getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:        getEnv("NATS_KEY_FILE", ""),
		NATSToken:          getEnv("NATS_TOKEN", ""),
		NATSJournalEnabled: getBoolEnv("NATS_JOURNAL_ENABLED", false),

		// Ticketing
		SeatPrice:          getFloatEnv("SEAT_PRICE", 7.5),
		PaymentCodeDelay:   getDurationEnv("PAYMENT_CODE_DELAY", time.Second),
		PaymentSettleDelay: getDurationEnv("PAYMENT_SETTLE_DELAY", 2*time.Second),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// NeedsNATS reports whether any enabled component uses NATS.
func (c *Config) NeedsNATS() bool {
	return c.StoreBackend == StoreNATS || c.NATSJournalEnabled
}

// HasSupabase reports whether the hosted backend is configured.
func (c *Config) HasSupabase() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
