package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Redis      RedisConfig
	Server     ServerConfig
	Session    SessionConfig
	Logging    LoggingConfig
	OpenAI     OpenAIConfig
	Perplexity PerplexityConfig
	Predictor  PredictorConfig
	PriceStats PriceStatsConfig
	Listings   ListingsConfig
	Resilience ResilienceConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration.
// The database is optional: without it turn logging and feedback are disabled.
type PostgreSQLConfig struct {
	DSN                string
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	RunMigrations      bool
	MigrationsPath     string
	Enabled            bool
}

// RedisConfig holds the Redis session store configuration
type RedisConfig struct {
	URL     string
	Enabled bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
	CookieSecure   bool
}

// SessionConfig controls how long conversation context is remembered
type SessionConfig struct {
	TTL         time.Duration
	MaxMessages int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// OpenAIConfig holds the chat-completion service configuration (intent extraction and fallback chat)
type OpenAIConfig struct {
	APIKey          string
	APIBase         string
	ChatModel       string
	ChatTemperature float64
	ChatMaxTokens   int
	EmbeddingModel  string
	EmbedTurns      bool
	Timeout         int
	Enabled         bool
}

// PerplexityConfig holds the answer/search service configuration
type PerplexityConfig struct {
	APIKey      string
	APIBase     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     int
	Enabled     bool
}

// PredictorConfig points at the regression artifact
type PredictorConfig struct {
	ModelPath   string
	ColumnsPath string
}

// PriceStatsConfig selects the historical price table source ("csv" or "postgres")
type PriceStatsConfig struct {
	Source  string
	CSVPath string
}

// ListingsConfig holds listing search configuration
type ListingsConfig struct {
	MaxResults     int
	AllowedDomains []string
}

// ResilienceConfig holds retry and circuit breaker settings shared by all collaborators
type ResilienceConfig struct {
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BreakerFailures int
	BreakerOpenFor  time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", ""),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "oliv"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 2),
			RunMigrations:      getEnvAsBool("PG_RUN_MIGRATIONS", true),
			MigrationsPath:     getEnv("PG_MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8000),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Origin,Content-Type,Accept,Authorization,X-Session-Id"),
			CookieSecure:   getEnvAsBool("COOKIE_SECURE", false),
		},
		Session: SessionConfig{
			TTL:         getEnvAsDuration("SESSION_TTL", 2*time.Hour),
			MaxMessages: getEnvAsInt("SESSION_MAX_MESSAGES", 40),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		OpenAI: OpenAIConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			APIBase:         getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			ChatModel:       getEnv("OPENAI_CHAT_MODEL", "gpt-4o"),
			ChatTemperature: getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.7),
			ChatMaxTokens:   getEnvAsInt("OPENAI_CHAT_MAX_TOKENS", 700),
			EmbeddingModel:  getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbedTurns:      getEnvAsBool("OPENAI_EMBED_TURNS", false),
			Timeout:         getEnvAsInt("OPENAI_TIMEOUT", 60),
			Enabled:         getEnv("OPENAI_API_KEY", "") != "",
		},
		Perplexity: PerplexityConfig{
			APIKey:      getEnv("PERPLEXITY_API_KEY", ""),
			APIBase:     getEnv("PERPLEXITY_API_BASE", "https://api.perplexity.ai"),
			Model:       getEnv("PERPLEXITY_MODEL", "llama-3.1-sonar-large-128k-online"),
			Temperature: getEnvAsFloat("PERPLEXITY_TEMPERATURE", 0.2),
			MaxTokens:   getEnvAsInt("PERPLEXITY_MAX_TOKENS", 800),
			Timeout:     getEnvAsInt("PERPLEXITY_TIMEOUT", 30),
			Enabled:     getEnv("PERPLEXITY_API_KEY", "") != "",
		},
		Predictor: PredictorConfig{
			ModelPath:   getEnv("PREDICTOR_MODEL_PATH", "data/pricing_model.json"),
			ColumnsPath: getEnv("PREDICTOR_COLUMNS_PATH", "data/training_columns.json"),
		},
		PriceStats: PriceStatsConfig{
			Source:  strings.ToLower(getEnv("PRICE_STATS_SOURCE", "csv")),
			CSVPath: getEnv("PRICE_STATS_CSV", "data/price_stats.csv"),
		},
		Listings: ListingsConfig{
			MaxResults:     getEnvAsInt("LISTINGS_MAX_RESULTS", 3),
			AllowedDomains: getEnvAsList("LISTINGS_ALLOWED_DOMAINS", []string{"bayut.com", "propertyfinder.ae"}),
		},
		Resilience: ResilienceConfig{
			MaxRetries:      getEnvAsInt("RETRY_MAX_RETRIES", 2),
			InitialBackoff:  getEnvAsDuration("RETRY_INITIAL_BACKOFF", 300*time.Millisecond),
			MaxBackoff:      getEnvAsDuration("RETRY_MAX_BACKOFF", 3*time.Second),
			BreakerFailures: getEnvAsInt("BREAKER_CONSECUTIVE_FAILURES", 5),
			BreakerOpenFor:  getEnvAsDuration("BREAKER_OPEN_DURATION", 30*time.Second),
		},
	}

	cfg.PostgreSQL.Enabled = cfg.PostgreSQL.DSN != "" || cfg.PostgreSQL.Host != ""
	cfg.Redis.Enabled = cfg.Redis.URL != ""

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Validate checks for settings the service cannot run with.
// Missing API credentials are not errors: the dependent capability degrades instead.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.PriceStats.Source != "csv" && c.PriceStats.Source != "postgres" {
		errs = append(errs, fmt.Sprintf("PRICE_STATS_SOURCE must be csv or postgres, got %q", c.PriceStats.Source))
	}
	if c.PriceStats.Source == "postgres" && !c.PostgreSQL.Enabled {
		errs = append(errs, "PRICE_STATS_SOURCE=postgres requires DATABASE_URL or PG_HOST")
	}
	if c.Listings.MaxResults < 1 {
		errs = append(errs, "LISTINGS_MAX_RESULTS must be at least 1")
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, "SESSION_TTL must be positive")
	}
	if c.Resilience.MaxRetries < 0 {
		errs = append(errs, "RETRY_MAX_RETRIES must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value. A variable set to "-" yields an empty list.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr, ok := os.LookupEnv(key)
	if !ok || valueStr == "" {
		return defaultValue
	}
	if strings.TrimSpace(valueStr) == "-" {
		return []string{}
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
