package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PERPLEXITY_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_HOST", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "*", cfg.Server.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.ChatModel)
	assert.Equal(t, 0.7, cfg.OpenAI.ChatTemperature)
	assert.Equal(t, 700, cfg.OpenAI.ChatMaxTokens)
	assert.False(t, cfg.OpenAI.Enabled)
	assert.Equal(t, 0.2, cfg.Perplexity.Temperature)
	assert.Equal(t, 800, cfg.Perplexity.MaxTokens)
	assert.Equal(t, 30, cfg.Perplexity.Timeout)
	assert.False(t, cfg.Perplexity.Enabled)
	assert.False(t, cfg.PostgreSQL.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 3, cfg.Listings.MaxResults)
	assert.Equal(t, []string{"bayut.com", "propertyfinder.ae"}, cfg.Listings.AllowedDomains)
	assert.Equal(t, "csv", cfg.PriceStats.Source)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PERPLEXITY_API_KEY", "pplx-test")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("LISTINGS_ALLOWED_DOMAINS", " bayut.com , ,dubizzle.com")
	t.Setenv("PG_RUN_MIGRATIONS", "off")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.OpenAI.Enabled)
	assert.True(t, cfg.Perplexity.Enabled)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 45*time.Minute, cfg.Session.TTL)
	assert.Equal(t, []string{"bayut.com", "dubizzle.com"}, cfg.Listings.AllowedDomains)
	assert.False(t, cfg.PostgreSQL.RunMigrations)
}

func TestAllowedDomainsCanBeCleared(t *testing.T) {
	t.Setenv("LISTINGS_ALLOWED_DOMAINS", "-")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Listings.AllowedDomains)
}

func TestInvalidNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("SESSION_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
}

func TestValidate(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_HOST", "")
	t.Setenv("PRICE_STATS_SOURCE", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRICE_STATS_SOURCE=postgres requires")

	t.Setenv("PRICE_STATS_SOURCE", "excel")
	t.Setenv("LISTINGS_MAX_RESULTS", "0")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRICE_STATS_SOURCE must be csv or postgres")
	assert.Contains(t, err.Error(), "LISTINGS_MAX_RESULTS must be at least 1")
}

func TestGetPostgreSQLDSN(t *testing.T) {
	cfg := &Config{PostgreSQL: PostgreSQLConfig{
		Host: "db", Port: 5432, User: "oliv", Password: "secret", Database: "oliv", SSLMode: "disable",
	}}
	assert.Equal(t, "postgres://oliv:secret@db:5432/oliv?sslmode=disable", cfg.GetPostgreSQLDSN())

	cfg.PostgreSQL.DSN = "postgres://elsewhere/oliv"
	assert.Equal(t, "postgres://elsewhere/oliv", cfg.GetPostgreSQLDSN())
}
