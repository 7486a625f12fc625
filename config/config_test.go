package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTH_MODE", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, AuthModeHeader, cfg.Auth.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Tenancy.CacheTTL)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_ParsesOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TENANT_CACHE_TTL", "30s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("DB_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.Tenancy.CacheTTL)
	assert.Equal(t, 2.5, cfg.Server.RateLimitRPS)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080", RateLimitRPS: 1, RateLimitBurst: 1},
			Database: DatabaseConfig{Host: "localhost"},
			Auth:     AuthConfig{Mode: AuthModeHeader, AdminAPIKey: "k"},
			App:      AppConfig{Environment: "production"},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("firebase requires credentials", func(t *testing.T) {
		cfg := base()
		cfg.Auth.Mode = AuthModeFirebase
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown auth mode", func(t *testing.T) {
		cfg := base()
		cfg.Auth.Mode = "magic"
		assert.Error(t, cfg.Validate())
	})

	t.Run("admin key required in production", func(t *testing.T) {
		cfg := base()
		cfg.Auth.AdminAPIKey = ""
		assert.Error(t, cfg.Validate())
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "gw", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=gw sslmode=disable", d.DSN())

	d.URL = "postgres://x"
	assert.Equal(t, "postgres://x", d.DSN())
}
