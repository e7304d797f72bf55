package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=" // 32 bytes

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "4000", cfg.Database.Port)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "crm.events", cfg.RabbitMQ.Exchange)
	assert.Equal(t, "*/15 * * * *", cfg.Scheduler.ReconcileInvoices)
	assert.Equal(t, 72*time.Hour, cfg.Xendit.InvoiceDuration)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TIDB_DATABASE", "crm_test")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "crm_test", cfg.Database.Name)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("XENDIT_CALLBACK_TOKEN=cb-from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("XENDIT_CALLBACK_TOKEN") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cb-from-file", cfg.Xendit.CallbackToken)
}

func validConfig() *Config {
	return &Config{
		Server:     ServerConfig{Environment: EnvDevelopment},
		Database:   DatabaseConfig{Name: "crm"},
		Auth:       AuthConfig{JWTSecret: "dev-secret", TokenTTL: time.Hour},
		Encryption: EncryptionConfig{Key: testKey},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("missing database", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Name = ""
		assert.ErrorContains(t, cfg.Validate(), "TIDB_DATABASE")
	})

	t.Run("short secret in production", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Environment = EnvProduction
		assert.ErrorContains(t, cfg.Validate(), "at least 32 bytes")
	})

	t.Run("bad encryption key", func(t *testing.T) {
		cfg := validConfig()
		cfg.Encryption.Key = "c2hvcnQ="
		assert.ErrorContains(t, cfg.Validate(), "ENCRYPTION_KEY")
	})

	t.Run("google without encryption key", func(t *testing.T) {
		cfg := validConfig()
		cfg.Encryption.Key = ""
		cfg.Google.ClientID = "client"
		assert.ErrorContains(t, cfg.Validate(), "ENCRYPTION_KEY is required")
	})

	t.Run("xendit without callback token", func(t *testing.T) {
		cfg := validConfig()
		cfg.Xendit.SecretKey = "xnd_development_abc"
		assert.ErrorContains(t, cfg.Validate(), "XENDIT_CALLBACK_TOKEN")
	})

	t.Run("xendit without redis", func(t *testing.T) {
		cfg := validConfig()
		cfg.Redis.Addr = ""
		cfg.Xendit.SecretKey = "xnd_development_abc"
		cfg.Xendit.CallbackToken = "cb"
		assert.ErrorContains(t, cfg.Validate(), "REDIS_ADDR")
	})
}
