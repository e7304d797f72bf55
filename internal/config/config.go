// Package config loads process configuration from the environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/crypto"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type Config struct {
	Server     ServerConfig     `mapstructure:",squash"`
	Database   DatabaseConfig   `mapstructure:",squash"`
	Auth       AuthConfig       `mapstructure:",squash"`
	Redis      RedisConfig      `mapstructure:",squash"`
	RabbitMQ   RabbitMQConfig   `mapstructure:",squash"`
	Xendit     XenditConfig     `mapstructure:",squash"`
	Google     GoogleConfig     `mapstructure:",squash"`
	Logging    LoggingConfig    `mapstructure:",squash"`
	RateLimit  RateLimitConfig  `mapstructure:",squash"`
	Scheduler  SchedulerConfig  `mapstructure:",squash"`
	Encryption EncryptionConfig `mapstructure:",squash"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"PORT"`
	Environment     string        `mapstructure:"APP_ENV"`
	CORSOrigins     string        `mapstructure:"CORS_ORIGINS"`
	PublicURL       string        `mapstructure:"PUBLIC_URL"`
	FrontendURL     string        `mapstructure:"FRONTEND_URL"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	Host         string        `mapstructure:"TIDB_HOST"`
	Port         string        `mapstructure:"TIDB_PORT"`
	User         string        `mapstructure:"TIDB_USER"`
	Password     string        `mapstructure:"TIDB_PASSWORD"`
	Name         string        `mapstructure:"TIDB_DATABASE"`
	MaxOpenConns int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	MaxLifetime  time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"JWT_TTL"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"REDIS_ADDR"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"RABBITMQ_URL"`
	Exchange string `mapstructure:"RABBITMQ_EXCHANGE"`
}

type XenditConfig struct {
	BaseURL            string        `mapstructure:"XENDIT_BASE_URL"`
	SecretKey          string        `mapstructure:"XENDIT_SECRET_KEY"`
	CallbackToken      string        `mapstructure:"XENDIT_CALLBACK_TOKEN"`
	SuccessRedirectURL string        `mapstructure:"XENDIT_SUCCESS_REDIRECT_URL"`
	FailureRedirectURL string        `mapstructure:"XENDIT_FAILURE_REDIRECT_URL"`
	InvoiceDuration    time.Duration `mapstructure:"XENDIT_INVOICE_DURATION"`
	Timeout            time.Duration `mapstructure:"XENDIT_TIMEOUT"`
}

type GoogleConfig struct {
	ClientID     string        `mapstructure:"GOOGLE_CLIENT_ID"`
	ClientSecret string        `mapstructure:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string        `mapstructure:"GOOGLE_REDIRECT_URL"`
	AuthURL      string        `mapstructure:"GOOGLE_AUTH_URL"`
	TokenURL     string        `mapstructure:"GOOGLE_TOKEN_URL"`
	RevokeURL    string        `mapstructure:"GOOGLE_REVOKE_URL"`
	UserInfoURL  string        `mapstructure:"GOOGLE_USERINFO_URL"`
	CalendarURL  string        `mapstructure:"GOOGLE_CALENDAR_URL"`
	Timeout      time.Duration `mapstructure:"GOOGLE_TIMEOUT"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	Burst int     `mapstructure:"RATE_LIMIT_BURST"`
}

// SchedulerConfig holds the cron specs of the background jobs. An empty spec disables a job.
type SchedulerConfig struct {
	ExpireQuotations   string        `mapstructure:"CRON_EXPIRE_QUOTATIONS"`
	ReconcileInvoices  string        `mapstructure:"CRON_RECONCILE_INVOICES"`
	PurgeOutbox        string        `mapstructure:"CRON_PURGE_OUTBOX"`
	RefreshGoogle      string        `mapstructure:"CRON_REFRESH_GOOGLE_TOKENS"`
	PurgeSessions      string        `mapstructure:"CRON_PURGE_SESSIONS"`
	JobTimeout         time.Duration `mapstructure:"CRON_JOB_TIMEOUT"`
	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
}

type EncryptionConfig struct {
	Key string `mapstructure:"ENCRYPTION_KEY"`
}

var defaults = map[string]interface{}{
	"PORT":                        "8080",
	"APP_ENV":                     EnvDevelopment,
	"CORS_ORIGINS":                "*",
	"PUBLIC_URL":                  "http://localhost:8080",
	"FRONTEND_URL":                "http://localhost:5173",
	"SHUTDOWN_TIMEOUT":            "15s",
	"TIDB_HOST":                   "127.0.0.1",
	"TIDB_PORT":                   "4000",
	"TIDB_USER":                   "root",
	"TIDB_PASSWORD":               "",
	"TIDB_DATABASE":               "eventcrm",
	"DB_MAX_OPEN_CONNS":           50,
	"DB_CONN_MAX_LIFETIME":        "5m",
	"JWT_SECRET":                  "",
	"JWT_TTL":                     "24h",
	"REDIS_ADDR":                  "",
	"REDIS_PASSWORD":              "",
	"REDIS_DB":                    0,
	"RABBITMQ_URL":                "",
	"RABBITMQ_EXCHANGE":           "crm.events",
	"XENDIT_BASE_URL":             "https://api.xendit.co",
	"XENDIT_SECRET_KEY":           "",
	"XENDIT_CALLBACK_TOKEN":       "",
	"XENDIT_SUCCESS_REDIRECT_URL": "",
	"XENDIT_FAILURE_REDIRECT_URL": "",
	"XENDIT_INVOICE_DURATION":     "72h",
	"XENDIT_TIMEOUT":              "15s",
	"GOOGLE_CLIENT_ID":            "",
	"GOOGLE_CLIENT_SECRET":        "",
	"GOOGLE_REDIRECT_URL":         "http://localhost:8080/oauth/google/callback",
	"GOOGLE_AUTH_URL":             "https://accounts.google.com/o/oauth2/v2/auth",
	"GOOGLE_TOKEN_URL":            "https://oauth2.googleapis.com/token",
	"GOOGLE_REVOKE_URL":           "https://oauth2.googleapis.com/revoke",
	"GOOGLE_USERINFO_URL":         "https://openidconnect.googleapis.com/v1/userinfo",
	"GOOGLE_CALENDAR_URL":         "https://www.googleapis.com/calendar/v3",
	"GOOGLE_TIMEOUT":              "15s",
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "json",
	"RATE_LIMIT_RPS":              10.0,
	"RATE_LIMIT_BURST":            20,
	"CRON_EXPIRE_QUOTATIONS":      "0 * * * *",
	"CRON_RECONCILE_INVOICES":     "*/15 * * * *",
	"CRON_PURGE_OUTBOX":           "30 3 * * *",
	"CRON_REFRESH_GOOGLE_TOKENS":  "*/5 * * * *",
	"CRON_PURGE_SESSIONS":         "0 4 * * *",
	"CRON_JOB_TIMEOUT":            "5m",
	"OUTBOX_POLL_INTERVAL":        "2s",
	"ENCRYPTION_KEY":              "",
}

// Load reads .env files (missing files are ignored) and then the process environment.
// Values already present in the environment win over .env entries.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Database.Name) == "" {
		problems = append(problems, "TIDB_DATABASE is required")
	}
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	} else if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		problems = append(problems, "JWT_SECRET must be at least 32 bytes in production")
	}
	if c.Auth.TokenTTL <= 0 {
		problems = append(problems, "JWT_TTL must be positive")
	}
	if c.Encryption.Key != "" {
		if _, err := crypto.NewSealer(c.Encryption.Key); err != nil {
			problems = append(problems, "ENCRYPTION_KEY: "+err.Error())
		}
	} else if c.Google.ClientID != "" {
		problems = append(problems, "ENCRYPTION_KEY is required when Google is configured")
	}
	if c.Xendit.SecretKey != "" && c.Xendit.CallbackToken == "" {
		problems = append(problems, "XENDIT_CALLBACK_TOKEN is required when XENDIT_SECRET_KEY is set")
	}
	if c.Redis.Addr == "" && (c.Xendit.SecretKey != "" || c.Google.ClientID != "") {
		problems = append(problems, "REDIS_ADDR is required when Xendit or Google is configured")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		problems = append(problems, "rate limit values must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, EnvProduction)
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
