// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
)

// Config holds all configuration for the application
type Config struct {
	Port     string
	LogLevel string
	Database DatabaseConfig
	Queue    QueueConfig
	Redis    RedisConfig
	Email    EmailConfig
	IMAP     IMAPConfig
	Drafts   DraftsConfig
}

type DatabaseConfig struct {
	URL      string
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
}

// DSN returns DATABASE_URL when set, otherwise a postgres URL built from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

type QueueConfig struct {
	// AMQPURL selects the RabbitMQ queue; empty keeps jobs in process.
	AMQPURL    string
	MaxRetries int
}

type RedisConfig struct {
	// URL selects Redis locks; empty falls back to PostgreSQL advisory locks.
	URL     string
	LockTTL time.Duration
}

type EmailConfig struct {
	Transport    string // smtp, ses or file
	From         string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPass     string
	SMTPSecure   bool
	SESRegion    string
	SESAccessKey string
	SESSecretKey string
	OutboxDir    string
}

type IMAPConfig struct {
	Enabled              bool
	Host                 string
	Port                 string
	User                 string
	Pass                 string
	TLS                  bool
	Mailbox              string
	PollInterval         time.Duration
	ConnTimeout          time.Duration
	MaxConsecutiveErrors int
}

type DraftsConfig struct {
	Provider       string // template or openai
	OpenAIKey      string
	OpenAIModel    string
	OpenAIBaseURL  string
	RequestDelay   time.Duration
	BootstrapCount int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file found, relying on OS environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Queue: QueueConfig{
			AMQPURL:    os.Getenv("AMQP_URL"),
			MaxRetries: envInt("QUEUE_MAX_RETRIES", 3),
		},
		Redis: RedisConfig{
			URL:     os.Getenv("REDIS_URL"),
			LockTTL: envDuration("CAMPAIGN_LOCK_TTL", 30*time.Minute),
		},
		Email: EmailConfig{
			Transport:    strings.ToLower(getEnv("EMAIL_TRANSPORT", "file")),
			From:         getEnv("EMAIL_FROM", "noreply@outreach.local"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     os.Getenv("SMTP_USER"),
			SMTPPass:     os.Getenv("SMTP_PASS"),
			SMTPSecure:   envBool("SMTP_SECURE", false),
			SESRegion:    getEnv("SES_REGION", "us-east-1"),
			SESAccessKey: os.Getenv("SES_ACCESS_KEY"),
			SESSecretKey: os.Getenv("SES_SECRET_KEY"),
			OutboxDir:    getEnv("EMAIL_OUTBOX_DIR", "outbox"),
		},
		IMAP: IMAPConfig{
			Host:                 os.Getenv("IMAP_HOST"),
			Port:                 getEnv("IMAP_PORT", "993"),
			User:                 os.Getenv("IMAP_USER"),
			Pass:                 os.Getenv("IMAP_PASS"),
			TLS:                  envBool("IMAP_TLS", true),
			Mailbox:              getEnv("IMAP_MAILBOX", "INBOX"),
			PollInterval:         envDuration("IMAP_POLL_INTERVAL", 5*time.Minute),
			ConnTimeout:          envDuration("IMAP_CONN_TIMEOUT", 30*time.Second),
			MaxConsecutiveErrors: envInt("IMAP_MAX_CONSECUTIVE_ERRORS", 5),
		},
		Drafts: DraftsConfig{
			Provider:       strings.ToLower(getEnv("AI_PROVIDER", "template")),
			OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			RequestDelay:   envDuration("AI_REQUEST_DELAY", 500*time.Millisecond),
			BootstrapCount: envInt("DRAFT_BOOTSTRAP_COUNT", 5),
		},
	}
	cfg.IMAP.Enabled = envBool("IMAP_ENABLED", cfg.IMAP.Host != "")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Email.Transport {
	case "file", "smtp", "ses":
	default:
		return fmt.Errorf("invalid EMAIL_TRANSPORT %q (want smtp, ses or file)", c.Email.Transport)
	}
	if c.Email.Transport == "smtp" && c.Email.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when EMAIL_TRANSPORT=smtp")
	}
	if c.IMAP.Enabled && (c.IMAP.Host == "" || c.IMAP.User == "") {
		return fmt.Errorf("IMAP_HOST and IMAP_USER are required when the inbox poller is enabled")
	}
	if c.IMAP.MaxConsecutiveErrors < 1 {
		return fmt.Errorf("IMAP_MAX_CONSECUTIVE_ERRORS must be at least 1")
	}
	switch c.Drafts.Provider {
	case "template", "openai":
	default:
		return fmt.Errorf("invalid AI_PROVIDER %q (want template or openai)", c.Drafts.Provider)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid boolean in environment, using default", "key", key, "value", v)
		return fallback
	}
	return b
}

// envDuration accepts Go duration strings ("5m") or bare milliseconds ("300000").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}
