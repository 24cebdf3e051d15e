package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL string
	LogLevel    string
	Environment string
	HTTPAddr    string
	Timezone    string

	CronSecret  string
	AdminAPIKey string

	LedgerBackend string // postgres or redis
	RedisAddr     string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	TelegramToken   string
	AdminTelegramID int64

	PortalBaseURL       string
	DispatchTimeout     time.Duration
	StartupCatchupDelay time.Duration

	CronSpecDaily          string // w1, w2, w6, w7
	CronSpecScheduled      string // w3, w4, w5
	CronSpecThreeHour      string // w6 three-hour SMS track
	CronSpecTenMinute      string // w8
	CronSpecSMOEnforcement string // Thursday night attendance check
}

const (
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getenv("ENVIRONMENT", "development"))
	cfg.HTTPAddr = getenv("HTTP_ADDR", ":8080")
	cfg.Timezone = getenv("TIMEZONE", "America/Los_Angeles")
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.CronSecret = os.Getenv("CRON_SECRET")
	cfg.AdminAPIKey = os.Getenv("ADMIN_API_KEY")

	cfg.LedgerBackend = strings.ToLower(getenv("LEDGER_BACKEND", LedgerPostgres))
	switch cfg.LedgerBackend {
	case LedgerPostgres:
	case LedgerRedis:
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is not set but LEDGER_BACKEND is redis")
		}
	default:
		return nil, fmt.Errorf("invalid LEDGER_BACKEND %q", cfg.LedgerBackend)
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPPort, err = strconv.Atoi(getenv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	cfg.SMTPUser = os.Getenv("SMTP_USER")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.EmailFrom = os.Getenv("EMAIL_FROM")

	cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.TwilioFromNumber = os.Getenv("TWILIO_FROM_NUMBER")

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.PortalBaseURL = os.Getenv("PORTAL_BASE_URL")

	cfg.DispatchTimeout, err = time.ParseDuration(getenv("DISPATCH_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DISPATCH_TIMEOUT: %w", err)
	}
	cfg.StartupCatchupDelay, err = time.ParseDuration(getenv("STARTUP_CATCHUP_DELAY", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STARTUP_CATCHUP_DELAY: %w", err)
	}

	cfg.CronSpecDaily = getenv("CRON_SPEC_DAILY", "0 7 * * *")                     // 7 AM daily
	cfg.CronSpecScheduled = getenv("CRON_SPEC_SCHEDULED", "0 9 * * *")             // 9 AM daily
	cfg.CronSpecThreeHour = getenv("CRON_SPEC_THREE_HOUR", "0 */3 * * *")          // every 3 hours
	cfg.CronSpecTenMinute = getenv("CRON_SPEC_TEN_MINUTE", "*/10 * * * *")         // every 10 minutes
	cfg.CronSpecSMOEnforcement = getenv("CRON_SPEC_SMO_ENFORCEMENT", "5 23 * * 4") // Thursday 23:05

	return cfg, nil
}

// EmailConfigured reports whether SMTP credentials are present.
func (c *AppConfig) EmailConfigured() bool {
	return c.SMTPHost != "" && c.EmailFrom != ""
}

// SMSConfigured reports whether Twilio credentials are present.
func (c *AppConfig) SMSConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// TelegramConfigured reports whether the admin bot can run.
func (c *AppConfig) TelegramConfigured() bool {
	return c.TelegramToken != "" && c.AdminTelegramID != 0
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
