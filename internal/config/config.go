// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// TrackingFile points at the YAML universe; empty uses the built-in universe.
	TrackingFile string
	Tracking     *Tracking

	Prices       PriceConfig
	Disclosures  DisclosureConfig
	Schedules    ScheduleConfig
	Notification NotificationConfig
	Backup       BackupConfig
}

// PriceConfig selects and tunes the quote provider.
type PriceConfig struct {
	Provider     string // alphavantage or yahoo
	APIKey       string
	BaseURL      string
	CallInterval time.Duration // minimum spacing between provider calls
	CacheTTL     time.Duration
}

// DisclosureConfig describes the public disclosure feed.
type DisclosureConfig struct {
	FeedURL string
	Layout  string // house or senate field mapping
	Timeout time.Duration
}

// ScheduleConfig holds the cron expressions (with seconds) for background work.
type ScheduleConfig struct {
	Cycle        string
	Refresh      string
	Backup       string
	CacheCleanup string
}

// NotificationConfig enables the dispatcher channels.
type NotificationConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	EmailTo      []string

	SMSWebhookURL string
	SMSAccountID  string
	SMSAuthToken  string
	SMSFrom       string
	SMSTo         string

	KafkaBrokers string
	KafkaTopic   string
}

// BackupConfig holds off-site backup settings for an S3-compatible bucket (R2 by default).
type BackupConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	RetentionDays   int
}

// EmailEnabled reports whether enough SMTP settings are present to send mail.
func (n NotificationConfig) EmailEnabled() bool {
	return n.SMTPHost != "" && n.EmailFrom != "" && len(n.EmailTo) > 0
}

// SMSEnabled reports whether the SMS webhook is configured.
func (n NotificationConfig) SMSEnabled() bool {
	return n.SMSWebhookURL != "" && n.SMSTo != ""
}

// KafkaEnabled reports whether a Kafka topic is configured.
func (n NotificationConfig) KafkaEnabled() bool {
	return n.KafkaBrokers != "" && n.KafkaTopic != ""
}

// Enabled reports whether remote uploads are configured.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != "" && b.AccessKeyID != "" && b.SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CAPITOL_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		Port:         getEnvAsInt("GO_PORT", 8001),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		TrackingFile: getEnv("TRACKING_CONFIG", ""),
		Prices: PriceConfig{
			Provider:     strings.ToLower(getEnv("PRICE_PROVIDER", "alphavantage")),
			APIKey:       getEnv("ALPHAVANTAGE_API_KEY", ""),
			BaseURL:      getEnv("ALPHAVANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
			CallInterval: getEnvAsDuration("PRICE_CALL_INTERVAL", 12*time.Second), // free tier: 5 calls/minute
			CacheTTL:     getEnvAsDuration("PRICE_CACHE_TTL", 10*time.Minute),
		},
		Disclosures: DisclosureConfig{
			FeedURL: getEnv("DISCLOSURE_FEED_URL", "https://house-stock-watcher-data.s3-us-west-2.amazonaws.com/data/all_transactions.json"),
			Layout:  strings.ToLower(getEnv("DISCLOSURE_FEED_LAYOUT", "house")),
			Timeout: getEnvAsDuration("DISCLOSURE_FEED_TIMEOUT", 60*time.Second),
		},
		Schedules: ScheduleConfig{
			Cycle:        getEnv("CYCLE_SCHEDULE", "0 0 */2 * * *"),
			Refresh:      getEnv("REFRESH_SCHEDULE", "0 30 * * * *"),
			Backup:       getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			CacheCleanup: getEnv("CACHE_CLEANUP_SCHEDULE", "0 15 4 * * *"),
		},
		Notification: NotificationConfig{
			SMTPHost:      getEnv("SMTP_HOST", ""),
			SMTPPort:      getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername:  getEnv("SMTP_USERNAME", ""),
			SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
			EmailFrom:     getEnv("EMAIL_FROM", ""),
			EmailTo:       getEnvAsList("EMAIL_TO"),
			SMSWebhookURL: getEnv("SMS_WEBHOOK_URL", ""),
			SMSAccountID:  getEnv("SMS_ACCOUNT_ID", ""),
			SMSAuthToken:  getEnv("SMS_AUTH_TOKEN", ""),
			SMSFrom:       getEnv("SMS_FROM", ""),
			SMSTo:         getEnv("SMS_TO", ""),
			KafkaBrokers:  getEnv("KAFKA_BROKERS", ""),
			KafkaTopic:    getEnv("KAFKA_TOPIC", ""),
		},
		Backup: BackupConfig{
			Bucket:          getEnv("R2_BUCKET", ""),
			Endpoint:        getEnv("R2_ENDPOINT", ""),
			Region:          getEnv("R2_REGION", "auto"),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("R2_PREFIX", "capitol"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	tracking, err := LoadTracking(cfg.TrackingFile)
	if err != nil {
		return nil, err
	}
	cfg.Tracking = tracking

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.Prices.Provider {
	case "alphavantage", "yahoo":
	default:
		return fmt.Errorf("unknown price provider: %q", c.Prices.Provider)
	}
	if c.Prices.CallInterval < 0 {
		return fmt.Errorf("price call interval must not be negative")
	}

	switch c.Disclosures.Layout {
	case "house", "senate":
	default:
		return fmt.Errorf("unknown disclosure feed layout: %q", c.Disclosures.Layout)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"CYCLE_SCHEDULE":         c.Schedules.Cycle,
		"REFRESH_SCHEDULE":       c.Schedules.Refresh,
		"BACKUP_SCHEDULE":        c.Schedules.Backup,
		"CACHE_CLEANUP_SCHEDULE": c.Schedules.CacheCleanup,
	} {
		if spec == "" {
			continue // disabled
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, spec, err)
		}
	}

	if c.Tracking == nil {
		return fmt.Errorf("tracking universe not loaded")
	}
	return c.Tracking.Validate()
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
