package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort  string
	LogLevel string

	DatabaseDSN string
	RedisAddr   string

	// Site-wide basic auth, disabled when either value is empty.
	BasicAuthUser string
	BasicAuthPass string
	// Admin routes require a bearer token signed with this secret.
	JWTSecret   string
	CORSOrigins []string

	CronSpec    string
	SourcesFile string

	Telegram TelegramConfig
	Publish  PublishConfig
	Ingest   IngestConfig
}

type TelegramConfig struct {
	BotToken   string
	ChannelID  string
	WebhookURL string
	APIBase    string
	ScrapeBase string
}

type PublishConfig struct {
	Enabled       bool
	Interval      time.Duration
	BatchLimit    int
	ItemDelay     time.Duration
	FallbackDelay time.Duration
	Timeout       time.Duration
	BotTimeout    time.Duration
	Signature     string
	SourceLabel   string
	ExcerptRunes  int
	// constant | exponential
	Backoff string
}

type IngestConfig struct {
	ScrapeLimit  int
	FeedLimit    int
	TitleRunes   int
	SummaryRunes int
	FetchTimeout time.Duration

	// Persistence retry within a cycle: constant | exponential
	Backoff       string
	RetryBase     time.Duration
	RetryAttempts int
}

// TelegramConfigured reports whether the delivery path has credentials and a target.
func (c *Config) TelegramConfigured() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChannelID != ""
}

var defaults = map[string]any{
	"app_port":     "9000",
	"log_level":    "info",
	"database_dsn": "host=localhost user=giftnews password=giftnews dbname=giftnews port=5432 sslmode=disable TimeZone=UTC",
	"redis_addr":   "localhost:6379",
	"cron_spec":    "*/30 * * * *",

	"telegram_api_base":    "https://api.telegram.org",
	"telegram_scrape_base": "https://t.me/s/",

	"publish_enabled":        true,
	"publish_interval":       "30m",
	"publish_batch_limit":    5,
	"publish_item_delay":     "5s",
	"publish_fallback_delay": "60s",
	"publish_timeout":        "30s",
	"bot_timeout":            "10s",
	"publish_signature":      "🎁 Gift Propaganda News",
	"publish_source_label":   "Источник",
	"publish_excerpt_runes":  300,
	"publish_backoff":        "constant",

	"ingest_scrape_limit":  20,
	"ingest_feed_limit":    10,
	"ingest_title_runes":   200,
	"ingest_summary_runes": 300,
	"fetch_timeout":        "15s",

	"ingest_backoff":        "exponential",
	"ingest_retry_base":     "200ms",
	"ingest_retry_attempts": 3,
}

// Load reads defaults, then an optional YAML file (CONFIG_FILE or ./config.yaml),
// then environment variables. Later layers win.
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// optional keys
	for _, k := range []string{
		"app_basic_user", "app_basic_pass", "jwt_secret", "cors_origins", "sources_file",
		"telegram_bot_token", "telegram_channel_id", "telegram_webhook_url",
	} {
		_ = v.BindEnv(k)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read config.yaml: %w", err)
			}
		}
	}

	cfg := &Config{
		AppPort:       v.GetString("app_port"),
		LogLevel:      v.GetString("log_level"),
		DatabaseDSN:   v.GetString("database_dsn"),
		RedisAddr:     v.GetString("redis_addr"),
		BasicAuthUser: v.GetString("app_basic_user"),
		BasicAuthPass: v.GetString("app_basic_pass"),
		JWTSecret:     v.GetString("jwt_secret"),
		CORSOrigins:   splitList(v.GetString("cors_origins")),
		CronSpec:      v.GetString("cron_spec"),
		SourcesFile:   v.GetString("sources_file"),
		Telegram: TelegramConfig{
			BotToken:   v.GetString("telegram_bot_token"),
			ChannelID:  v.GetString("telegram_channel_id"),
			WebhookURL: strings.TrimRight(v.GetString("telegram_webhook_url"), "/"),
			APIBase:    strings.TrimRight(v.GetString("telegram_api_base"), "/"),
			ScrapeBase: v.GetString("telegram_scrape_base"),
		},
		Publish: PublishConfig{
			Enabled:       v.GetBool("publish_enabled"),
			Interval:      v.GetDuration("publish_interval"),
			BatchLimit:    v.GetInt("publish_batch_limit"),
			ItemDelay:     v.GetDuration("publish_item_delay"),
			FallbackDelay: v.GetDuration("publish_fallback_delay"),
			Timeout:       v.GetDuration("publish_timeout"),
			BotTimeout:    v.GetDuration("bot_timeout"),
			Signature:     v.GetString("publish_signature"),
			SourceLabel:   v.GetString("publish_source_label"),
			ExcerptRunes:  v.GetInt("publish_excerpt_runes"),
			Backoff:       strings.ToLower(v.GetString("publish_backoff")),
		},
		Ingest: IngestConfig{
			ScrapeLimit:  v.GetInt("ingest_scrape_limit"),
			FeedLimit:    v.GetInt("ingest_feed_limit"),
			TitleRunes:   v.GetInt("ingest_title_runes"),
			SummaryRunes: v.GetInt("ingest_summary_runes"),
			FetchTimeout: v.GetDuration("fetch_timeout"),

			Backoff:       strings.ToLower(v.GetString("ingest_backoff")),
			RetryBase:     v.GetDuration("ingest_retry_base"),
			RetryAttempts: v.GetInt("ingest_retry_attempts"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Publish.Interval <= 0 {
		return fmt.Errorf("config: publish_interval must be positive, got %s", c.Publish.Interval)
	}
	if c.Publish.BatchLimit <= 0 {
		return fmt.Errorf("config: publish_batch_limit must be positive, got %d", c.Publish.BatchLimit)
	}
	for key, kind := range map[string]string{"publish_backoff": c.Publish.Backoff, "ingest_backoff": c.Ingest.Backoff} {
		switch kind {
		case "constant", "exponential":
		default:
			return fmt.Errorf("config: unknown %s %q", key, kind)
		}
	}
	if c.Ingest.RetryAttempts <= 0 {
		return fmt.Errorf("config: ingest_retry_attempts must be positive, got %d", c.Ingest.RetryAttempts)
	}
	if c.Ingest.RetryBase <= 0 {
		return fmt.Errorf("config: ingest_retry_base must be positive, got %s", c.Ingest.RetryBase)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
