package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	t.Setenv(key, "8080")
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Publish.ItemDelay != 5*time.Second {
		t.Fatalf("ItemDelay = %s, want 5s", cfg.Publish.ItemDelay)
	}
	if cfg.Publish.FallbackDelay != time.Minute {
		t.Fatalf("FallbackDelay = %s, want 1m", cfg.Publish.FallbackDelay)
	}
	if cfg.Publish.Timeout != 30*time.Second || cfg.Publish.BotTimeout != 10*time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg.Publish)
	}
	if cfg.Ingest.ScrapeLimit != 20 || cfg.Ingest.FeedLimit != 10 {
		t.Fatalf("unexpected ingest caps: %+v", cfg.Ingest)
	}
	if cfg.Ingest.Backoff != "exponential" || cfg.Ingest.RetryBase != 200*time.Millisecond || cfg.Ingest.RetryAttempts != 3 {
		t.Fatalf("unexpected ingest retry defaults: %+v", cfg.Ingest)
	}
	if cfg.Ingest.TitleRunes != 200 || cfg.Ingest.SummaryRunes != 300 || cfg.Publish.ExcerptRunes != 300 {
		t.Fatalf("unexpected truncation lengths: %+v %+v", cfg.Ingest, cfg.Publish)
	}
}

func TestLoadReadsAuthAndPorts(t *testing.T) {
	t.Setenv("APP_PORT", "1234")
	t.Setenv("APP_BASIC_USER", "user")
	t.Setenv("APP_BASIC_PASS", "pass")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("PUBLISH_INTERVAL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want %q", cfg.AppPort, "1234")
	}
	if cfg.BasicAuthUser != "user" || cfg.BasicAuthPass != "pass" {
		t.Fatalf("BasicAuthUser/Pass not loaded correctly: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.Publish.Interval != 5*time.Minute {
		t.Fatalf("Interval = %s, want 5m", cfg.Publish.Interval)
	}
}

func TestLoadYAMLFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "giftnews.yaml")
	content := []byte("publish_batch_limit: 9\npublish_signature: from-file\ntelegram_channel_id: \"@file\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TELEGRAM_CHANNEL_ID", "@env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Publish.BatchLimit != 9 || cfg.Publish.Signature != "from-file" {
		t.Fatalf("file values not applied: %+v", cfg.Publish)
	}
	if cfg.Telegram.ChannelID != "@env" {
		t.Fatalf("env should override file, got %q", cfg.Telegram.ChannelID)
	}
	if cfg.TelegramConfigured() {
		t.Fatalf("TelegramConfigured should be false without bot token")
	}
}

func TestLoadRejectsUnknownBackoff(t *testing.T) {
	t.Setenv("PUBLISH_BACKOFF", "random")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown backoff kind")
	}
}

func TestLoadIngestRetryIndependentOfPublish(t *testing.T) {
	t.Setenv("PUBLISH_BACKOFF", "exponential")
	t.Setenv("INGEST_BACKOFF", "constant")
	t.Setenv("INGEST_RETRY_BASE", "1s")
	t.Setenv("INGEST_RETRY_ATTEMPTS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Publish.Backoff != "exponential" || cfg.Ingest.Backoff != "constant" {
		t.Fatalf("backoff kinds = %q / %q", cfg.Publish.Backoff, cfg.Ingest.Backoff)
	}
	if cfg.Ingest.RetryBase != time.Second || cfg.Ingest.RetryAttempts != 5 {
		t.Fatalf("ingest retry = %+v", cfg.Ingest)
	}

	t.Setenv("INGEST_BACKOFF", "linear")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown ingest backoff")
	}
}
