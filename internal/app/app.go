// Package app assembles the long-lived services from configuration. Both
// the API server and giftctl build through it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LJTian/GiftNewsHub/internal/backoff"
	"github.com/LJTian/GiftNewsHub/internal/bot"
	"github.com/LJTian/GiftNewsHub/internal/collector"
	"github.com/LJTian/GiftNewsHub/internal/config"
	"github.com/LJTian/GiftNewsHub/internal/processor"
	"github.com/LJTian/GiftNewsHub/internal/publisher"
	"github.com/LJTian/GiftNewsHub/internal/scheduler"
	"github.com/LJTian/GiftNewsHub/internal/storage"
	"github.com/LJTian/GiftNewsHub/internal/telegram"
)

const fetchConcurrency = 4

type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *storage.Store
	Telegram  *telegram.Client // nil without a bot token
	Publisher *publisher.Publisher
	Scheduler *scheduler.Scheduler
	Bot       *bot.Responder // nil without a bot token
}

func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := storage.Open(cfg.DatabaseDSN, cfg.RedisAddr, logger)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Store: store}

	var delivery publisher.Delivery
	if cfg.Telegram.BotToken != "" {
		a.Telegram = telegram.New(cfg.Telegram.BotToken,
			telegram.WithBaseURL(cfg.Telegram.APIBase),
			telegram.WithTimeout(cfg.Publish.Timeout),
		)
		delivery = a.Telegram
	}

	fallback, err := backoff.New(cfg.Publish.Backoff, cfg.Publish.FallbackDelay)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.Publisher = publisher.New(store, delivery, publisher.Settings{
		ChannelID:     cfg.Telegram.ChannelID,
		Enabled:       cfg.Publish.Enabled,
		Interval:      cfg.Publish.Interval,
		BatchLimit:    cfg.Publish.BatchLimit,
		ItemDelay:     cfg.Publish.ItemDelay,
		FallbackDelay: cfg.Publish.FallbackDelay,
		Timeout:       cfg.Publish.Timeout,
		BotTimeout:    cfg.Publish.BotTimeout,
		Signature:     cfg.Publish.Signature,
		SourceLabel:   cfg.Publish.SourceLabel,
		ExcerptRunes:  cfg.Publish.ExcerptRunes,
	}, logger, publisher.WithFallbackPolicy(fallback))

	if a.Telegram != nil {
		a.Bot = bot.NewResponder(a.Telegram, store, a.Publisher, cfg.Publish.BotTimeout, logger)
	}

	coll := collector.New(
		&collector.TelegramFetcher{BaseURL: cfg.Telegram.ScrapeBase, Limit: cfg.Ingest.ScrapeLimit, Timeout: cfg.Ingest.FetchTimeout},
		&collector.FeedFetcher{Limit: cfg.Ingest.FeedLimit, SummaryRunes: cfg.Ingest.SummaryRunes, Timeout: cfg.Ingest.FetchTimeout},
		fetchConcurrency, logger,
	)
	if _, err := backoff.New(cfg.Ingest.Backoff, cfg.Ingest.RetryBase); err != nil {
		_ = store.Close()
		return nil, err
	}
	retry := func() backoff.Policy {
		p, _ := backoff.New(cfg.Ingest.Backoff, cfg.Ingest.RetryBase)
		return p
	}
	a.Scheduler, err = scheduler.New(cfg.CronSpec, coll, processor.NewProcessor(cfg.Ingest.TitleRunes), store, logger,
		scheduler.WithRetry(retry, cfg.Ingest.RetryAttempts))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

// SeedSources registers the configured sources. Existing ones are left
// untouched, so a deactivated source stays inactive.
func (a *App) SeedSources(ctx context.Context) (int, error) {
	seeds, err := storage.LoadSourceSeeds(a.Config.SourcesFile)
	if err != nil {
		return 0, err
	}
	for _, seed := range seeds {
		if _, err := a.Store.EnsureSource(ctx, seed); err != nil {
			return 0, fmt.Errorf("app: seed source %q: %w", seed.Name, err)
		}
	}
	return len(seeds), nil
}

func (a *App) Close() error {
	return a.Store.Close()
}
