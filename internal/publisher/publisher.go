package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/LJTian/GiftNewsHub/internal/backoff"
	"github.com/LJTian/GiftNewsHub/internal/collector"
	"github.com/LJTian/GiftNewsHub/internal/storage"
	"github.com/LJTian/GiftNewsHub/internal/telegram"
)

var (
	ErrNotFound      = errors.New("publisher: news item not found")
	ErrInvalidState  = errors.New("publisher: news item is in the wrong publication state")
	ErrNotConfigured = errors.New("publisher: telegram delivery is not configured")
)

// Store is the part of the item store the publisher reads and writes.
type Store interface {
	GetNews(ctx context.Context, id uint) (*storage.News, error)
	ListUnpublished(ctx context.Context, limit int) ([]storage.News, error)
	UpdatePublicationState(ctx context.Context, id uint, st storage.PublicationState) error
	Stats(ctx context.Context) (storage.Stats, error)
}

// Delivery is the part of the Bot API the publisher calls.
type Delivery interface {
	SendText(ctx context.Context, chatID, text, parseMode string) (*telegram.Message, error)
	SendPhoto(ctx context.Context, chatID, photoURL, caption string) (*telegram.Message, error)
	SendVideo(ctx context.Context, chatID, videoURL, caption string) (*telegram.Message, error)
	DeleteMessage(ctx context.Context, chatID string, messageID int64) error
	GetChat(ctx context.Context, chatID string) (*telegram.ChatInfo, error)
	GetMe(ctx context.Context) (*telegram.User, error)
}

var _ Delivery = (*telegram.Client)(nil)

type Settings struct {
	ChannelID     string
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
}

// Publisher moves unpublished items to the channel one at a time.
type Publisher struct {
	store    Store
	delivery Delivery
	settings Settings

	enabled  atomic.Bool
	locks    *keyedMutex
	sleeper  backoff.Sleeper
	fallback backoff.Policy
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Publisher)

func WithSleeper(s backoff.Sleeper) Option {
	return func(p *Publisher) { p.sleeper = s }
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// WithFallbackPolicy sets the wait after a failed pass of RunForever.
func WithFallbackPolicy(b backoff.Policy) Option {
	return func(p *Publisher) { p.fallback = b }
}

// New builds a publisher. A nil delivery leaves it unconfigured: every
// delivery operation then fails with ErrNotConfigured.
func New(store Store, delivery Delivery, settings Settings, logger *slog.Logger, opts ...Option) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Interval <= 0 {
		settings.Interval = 30 * time.Minute
	}
	if settings.BatchLimit <= 0 {
		settings.BatchLimit = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.BotTimeout <= 0 {
		settings.BotTimeout = 10 * time.Second
	}
	if settings.FallbackDelay <= 0 {
		settings.FallbackDelay = time.Minute
	}
	p := &Publisher{
		store:    store,
		delivery: delivery,
		settings: settings,
		locks:    newKeyedMutex(),
		sleeper:  backoff.RealSleeper{},
		now:      time.Now,
		logger:   logger,
	}
	for _, o := range opts {
		o(p)
	}
	if p.fallback == nil {
		p.fallback = backoff.Constant(settings.FallbackDelay)
	}
	p.enabled.Store(settings.Enabled)
	return p
}

func (p *Publisher) Configured() bool {
	return p.delivery != nil && p.settings.ChannelID != ""
}

func (p *Publisher) Enabled() bool { return p.enabled.Load() }

func (p *Publisher) SetEnabled(v bool) {
	p.enabled.Store(v)
	p.logger.Info("auto publish toggled", "enabled", v)
}

func (p *Publisher) Settings() Settings { return p.settings }

// PublishBatch delivers up to BatchLimit unpublished items, newest first,
// and returns how many were published. Per-item failures are logged and
// leave the item for the next pass. When disabled it does nothing unless
// force is set. Cancelling ctx stops the batch between items.
func (p *Publisher) PublishBatch(ctx context.Context, force bool) (int, error) {
	if !p.Configured() {
		return 0, ErrNotConfigured
	}
	if !p.Enabled() && !force {
		return 0, nil
	}

	items, err := p.store.ListUnpublished(ctx, p.settings.BatchLimit)
	if err != nil {
		return 0, fmt.Errorf("publisher: select unpublished: %w", err)
	}

	published := 0
	for i := range items {
		if i > 0 {
			if err := p.sleeper.Sleep(ctx, p.settings.ItemDelay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		id := items[i].ID
		if _, err := p.publish(ctx, id); err != nil {
			p.logger.Warn("publish item failed", "id", id, "err", err)
			continue
		}
		published++
	}

	if published > 0 || len(items) > 0 {
		p.logger.Info("publish batch done", "selected", len(items), "published", published, "force", force)
	}
	return published, nil
}

// PublishOne delivers a single item regardless of the enabled flag.
// An already published item is returned with ErrInvalidState.
func (p *Publisher) PublishOne(ctx context.Context, id uint) (*storage.News, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}
	return p.publish(ctx, id)
}

func (p *Publisher) publish(ctx context.Context, id uint) (*storage.News, error) {
	unlock := p.locks.Lock(id)
	defer unlock()

	item, err := p.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Published {
		return item, ErrInvalidState
	}

	callCtx, cancel := context.WithTimeout(ctx, p.settings.Timeout)
	msg, err := p.deliver(callCtx, item)
	cancel()
	if err != nil {
		return item, fmt.Errorf("publisher: deliver %d: %w", id, err)
	}

	// The message is out; record it even if the caller is shutting down.
	at := p.now().UTC()
	if err := p.store.UpdatePublicationState(context.WithoutCancel(ctx), id, storage.PublishedState(at, msg.MessageID)); err != nil {
		p.logger.Error("record publication failed", "id", id, "message_id", msg.MessageID, "err", err)
		return item, fmt.Errorf("publisher: record publication %d: %w", id, err)
	}

	item.Published = true
	item.PublishedAt = &at
	mid := msg.MessageID
	item.ExternalMessageID = &mid
	p.logger.Info("news published", "id", id, "message_id", mid)
	return item, nil
}

func (p *Publisher) deliver(ctx context.Context, item *storage.News) (*telegram.Message, error) {
	text := FormatPost(item, p.settings)
	media, ok := ResolveMedia(item)
	if ok && len([]rune(text)) > captionLimit {
		// too long for a caption
		ok = false
	}
	if !ok {
		return p.delivery.SendText(ctx, p.settings.ChannelID, text, telegram.ParseModeHTML)
	}
	switch media.Type {
	case collector.MediaPhoto:
		return p.delivery.SendPhoto(ctx, p.settings.ChannelID, media.URL, text)
	case collector.MediaVideo:
		return p.delivery.SendVideo(ctx, p.settings.ChannelID, media.URL, text)
	}
	return p.delivery.SendText(ctx, p.settings.ChannelID, text, telegram.ParseModeHTML)
}

// Unpublish deletes the channel message and clears the publication fields.
// If the delete call fails the item stays published.
func (p *Publisher) Unpublish(ctx context.Context, id uint) (*storage.News, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	unlock := p.locks.Lock(id)
	defer unlock()

	item, err := p.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.Published || item.ExternalMessageID == nil {
		return item, ErrInvalidState
	}

	callCtx, cancel := context.WithTimeout(ctx, p.settings.Timeout)
	err = p.delivery.DeleteMessage(callCtx, p.settings.ChannelID, *item.ExternalMessageID)
	cancel()
	if err != nil {
		return item, fmt.Errorf("publisher: delete message %d: %w", *item.ExternalMessageID, err)
	}

	if err := p.store.UpdatePublicationState(context.WithoutCancel(ctx), id, storage.Unpublished(*item.ExternalMessageID)); err != nil {
		return item, fmt.Errorf("publisher: clear publication %d: %w", id, err)
	}
	p.logger.Info("news unpublished", "id", id, "message_id", *item.ExternalMessageID)

	item.Published = false
	item.PublishedAt = nil
	item.ExternalMessageID = nil
	return item, nil
}

func (p *Publisher) load(ctx context.Context, id uint) (*storage.News, error) {
	item, err := p.store.GetNews(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("publisher: load %d: %w", id, err)
	}
	return item, nil
}

// RunForever runs PublishBatch every Interval until ctx is done. A failed
// or panicking pass is logged and followed by the fallback wait instead.
func (p *Publisher) RunForever(ctx context.Context) {
	if !p.Configured() {
		p.logger.Warn("publish loop not started", "err", ErrNotConfigured)
		return
	}
	p.logger.Info("publish loop started", "interval", p.settings.Interval, "limit", p.settings.BatchLimit)
	p.fallback.Reset()

	for ctx.Err() == nil {
		wait := p.settings.Interval
		if p.Enabled() {
			if _, err := p.safeBatch(ctx); err != nil {
				wait = p.fallback.NextBackOff()
				if wait < 0 {
					wait = p.settings.FallbackDelay
				}
				p.logger.Error("publish pass failed", "err", err, "retry_in", wait)
			} else {
				p.fallback.Reset()
			}
		}
		if err := p.sleeper.Sleep(ctx, wait); err != nil {
			break
		}
	}
	p.logger.Info("publish loop stopped")
}

func (p *Publisher) safeBatch(ctx context.Context) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publisher: panic in batch: %v", r)
		}
	}()
	return p.PublishBatch(ctx, false)
}

type StatusSettings struct {
	Interval   string `json:"interval"`
	BatchLimit int    `json:"batchLimit"`
	ItemDelay  string `json:"itemDelay"`
	Signature  string `json:"signature"`
}

type Status struct {
	Enabled    bool           `json:"enabled"`
	Configured bool           `json:"configured"`
	ChannelID  string         `json:"channelId"`
	Stats      storage.Stats  `json:"stats"`
	Settings   StatusSettings `json:"settings"`
}

func (p *Publisher) Status(ctx context.Context) (Status, error) {
	st, err := p.store.Stats(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("publisher: stats: %w", err)
	}
	return Status{
		Enabled:    p.Enabled(),
		Configured: p.Configured(),
		ChannelID:  p.settings.ChannelID,
		Stats:      st,
		Settings: StatusSettings{
			Interval:   p.settings.Interval.String(),
			BatchLimit: p.settings.BatchLimit,
			ItemDelay:  p.settings.ItemDelay.String(),
			Signature:  p.settings.Signature,
		},
	}, nil
}

func (p *Publisher) ChannelInfo(ctx context.Context) (*telegram.ChatInfo, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, p.settings.Timeout)
	defer cancel()
	return p.delivery.GetChat(ctx, p.settings.ChannelID)
}

func (p *Publisher) BotInfo(ctx context.Context) (*telegram.User, error) {
	if p.delivery == nil {
		return nil, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, p.settings.BotTimeout)
	defer cancel()
	return p.delivery.GetMe(ctx)
}
