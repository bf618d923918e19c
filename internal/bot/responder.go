package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/LJTian/GiftNewsHub/internal/category"
	"github.com/LJTian/GiftNewsHub/internal/publisher"
	"github.com/LJTian/GiftNewsHub/internal/storage"
	"github.com/LJTian/GiftNewsHub/internal/telegram"
)

const summaryLimit = 5

type Replier interface {
	SendText(ctx context.Context, chatID, text, parseMode string) (*telegram.Message, error)
}

type NewsReader interface {
	Query(ctx context.Context, f storage.Filter) ([]storage.News, int64, error)
	Stats(ctx context.Context) (storage.Stats, error)
}

type BatchPublisher interface {
	PublishBatch(ctx context.Context, force bool) (int, error)
}

// Responder answers bot commands arriving through the webhook.
type Responder struct {
	replier   Replier
	news      NewsReader
	publisher BatchPublisher
	timeout   time.Duration
	logger    *slog.Logger

	base context.Context
	wg   sync.WaitGroup
}

func NewResponder(replier Replier, news NewsReader, pub BatchPublisher, timeout time.Duration, logger *slog.Logger) *Responder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{replier: replier, news: news, publisher: pub, timeout: timeout, logger: logger, base: context.Background()}
}

// SetBaseContext ties background publish runs to ctx, normally the process
// lifetime, instead of the webhook request that started them.
func (r *Responder) SetBaseContext(ctx context.Context) { r.base = ctx }

// Handle replies to a command message. Non-command updates are ignored.
func (r *Responder) Handle(ctx context.Context, upd telegram.Update) error {
	if upd.Message == nil {
		return nil
	}
	cmd, ok := ParseCommand(upd.Message.Text)
	if !ok {
		return nil
	}
	chatID := fmt.Sprint(upd.Message.Chat.ID)

	if cmd == CmdPublish {
		return r.startPublish(ctx, chatID)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.reply(ctx, chatID, r.render(ctx, cmd))
}

func (r *Responder) render(ctx context.Context, cmd Command) string {
	switch cmd {
	case CmdStart:
		return startText
	case CmdHelp:
		return helpText
	case CmdNews:
		return r.summary(ctx, "")
	case CmdNFT:
		return r.summary(ctx, category.NFT)
	case CmdCrypto:
		return r.summary(ctx, category.Crypto)
	case CmdGifts:
		return r.summary(ctx, category.Gifts)
	case CmdTech:
		return r.summary(ctx, category.Tech)
	case CmdStats:
		return r.stats(ctx)
	case CmdPublish, CmdUnknown:
	}
	return "❓ Неизвестная команда. Используйте /help для списка команд."
}

func (r *Responder) summary(ctx context.Context, cat category.Category) string {
	items, _, err := r.news.Query(ctx, storage.Filter{Category: string(cat), Order: storage.OrderNewest, Limit: summaryLimit})
	if err != nil {
		r.logger.Error("bot news query failed", "err", err)
		return "❌ Ошибка получения новостей"
	}
	if len(items) == 0 {
		return "📭 Новостей пока нет"
	}

	var b strings.Builder
	b.WriteString("📰 <b>Последние новости")
	if cat != "" {
		fmt.Fprintf(&b, " (%s)", cat)
	}
	b.WriteString(":</b>\n\n")
	for i, n := range items {
		fmt.Fprintf(&b, "%d. <b>%s</b>\n", i+1, html.EscapeString(n.Title))
		fmt.Fprintf(&b, "📅 %s\n", n.PublishDate.Format("02.01 15:04"))
		fmt.Fprintf(&b, "🏷️ %s\n", n.Category)
		fmt.Fprintf(&b, "🔗 <a href=\"%s\">Читать</a>\n\n", html.EscapeString(n.Link))
	}
	return b.String()
}

func (r *Responder) stats(ctx context.Context) string {
	st, err := r.news.Stats(ctx)
	if err != nil {
		r.logger.Error("bot stats failed", "err", err)
		return "❌ Ошибка получения статистики"
	}
	var b strings.Builder
	b.WriteString("📊 <b>Статистика новостей:</b>\n\n")
	fmt.Fprintf(&b, "📰 Всего новостей: %d\n", st.Total)
	fmt.Fprintf(&b, "📤 Опубликовано: %d\n\n", st.Published)
	for _, c := range category.All() {
		if n := st.ByCategory[string(c)]; n > 0 {
			fmt.Fprintf(&b, "%s %s: %d\n", c.Glyph(), c, n)
		}
	}
	return b.String()
}

// startPublish acknowledges at once and reports the batch result when it
// finishes; a forced batch outlives the bot call timeout.
func (r *Responder) startPublish(ctx context.Context, chatID string) error {
	ackCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.reply(ackCtx, chatID, "⏳ Публикую новости в канал..."); err != nil {
		return err
	}

	bg := r.base
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		n, err := r.publisher.PublishBatch(bg, true)
		var text string
		switch {
		case errors.Is(err, publisher.ErrNotConfigured):
			text = "⚠️ Публикация в канал не настроена"
		case err != nil:
			r.logger.Error("bot publish failed", "err", err)
			text = "❌ Ошибка публикации"
		default:
			text = fmt.Sprintf("✅ Опубликовано новостей: %d", n)
		}
		replyCtx, cancel := context.WithTimeout(context.WithoutCancel(bg), r.timeout)
		defer cancel()
		if err := r.reply(replyCtx, chatID, text); err != nil {
			r.logger.Warn("bot publish report failed", "err", err)
		}
	}()
	return nil
}

// Wait blocks until background publish runs finish.
func (r *Responder) Wait() { r.wg.Wait() }

func (r *Responder) reply(ctx context.Context, chatID, text string) error {
	if _, err := r.replier.SendText(ctx, chatID, text, telegram.ParseModeHTML); err != nil {
		return fmt.Errorf("bot: reply to %s: %w", chatID, err)
	}
	return nil
}

const startText = `🎁 <b>Добро пожаловать в Gift Propaganda News Bot!</b>

Я помогу вам быть в курсе последних новостей в мире:
• 🎁 Подарки и акции
• 💰 Криптовалюты
• 🖼️ NFT и цифровое искусство
• 💻 Технологии

📰 <b>Команды:</b>
/news - Последние новости
/nft - Новости NFT
/crypto - Крипто новости
/gifts - Подарки и акции
/tech - Технологии
/stats - Статистика
/publish - Опубликовать в канал
/help - Помощь`

const helpText = `📚 <b>Справка по командам:</b>

/news - Показать последние 5 новостей
/nft - Новости NFT и цифрового искусства
/crypto - Новости криптовалют и блокчейна
/gifts - Подарки, акции и промокоды
/tech - Новости технологий и IT
/stats - Статистика новостей
/publish - Опубликовать новости в канал
/help - Показать эту справку`
