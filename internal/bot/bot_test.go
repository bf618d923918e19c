package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/GiftNewsHub/internal/publisher"
	"github.com/LJTian/GiftNewsHub/internal/storage"
	"github.com/LJTian/GiftNewsHub/internal/storage/storagetest"
	"github.com/LJTian/GiftNewsHub/internal/telegram"
)

type reply struct {
	chatID string
	text   string
}

type fakeReplier struct {
	mu      sync.Mutex
	replies []reply
}

func (f *fakeReplier) SendText(_ context.Context, chatID, text, _ string) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply{chatID: chatID, text: text})
	return &telegram.Message{MessageID: int64(len(f.replies))}, nil
}

func (f *fakeReplier) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.replies))
	for _, r := range f.replies {
		out = append(out, r.text)
	}
	return out
}

type fakeBatch struct {
	n     int
	err   error
	force bool
}

func (f *fakeBatch) PublishBatch(_ context.Context, force bool) (int, error) {
	f.force = force
	return f.n, f.err
}

func update(text string) telegram.Update {
	return telegram.Update{UpdateID: 1, Message: &telegram.Message{
		MessageID: 7,
		Chat:      telegram.Chat{ID: 42},
		Text:      text,
	}}
}

func newResponder(t *testing.T, pub BatchPublisher) (*Responder, *fakeReplier, *storage.Store) {
	t.Helper()
	store := storagetest.New(t)
	rep := &fakeReplier{}
	r := NewResponder(rep, store, pub, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return r, rep, store
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text   string
		want   Command
		wantOK bool
	}{
		{"/start", CmdStart, true},
		{"/news@GiftNewsBot", CmdNews, true},
		{"/NFT extra args", CmdNFT, true},
		{"  /stats  ", CmdStats, true},
		{"/unknown", CmdUnknown, true},
		{"hello /news", CmdUnknown, false},
		{"", CmdUnknown, false},
	}
	for _, tc := range cases {
		got, ok := ParseCommand(tc.text)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("ParseCommand(%q) = (%v, %v), want (%v, %v)", tc.text, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestHandleStaticReplies(t *testing.T) {
	r, rep, _ := newResponder(t, &fakeBatch{})
	ctx := context.Background()

	for _, text := range []string{"/start", "/help", "/wat", "not a command"} {
		if err := r.Handle(ctx, update(text)); err != nil {
			t.Fatalf("Handle(%q): %v", text, err)
		}
	}
	got := rep.texts()
	if len(got) != 3 {
		t.Fatalf("replies = %d, want 3 (plain text ignored)", len(got))
	}
	if !strings.Contains(got[0], "Добро пожаловать") || !strings.Contains(got[1], "Справка") {
		t.Fatalf("unexpected start/help texts: %q", got[:2])
	}
	if !strings.HasPrefix(got[2], "❓ Неизвестная команда") {
		t.Fatalf("unknown command reply = %q", got[2])
	}
	if rep.replies[0].chatID != "42" {
		t.Fatalf("reply chat = %q, want 42", rep.replies[0].chatID)
	}
}

func TestHandleNewsSummaryByCategory(t *testing.T) {
	r, rep, store := newResponder(t, &fakeBatch{})
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, it := range []struct{ title, cat string }{
		{"Old NFT drop", "nft"},
		{"BTC <rally>", "crypto"},
		{"New NFT drop", "nft"},
	} {
		n := &storage.News{Title: it.title, Category: it.cat, Link: "https://t.me/x/1", PublishDate: base.Add(time.Duration(i) * time.Hour)}
		if _, err := store.InsertIfAbsent(ctx, n); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	if err := r.Handle(ctx, update("/nft")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := r.Handle(ctx, update("/news")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := r.Handle(ctx, update("/tech")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got := rep.texts()

	nft := got[0]
	if !strings.HasPrefix(nft, "📰 <b>Последние новости (nft):</b>") {
		t.Fatalf("nft header = %q", nft)
	}
	if strings.Index(nft, "New NFT drop") > strings.Index(nft, "Old NFT drop") || strings.Contains(nft, "BTC") {
		t.Fatalf("nft summary should list only nft items newest first: %q", nft)
	}
	if !strings.Contains(got[1], "BTC &lt;rally&gt;") {
		t.Fatalf("titles must be escaped: %q", got[1])
	}
	if got[2] != "📭 Новостей пока нет" {
		t.Fatalf("empty category reply = %q", got[2])
	}
}

func TestHandleStats(t *testing.T) {
	r, rep, store := newResponder(t, &fakeBatch{})
	ctx := context.Background()
	for _, n := range []*storage.News{
		{Title: "a", Category: "nft", PublishDate: time.Now()},
		{Title: "b", Category: "nft", PublishDate: time.Now()},
		{Title: "c", Category: "gifts", PublishDate: time.Now()},
	} {
		if _, err := store.InsertIfAbsent(ctx, n); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := r.Handle(ctx, update("/stats")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	text := rep.texts()[0]
	for _, want := range []string{"Всего новостей: 3", "nft: 2", "gifts: 1"} {
		if !strings.Contains(text, want) {
			t.Fatalf("stats reply missing %q: %q", want, text)
		}
	}
	if strings.Contains(text, "tech:") {
		t.Fatalf("empty categories should be omitted: %q", text)
	}
}

func TestHandlePublishForcesBatch(t *testing.T) {
	pub := &fakeBatch{n: 3}
	r, rep, _ := newResponder(t, pub)
	if err := r.Handle(context.Background(), update("/publish")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	r.Wait()

	if !pub.force {
		t.Fatalf("bot publish must force the batch")
	}
	got := rep.texts()
	if len(got) != 2 || got[1] != "✅ Опубликовано новостей: 3" {
		t.Fatalf("replies = %q", got)
	}
}

func TestHandlePublishNotConfigured(t *testing.T) {
	pub := &fakeBatch{err: publisher.ErrNotConfigured}
	r, rep, _ := newResponder(t, pub)
	if err := r.Handle(context.Background(), update("/publish")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	r.Wait()
	got := rep.texts()
	if got[len(got)-1] != "⚠️ Публикация в канал не настроена" {
		t.Fatalf("last reply = %q", got[len(got)-1])
	}

	pub.err = errors.New("boom")
	_ = r.Handle(context.Background(), update("/publish"))
	r.Wait()
	got = rep.texts()
	if got[len(got)-1] != "❌ Ошибка публикации" {
		t.Fatalf("last reply = %q", got[len(got)-1])
	}
}
