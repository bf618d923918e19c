package collector

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const channelPage = `<html><body>
<div class="tgme_widget_message" data-post="giftchannel/1">
  <div class="tgme_widget_message_text">Старый пост про подарки</div>
  <a class="tgme_widget_message_date" href="https://t.me/giftchannel/1"><time datetime="2024-05-01T10:00:00+00:00">10:00</time></a>
</div>
<div class="tgme_widget_message" data-post="giftchannel/2">
  <a class="tgme_widget_message_photo_wrap" style="width:100%;background-image:url('https://cdn.test/p.jpg')"></a>
  <div class="tgme_widget_message_text">Новая <b>коллекция</b> NFT</div>
  <a class="tgme_widget_message_date" href="https://t.me/giftchannel/2"><time datetime="not-a-date">11:00</time></a>
</div>
<div class="tgme_widget_message" data-post="giftchannel/3">
  <video src="https://cdn.test/v.mp4"></video>
  <div class="tgme_widget_message_text">{{text}}</div>
</div>
<div class="tgme_widget_message" data-post="giftchannel/4">
  <div class="tgme_widget_message_text">   </div>
</div>
</body></html>`

// channelPageWith fills the third message. Real pages carry inline styles
// such as "width:100%", so the fixture is not a format string.
func channelPageWith(text string) string {
	return strings.Replace(channelPage, "{{text}}", text, 1)
}

func TestChannelName(t *testing.T) {
	cases := map[string]string{
		"@nextgen_NFT":               "nextgen_NFT",
		"nextgen_NFT":                "nextgen_NFT",
		"https://t.me/nextgen_NFT":   "nextgen_NFT",
		"https://t.me/s/nextgen_NFT": "nextgen_NFT",
		"  @spaced ":                 "spaced",
	}
	for in, want := range cases {
		if got := ChannelName(in); got != want {
			t.Fatalf("ChannelName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTelegramFetcherParsesMessages(t *testing.T) {
	longText := strings.Repeat("я", 250)
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, channelPageWith(longText))
	}))
	defer srv.Close()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &TelegramFetcher{
		BaseURL: srv.URL + "/s/",
		Limit:   20,
		Timeout: 5 * time.Second,
		Now:     func() time.Time { return now },
	}
	src := Source{Name: "gifts", Address: "@giftchannel", Kind: KindScrape}

	items, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if gotPath != "/s/giftchannel" {
		t.Fatalf("requested path = %q", gotPath)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items (empty text skipped), got %d", len(items))
	}

	first := items[0]
	if first.Link != "https://t.me/giftchannel/1" {
		t.Fatalf("first link = %q", first.Link)
	}
	if !first.PublishedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("first published = %v", first.PublishedAt)
	}
	if first.Author != "giftchannel" || first.Source.Name != "gifts" || !first.TitleFromBody {
		t.Fatalf("unexpected first item: %+v", first)
	}

	second := items[1]
	if !second.PublishedAt.Equal(now) {
		t.Fatalf("unparsable datetime should fall back to fetch time, got %v", second.PublishedAt)
	}
	if len(second.Media) != 1 || second.Media[0].Type != MediaPhoto || second.Media[0].URL != "https://cdn.test/p.jpg" {
		t.Fatalf("photo not extracted: %+v", second.Media)
	}
	if !strings.Contains(second.HTMLBody, "<b>коллекция</b>") {
		t.Fatalf("html body not kept: %q", second.HTMLBody)
	}

	third := items[2]
	if third.Link != "https://t.me/giftchannel" {
		t.Fatalf("missing date link should fall back to channel link, got %q", third.Link)
	}
	if len(third.Media) != 1 || third.Media[0].Type != MediaVideo {
		t.Fatalf("video not extracted: %+v", third.Media)
	}
	if third.Title != longText || third.Body != longText {
		t.Fatalf("title and body should carry the full message text")
	}
}

func TestTelegramFetcherKeepsNewest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, channelPageWith("третий"))
	}))
	defer srv.Close()

	f := &TelegramFetcher{BaseURL: srv.URL, Limit: 2}
	items, err := f.Fetch(context.Background(), Source{Name: "c", Address: "c", Kind: KindScrape})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 2 || items[1].Body != "третий" {
		t.Fatalf("expected the two newest messages, got %+v", items)
	}
}

func TestTelegramFetcherErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := &TelegramFetcher{BaseURL: srv.URL}
	if _, err := f.Fetch(context.Background(), Source{Name: "c", Address: "@c"}); err == nil {
		t.Fatalf("expected error on 404")
	}
	if _, err := f.Fetch(context.Background(), Source{Name: "empty", Address: "@"}); err == nil {
		t.Fatalf("expected error for empty channel")
	}
}
