package collector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type stubFetcher struct {
	items map[string][]CandidateItem
	fail  map[string]bool
}

func (s *stubFetcher) Fetch(_ context.Context, src Source) ([]CandidateItem, error) {
	if s.fail[src.Name] {
		return nil, errors.New("boom")
	}
	return s.items[src.Name], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCollectIsolatesFailuresAndKeepsOrder(t *testing.T) {
	scrape := &stubFetcher{
		items: map[string][]CandidateItem{"chan": {{Title: "c1"}, {Title: "c2"}}},
	}
	feed := &stubFetcher{
		items: map[string][]CandidateItem{"rss-ok": {{Title: "r1"}}},
		fail:  map[string]bool{"rss-bad": true},
	}
	c := New(scrape, feed, 2, quietLogger())

	sources := []Source{
		{Name: "rss-bad", Kind: KindSyndication},
		{Name: "chan", Kind: KindScrape},
		{Name: "weird", Kind: Kind("ftp")},
		{Name: "rss-ok", Kind: KindSyndication},
	}
	got := c.Collect(context.Background(), sources)

	want := []string{"c1", "c2", "r1"}
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Title != w {
			t.Fatalf("item %d = %q, want %q", i, got[i].Title, w)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("привет мир", 6); got != "привет..." {
		t.Fatalf("TruncateRunes = %q", got)
	}
	if got := TruncateRunes("short", 10); got != "short" {
		t.Fatalf("TruncateRunes should keep short text, got %q", got)
	}
	if got := TruncateRunes("abc", 0); got != "abc" {
		t.Fatalf("non-positive limit should disable truncation, got %q", got)
	}
}

func TestPlainText(t *testing.T) {
	if got := PlainText("<p>Hello\n <i>there</i></p>"); got != "Hello there" {
		t.Fatalf("PlainText = %q", got)
	}
	if got := PlainText("  plain   text "); got != "plain text" {
		t.Fatalf("PlainText = %q", got)
	}
}
