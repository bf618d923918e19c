package processor

import (
	"strings"
	"testing"
	"time"

	"github.com/LJTian/GiftNewsHub/internal/category"
	"github.com/LJTian/GiftNewsHub/internal/collector"
)

func TestDedupKeepsFirstSeen(t *testing.T) {
	items := []collector.CandidateItem{
		{Title: "Foo", Link: "a"},
		{Title: "foo ", Link: "b"},
		{Title: "Bar", Link: "c"},
		{Title: "   ", Link: "d"},
	}
	out := Dedup(items)
	if len(out) != 2 {
		t.Fatalf("expected 2 items after dedup, got %d", len(out))
	}
	if out[0].Title != "Foo" || out[0].Link != "a" || out[1].Title != "Bar" {
		t.Fatalf("unexpected dedup result: %+v", out)
	}
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		name string
		item collector.CandidateItem
		want category.Category
	}{
		{
			name: "syndication category wins",
			item: collector.CandidateItem{Title: "Bitcoin news", Source: collector.Source{Kind: collector.KindSyndication, Category: "tech"}},
			want: category.Tech,
		},
		{
			name: "empty source category falls back to keywords",
			item: collector.CandidateItem{Title: "Bitcoin news", Source: collector.Source{Kind: collector.KindSyndication}},
			want: category.Crypto,
		},
		{
			name: "scrape always uses keywords",
			item: collector.CandidateItem{Title: "x", Body: "Промокод внутри", Source: collector.Source{Kind: collector.KindScrape, Category: "nft"}},
			want: category.Gifts,
		},
		{
			name: "no keyword",
			item: collector.CandidateItem{Title: "Weather", Body: "Sunny"},
			want: category.General,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Categorize(tc.item); got != tc.want {
				t.Fatalf("Categorize = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	p := NewProcessor(10)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	body := strings.Repeat("ж", 450)

	n := p.Normalize(collector.CandidateItem{
		Title:         body,
		Body:          body,
		HTMLBody:      "<p><b>bold</b> text</p>",
		Link:          "https://t.me/c/1",
		PublishedAt:   now,
		Author:        "c",
		TitleFromBody: true,
		Media: []collector.MediaRef{
			{Type: collector.MediaVideo, URL: "v1"},
			{Type: collector.MediaPhoto, URL: "p1"},
			{Type: collector.MediaPhoto, URL: "p2"},
		},
		Source: collector.Source{ID: 7, Name: "chan", Kind: collector.KindScrape},
	})

	if n.Title != strings.Repeat("ж", 10)+"..." {
		t.Fatalf("scrape title not truncated: %q", n.Title)
	}
	if n.ReadingTime != 2 {
		t.Fatalf("ReadingTime = %d, want 2", n.ReadingTime)
	}
	if n.ImageURL != "p1" || n.VideoURL != "v1" {
		t.Fatalf("media refs = %q / %q", n.ImageURL, n.VideoURL)
	}
	if n.RenderedContent != "**bold** text" {
		t.Fatalf("RenderedContent = %q", n.RenderedContent)
	}
	if n.SourceID != 7 || n.SourceName != "chan" || !n.PublishedAt.Equal(now) {
		t.Fatalf("source fields not carried: %+v", n)
	}

	feed := p.Normalize(collector.CandidateItem{Title: strings.Repeat("t", 50), Body: "short"})
	if feed.Title != strings.Repeat("t", 50) {
		t.Fatalf("syndication title should be kept verbatim")
	}
	if feed.RenderedContent != "short" || feed.ReadingTime != 0 {
		t.Fatalf("unexpected fallback render/reading time: %+v", feed)
	}
}

func TestProcessDedupsBeforeNormalizing(t *testing.T) {
	p := NewProcessor(0)
	out := p.Process([]collector.CandidateItem{
		{Title: "Same", Body: "one"},
		{Title: " same", Body: "two"},
		{Title: "Other", Body: "three"},
	})
	if len(out) != 2 || out[0].Content != "one" || out[1].Title != "Other" {
		t.Fatalf("unexpected process output: %+v", out)
	}
}
