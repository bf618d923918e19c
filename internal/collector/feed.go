package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	defaultFeedLimit    = 10
	defaultSummaryRunes = 300
)

// FeedFetcher reads RSS/Atom documents.
type FeedFetcher struct {
	Limit        int
	SummaryRunes int
	Timeout      time.Duration
	Now          func() time.Time
}

// Fetch builds a parser per call; gofeed parsers keep per-document state.
func (f *FeedFetcher) Fetch(ctx context.Context, src Source) ([]CandidateItem, error) {
	parser := gofeed.NewParser()
	parser.UserAgent = defaultUserAgent
	if f.Timeout > 0 {
		parser.Client = &http.Client{Timeout: f.Timeout}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	feed, err := parser.ParseURLWithContext(src.Address, ctx)
	if err != nil {
		return nil, fmt.Errorf("feed: parse %s: %w", src.Address, err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	summaryRunes := f.SummaryRunes
	if summaryRunes <= 0 {
		summaryRunes = defaultSummaryRunes
	}
	now := time.Now()
	if f.Now != nil {
		now = f.Now()
	}

	entries := feed.Items
	if len(entries) > limit {
		entries = entries[:limit]
	}

	items := make([]CandidateItem, 0, len(entries))
	for _, e := range entries {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}

		htmlBody := e.Description
		if htmlBody == "" {
			htmlBody = e.Content
		}
		summary := PlainText(htmlBody)
		if summary == "" {
			summary = title
			htmlBody = ""
		}

		published := now
		if e.PublishedParsed != nil {
			published = *e.PublishedParsed
		} else if e.UpdatedParsed != nil {
			published = *e.UpdatedParsed
		}

		author := src.Name
		if e.Author != nil && strings.TrimSpace(e.Author.Name) != "" {
			author = strings.TrimSpace(e.Author.Name)
		}

		items = append(items, CandidateItem{
			Title:       title,
			Body:        TruncateRunes(summary, summaryRunes),
			HTMLBody:    htmlBody,
			Link:        e.Link,
			PublishedAt: published,
			Author:      author,
			Media:       feedMedia(e),
			Source:      src,
		})
	}
	return items, nil
}

func feedMedia(e *gofeed.Item) []MediaRef {
	var media []MediaRef
	seen := make(map[string]struct{})
	add := func(t MediaType, u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		media = append(media, MediaRef{Type: t, URL: u})
	}

	if e.Image != nil {
		add(MediaPhoto, e.Image.URL)
	}
	for _, enc := range e.Enclosures {
		if enc == nil {
			continue
		}
		switch {
		case strings.HasPrefix(enc.Type, "image/"):
			add(MediaPhoto, enc.URL)
		case strings.HasPrefix(enc.Type, "video/"):
			add(MediaVideo, enc.URL)
		}
	}
	return media
}
