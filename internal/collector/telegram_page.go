package collector

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const (
	defaultScrapeBase  = "https://t.me/s/"
	defaultScrapeLimit = 20
	defaultUserAgent   = "GiftNewsHubBot/1.0"
)

var backgroundURL = regexp.MustCompile(`background-image:\s*url\(['"]?([^'")]+)['"]?\)`)

// TelegramFetcher scrapes the public web preview of a channel (t.me/s/<name>).
type TelegramFetcher struct {
	BaseURL string
	Limit   int
	Timeout time.Duration
	Now     func() time.Time
}

// ChannelName normalizes "@name", "name" or "https://t.me/name" to "name".
func ChannelName(address string) string {
	a := strings.TrimSpace(address)
	if u, err := url.Parse(a); err == nil && u.Host != "" {
		a = strings.Trim(u.Path, "/")
		a = strings.TrimPrefix(a, "s/")
	}
	return strings.TrimPrefix(a, "@")
}

func (f *TelegramFetcher) Fetch(ctx context.Context, src Source) ([]CandidateItem, error) {
	channel := ChannelName(src.Address)
	if channel == "" {
		return nil, fmt.Errorf("telegram page: source %q has no channel", src.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := f.BaseURL
	if base == "" {
		base = defaultScrapeBase
	}
	pageURL := strings.TrimRight(base, "/") + "/" + channel

	c := colly.NewCollector(colly.UserAgent(defaultUserAgent))
	if f.Timeout > 0 {
		c.SetRequestTimeout(f.Timeout)
	}

	now := time.Now()
	if f.Now != nil {
		now = f.Now()
	}
	fallbackLink := "https://t.me/" + channel

	var items []CandidateItem
	c.OnHTML("div.tgme_widget_message", func(e *colly.HTMLElement) {
		if it, ok := f.parseMessage(e.DOM, channel, fallbackLink, now); ok {
			it.Source = src
			items = append(items, it)
		}
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("telegram page: visit %s: %w", pageURL, err)
	}
	c.Wait()

	// The page lists messages oldest first; keep the newest.
	limit := f.Limit
	if limit <= 0 {
		limit = defaultScrapeLimit
	}
	if len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

func (f *TelegramFetcher) parseMessage(sel *goquery.Selection, channel, fallbackLink string, now time.Time) (CandidateItem, bool) {
	textSel := sel.Find("div.tgme_widget_message_text").First()
	text := strings.TrimSpace(textSel.Text())
	if text == "" {
		return CandidateItem{}, false
	}
	htmlBody, _ := textSel.Html()

	published := now
	if dt, ok := sel.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, dt); err == nil {
			published = t
		}
	}

	link := fallbackLink
	if href, ok := sel.Find("a.tgme_widget_message_date").First().Attr("href"); ok && href != "" {
		link = href
	}

	var media []MediaRef
	sel.Find("a.tgme_widget_message_photo_wrap").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if m := backgroundURL.FindStringSubmatch(style); len(m) == 2 {
			media = append(media, MediaRef{Type: MediaPhoto, URL: m[1]})
		}
	})
	sel.Find("video[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			media = append(media, MediaRef{Type: MediaVideo, URL: src})
		}
	})

	return CandidateItem{
		Title:         text,
		Body:          text,
		HTMLBody:      htmlBody,
		Link:          link,
		PublishedAt:   published,
		Author:        channel,
		Media:         media,
		TitleFromBody: true,
	}, true
}
