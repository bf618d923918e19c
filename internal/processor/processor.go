package processor

import (
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/LJTian/GiftNewsHub/internal/category"
	"github.com/LJTian/GiftNewsHub/internal/collector"
)

const (
	defaultTitleRunes = 200
	wordsPerMinute    = 200
)

// ProcessedNews is the canonical record handed to the store.
type ProcessedNews struct {
	Title           string
	Content         string
	RenderedContent string
	Link            string
	PublishedAt     time.Time
	Category        category.Category
	Author          string
	SourceID        uint
	SourceName      string
	ImageURL        string
	VideoURL        string
	Media           []collector.MediaRef
	ReadingTime     int
}

// Processor normalizes, categorizes and deduplicates one cycle's candidates.
type Processor struct {
	// TitleRunes caps titles cut from message bodies.
	TitleRunes int

	converter *md.Converter
}

func NewProcessor(titleRunes int) *Processor {
	if titleRunes <= 0 {
		titleRunes = defaultTitleRunes
	}
	return &Processor{
		TitleRunes: titleRunes,
		converter:  md.NewConverter("", true, nil),
	}
}

// Process deduplicates the merged batch and normalizes what remains, in order.
func (p *Processor) Process(items []collector.CandidateItem) []ProcessedNews {
	unique := Dedup(items)
	out := make([]ProcessedNews, 0, len(unique))
	for _, it := range unique {
		out = append(out, p.Normalize(it))
	}
	return out
}

func (p *Processor) Normalize(it collector.CandidateItem) ProcessedNews {
	title := strings.TrimSpace(it.Title)
	if it.TitleFromBody {
		title = collector.TruncateRunes(title, p.TitleRunes)
	}
	body := strings.TrimSpace(it.Body)

	n := ProcessedNews{
		Title:           title,
		Content:         body,
		RenderedContent: p.render(it.HTMLBody, body),
		Link:            it.Link,
		PublishedAt:     it.PublishedAt,
		Category:        Categorize(it),
		Author:          it.Author,
		SourceID:        it.Source.ID,
		SourceName:      it.Source.Name,
		Media:           it.Media,
		ReadingTime:     ReadingTime(body),
	}
	for _, m := range it.Media {
		switch m.Type {
		case collector.MediaPhoto:
			if n.ImageURL == "" {
				n.ImageURL = m.URL
			}
		case collector.MediaVideo:
			if n.VideoURL == "" {
				n.VideoURL = m.URL
			}
		}
	}
	return n
}

func (p *Processor) render(htmlBody, fallback string) string {
	if strings.TrimSpace(htmlBody) == "" || p.converter == nil {
		return fallback
	}
	out, err := p.converter.ConvertString(htmlBody)
	if err != nil || strings.TrimSpace(out) == "" {
		return fallback
	}
	return strings.TrimSpace(out)
}

// Categorize prefers a syndication source's own category over keyword matching.
func Categorize(it collector.CandidateItem) category.Category {
	if it.Source.Kind == collector.KindSyndication {
		if c, ok := category.Parse(it.Source.Category); ok {
			return c
		}
	}
	return category.Classify(it.Title + " " + it.Body)
}

// ReadingTime is the body length in runes divided by 200.
func ReadingTime(body string) int {
	return len([]rune(body)) / wordsPerMinute
}

// DedupKey is the in-batch identity of an item.
func DedupKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Dedup keeps the first item for each key, in input order. Items with an
// empty key are dropped.
func Dedup(items []collector.CandidateItem) []collector.CandidateItem {
	out := make([]collector.CandidateItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		key := DedupKey(it.Title)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}
