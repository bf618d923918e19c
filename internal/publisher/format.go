package publisher

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/LJTian/GiftNewsHub/internal/category"
	"github.com/LJTian/GiftNewsHub/internal/collector"
	"github.com/LJTian/GiftNewsHub/internal/storage"
)

// captionLimit is the Bot API cap on media captions.
const captionLimit = 1024

// FormatPost renders an item as an HTML channel post.
func FormatPost(n *storage.News, s Settings) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📰 <b>%s</b>\n\n", html.EscapeString(n.Title))
	fmt.Fprintf(&b, "%s\n\n", html.EscapeString(collector.TruncateRunes(n.Content, s.ExcerptRunes)))

	cat, ok := category.Parse(n.Category)
	if !ok {
		cat = category.General
	}
	fmt.Fprintf(&b, "%s Категория: %s\n", cat.Glyph(), cat)
	if n.Author != "" {
		fmt.Fprintf(&b, "👤 Автор: %s\n", html.EscapeString(n.Author))
	}
	if n.ReadingTime > 0 {
		fmt.Fprintf(&b, "⏱️ Время чтения: %d мин\n", n.ReadingTime)
	}
	if n.Views > 0 {
		fmt.Fprintf(&b, "👀 Просмотров: %d\n", n.Views)
	}

	b.WriteString("\n---\n")
	b.WriteString(html.EscapeString(s.Signature))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s: %s", html.EscapeString(s.SourceLabel), html.EscapeString(n.Link))
	return b.String()
}

// ResolveMedia picks at most one attachment: the first structured media
// entry, then the image reference, then the video reference.
func ResolveMedia(n *storage.News) (collector.MediaRef, bool) {
	if m, ok := firstStructuredMedia(n.Media); ok {
		return m, true
	}
	if n.ImageURL != "" {
		return collector.MediaRef{Type: collector.MediaPhoto, URL: n.ImageURL}, true
	}
	if n.VideoURL != "" {
		return collector.MediaRef{Type: collector.MediaVideo, URL: n.VideoURL}, true
	}
	return collector.MediaRef{}, false
}

// firstStructuredMedia accepts either a list of refs or a single ref object.
func firstStructuredMedia(raw []byte) (collector.MediaRef, bool) {
	if len(raw) == 0 {
		return collector.MediaRef{}, false
	}
	var m collector.MediaRef
	var list []collector.MediaRef
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return collector.MediaRef{}, false
		}
		m = list[0]
	} else if err := json.Unmarshal(raw, &m); err != nil {
		return collector.MediaRef{}, false
	}
	if m.URL == "" {
		return collector.MediaRef{}, false
	}
	switch m.Type {
	case collector.MediaPhoto, collector.MediaVideo:
		return m, true
	}
	return collector.MediaRef{}, false
}
