package collector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup and collapses whitespace.
func PlainText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return strings.Join(strings.Fields(html), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// TruncateRunes cuts s to limit runes and appends "..." when anything was cut.
// A non-positive limit disables truncation.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "..."
}
