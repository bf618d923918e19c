package collector

import (
	"context"
	"time"
)

// Kind selects the fetcher for a source.
type Kind string

const (
	KindScrape      Kind = "scrape"
	KindSyndication Kind = "syndication"
)

func (k Kind) Valid() bool {
	switch k {
	case KindScrape, KindSyndication:
		return true
	}
	return false
}

// Source is the read-only view of a registry entry a fetcher needs.
type Source struct {
	ID       uint
	Name     string
	Address  string
	Kind     Kind
	Category string
}

type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

type MediaRef struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}

// CandidateItem is one raw fetch result. It lives for a single ingestion cycle.
type CandidateItem struct {
	Title string
	Body  string
	// HTMLBody keeps the markup the body was extracted from, if any.
	HTMLBody    string
	Link        string
	PublishedAt time.Time
	Author      string
	Media       []MediaRef
	Source      Source
	// TitleFromBody is set when the source has no title of its own and
	// Title repeats the body text.
	TitleFromBody bool
}

// Fetcher reads one source.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) ([]CandidateItem, error)
}
