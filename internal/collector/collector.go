package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const defaultConcurrency = 4

// Collector dispatches sources to the fetcher for their kind and merges results.
type Collector struct {
	scrape      Fetcher
	syndication Fetcher
	concurrency int
	logger      *slog.Logger
}

func New(scrape, syndication Fetcher, concurrency int, logger *slog.Logger) *Collector {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{scrape: scrape, syndication: syndication, concurrency: concurrency, logger: logger}
}

func (c *Collector) fetcherFor(kind Kind) (Fetcher, error) {
	switch kind {
	case KindScrape:
		return c.scrape, nil
	case KindSyndication:
		return c.syndication, nil
	}
	return nil, fmt.Errorf("collector: unknown source kind %q", kind)
}

// FetchSource never fails: errors are logged and yield an empty result.
func (c *Collector) FetchSource(ctx context.Context, src Source) []CandidateItem {
	f, err := c.fetcherFor(src.Kind)
	if err == nil && f == nil {
		err = fmt.Errorf("collector: no fetcher for kind %q", src.Kind)
	}
	if err != nil {
		c.logger.Warn("fetch source skipped", "source", src.Name, "err", err)
		return nil
	}

	items, err := f.Fetch(ctx, src)
	if err != nil {
		c.logger.Warn("fetch source failed", "source", src.Name, "kind", src.Kind, "err", err)
		return nil
	}
	c.logger.Debug("fetch source done", "source", src.Name, "items", len(items))
	return items
}

// Collect fetches all sources concurrently and returns the merged batch,
// ordered by source position then by fetcher order.
func (c *Collector) Collect(ctx context.Context, sources []Source) []CandidateItem {
	results := make([][]CandidateItem, len(sources))

	var wg sync.WaitGroup
	sem := make(chan struct{}, c.concurrency)
	for i, src := range sources {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, s Source) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = c.FetchSource(ctx, s)
		}(i, src)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]CandidateItem, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged
}
