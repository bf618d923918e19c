package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	generationKey = "news:gen"
	listCacheTTL  = 5 * time.Minute
)

// NewsPage is a cached listing result.
type NewsPage struct {
	Items []News `json:"items"`
	Total int64  `json:"total"`
}

// ListNews is Query behind a Redis cache. Cache keys embed a generation
// counter that every write bumps, so stale pages are never served after an
// insert or a publication change.
func (s *Store) ListNews(ctx context.Context, f Filter) (NewsPage, error) {
	if s.Redis == nil {
		items, total, err := s.Query(ctx, f)
		return NewsPage{Items: items, Total: total}, err
	}

	key := s.listCacheKey(ctx, f)
	if bs, err := s.Redis.Get(ctx, key).Bytes(); err == nil {
		var cached NewsPage
		if err := json.Unmarshal(bs, &cached); err == nil {
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Debug("list cache read failed", "err", err)
	}

	items, total, err := s.Query(ctx, f)
	if err != nil {
		return NewsPage{}, err
	}
	page := NewsPage{Items: items, Total: total}
	if bs, err := json.Marshal(page); err == nil {
		_ = s.Redis.Set(ctx, key, bs, listCacheTTL).Err()
	}
	return page, nil
}

func (s *Store) listCacheKey(ctx context.Context, f Filter) string {
	gen, err := s.Redis.Get(ctx, generationKey).Int64()
	if err != nil {
		gen = 0
	}
	published := "any"
	if f.Published != nil {
		published = fmt.Sprintf("%t", *f.Published)
	}
	return fmt.Sprintf("news:list:%d:%s:%s:%s:%d:%d", gen, f.Category, published, f.Order, f.Limit, f.Offset)
}

func (s *Store) bumpGeneration(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Incr(ctx, generationKey).Err(); err != nil {
		s.logger.Debug("bump cache generation failed", "err", err)
	}
}
