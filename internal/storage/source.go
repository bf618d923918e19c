package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/LJTian/GiftNewsHub/internal/category"
	"github.com/LJTian/GiftNewsHub/internal/collector"
)

// Source is a registry entry. Sources are deactivated, never deleted.
type Source struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"size:128;uniqueIndex" json:"name"`
	Address       string         `gorm:"size:512" json:"address"`
	Kind          collector.Kind `gorm:"size:32" json:"kind"`
	Category      string         `gorm:"size:32" json:"category"`
	Active        bool           `gorm:"index" json:"active"`
	LastFetchedAt *time.Time     `json:"lastFetchedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s Source) Spec() collector.Source {
	return collector.Source{
		ID:       s.ID,
		Name:     s.Name,
		Address:  s.Address,
		Kind:     s.Kind,
		Category: s.Category,
	}
}

// SourceSeed is the configuration-time description of a source.
type SourceSeed struct {
	Name     string         `yaml:"name" json:"name"`
	Address  string         `yaml:"address" json:"address"`
	Kind     collector.Kind `yaml:"kind" json:"kind"`
	Category string         `yaml:"category" json:"category"`
}

func (s SourceSeed) Validate() error {
	if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Address) == "" {
		return errors.New("source: name and address are required")
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("source %q: unknown kind %q", s.Name, s.Kind)
	}
	if s.Category != "" {
		if _, ok := category.Parse(s.Category); !ok {
			return fmt.Errorf("source %q: unknown category %q", s.Name, s.Category)
		}
	}
	return nil
}

func DefaultSourceSeeds() []SourceSeed {
	return []SourceSeed{
		{Name: "@nextgen_NFT", Address: "@nextgen_NFT", Kind: collector.KindScrape, Category: "nft"},
		{Name: "VC.ru", Address: "https://vc.ru/rss", Kind: collector.KindSyndication, Category: "tech"},
		{Name: "CoinDesk", Address: "https://www.coindesk.com/arc/outboundfeeds/rss/", Kind: collector.KindSyndication, Category: "crypto"},
		{Name: "Cointelegraph", Address: "https://cointelegraph.com/rss", Kind: collector.KindSyndication, Category: "crypto"},
		{Name: "Habr NFT", Address: "https://habr.com/ru/rss/articles/", Kind: collector.KindSyndication, Category: "nft"},
	}
}

// LoadSourceSeeds reads a YAML file of the form {sources: [...]}. An empty
// path returns the built-in defaults.
func LoadSourceSeeds(path string) ([]SourceSeed, error) {
	if path == "" {
		return DefaultSourceSeeds(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read sources file: %w", err)
	}
	var doc struct {
		Sources []SourceSeed `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("storage: parse sources file: %w", err)
	}
	for _, s := range doc.Sources {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Sources, nil
}

// EnsureSource creates the source if no source with that name exists.
// An existing source is returned as is, including its active flag.
func (s *Store) EnsureSource(ctx context.Context, seed SourceSeed) (*Source, error) {
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	src := &Source{}
	err := s.DB.WithContext(ctx).Where("name = ?", seed.Name).First(src).Error
	if err == nil {
		return src, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	src = &Source{
		Name:     seed.Name,
		Address:  seed.Address,
		Kind:     seed.Kind,
		Category: seed.Category,
		Active:   true,
	}
	if err := s.DB.WithContext(ctx).Create(src).Error; err != nil {
		return nil, err
	}
	return src, nil
}

func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	var list []Source
	err := s.DB.WithContext(ctx).Order("id ASC").Find(&list).Error
	return list, err
}

func (s *Store) ListActiveSources(ctx context.Context) ([]Source, error) {
	var list []Source
	err := s.DB.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&list).Error
	return list, err
}

func (s *Store) GetSource(ctx context.Context, id uint) (*Source, error) {
	src := &Source{}
	if err := s.DB.WithContext(ctx).First(src, id).Error; err != nil {
		return nil, notFound(err)
	}
	return src, nil
}

func (s *Store) DeactivateSource(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Model(&Source{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkFetched(ctx context.Context, ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Model(&Source{}).Where("id IN ?", ids).Update("last_fetched_at", at).Error
}
