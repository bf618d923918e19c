package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/LJTian/GiftNewsHub/internal/processor"
)

// News is a persisted item. Published, PublishedAt and ExternalMessageID are
// written together: either all set or all empty.
type News struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:512;uniqueIndex" json:"title"`
	Content         string         `gorm:"type:text" json:"content"`
	RenderedContent string         `gorm:"type:text" json:"renderedContent"`
	Link            string         `gorm:"size:1024" json:"link"`
	PublishDate     time.Time      `gorm:"index" json:"publishDate"`
	Category        string         `gorm:"size:32;index" json:"category"`
	Author          string         `gorm:"size:256" json:"author"`
	SourceID        uint           `gorm:"index" json:"sourceId"`
	SourceName      string         `gorm:"size:128" json:"sourceName"`
	ImageURL        string         `gorm:"size:1024" json:"imageUrl"`
	VideoURL        string         `gorm:"size:1024" json:"videoUrl"`
	Media           datatypes.JSON `json:"media"`
	ReadingTime     int            `json:"readingTime"`
	Views           int64          `gorm:"not null;default:0" json:"views"`

	Published         bool       `gorm:"not null;default:false;index" json:"published"`
	PublishedAt       *time.Time `gorm:"index" json:"publishedAt"`
	ExternalMessageID *int64     `json:"externalMessageId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewsFromProcessed maps a processed record onto a row, clamping to column widths.
func NewsFromProcessed(p processor.ProcessedNews) *News {
	n := &News{
		Title:           truncateRunesDB(toValidUTF8(p.Title), 512),
		Content:         toValidUTF8(p.Content),
		RenderedContent: toValidUTF8(p.RenderedContent),
		Link:            truncateRunesDB(p.Link, 1024),
		PublishDate:     p.PublishedAt,
		Category:        string(p.Category),
		Author:          truncateRunesDB(toValidUTF8(p.Author), 256),
		SourceID:        p.SourceID,
		SourceName:      p.SourceName,
		ImageURL:        truncateRunesDB(p.ImageURL, 1024),
		VideoURL:        truncateRunesDB(p.VideoURL, 1024),
		ReadingTime:     p.ReadingTime,
	}
	if len(p.Media) > 0 {
		if bs, err := json.Marshal(p.Media); err == nil {
			n.Media = datatypes.JSON(bs)
		}
	}
	return n
}

// InsertIfAbsent stores n unless an item with the same exact title exists.
// It reports whether a row was written.
func (s *Store) InsertIfAbsent(ctx context.Context, n *News) (bool, error) {
	n.Published = false
	n.PublishedAt = nil
	n.ExternalMessageID = nil

	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "title"}}, DoNothing: true}).
		Create(n)
	if res.Error != nil {
		return false, fmt.Errorf("storage: insert news: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	s.bumpGeneration(ctx)
	return true, nil
}

func (s *Store) FindByTitle(ctx context.Context, title string) (*News, error) {
	n := &News{}
	if err := s.DB.WithContext(ctx).Where("title = ?", title).First(n).Error; err != nil {
		return nil, notFound(err)
	}
	return n, nil
}

func (s *Store) GetNews(ctx context.Context, id uint) (*News, error) {
	n := &News{}
	if err := s.DB.WithContext(ctx).First(n, id).Error; err != nil {
		return nil, notFound(err)
	}
	return n, nil
}

type Order string

const (
	// OrderNewest sorts by content publish time, newest first.
	OrderNewest Order = "newest"
	// OrderRecentlyPublished sorts by channel publication time, newest first.
	OrderRecentlyPublished Order = "recently_published"
)

type Filter struct {
	Category  string
	Published *bool
	Order     Order
	Limit     int
	Offset    int
}

func (f Filter) apply(db *gorm.DB) *gorm.DB {
	if f.Category != "" {
		db = db.Where("category = ?", f.Category)
	}
	if f.Published != nil {
		db = db.Where("published = ?", *f.Published)
	}
	return db
}

func (f Filter) order(db *gorm.DB) *gorm.DB {
	switch f.Order {
	case OrderRecentlyPublished:
		return db.Order("published_at DESC").Order("id DESC")
	default:
		return db.Order("publish_date DESC").Order("id DESC")
	}
}

// Query returns one page of matching items plus the total match count.
func (s *Store) Query(ctx context.Context, f Filter) ([]News, int64, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var total int64
	if err := f.apply(s.DB.WithContext(ctx).Model(&News{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []News
	q := f.order(f.apply(s.DB.WithContext(ctx).Model(&News{})))
	if err := q.Limit(f.Limit).Offset(f.Offset).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListUnpublished returns up to limit unpublished items, newest first.
func (s *Store) ListUnpublished(ctx context.Context, limit int) ([]News, error) {
	unpublished := false
	list, _, err := s.Query(ctx, Filter{Published: &unpublished, Order: OrderNewest, Limit: limit})
	return list, err
}

// PublicationState is the target value of the three publication fields.
// For an unpublish, ExpectMessageID names the message being retracted; the
// update only applies while the item still carries that id.
type PublicationState struct {
	Published       bool
	PublishedAt     *time.Time
	MessageID       *int64
	ExpectMessageID *int64
}

func Unpublished(messageID int64) PublicationState {
	return PublicationState{ExpectMessageID: &messageID}
}

func PublishedState(at time.Time, messageID int64) PublicationState {
	return PublicationState{Published: true, PublishedAt: &at, MessageID: &messageID}
}

func (p PublicationState) valid() bool {
	if p.Published {
		return p.PublishedAt != nil && p.MessageID != nil && p.ExpectMessageID == nil
	}
	return p.PublishedAt == nil && p.MessageID == nil && p.ExpectMessageID != nil
}

// UpdatePublicationState moves an item between unpublished and published.
// The update is conditional on the current state, so a second concurrent
// transition for the same id fails with ErrStateConflict instead of
// overwriting the first.
func (s *Store) UpdatePublicationState(ctx context.Context, id uint, st PublicationState) error {
	if !st.valid() {
		return fmt.Errorf("storage: inconsistent publication state %+v", st)
	}

	db := s.DB.WithContext(ctx).Model(&News{}).Where("id = ?", id)
	var res *gorm.DB
	if st.Published {
		res = db.Where("published = ?", false).Updates(map[string]any{
			"published":           true,
			"published_at":        *st.PublishedAt,
			"external_message_id": *st.MessageID,
		})
	} else {
		res = db.Where("published = ? AND external_message_id = ?", true, *st.ExpectMessageID).Updates(map[string]any{
			"published":           false,
			"published_at":        nil,
			"external_message_id": nil,
		})
	}
	if res.Error != nil {
		return fmt.Errorf("storage: update publication state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetNews(ctx, id); err != nil {
			return err
		}
		return ErrStateConflict
	}
	s.bumpGeneration(ctx)
	return nil
}

func (s *Store) IncrementViews(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Model(&News{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type Stats struct {
	Total       int64            `json:"total"`
	Published   int64            `json:"published"`
	Unpublished int64            `json:"unpublished"`
	ByCategory  map[string]int64 `json:"byCategory"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByCategory: map[string]int64{}}
	db := s.DB.WithContext(ctx)
	if err := db.Model(&News{}).Count(&st.Total).Error; err != nil {
		return st, err
	}
	if err := db.Model(&News{}).Where("published = ?", true).Count(&st.Published).Error; err != nil {
		return st, err
	}
	st.Unpublished = st.Total - st.Published

	var rows []struct {
		Category string
		N        int64
	}
	if err := db.Model(&News{}).Select("category, COUNT(*) AS n").Group("category").Scan(&rows).Error; err != nil {
		return st, err
	}
	for _, r := range rows {
		if r.Category != "" {
			st.ByCategory[r.Category] = r.N
		}
	}
	return st, nil
}

// IsNotFound reports whether err is a storage miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
