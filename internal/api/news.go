package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/GiftNewsHub/internal/category"
	"github.com/LJTian/GiftNewsHub/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type newsPage struct {
	Items []storage.News `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Pages int64          `json:"pages"`
}

type categoryInfo struct {
	Name  string `json:"name"`
	Glyph string `json:"glyph"`
	Count int64  `json:"count"`
}

func (s *Server) listNews(c *gin.Context) {
	cat := c.Query("category")
	if cat != "" {
		if _, valid := category.Parse(cat); !valid {
			abort(c, http.StatusBadRequest, "bad_request", "unknown category")
			return
		}
	}
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := pageSize(c)

	res, err := s.store.ListNews(c.Request.Context(), storage.Filter{
		Category: cat,
		Order:    storage.OrderNewest,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	items := res.Items
	if items == nil {
		items = []storage.News{}
	}
	ok(c, newsPage{
		Items: items,
		Total: res.Total,
		Page:  page,
		Limit: limit,
		Pages: (res.Total + int64(limit) - 1) / int64(limit),
	})
}

func (s *Server) getNews(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	ctx := c.Request.Context()
	n, err := s.store.GetNews(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.store.IncrementViews(ctx, id); err != nil {
		s.logger.Warn("increment views failed", "id", id, "err", err)
	} else {
		n.Views++
	}
	ok(c, n)
}

func (s *Server) listCategories(c *gin.Context) {
	st, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]categoryInfo, 0, len(category.All()))
	for _, cat := range category.All() {
		out = append(out, categoryInfo{Name: cat.String(), Glyph: cat.Glyph(), Count: st.ByCategory[cat.String()]})
	}
	ok(c, out)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func pageSize(c *gin.Context) int {
	limit := queryInt(c, "limit", defaultPageSize)
	if limit <= 0 {
		return defaultPageSize
	}
	return min(limit, maxPageSize)
}

// pathID parses :id and answers 400 itself when it is malformed.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		abort(c, http.StatusBadRequest, "bad_request", "invalid id")
		return 0, false
	}
	return uint(id), true
}
