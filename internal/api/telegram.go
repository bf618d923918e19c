package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/GiftNewsHub/internal/publisher"
	"github.com/LJTian/GiftNewsHub/internal/storage"
	"github.com/LJTian/GiftNewsHub/internal/telegram"
)

func (s *Server) webhook(c *gin.Context) {
	if s.bot == nil {
		abort(c, http.StatusServiceUnavailable, "not_configured", "bot is not configured")
		return
	}
	var upd telegram.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		abort(c, http.StatusBadRequest, "bad_request", "invalid update")
		return
	}
	// Telegram redelivers on non-2xx, so reply failures are only logged.
	if err := s.bot.Handle(c.Request.Context(), upd); err != nil {
		s.logger.Warn("bot update failed", "update_id", upd.UpdateID, "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) publishNow(c *gin.Context) {
	if !s.publisher.Configured() {
		s.fail(c, publisher.ErrNotConfigured)
		return
	}
	s.logger.Info("manual publish requested", "subject", adminSubject(c))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		n, err := s.publisher.PublishBatch(s.ctx, true)
		if err != nil {
			s.logger.Error("manual publish failed", "err", err)
			return
		}
		s.logger.Info("manual publish done", "published", n)
	}()
	c.JSON(http.StatusAccepted, gin.H{
		"code":    "ok",
		"message": "publish started",
	})
}

func (s *Server) publishStatus(c *gin.Context) {
	st, err := s.publisher.Status(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, st)
}

func (s *Server) setAutoPublish(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		abort(c, http.StatusBadRequest, "bad_request", `body must be {"enabled": bool}`)
		return
	}
	s.logger.Info("auto publish change requested", "subject", adminSubject(c), "enabled", *req.Enabled)
	s.publisher.SetEnabled(*req.Enabled)
	ok(c, gin.H{"enabled": s.publisher.Enabled()})
}

func (s *Server) publishedNews(c *gin.Context) {
	published := true
	limit := pageSize(c)
	offset := max(queryInt(c, "offset", 0), 0)
	items, total, err := s.store.Query(c.Request.Context(), storage.Filter{
		Published: &published,
		Order:     storage.OrderRecentlyPublished,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if items == nil {
		items = []storage.News{}
	}
	ok(c, gin.H{"items": items, "total": total, "limit": limit, "offset": offset})
}

func (s *Server) publishSpecific(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	s.logger.Info("publish item requested", "subject", adminSubject(c), "id", id)
	n, err := s.publisher.PublishOne(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, n)
}

func (s *Server) unpublish(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	s.logger.Info("unpublish requested", "subject", adminSubject(c), "id", id)
	n, err := s.publisher.Unpublish(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, n)
}

func (s *Server) channelInfo(c *gin.Context) {
	info, err := s.publisher.ChannelInfo(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, info)
}

func (s *Server) botInfo(c *gin.Context) {
	me, err := s.publisher.BotInfo(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, me)
}
