package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/GiftNewsHub/internal/storage"
)

func (s *Server) listSources(c *gin.Context) {
	list, err := s.store.ListSources(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []storage.Source{}
	}
	ok(c, list)
}

func (s *Server) createSource(c *gin.Context) {
	var seed storage.SourceSeed
	if err := c.ShouldBindJSON(&seed); err != nil {
		abort(c, http.StatusBadRequest, "bad_request", "invalid source")
		return
	}
	if err := seed.Validate(); err != nil {
		abort(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	src, err := s.store.EnsureSource(c.Request.Context(), seed)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, src)
}

func (s *Server) deactivateSource(c *gin.Context) {
	id, good := pathID(c)
	if !good {
		return
	}
	if err := s.store.DeactivateSource(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"id": id, "active": false})
}
