package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/GiftNewsHub/internal/publisher"
	"github.com/LJTian/GiftNewsHub/internal/storage"
	"github.com/LJTian/GiftNewsHub/internal/telegram"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

// fail maps domain errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	var apiErr *telegram.APIError
	switch {
	case errors.Is(err, publisher.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		abort(c, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, publisher.ErrInvalidState), errors.Is(err, storage.ErrStateConflict):
		abort(c, http.StatusBadRequest, "invalid_state", "news item is in the wrong publication state")
	case errors.Is(err, publisher.ErrNotConfigured):
		abort(c, http.StatusServiceUnavailable, "not_configured", "telegram delivery is not configured")
	case errors.As(err, &apiErr):
		s.logger.Warn("telegram call failed", "path", c.FullPath(), "err", err)
		abort(c, http.StatusBadGateway, "delivery_failed", apiErr.Description)
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "err", err)
		abort(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
