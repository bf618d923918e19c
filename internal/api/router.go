package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/LJTian/GiftNewsHub/internal/bot"
	"github.com/LJTian/GiftNewsHub/internal/publisher"
	"github.com/LJTian/GiftNewsHub/internal/storage"
)

const webhookPath = "/telegram/webhook"

type Options struct {
	BasicAuthUser string
	BasicAuthPass string
	JWTSecret     string
	CORSOrigins   []string
}

type Server struct {
	store     *storage.Store
	publisher *publisher.Publisher
	bot       *bot.Responder
	opts      Options
	logger    *slog.Logger

	// background work started by requests runs under ctx
	ctx context.Context
	wg  sync.WaitGroup
}

// NewServer wires the HTTP surface. responder may be nil when no bot token
// is configured; the webhook route then answers 503.
func NewServer(ctx context.Context, store *storage.Store, pub *publisher.Publisher, responder *bot.Responder, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     store,
		publisher: pub,
		bot:       responder,
		opts:      opts,
		logger:    logger,
		ctx:       ctx,
	}
}

// Handler builds the gin engine with middleware and all routes.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.opts.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if s.opts.BasicAuthUser != "" && s.opts.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(s.opts.BasicAuthUser, s.opts.BasicAuthPass))
	}
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.POST(webhookPath, s.webhook)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news", s.listNews)
		v1.GET("/news/categories", s.listCategories)
		v1.GET("/news/:id", s.getNews)
	}

	admin := adminMiddleware(s.opts.JWTSecret)
	tg := r.Group("/telegram", admin)
	{
		tg.POST("/publish-now", s.publishNow)
		tg.GET("/publish-status", s.publishStatus)
		tg.POST("/auto-publish", s.setAutoPublish)
		tg.GET("/published-news", s.publishedNews)
		tg.POST("/publish-specific/:id", s.publishSpecific)
		tg.DELETE("/unpublish/:id", s.unpublish)
		tg.GET("/channel-info", s.channelInfo)
		tg.GET("/bot-info", s.botInfo)
	}
	sources := r.Group("/api/v1/sources", admin)
	{
		sources.GET("", s.listSources)
		sources.POST("", s.createSource)
		sources.DELETE("/:id", s.deactivateSource)
	}
}

// Wait blocks until background publish runs started over HTTP finish.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
