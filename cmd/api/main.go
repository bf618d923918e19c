package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/GiftNewsHub/internal/api"
	"github.com/LJTian/GiftNewsHub/internal/app"
	"github.com/LJTian/GiftNewsHub/internal/config"
	"github.com/LJTian/GiftNewsHub/internal/logging"
)

const shutdownGrace = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	logger := logging.New(cfg.LogLevel)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(cfg, logger)
	if err != nil {
		logger.Error("init failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	n, err := a.SeedSources(ctx)
	if err != nil {
		logger.Error("seed sources failed", "err", err)
		os.Exit(1)
	}
	logger.Info("sources seeded", "count", n)

	if a.Telegram != nil && cfg.Telegram.WebhookURL != "" {
		hook := cfg.Telegram.WebhookURL + "/telegram/webhook"
		if err := a.Telegram.SetWebhook(ctx, hook); err != nil {
			logger.Warn("set webhook failed", "url", hook, "err", err)
		} else {
			logger.Info("webhook registered", "url", hook)
		}
	}

	if a.Bot != nil {
		a.Bot.SetBaseContext(ctx)
	}
	a.Scheduler.Start(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		a.Publisher.RunForever(ctx)
	}()

	apiServer := api.NewServer(ctx, a.Store, a.Publisher, a.Bot, api.Options{
		BasicAuthUser: cfg.BasicAuthUser,
		BasicAuthPass: cfg.BasicAuthPass,
		JWTSecret:     cfg.JWTSecret,
		CORSOrigins:   cfg.CORSOrigins,
	}, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exit", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	<-loopDone
	apiServer.Wait()
	if a.Bot != nil {
		a.Bot.Wait()
	}
}
