package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pratojusto/backend/internal/api/handler"
	"pratojusto/backend/internal/chathub"
	"pratojusto/backend/internal/config"
	"pratojusto/backend/internal/identity"
	"pratojusto/backend/internal/lifecycle"
	"pratojusto/backend/internal/localization"
	"pratojusto/backend/internal/logger"
	"pratojusto/backend/internal/storage"
	"pratojusto/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*gorm.DB, *redis.Client, error) {
	// 1. PostgreSQL
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	log.Info("database and redis connections established")
	return db, rdb, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logger.New(cfg.Log)
	log.WithField("env", cfg.App.Environment).Info("starting Prato Justo backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	db, rdb, err := setupDependencies(ctx, cfg, log)
	if err != nil {
		log.Fatal(err)
	}
	s := storage.NewStorageService(db, rdb)
	if err := s.AutoMigrate(); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	directory := identity.NewDirectory(cfg.Auth)
	manager := lifecycle.NewManager(s, s, log)

	// 2. Chat Hub та маршрутизація
	hub := chathub.NewManagerService(s, s, log)
	threads := chathub.NewThreadRegistry(s, log)
	router := chathub.NewRouter(s, threads, hub, s, log)
	auth := chathub.NewSessionAuthenticator(directory, s, log)
	dispatcher := chathub.NewDispatcher(auth, hub, router, log)

	go hub.Run(ctx)

	if cfg.Telegram.Enabled {
		localizer, err := localization.NewLocalizer(cfg.Telegram.LocalesDir)
		if err != nil {
			log.Fatalf("failed to load locales: %v", err)
		}
		bot, err := telegram.NewBotService(cfg.Telegram.BotToken, hub, auth, router, s, localizer, log)
		if err != nil {
			log.Fatalf("failed to start telegram bot: %v", err)
		}
		go bot.Run(ctx)
	}

	// 3. Gin
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	h := handler.NewHandler(manager, router, threads, directory, s, hub, dispatcher, cfg.Realtime, log)
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.App.Port),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	router.Wait()
	_ = rdb.Close()
}
