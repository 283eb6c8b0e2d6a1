package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civictrack/backend/internal/api/handler"
	"civictrack/backend/internal/config"
	"civictrack/backend/internal/eventhub"
	"civictrack/backend/internal/followers"
	"civictrack/backend/internal/imaging"
	"civictrack/backend/internal/localization"
	"civictrack/backend/internal/logging"
	"civictrack/backend/internal/messaging"
	"civictrack/backend/internal/notify"
	"civictrack/backend/internal/reports"
	"civictrack/backend/internal/storage"
	"civictrack/backend/internal/telegram"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// shutdownGrace bounds both the HTTP drain and the wait for pending fan-outs.
const shutdownGrace = 15 * time.Second

func setupDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect PostgreSQL", zap.Error(err))
	}

	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, realtime events stay on this instance")
		return db, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Warn("redis unreachable, realtime events stay on this instance", zap.Error(err))
		_ = rdb.Close()
		return db, nil
	}
	return db, rdb
}

func setupImages(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*imaging.Pipeline, aws.Config, bool) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Warn("AWS configuration unavailable, images are accepted inline only", zap.Error(err))
		return imaging.NewPipeline(nil, logger), aws.Config{}, false
	}
	if cfg.S3Bucket == "" {
		logger.Info("S3_BUCKET not set, images are accepted inline only")
		return imaging.NewPipeline(nil, logger), awsCfg, true
	}
	store := imaging.NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.AWSRegion, cfg.S3PublicBaseURL)
	return imaging.NewPipeline(store, logger), awsCfg, true
}

func main() {
	cfg, envLoaded := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = logger.Sync() }()

	if !envLoaded {
		logger.Debug("no .env file, using the process environment")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	logger.Info("starting civictrack backend", zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Persistence and the realtime hub
	db, rdb := setupDependencies(ctx, cfg, logger)
	store := storage.NewStorageService(db, rdb, logger)
	if err := store.Migrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	hub := eventhub.NewManager(logger)
	if rdb != nil {
		hub.StartRelay(ctx, store)
	}

	// 2. Images and notification channels
	images, awsCfg, awsOK := setupImages(ctx, cfg, logger)

	var channels notify.Channels
	if mailer := messaging.NewSMTPMailer(cfg.SMTP, logger); mailer != nil {
		channels.Email = mailer
	} else {
		logger.Info("SMTP_HOST not set, email notifications disabled")
	}
	if cfg.SMSEnabled && awsOK {
		channels.SMS = messaging.NewSNSTexter(sns.NewFromConfig(awsCfg), cfg.SMSSenderID, logger)
	}

	text, err := localization.NewDefault()
	if err != nil {
		logger.Fatal("failed to load locales", zap.Error(err))
	}

	if cfg.TelegramBotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			logger.Fatal("failed to start Telegram bot", zap.Error(err))
		}
		channels.Chat = telegram.NewSender(bot, logger)

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		botService := telegram.NewBotService(bot, store, text, cfg.JWTSecret, logger)
		go botService.Run(ctx, bot.GetUpdatesChan(u))
		logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))
	}

	// 3. Lifecycle core
	dispatcher := notify.NewDispatcher(store, channels, store, hub, text, cfg.NotifyConcurrency, logger)
	reportSvc := reports.NewService(store, images, hub, dispatcher, logger, reports.Options{
		StrictTransitions: cfg.StrictTransitions,
	})
	registry := followers.NewRegistry(reportSvc, logger)

	// 4. HTTP
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	handler.NewHandler(reportSvc, registry, hub, cfg.JWTSecret, cfg.MaxImageBytes, logger).Routes(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	dispatcher.Close()
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("pending notifications abandoned", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
