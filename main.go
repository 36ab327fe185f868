package main

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"sakanly/config"
	"sakanly/middleware"
	"sakanly/routes"
	"sakanly/services"
	"sakanly/store"
	"sakanly/utils"
	"sakanly/worker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Warnf("Failed to initialize sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	cipher, err := utils.NewCipher(config.AppConfig.EncryptionKey)
	if err != nil {
		logger.Fatalf("Failed to initialize cipher: %v", err)
	}

	var redisClient *redis.Client
	if config.AppConfig.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.AppConfig.Redis.Address,
			Password: config.AppConfig.Redis.Password,
			DB:       config.AppConfig.Redis.DB,
		})
	}

	st := store.New(config.DB)
	activity := services.NewActivityRecorder(st, logger)
	sequences := services.NewSequenceService(st, logger)
	templates := services.NewTemplateService(st, logger)
	runs := services.NewRunService(st, activity, logger)
	dispatcher := services.NewChannelDispatcher(cipher, logger)
	tick := services.NewTickService(st, dispatcher, activity, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tickWorker := worker.NewTickWorker(tick, redisClient, logger,
		time.Duration(config.AppConfig.TickIntervalSeconds)*time.Second)
	go tickWorker.Start(ctx)

	replyWorker := worker.NewReplyWorker(st, runs, activity, cipher, logger,
		time.Duration(config.AppConfig.ReplyPollMinutes)*time.Minute)
	go replyWorker.Start(ctx)

	app := fiber.New()
	app.Use(middleware.CORS())

	routes.SetupRoutes(app, routes.Deps{
		Store:     st,
		Sequences: sequences,
		Templates: templates,
		Runs:      runs,
		Cipher:    cipher,
		Logger:    logger,
	})

	logger.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
