package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/restaurant-storefront/internal/apiclient"
	"github.com/jogardn/restaurant-storefront/internal/circuitbreaker"
	"github.com/jogardn/restaurant-storefront/internal/config"
	"github.com/jogardn/restaurant-storefront/internal/events"
	"github.com/jogardn/restaurant-storefront/internal/i18n"
	"github.com/jogardn/restaurant-storefront/internal/qrcode"
	"github.com/jogardn/restaurant-storefront/internal/status"
	"github.com/jogardn/restaurant-storefront/internal/storage"
	"github.com/jogardn/restaurant-storefront/internal/storefront"
	"github.com/jogardn/restaurant-storefront/internal/websocket"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

const sessionTTL = 30 * 24 * time.Hour

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, closeStore := openStore(ctx, cfg.Storage, logger)
	defer closeStore()

	// every replica has its own source so it can skip its own status echoes
	source := uuid.NewString()

	var publisher events.Publisher = events.NopPublisher{Logger: logger}
	if cfg.Kafka.Enabled() {
		producer, err := events.NewKafkaProducer(splitBrokers(cfg.Kafka.Brokers), logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		publisher = producer
	} else {
		logger.Info("KAFKA_BROKERS not configured - events are not published")
	}
	defer publisher.Close()

	broadcaster := status.NewBroadcaster(logger)
	defer broadcaster.Close()
	statusService := status.NewService(kv, broadcaster, publisher, source, logger)

	if cfg.Kafka.Enabled() {
		consumer, err := events.NewStatusConsumer(splitBrokers(cfg.Kafka.Brokers), cfg.Kafka.GroupID+"-"+source, statusService, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka consumer")
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.WithError(err).Error("Status consumer stopped")
			}
		}()
	}

	breakers := circuitbreaker.NewManager(logger)
	client := apiclient.New(apiclient.Config{
		BaseURL:      cfg.Backend.BaseURL,
		ProxyPath:    cfg.Backend.ProxyPath,
		Timeout:      cfg.Backend.Timeout,
		MaxFailures:  cfg.Backend.MaxFailures,
		BreakerReset: cfg.Backend.BreakerReset,
	}, nil, apiclient.NewKVTokenStore(kv, cfg.Backend.StaticToken), breakers, logger)

	hub := websocket.NewHub(cfg.Storefront.AllowedOrigins, func(ctx context.Context) (models.StatusEvent, bool) {
		open, err := statusService.IsOpen(ctx)
		if err != nil {
			return models.StatusEvent{}, false
		}
		return models.StatusEvent{
			Kind:   models.StatusEventRestaurant,
			Open:   &open,
			At:     time.Now().UTC(),
			Source: statusService.Source(),
		}, true
	}, logger)
	subscription := statusService.Broadcaster().Subscribe()
	defer statusService.Broadcaster().Unsubscribe(subscription)
	go hub.Run(ctx, subscription.C)

	server := storefront.NewServer(storefront.Options{
		BackendURL:     cfg.Backend.BaseURL,
		StaticToken:    cfg.Backend.StaticToken,
		ProxyPath:      cfg.Backend.ProxyPath,
		AllowedOrigins: cfg.Storefront.AllowedOrigins,
		SecureCookies:  cfg.Storefront.SecureCookies,
	}, kv, client, breakers, statusService, hub, publisher,
		qrcode.NewTableGenerator(cfg.Storefront.PublicMenuURL),
		i18n.NewFormatter(cfg.Storefront.CurrencyEN, cfg.Storefront.CurrencyAR),
		&http.Client{Timeout: cfg.Backend.Timeout}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":    cfg.Port,
			"backend": cfg.Backend.BaseURL,
			"storage": cfg.Storage.Backend,
			"source":  source,
		}).Info("Starting storefront")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

// openStore returns the process-wide key-value store and its closer.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (storage.KV, func()) {
	switch cfg.Backend {
	case "redis":
		client, err := storage.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		logger.WithField("addr", cfg.RedisURL).Info("Session storage on Redis")
		return storage.NewRedisStore(client, sessionTTL), func() { client.Close() }

	case "postgres":
		db, err := storage.OpenPostgres(ctx, cfg.Database.DSN(), 30)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		store := storage.NewPostgresStore(db)
		if err := store.CreateTables(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to create tables")
		}
		logger.WithField("host", cfg.Database.Host).Info("Session storage on Postgres")
		return store, func() { db.Close() }

	default:
		logger.Warn("Session storage in memory - sessions are lost on restart")
		return storage.NewMemoryStore(), func() {}
	}
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
