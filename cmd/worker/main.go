package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"checkin/internal/attendance"
	"checkin/internal/config"
	"checkin/internal/events"
	"checkin/internal/queue"
	"checkin/internal/relay"
	"checkin/internal/store"
	"checkin/internal/telemetry"
)

// Worker drains recorded attendance events from the queue and publishes them to NATS.
func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	logger := cfg.Logger().With("component", "worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	shutdownTracing, err := telemetry.Setup(ctx, "checkin-worker", cfg.OTELEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer shutdownTracing(context.Background())

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.QueueBackend == "memory" {
		logger.Error("QUEUE_BACKEND=memory is drained by the api process; the worker needs redis")
		os.Exit(1)
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	if redisClient == nil {
		logger.Error("REDIS_ADDR is required")
		os.Exit(1)
	}
	defer redisClient.Close()
	q := queue.New(cfg.QueueBackend, redisClient.Raw(), cfg.QueueKey)

	var pub events.Publisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		nats, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			logger.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		pub = nats
		logger.Info("nats connected", "url", cfg.NATSURL)
	} else {
		logger.Warn("NATS_URL not set, recorded events are consumed but not published")
	}
	defer pub.Close()

	repo := attendance.NewRepository(db.Client)
	r := relay.New(q, repo, pub, cfg.NATSSubject, logger)
	if err := r.Run(ctx); err != nil {
		logger.Error("queue consume init failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
