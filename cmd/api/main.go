package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"checkin/internal/attendance"
	"checkin/internal/auth"
	"checkin/internal/config"
	"checkin/internal/events"
	"checkin/internal/export"
	"checkin/internal/queue"
	"checkin/internal/relay"
	"checkin/internal/server"
	"checkin/internal/store"
	"checkin/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "checkin-api", cfg.OTELEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer shutdownTracing(context.Background())

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	q := queue.New(cfg.QueueBackend, redisClient.Raw(), cfg.QueueKey)

	loc, _ := cfg.Location()
	repo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(repo, attendance.Options{
		PageSize:          cfg.PageSize,
		ConfirmationDelay: cfg.ConfirmationDelay,
		DedupWindow:       cfg.DedupWindow,
		Location:          loc,
		Logger:            logger.With("component", "attendance"),
		Queue:             q,
	})

	// The in-memory queue only drains inside this process.
	if _, ok := q.(*queue.InMemory); ok {
		pub := newPublisher(cfg, logger)
		defer pub.Close()
		r := relay.New(q, repo, pub, cfg.NATSSubject, logger.With("component", "relay"))
		go func() {
			if err := r.Run(ctx); err != nil {
				logger.Error("relay failed", "error", err)
			}
		}()
	}

	var exporter server.Exporter
	if cfg.ExportBucket != "" {
		dest, err := export.NewS3Destination(ctx, cfg.ExportBucket, cfg.ExportRegion, cfg.ExportEndpoint)
		if err != nil {
			return err
		}
		exporter = export.New(svc, dest, cfg.ExportPrefix)
		logger.Info("export configured", "bucket", cfg.ExportBucket)
	} else {
		logger.Info("export not configured (EXPORT_S3_BUCKET not set)")
	}

	health := map[string]server.HealthCheck{"db": db.Healthy}
	if redisClient != nil {
		health["redis"] = redisClient.Healthy
	}

	h := server.New(svc, exporter, server.AuthConfig{
		Admin:      auth.Admin{Email: cfg.AdminEmail, PasswordHash: cfg.AdminPasswordHash},
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		TTL:        cfg.AccessTTL,
	}, health, logger)
	r := server.NewRouter(h, server.RouterConfig{
		RateLimitPerMin: cfg.RateLimitPerMin,
		Production:      cfg.Production(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", "error", err)
	}
	logger.Info("server exited")
	return nil
}

// newPublisher connects to NATS when configured and falls back to a no-op publisher.
func newPublisher(cfg config.App, logger *slog.Logger) events.Publisher {
	if cfg.NATSURL == "" {
		return events.NoopPublisher{}
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		logger.Warn("nats unavailable, events will not be published", "error", err)
		return events.NoopPublisher{}
	}
	return pub
}
