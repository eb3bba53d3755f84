// Command worker keeps membership usage fresh, moves lapsed paid
// subscriptions through past_due to canceled, and pushes plan and usage
// views to connected browser tabs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/axyra/membership/internal/app"
	"github.com/axyra/membership/internal/membership/application"
	"github.com/axyra/membership/internal/membership/application/uisync"
	"github.com/axyra/membership/internal/shared/infrastructure/eventbus"
	"github.com/axyra/membership/pkg/config"
	"github.com/axyra/membership/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger := observability.LoggerFromEnv()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger = observability.ServiceLogger("axyra-worker", cfg.LogLevel, cfg.IsProduction())
	logger.Info("starting axyra worker", "env", cfg.AppEnv, "local_mode", cfg.LocalMode)

	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize container: %w", err)
	}
	defer container.Close()

	hub := uisync.NewHub(logger, container.Metrics)
	syncer := uisync.NewSyncer(container.MembershipService, hub, logger)
	if err := attachSyncer(ctx, cfg, container, syncer, logger); err != nil {
		return err
	}

	scheduler := application.NewRefreshScheduler(container.MembershipService, application.SchedulerConfig{
		Interval:   cfg.UsageRefreshInterval,
		RunOnStart: true,
	}, logger, container.Metrics)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.WorkerHealthAddr != "" {
		mux := newMux(probes{
			health:  container.Health,
			ping:    container.DBConn.Ping,
			refresh: scheduler.GetStats,
			clients: hub.ClientCount,
		}, websocketHandler(cfg, hub, syncer, logger))
		go serveHTTP(ctx, cfg.WorkerHealthAddr, mux, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down worker", "refresh", scheduler.GetStats())
	return nil
}

// websocketHandler serves /ws to holders of a configured token. With no
// tokens there is nobody to authenticate, so the endpoint is not mounted.
func websocketHandler(cfg *config.Config, hub *uisync.Hub, syncer *uisync.Syncer, logger *slog.Logger) http.Handler {
	if len(cfg.WSAuthTokens) == 0 {
		logger.Warn("WS_AUTH_TOKENS not set, websocket sync disabled")
		return nil
	}
	return uisync.HandleWebSocket(hub, syncer, uisync.HandlerOptions{
		Tokens:         cfg.WSAuthTokens,
		OriginPatterns: cfg.WSAllowedOrigins,
		Logger:         logger,
	})
}

// attachSyncer feeds membership events to the syncer: from the in-process
// bus in brokerless mode, otherwise from the RabbitMQ queue. Without a broker
// outside development the worker refuses to start.
func attachSyncer(ctx context.Context, cfg *config.Config, container *app.Container, syncer *uisync.Syncer, logger *slog.Logger) error {
	if container.Bus != nil {
		container.Bus.Subscribe(syncer)
		logger.Info("ui sync attached to in-process bus")
		return nil
	}

	consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
		URL:       cfg.RabbitMQURL,
		QueueName: cfg.UISyncQueue,
		Exchange:  cfg.EventsExchange,
		Logger:    logger,
	})
	if err != nil {
		if !cfg.IsDevelopment() {
			return fmt.Errorf("start event consumer: %w", err)
		}
		logger.Warn("RabbitMQ not available, ui sync only pushes on connect", "error", err)
		return nil
	}

	consumer.Subscribe(syncer)
	go func() {
		<-ctx.Done()
		_ = consumer.Close()
	}()
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event consumer stopped", "error", err)
		}
	}()
	return nil
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("worker http server shutdown error", "error", err)
		}
	}()

	logger.Info("worker http server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("worker http server error", "error", err)
	}
}
