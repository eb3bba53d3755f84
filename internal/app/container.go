package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/axyra/membership/internal/membership/application"
	"github.com/axyra/membership/internal/membership/domain"
	"github.com/axyra/membership/internal/membership/infrastructure/auth"
	"github.com/axyra/membership/internal/membership/infrastructure/persistence"
	"github.com/axyra/membership/internal/shared/infrastructure/database"
	"github.com/axyra/membership/internal/shared/infrastructure/database/postgres"
	"github.com/axyra/membership/internal/shared/infrastructure/database/sqlite"
	"github.com/axyra/membership/internal/shared/infrastructure/eventbus"
	"github.com/axyra/membership/internal/shared/infrastructure/migrations"
	"github.com/axyra/membership/pkg/config"
	"github.com/axyra/membership/pkg/observability"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Storage
	DocumentStore    domain.DocumentStore
	Breaker          *persistence.BreakerDocumentStore
	KV               domain.KeyValueStore
	SubscriptionRepo domain.SubscriptionRepository

	// Events. Bus is set when no broker is configured; subscribers attach to
	// it directly instead of consuming from RabbitMQ.
	EventPublisher eventbus.Publisher
	Bus            *eventbus.InProcessBus
	Notifier       *eventbus.Notifier

	// Observability
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry

	// Services
	Auth              *auth.ContextAuth
	MembershipService *application.Service
}

// New builds the container for the configured mode.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if cfg.LocalMode {
		return NewLocalContainer(ctx, cfg, logger)
	}
	return NewContainer(ctx, cfg, logger)
}

// NewContainer creates a server-mode container backed by PostgreSQL, Redis
// and RabbitMQ.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := newContainer(cfg, logger)

	conn, err := database.NewConnection(ctx, database.Config{
		Driver:   database.DriverPostgres,
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.MaxDBConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	pg, ok := conn.(*postgres.Connection)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("expected PostgreSQL connection, got %T", conn)
	}
	c.DBConn = pg
	c.DBDriver = database.DriverPostgres
	logger.Info("connected to database")

	logger.Info("running PostgreSQL migrations")
	if err := migrations.RunPostgresMigrations(ctx, pg.SQLDB()); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Redis is the preferred cache; the kv_entries table stands in without it.
	c.KV = persistence.NewPostgresKeyValueStore(pg.Pool())
	if cfg.RedisURL != "" {
		if err := c.connectRedis(ctx); err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, err
			}
			logger.Warn("Redis not available, caching in PostgreSQL", "error", err)
		}
	}

	if cfg.EventsBrokerless {
		c.useInProcessBus()
	} else {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.EventsExchange, logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
			c.EventPublisher = eventbus.NewNoopPublisher(logger)
		} else {
			c.EventPublisher = publisher
			c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(func(context.Context) error {
				if publisher.IsClosed() {
					return fmt.Errorf("connection closed")
				}
				return nil
			}))
		}
	}

	c.wire(ctx, persistence.NewPostgresDocumentStore(pg.Pool()))
	logger.Info("server mode container initialized", "driver", "postgres")
	return c, nil
}

// NewLocalContainer creates a container for local mode with SQLite.
// No PostgreSQL, Redis or RabbitMQ is required.
func NewLocalContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := newContainer(cfg, logger)

	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	lite, ok := conn.(*sqlite.Connection)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("expected SQLite connection, got %T", conn)
	}
	c.DBConn = lite
	c.DBDriver = database.DriverSQLite
	logger.Info("opened local database", "path", lite.Path())

	logger.Info("running SQLite migrations")
	if err := migrations.RunSQLiteMigrations(ctx, lite.DB()); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	c.KV = persistence.NewSQLiteKeyValueStore(lite.DB())
	c.useInProcessBus()
	c.wire(ctx, persistence.NewSQLiteDocumentStore(lite.DB()))

	logger.Info("local mode container initialized",
		"database", cfg.SQLitePath,
		"driver", "sqlite",
	)
	return c, nil
}

func newContainer(cfg *config.Config, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
		Auth:    auth.NewContextAuth(cfg.UserID),
	}
}

func (c *Container) connectRedis(ctx context.Context) error {
	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.RedisClient = client
	c.KV = persistence.NewRedisKeyValueStore(client, c.Config.RedisKeyPrefix, c.Config.CacheTTL)
	c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) useInProcessBus() {
	c.Bus = eventbus.NewInProcessBus(c.Logger)
	c.EventPublisher = c.Bus
}

// wire builds the membership service on top of the raw document store.
func (c *Container) wire(ctx context.Context, store domain.DocumentStore) {
	breakerCfg := persistence.DefaultBreakerConfig()
	if c.Config.BreakerFailureThreshold > 0 {
		breakerCfg.FailureThreshold = c.Config.BreakerFailureThreshold
	}
	if c.Config.BreakerTimeout > 0 {
		breakerCfg.Timeout = c.Config.BreakerTimeout
	}
	c.Breaker = persistence.NewBreakerDocumentStore(store, breakerCfg, c.Logger)
	c.DocumentStore = c.Breaker
	c.SubscriptionRepo = persistence.NewDocumentSubscriptionRepository(c.DocumentStore, c.Logger)
	c.Notifier = eventbus.NewNotifier(c.EventPublisher, c.Logger)

	c.Health.Register("database", observability.DatabaseHealthChecker(c.DBConn.Ping))
	c.Health.Register(breakerCfg.Name, observability.CircuitBreakerHealthChecker(breakerCfg.Name, func() string {
		return c.Breaker.State().String()
	}))

	c.MembershipService = application.NewService(application.ServiceConfig{
		Store:       c.DocumentStore,
		Repo:        c.SubscriptionRepo,
		KV:          c.KV,
		Auth:        c.Auth,
		Notifier:    c.Notifier,
		GracePeriod: c.Config.GracePeriod,
		Logger:      c.Logger,
		Metrics:     c.Metrics,
	})

	if err := c.MembershipService.LoadCatalogOverrides(ctx); err != nil {
		c.Logger.Warn("catalog overrides not applied, using built-in plans", "error", err)
	}
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err, "driver", c.DBDriver)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver)
		}
	}
}
