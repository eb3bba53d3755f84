package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string `validate:"oneof=development test production"`
	LogLevel string `validate:"oneof=debug info warn error"`
	// UserID is the operator acting through the CLI and MCP server when no
	// user is present in the request context.
	UserID string

	// Storage. An empty DatabaseURL selects local mode (SQLite).
	DatabaseURL string
	SQLitePath  string
	LocalMode   bool
	MaxDBConns  int `validate:"gte=1,lte=1000"`

	// Redis cache for server mode
	RedisURL       string
	RedisKeyPrefix string        `validate:"required"`
	CacheTTL       time.Duration `validate:"gte=0"`

	// RabbitMQ notifications
	RabbitMQURL      string
	EventsExchange   string `validate:"required"`
	UISyncQueue      string `validate:"required"`
	EventsBrokerless bool

	// Document store circuit breaker
	BreakerFailureThreshold uint32        `validate:"gte=1"`
	BreakerTimeout          time.Duration `validate:"gt=0"`

	// Worker
	WorkerHealthAddr     string        `validate:"required"`
	UsageRefreshInterval time.Duration `validate:"gte=1s"`
	WSAllowedOrigins     []string
	// WSAuthTokens maps a websocket bearer token to the user it signs in.
	// Without tokens the worker does not serve /ws.
	WSAuthTokens map[string]string

	// GracePeriod is how long a lapsed paid subscription stays past_due
	// before the worker cancels it. Zero uses the seven day default.
	GracePeriod time.Duration `validate:"gte=0"`

	// MCP
	MCPAddr      string `validate:"required"`
	MCPAuthToken string
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory when one exists. Values that fail to parse are
// reported rather than replaced by defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := &envReader{}
	databaseURL := env.str("DATABASE_URL", "")

	cfg := &Config{
		AppEnv:   env.str("APP_ENV", "development"),
		LogLevel: strings.ToLower(env.str("LOG_LEVEL", "info")),
		UserID:   env.str("AXYRA_USER_ID", ""),

		DatabaseURL: databaseURL,
		SQLitePath:  env.str("SQLITE_PATH", ""),
		LocalMode:   env.boolean("AXYRA_LOCAL_MODE", databaseURL == ""),
		MaxDBConns:  env.integer("DATABASE_MAX_CONNS", 10),

		RedisURL:       env.str("REDIS_URL", ""),
		RedisKeyPrefix: env.str("REDIS_KEY_PREFIX", "axyra"),
		CacheTTL:       env.duration("CACHE_TTL", 0),

		RabbitMQURL:    env.str("RABBITMQ_URL", ""),
		EventsExchange: env.str("EVENTS_EXCHANGE", "axyra.membership.events"),
		UISyncQueue:    env.str("UISYNC_QUEUE", "axyra.membership.uisync"),

		BreakerFailureThreshold: env.count("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerTimeout:          env.duration("BREAKER_TIMEOUT", 30*time.Second),

		WorkerHealthAddr:     env.str("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
		UsageRefreshInterval: env.duration("USAGE_REFRESH_INTERVAL", 5*time.Minute),
		WSAllowedOrigins:     env.list("WS_ALLOWED_ORIGINS"),
		WSAuthTokens:         env.tokens("WS_AUTH_TOKENS"),
		GracePeriod:          env.duration("SUBSCRIPTION_GRACE_PERIOD", 7*24*time.Hour),

		MCPAddr:      env.str("MCP_ADDR", "0.0.0.0:8082"),
		MCPAuthToken: env.str("MCP_AUTH_TOKEN", ""),
	}
	cfg.EventsBrokerless = cfg.RabbitMQURL == ""

	if err := env.err(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !c.LocalMode && c.DatabaseURL == "" {
		return errors.New("invalid configuration: DATABASE_URL is required when local mode is disabled")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// envReader looks up variables and collects parse failures. Unset and empty
// variables take the default.
type envReader struct {
	errs []error
}

func (r *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (r *envReader) fail(key, raw string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
}

func (r *envReader) err() error {
	return errors.Join(r.errs...)
}

func (r *envReader) str(key, def string) string {
	if v, ok := r.lookup(key); ok {
		return v
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	raw, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(key, raw, err)
		return def
	}
	return n
}

// count parses a non-negative 32-bit integer.
func (r *envReader) count(key string, def uint32) uint32 {
	raw, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		r.fail(key, raw, err)
		return def
	}
	return uint32(n)
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	raw, ok := r.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(key, raw, err)
		return def
	}
	return d
}

func (r *envReader) boolean(key string, def bool) bool {
	raw, ok := r.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		r.fail(key, raw, err)
		return def
	}
	return b
}

// list splits a comma separated value, dropping empty items.
func (r *envReader) list(key string) []string {
	raw, ok := r.lookup(key)
	if !ok {
		return nil
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// tokens parses "user:token" pairs separated by commas into a token to user
// map. A malformed pair or a token given to two users fails the load.
func (r *envReader) tokens(key string) map[string]string {
	raw, ok := r.lookup(key)
	if !ok {
		return nil
	}
	out := make(map[string]string)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		user, token, found := strings.Cut(item, ":")
		user, token = strings.TrimSpace(user), strings.TrimSpace(token)
		if !found || user == "" || token == "" {
			r.fail(key, item, errors.New("expected user:token"))
			continue
		}
		if prev, dup := out[token]; dup && prev != user {
			r.fail(key, item, fmt.Errorf("token already assigned to %s", prev))
			continue
		}
		out[token] = user
	}
	return out
}
