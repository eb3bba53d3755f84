package mcp

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/axyra/membership/adapter/cli"
	"github.com/axyra/membership/internal/app"
	"github.com/axyra/membership/pkg/config"
	"github.com/felixgeelhaar/mcp-go/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_RequiresDependencies(t *testing.T) {
	ctx := context.Background()

	assert.Error(t, Serve(ctx, nil, &cli.App{}, nil))
	assert.Error(t, Serve(ctx, &config.Config{}, nil, nil))
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)

	srv, err := NewServer(&cli.App{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, srv)
}

func TestMiddlewareStack_AddsAuthWithToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	open := middlewareStack("", logger)
	secured := middlewareStack("s3cret", logger)
	assert.Len(t, secured, len(open)+1)
}

func TestMCPLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := mcpLogger{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))}

	log.Debug("hidden")
	log.Warn("tool slow", middleware.Field{Key: "tool", Value: "membership.refresh"})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "tool=membership.refresh")
}

func TestFieldsToArgs(t *testing.T) {
	args := fieldsToArgs([]middleware.Field{
		{Key: "method", Value: "tools/call"},
		{Key: "duration_ms", Value: 12},
	})

	assert.Equal(t, []any{"method", "tools/call", "duration_ms", 12}, args)
}

func TestNewCLIApp(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		AppEnv:     "test",
		UserID:     "operator-1",
		LocalMode:  true,
		SQLitePath: filepath.Join(t.TempDir(), "membership.db"),
	}

	container, err := app.New(ctx, cfg, nil)
	require.NoError(t, err)
	defer container.Close()

	cliApp := NewCLIApp(container, cfg.UserID)
	assert.Same(t, container.MembershipService, cliApp.Membership)
	assert.Same(t, container.Health, cliApp.Health)
	assert.Equal(t, "operator-1", cliApp.UserOrDefault(""))
}
