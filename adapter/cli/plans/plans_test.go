package plans

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/axyra/membership/adapter/cli"
	"github.com/axyra/membership/internal/membership/application"
	"github.com/axyra/membership/internal/membership/domain"
	"github.com/axyra/membership/internal/membership/infrastructure/persistence"
	sqlitedb "github.com/axyra/membership/internal/shared/infrastructure/database/sqlite"
	"github.com/axyra/membership/internal/shared/infrastructure/migrations"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	overridesFile = ""
	listJSON = false
}

func newTestApp(t *testing.T) *cli.App {
	t.Helper()

	db, err := sqlitedb.Open(sqlitedb.InMemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.RunSQLiteMigrations(context.Background(), db))

	store := persistence.NewSQLiteDocumentStore(db)
	return cli.NewApp(application.NewService(application.ServiceConfig{
		Store: store,
		Repo:  persistence.NewDocumentSubscriptionRepository(store, nil),
		KV:    persistence.NewSQLiteKeyValueStore(db),
	}), nil)
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var output strings.Builder
	cmd.SetContext(context.Background())
	cmd.SetOut(&output)
	err := cmd.RunE(cmd, args)
	return output.String(), err
}

func TestListCmd_NoApp(t *testing.T) {
	resetFlags()
	cli.SetApp(nil)

	out, err := run(t, listCmd)
	assert.NoError(t, err)
	assert.Contains(t, out, "requires database connection")
}

func TestListCmd(t *testing.T) {
	resetFlags()
	cli.SetApp(newTestApp(t))
	defer cli.SetApp(nil)

	out, err := run(t, listCmd)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[1], "free"))
	assert.True(t, strings.HasPrefix(lines[4], "enterprise"))
	assert.Contains(t, lines[3], "$150.000")
	assert.Contains(t, lines[4], "∞")
}

func TestShowCmd(t *testing.T) {
	resetFlags()
	cli.SetApp(newTestApp(t))
	defer cli.SetApp(nil)

	out, err := run(t, showCmd, "basic")
	require.NoError(t, err)
	assert.Contains(t, out, "Basic ($50.000/month)")
	assert.Contains(t, out, "reports_basic")

	_, err = run(t, showCmd, "gold")
	assert.ErrorIs(t, err, domain.ErrUnknownPlan)
}

func TestOverrideAndReset(t *testing.T) {
	resetFlags()
	app := newTestApp(t)
	cli.SetApp(app)
	defer cli.SetApp(nil)

	path := filepath.Join(t.TempDir(), "overrides.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"free": {"limits": {"employees": 8}}}`), 0o600))

	overridesFile = path
	out, err := run(t, overrideCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Applied overrides for 1 plans")

	free, err := app.Membership.Catalog(context.Background()).GetPlan(domain.PlanFree)
	require.NoError(t, err)
	assert.Equal(t, domain.Max(8), free.Limit(domain.ResourceEmployees))

	_, err = run(t, resetCmd)
	require.NoError(t, err)
	free, err = app.Membership.Catalog(context.Background()).GetPlan(domain.PlanFree)
	require.NoError(t, err)
	assert.Equal(t, domain.Max(5), free.Limit(domain.ResourceEmployees))
}

func TestOverrideCmd_Errors(t *testing.T) {
	resetFlags()
	cli.SetApp(newTestApp(t))
	defer cli.SetApp(nil)

	_, err := run(t, overrideCmd)
	assert.ErrorContains(t, err, "--file is required")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))
	overridesFile = path
	_, err = run(t, overrideCmd)
	assert.ErrorContains(t, err, "invalid overrides file")
}
