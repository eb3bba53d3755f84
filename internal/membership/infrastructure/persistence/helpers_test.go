package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	sqlitedb "github.com/axyra/membership/internal/shared/infrastructure/database/sqlite"
	"github.com/axyra/membership/internal/shared/infrastructure/migrations"
)

func setupSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlitedb.Open(sqlitedb.InMemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.RunSQLiteMigrations(context.Background(), db))
	return db
}
