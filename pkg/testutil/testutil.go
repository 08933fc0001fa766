package testutil

import (
	"database/sql"
	"pricescout-backend/pkg/migrations"
	"testing"
)

type DBParams struct {
	Schema string
	// if unspecified, it will use `:memory:`
	Path string
}

// OpenDB opens a migrated database that is closed when the test ends.
func OpenDB(t testing.TB, params DBParams) *sql.DB {
	t.Helper()

	path := params.Path
	if path == "" {
		path = ":memory:"
	}
	sqlDb, err := migrations.OpenAndMigrateDB(params.Schema, path, "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		sqlDb.Close()
	})
	return sqlDb
}
