package client

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/pdfconv/internal/client/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func columns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestInitDatabase_AppliesEveryMigration(t *testing.T) {
	ctx := context.Background()
	db, err := InitDatabase(ctx, filepath.Join(t.TempDir(), "pdfconv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	files, err := fs.Glob(migrations.Migrations, "*.sql")
	require.NoError(t, err)

	var version int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT MAX(version_id) FROM goose_db_version`).Scan(&version))
	assert.Equal(t, len(files), version)

	assert.ElementsMatch(t, []string{"key", "value", "updated_at"}, columns(t, db, "metadata"))
	assert.NotEmpty(t, columns(t, db, "jobs"))
}

func TestRunMigrations_Twice(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "pdfconv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
}

// ":memory:" must keep one connection or every query sees an empty schema.
func TestInitDatabase_InMemoryKeepsSchema(t *testing.T) {
	ctx := context.Background()
	db, err := InitDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for i := 0; i < 3; i++ {
		_, err := db.ExecContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`, string(rune('a'+i)), []byte("{}"))
		require.NoError(t, err)
	}

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM metadata`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestInitDatabase_BadPath(t *testing.T) {
	_, err := InitDatabase(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	assert.Error(t, err)
}
