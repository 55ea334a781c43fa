package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage/storagetest"
)

func newSQLiteStore(t *testing.T) storage.Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "bookstore.db") + "?_pragma=busy_timeout(5000)"
	db, err := Open(context.Background(), DriverSQLite, dsn, PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(db))
	return New(db)
}

func TestSQLiteStore(t *testing.T) {
	storagetest.Run(t, newSQLiteStore)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t).(*Store)
	require.NoError(t, Migrate(s.DB()))

	version, dirty, err := MigrationVersion(s.DB())
	require.NoError(t, err)
	require.False(t, dirty)
	require.EqualValues(t, 1, version)
}
