package mongo

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage/storagetest"
)

func TestStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	storagetest.Run(t, func(t *testing.T) storage.Store {
		name := "bookstore_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
		db := client.Database(name)
		t.Cleanup(func() { _ = db.Drop(context.Background()) })

		s := New(db)
		require.NoError(t, s.EnsureIndexes(ctx))
		return s
	})
}

func TestMapErrorNoDocuments(t *testing.T) {
	require.ErrorIs(t, mapError(mongo.ErrNoDocuments, nil), storage.ErrNotFound)
	require.NoError(t, mapError(nil, nil))
}

func TestDecimalRoundTrip(t *testing.T) {
	for _, in := range []string{"0", "5.54", "123456.78"} {
		enc, err := toDecimal128(decimal.RequireFromString(in))
		require.NoError(t, err)
		out, err := fromDecimal128(enc)
		require.NoError(t, err)
		require.True(t, out.Equal(decimal.RequireFromString(in)), in)
	}
}
