package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

func TestSweeperPrunesDanglingLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.book(t, "A", 10, "2")
	b := f.book(t, "B", 10, "3")
	user := uuid.NewString()
	_, err := f.svc.SetItemQuantity(ctx, user, a.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.SetItemQuantity(ctx, user, b.ID, 1)
	require.NoError(t, err)

	// Deleted directly in the store, bypassing DetachBook.
	require.NoError(t, f.store.DeleteBook(ctx, a.ID))

	sweeper, err := NewSweeper(f.svc, "@every 1h", logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, 1, sweeper.Sweep(ctx))
	assert.Equal(t, 0, sweeper.Sweep(ctx))

	c, err := f.store.GetCartByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, b.ID, c.Items[0].BookID)
}

func TestSweeperLifecycle(t *testing.T) {
	f := newFixture(t)
	_, err := NewSweeper(f.svc, "not a schedule", nil)
	require.Error(t, err)

	sweeper, err := NewSweeper(f.svc, "@every 1h", logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, "cart-sweeper", sweeper.Name())
	require.NoError(t, sweeper.Start(context.Background()))
	require.NoError(t, sweeper.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sweeper.Stop(ctx))
	require.NoError(t, sweeper.Stop(ctx))
}
