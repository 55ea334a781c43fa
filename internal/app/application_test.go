package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/core/service"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/events"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/locks"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/system"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/config"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "app-test-secret"
	cfg.Auth.BcryptCost = bcrypt.MinCost
	return cfg
}

func capabilities(descs []service.Descriptor, name string) []string {
	for _, d := range descs {
		if d.Name == name {
			return d.Capabilities
		}
	}
	return nil
}

type countingLocker struct {
	inner *locks.Local
	calls int
}

func (c *countingLocker) Lock(ctx context.Context, key string) (func(), error) {
	c.calls++
	return c.inner.Lock(ctx, key)
}

func TestNewDefaults(t *testing.T) {
	application, err := New(Stores{}, nil, logger.Discard())
	require.NoError(t, err)

	assert.Equal(t, []string{"catalog", "categories", "accounts", "cart", "cart-sweeper"}, application.Services())
	require.NotNil(t, application.Sweeper)

	descs := application.Descriptors()
	require.Len(t, descs, 4)
	assert.NotContains(t, capabilities(descs, "cart"), "shared-lock")

	require.NoError(t, application.Start(context.Background()))
	require.NoError(t, application.Stop(context.Background()))
}

func TestNewWithoutSweeper(t *testing.T) {
	cfg := testConfig()
	cfg.Cart.SweepSchedule = "off"

	application, err := New(Stores{}, cfg, logger.Discard())
	require.NoError(t, err)
	assert.Nil(t, application.Sweeper)
	assert.NotContains(t, application.Services(), "cart-sweeper")
}

func TestNewRejectsBadSweepSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Cart.SweepSchedule = "every so often"

	_, err := New(Stores{}, cfg, logger.Discard())
	require.Error(t, err)
}

func TestOptionsReachCart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Cart.SweepSchedule = "off"
	recorder := &events.Recorder{}
	locker := &countingLocker{inner: locks.NewLocal()}

	application, err := New(Stores{}, cfg, logger.Discard(), WithPublisher(recorder), WithLocker(locker))
	require.NoError(t, err)

	caps := capabilities(application.Descriptors(), "cart")
	assert.Contains(t, caps, "shared-lock")
	assert.Contains(t, caps, "events")

	_, err = application.Seeder.Run(ctx)
	require.NoError(t, err)
	page, err := application.Catalog.ListBooks(ctx, service.PageRequest{Page: 1, Limit: 1})
	require.NoError(t, err)
	require.NotEmpty(t, page.Data)
	bookID := page.Data[0].ID

	view, err := application.Cart.SetItemQuantity(ctx, firstUserID(t, application), bookID, 1)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)

	assert.Equal(t, 1, locker.calls)
	assert.Len(t, recorder.OfType(events.TypeStockAdjusted), 1)
	assert.Len(t, recorder.OfType(events.TypeCartUpdated), 1)
}

func firstUserID(t *testing.T, a *Application) string {
	t.Helper()
	users, err := a.Accounts.ListUsers(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, users)
	return users[0].ID
}

func TestSharedMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Cart.SweepSchedule = "off"

	application, err := New(Stores{}, cfg, logger.Discard())
	require.NoError(t, err)
	_, err = application.Seeder.Run(ctx)
	require.NoError(t, err)

	// Books created through the catalog are visible to the category service.
	cats, err := application.Categories.List(ctx)
	require.NoError(t, err)
	var linked int
	for _, c := range cats {
		linked += len(c.BookIDs)
	}
	assert.Positive(t, linked)
}

type failingService struct{ system.NoopService }

func (failingService) Start(context.Context) error { return errors.New("boom") }

func TestAttachAndStartFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Cart.SweepSchedule = "off"
	application, err := New(Stores{}, cfg, logger.Discard())
	require.NoError(t, err)

	require.NoError(t, application.Attach(failingService{system.NoopService{ServiceName: "failing"}}))
	require.Error(t, application.Attach(system.NoopService{ServiceName: "catalog"}))

	err = application.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
}
