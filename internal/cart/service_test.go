package cart_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

type fixture struct {
	svc    *cart.Service
	repo   *catalog.Repository
	events *events.MemoryStore
	now    *time.Time
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo, err := catalog.NewSeededRepository()
	require.NoError(t, err)
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{Repository: repo})
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	store := cart.NewMemoryStore()
	store.Now = func() time.Time { return now }
	eventStore := events.NewMemoryStore(0)
	svc, err := cart.NewService(cart.ServiceConfig{
		Store:   store,
		Catalog: catalogSvc,
		Events:  &events.Bus{Store: eventStore},
		Logger:  zerolog.Nop(),
		TTL:     time.Hour,
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	return fixture{svc: svc, repo: repo, events: eventStore, now: &now}
}

func TestServiceRequiresDependencies(t *testing.T) {
	_, err := cart.NewService(cart.ServiceConfig{})
	require.Error(t, err)
	_, err = cart.NewService(cart.ServiceConfig{Store: cart.NewMemoryStore()})
	require.Error(t, err)
}

func TestServiceAddItemSnapshotsProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, "demo", c.CustomerID)

	c, err = f.svc.AddItem(ctx, c.ID, "seramik-kupa", 2)
	require.NoError(t, err)
	c, err = f.svc.AddItem(ctx, c.ID, "suc-ve-ceza", 1)
	require.NoError(t, err)
	require.Len(t, c.Lines, 2)
	require.Equal(t, pricing.TierStandard, c.Lines[0].Tier)
	require.Equal(t, pricing.TierReduced, c.Lines[1].Tier)
	require.Equal(t, "https://cdn.example.com/products/kupa.jpg", c.Lines[0].Image)

	kupa, err := f.repo.ProductBySlug(ctx, "seramik-kupa")
	require.NoError(t, err)
	kupa.Price = decimal.NewFromInt(500)
	require.NoError(t, f.repo.SaveProduct(ctx, kupa))

	q, err := f.svc.Quote(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, q.Totals.TotalInclusive.Equal(decimal.NewFromInt(344)))
	require.True(t, q.Totals.TotalVAT.Equal(decimal.NewFromInt(44)))
}

func TestServiceAddItemTagDrivenTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Create(ctx, "")
	require.NoError(t, err)

	c, err = f.svc.AddItem(ctx, c.ID, "go-ile-programlama", 1)
	require.NoError(t, err)
	require.Equal(t, pricing.TierReduced, c.Lines[0].Tier)
}

func TestServiceAddItemErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Create(ctx, "")
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, c.ID, "yok", 1)
	require.ErrorIs(t, err, cart.ErrProductNotFound)
	_, err = f.svc.AddItem(ctx, c.ID, "seramik-kupa", 0)
	require.ErrorIs(t, err, cart.ErrInvalidInput)
	_, err = f.svc.AddItem(ctx, c.ID, "filtre-kahve", 1)
	require.ErrorIs(t, err, cart.ErrInsufficientStock)
	_, err = f.svc.AddItem(ctx, uuid.New(), "seramik-kupa", 1)
	require.ErrorIs(t, err, cart.ErrNotFound)

	_, err = f.svc.AddItem(ctx, c.ID, "pamuklu-tisort", 3)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, c.ID, "pamuklu-tisort", 1)
	require.ErrorIs(t, err, cart.ErrInsufficientStock)
}

func TestServiceSetQuantityAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Create(ctx, "")
	require.NoError(t, err)
	c, err = f.svc.AddItem(ctx, c.ID, "seramik-kupa", 1)
	require.NoError(t, err)
	productID := c.Lines[0].ProductID

	c, err = f.svc.SetQuantity(ctx, c.ID, productID, 5)
	require.NoError(t, err)
	require.Equal(t, 5, c.Lines[0].Quantity)

	_, err = f.svc.SetQuantity(ctx, c.ID, productID, 500)
	require.ErrorIs(t, err, cart.ErrInsufficientStock)
	_, err = f.svc.SetQuantity(ctx, c.ID, productID, -2)
	require.ErrorIs(t, err, cart.ErrInvalidInput)

	c, err = f.svc.SetQuantity(ctx, c.ID, productID, 0)
	require.NoError(t, err)
	require.Empty(t, c.Lines)

	_, err = f.svc.RemoveItem(ctx, c.ID, productID)
	require.ErrorIs(t, err, cart.ErrItemNotFound)
}

func TestServiceClearEmitsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Create(ctx, "demo")
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, c.ID, "seramik-kupa", 1)
	require.NoError(t, err)

	c, err = f.svc.Clear(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, c.Lines)

	emitted := f.events.List(ctx, events.TopicCartCleared)
	require.Len(t, emitted, 1)
	require.Equal(t, c.ID.String(), emitted[0].AggregateID)
}

func TestServiceMutationsExtendExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Create(ctx, "")
	require.NoError(t, err)

	*f.now = f.now.Add(50 * time.Minute)
	c, err = f.svc.AddItem(ctx, c.ID, "seramik-kupa", 1)
	require.NoError(t, err)
	require.Equal(t, f.now.Add(time.Hour), c.ExpiresAt)

	*f.now = f.now.Add(61 * time.Minute)
	_, err = f.svc.Get(ctx, c.ID)
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestServiceConcurrentAdds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.Create(ctx, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddItem(ctx, c.ID, "seramik-kupa", 1)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 20, got.Lines[0].Quantity)
}
