package cart_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

func line(price string, qty int, tier pricing.Tier) cart.Line {
	return cart.Line{
		ProductID:          uuid.New(),
		Slug:               "urun",
		Name:               "Ürün",
		Tags:               []string{"etiket"},
		UnitPriceInclusive: decimal.RequireFromString(price),
		Quantity:           qty,
		Tier:               tier,
	}
}

func TestCartTransitionsAreImmutable(t *testing.T) {
	empty := cart.New("demo", time.Unix(0, 0), time.Hour)
	first := line("118", 2, pricing.TierStandard)

	withOne, err := empty.AddItem(first)
	require.NoError(t, err)
	require.Empty(t, empty.Lines)
	require.Len(t, withOne.Lines, 1)

	incremented, err := withOne.AddItem(cart.Line{ProductID: first.ProductID, UnitPriceInclusive: first.UnitPriceInclusive, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, 2, withOne.Lines[0].Quantity)
	require.Equal(t, 5, incremented.Lines[0].Quantity)
	require.Len(t, incremented.Lines, 1)

	incremented.Lines[0].Tags[0] = "degisti"
	require.Equal(t, "etiket", withOne.Lines[0].Tags[0])

	cleared := incremented.Clear()
	require.Empty(t, cleared.Lines)
	require.Len(t, incremented.Lines, 1)
	require.Equal(t, incremented.ID, cleared.ID)
}

func TestCartAddItemValidation(t *testing.T) {
	c := cart.New("", time.Now(), time.Hour)
	_, err := c.AddItem(line("10", 0, pricing.TierStandard))
	require.ErrorIs(t, err, cart.ErrInvalidInput)
	_, err = c.AddItem(line("-1", 1, pricing.TierStandard))
	require.ErrorIs(t, err, cart.ErrInvalidInput)
	_, err = c.AddItem(line("0", 1, pricing.TierStandard))
	require.NoError(t, err)
}

func TestCartSetQuantity(t *testing.T) {
	a := line("118", 1, pricing.TierStandard)
	b := line("108", 1, pricing.TierReduced)
	c := cart.New("", time.Now(), time.Hour)
	c, err := c.AddItem(a)
	require.NoError(t, err)
	c, err = c.AddItem(b)
	require.NoError(t, err)

	updated, err := c.SetQuantity(a.ProductID, 4)
	require.NoError(t, err)
	require.Equal(t, 4, updated.Lines[0].Quantity)
	require.Equal(t, 1, c.Lines[0].Quantity)
	require.Equal(t, 5, updated.Quantity())

	removed, err := updated.SetQuantity(a.ProductID, 0)
	require.NoError(t, err)
	require.Len(t, removed.Lines, 1)
	require.Equal(t, b.ProductID, removed.Lines[0].ProductID)

	_, err = c.SetQuantity(a.ProductID, -1)
	require.ErrorIs(t, err, cart.ErrInvalidInput)
	_, err = c.SetQuantity(uuid.New(), 1)
	require.ErrorIs(t, err, cart.ErrItemNotFound)
	_, err = c.RemoveItem(uuid.New())
	require.ErrorIs(t, err, cart.ErrItemNotFound)
}

func TestCartPricingItemsPreserveOrder(t *testing.T) {
	c := cart.New("", time.Now(), time.Hour)
	prices := []string{"118", "108", "50"}
	tiers := []pricing.Tier{pricing.TierStandard, pricing.TierReduced, pricing.TierStandard}
	for i, p := range prices {
		var err error
		c, err = c.AddItem(line(p, i+1, tiers[i]))
		require.NoError(t, err)
	}
	items := c.PricingItems()
	require.Len(t, items, 3)
	for i, it := range items {
		require.True(t, it.UnitPriceInclusive.Equal(decimal.RequireFromString(prices[i])))
		require.Equal(t, i+1, it.Quantity)
		require.Equal(t, tiers[i], it.Tier)
	}
}

func TestPriceRecomputesTotals(t *testing.T) {
	c := cart.New("", time.Now(), time.Hour)
	c, err := c.AddItem(line("118", 2, pricing.TierStandard))
	require.NoError(t, err)
	c, err = c.AddItem(line("108", 1, pricing.TierReduced))
	require.NoError(t, err)

	q, err := cart.Price(c)
	require.NoError(t, err)
	require.True(t, q.Totals.TotalInclusive.Equal(decimal.NewFromInt(344)))
	require.True(t, q.Totals.SubtotalExclusive.Equal(decimal.NewFromInt(300)))
	require.True(t, q.Totals.TotalVAT.Equal(decimal.NewFromInt(44)))
	require.True(t, q.Totals.VATByTier[pricing.TierStandard].Equal(decimal.NewFromInt(36)))
	require.True(t, q.Totals.VATByTier[pricing.TierReduced].Equal(decimal.NewFromInt(8)))
	require.Len(t, q.Lines, 2)
	require.True(t, q.Lines[0].Computation.LineTotalInclusive.Equal(decimal.NewFromInt(236)))

	empty, err := cart.Price(c.Clear())
	require.NoError(t, err)
	require.True(t, empty.Totals.TotalInclusive.IsZero())
}

func TestExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cart.New("", now, time.Hour)
	require.False(t, c.Expired(now.Add(59*time.Minute)))
	require.True(t, c.Expired(now.Add(time.Hour)))
}

func TestPriceFailureIsInvalidInput(t *testing.T) {
	c := cart.Cart{ID: uuid.New(), Lines: []cart.Line{line("10.00", 0, pricing.TierStandard)}}
	_, err := cart.Price(c)
	require.ErrorIs(t, err, cart.ErrInvalidInput)
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
}
