package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned when a line item violates the price or quantity bounds.
var ErrInvalidInput = errors.New("invalid input")

// divisionPrecision is the number of decimal places kept when extracting VAT.
const divisionPrecision = 18

// LineItem describes one priced cart line. UnitPriceInclusive already contains VAT.
type LineItem struct {
	UnitPriceInclusive decimal.Decimal `json:"unitPriceInclusive"`
	Quantity           int             `json:"quantity"`
	Tier               Tier            `json:"vatTier"`
}

// LineComputation holds the derived amounts for a single line.
type LineComputation struct {
	Rate                  decimal.Decimal `json:"rate"`
	PriceExclusive        decimal.Decimal `json:"priceExclusive"`
	VATPerUnit            decimal.Decimal `json:"vatPerUnit"`
	LineSubtotalExclusive decimal.Decimal `json:"lineSubtotalExclusive"`
	LineVATTotal          decimal.Decimal `json:"lineVatTotal"`
	LineTotalInclusive    decimal.Decimal `json:"lineTotalInclusive"`
}

// CartTotals aggregates line computations across a cart.
type CartTotals struct {
	SubtotalExclusive decimal.Decimal          `json:"subtotalExclusive"`
	VATByTier         map[Tier]decimal.Decimal `json:"vatByTier"`
	TotalVAT          decimal.Decimal          `json:"totalVat"`
	TotalInclusive    decimal.Decimal          `json:"totalInclusive"`
}

// Validate checks the line item bounds.
func (it LineItem) Validate() error {
	if it.UnitPriceInclusive.IsNegative() {
		return fmt.Errorf("unit price must not be negative: %w", ErrInvalidInput)
	}
	if it.Quantity < 1 {
		return fmt.Errorf("quantity must be at least 1: %w", ErrInvalidInput)
	}
	return nil
}

// ComputeLine derives VAT-exclusive and VAT amounts for a line. No rounding is applied.
func ComputeLine(it LineItem) (LineComputation, error) {
	if err := it.Validate(); err != nil {
		return LineComputation{}, err
	}
	rate := Rate(it.Tier)
	qty := decimal.NewFromInt(int64(it.Quantity))

	exclusive := it.UnitPriceInclusive.DivRound(decimal.NewFromInt(1).Add(rate), divisionPrecision)
	vat := it.UnitPriceInclusive.Sub(exclusive)
	return LineComputation{
		Rate:                  rate,
		PriceExclusive:        exclusive,
		VATPerUnit:            vat,
		LineSubtotalExclusive: exclusive.Mul(qty),
		LineVATTotal:          vat.Mul(qty),
		LineTotalInclusive:    it.UnitPriceInclusive.Mul(qty),
	}, nil
}

// ComputeCartTotals reduces the items into cart level totals. Any invalid line fails the whole call.
func ComputeCartTotals(items []LineItem) (CartTotals, error) {
	totals := CartTotals{
		SubtotalExclusive: decimal.Zero,
		VATByTier:         map[Tier]decimal.Decimal{},
		TotalVAT:          decimal.Zero,
		TotalInclusive:    decimal.Zero,
	}
	for i, it := range items {
		line, err := ComputeLine(it)
		if err != nil {
			return CartTotals{}, fmt.Errorf("line %d: %w", i, err)
		}
		tier := it.Tier
		if !tier.Valid() {
			tier = TierStandard
		}
		totals.SubtotalExclusive = totals.SubtotalExclusive.Add(line.LineSubtotalExclusive)
		totals.VATByTier[tier] = totals.VATByTier[tier].Add(line.LineVATTotal)
		totals.TotalVAT = totals.TotalVAT.Add(line.LineVATTotal)
		totals.TotalInclusive = totals.TotalInclusive.Add(line.LineTotalInclusive)
	}
	return totals, nil
}
