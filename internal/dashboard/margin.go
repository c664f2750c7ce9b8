package dashboard

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/pricing"
)

// ErrInvalidInput is returned for out of range calculator input.
var ErrInvalidInput = errors.New("dashboard: invalid input")

var hundred = decimal.NewFromInt(100)

// MarginResult is the profit breakdown of a VAT-inclusive price against a cost.
type MarginResult struct {
	Tier          pricing.Tier     `json:"tier"`
	Rate          decimal.Decimal  `json:"rate"`
	Price         decimal.Decimal  `json:"price"`
	Cost          decimal.Decimal  `json:"cost"`
	NetPrice      decimal.Decimal  `json:"netPrice"`
	VAT           decimal.Decimal  `json:"vat"`
	Profit        decimal.Decimal  `json:"profit"`
	MarginPercent decimal.Decimal  `json:"marginPercent"`
	MarkupPercent *decimal.Decimal `json:"markupPercent"`
}

// Margin computes profit on VAT-exclusive revenue. The margin percent uses the
// unrounded exclusive price, which is positive for every positive price.
// Markup is nil when cost is zero.
func Margin(price, cost decimal.Decimal, tier pricing.Tier) (MarginResult, error) {
	if !price.IsPositive() {
		return MarginResult{}, fmt.Errorf("price must be positive: %w", ErrInvalidInput)
	}
	if cost.IsNegative() {
		return MarginResult{}, fmt.Errorf("cost must not be negative: %w", ErrInvalidInput)
	}
	if tier == "" {
		tier = pricing.TierStandard
	}
	if !tier.Valid() {
		return MarginResult{}, fmt.Errorf("unknown tier %q: %w", tier, ErrInvalidInput)
	}
	line, err := pricing.ComputeLine(pricing.LineItem{UnitPriceInclusive: price, Quantity: 1, Tier: tier})
	if err != nil {
		return MarginResult{}, err
	}
	exact := line.PriceExclusive
	net := exact.Round(2)
	vat := price.Sub(net)
	profit := net.Sub(cost)
	res := MarginResult{
		Tier:          tier,
		Rate:          line.Rate,
		Price:         price,
		Cost:          cost,
		NetPrice:      net,
		VAT:           vat,
		Profit:        profit,
		MarginPercent: exact.Sub(cost).Mul(hundred).DivRound(exact, 2),
	}
	if cost.IsPositive() {
		markup := profit.Mul(hundred).DivRound(cost, 2)
		res.MarkupPercent = &markup
	}
	return res, nil
}
