package cart

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/noah-isme/storefront-api/internal/format"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

// LineView is the response shape of a priced cart line.
type LineView struct {
	ProductID                 string          `json:"productId"`
	Slug                      string          `json:"slug"`
	Name                      string          `json:"name"`
	Image                     string          `json:"image,omitempty"`
	Quantity                  int             `json:"quantity"`
	VATTier                   pricing.Tier    `json:"vatTier"`
	VATRate                   decimal.Decimal `json:"vatRate"`
	UnitPriceInclusive        decimal.Decimal `json:"unitPriceInclusive"`
	UnitPriceExclusive        decimal.Decimal `json:"unitPriceExclusive"`
	VATPerUnit                decimal.Decimal `json:"vatPerUnit"`
	LineSubtotalExclusive     decimal.Decimal `json:"lineSubtotalExclusive"`
	LineVATTotal              decimal.Decimal `json:"lineVatTotal"`
	LineTotalInclusive        decimal.Decimal `json:"lineTotalInclusive"`
	VATRateDisplay            string          `json:"vatRateDisplay"`
	UnitPriceInclusiveDisplay string          `json:"unitPriceInclusiveDisplay"`
	LineTotalInclusiveDisplay string          `json:"lineTotalInclusiveDisplay"`
}

// TierView is the VAT collected under one tier.
type TierView struct {
	Tier       pricing.Tier    `json:"tier"`
	Rate       decimal.Decimal `json:"rate"`
	VAT        decimal.Decimal `json:"vat"`
	VATDisplay string          `json:"vatDisplay"`
}

// TotalsView is the response shape of cart totals.
type TotalsView struct {
	SubtotalExclusive        decimal.Decimal `json:"subtotalExclusive"`
	TotalVAT                 decimal.Decimal `json:"totalVat"`
	TotalInclusive           decimal.Decimal `json:"totalInclusive"`
	VATByTier                []TierView      `json:"vatByTier"`
	SubtotalExclusiveDisplay string          `json:"subtotalExclusiveDisplay"`
	TotalVATDisplay          string          `json:"totalVatDisplay"`
	TotalInclusiveDisplay    string          `json:"totalInclusiveDisplay"`
}

// View is the response shape of a cart.
type View struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customerId,omitempty"`
	ItemCount  int        `json:"itemCount"`
	Lines      []LineView `json:"lines"`
	Totals     TotalsView `json:"totals"`
	Locale     string     `json:"locale"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

// tierOrder fixes the display order of tiers.
var tierOrder = []pricing.Tier{pricing.TierStandard, pricing.TierReduced}

// NewView renders a quote for the given locale.
func NewView(q Quote, lang language.Tag) View {
	lines := make([]LineView, 0, len(q.Lines))
	for _, l := range q.Lines {
		c := l.Computation
		lines = append(lines, LineView{
			ProductID:                 l.ProductID.String(),
			Slug:                      l.Slug,
			Name:                      l.Name,
			Image:                     l.Image,
			Quantity:                  l.Quantity,
			VATTier:                   l.Tier,
			VATRate:                   c.Rate,
			UnitPriceInclusive:        l.UnitPriceInclusive,
			UnitPriceExclusive:        c.PriceExclusive,
			VATPerUnit:                c.VATPerUnit,
			LineSubtotalExclusive:     c.LineSubtotalExclusive,
			LineVATTotal:              c.LineVATTotal,
			LineTotalInclusive:        c.LineTotalInclusive,
			VATRateDisplay:            format.Percent(c.Rate, lang),
			UnitPriceInclusiveDisplay: format.Money(l.UnitPriceInclusive, lang),
			LineTotalInclusiveDisplay: format.Money(c.LineTotalInclusive, lang),
		})
	}
	return View{
		ID:         q.Cart.ID.String(),
		CustomerID: q.Cart.CustomerID,
		ItemCount:  q.Cart.Quantity(),
		Lines:      lines,
		Totals:     NewTotalsView(q.Totals, lang),
		Locale:     lang.String(),
		CreatedAt:  q.Cart.CreatedAt,
		UpdatedAt:  q.Cart.UpdatedAt,
		ExpiresAt:  q.Cart.ExpiresAt,
	}
}

// NewTotalsView renders cart totals for the given locale.
func NewTotalsView(t pricing.CartTotals, lang language.Tag) TotalsView {
	tiers := make([]TierView, 0, len(t.VATByTier))
	for _, tier := range tierOrder {
		vat, ok := t.VATByTier[tier]
		if !ok {
			continue
		}
		tiers = append(tiers, TierView{Tier: tier, Rate: pricing.Rate(tier), VAT: vat, VATDisplay: format.Money(vat, lang)})
	}
	return TotalsView{
		SubtotalExclusive:        t.SubtotalExclusive,
		TotalVAT:                 t.TotalVAT,
		TotalInclusive:           t.TotalInclusive,
		VATByTier:                tiers,
		SubtotalExclusiveDisplay: format.Money(t.SubtotalExclusive, lang),
		TotalVATDisplay:          format.Money(t.TotalVAT, lang),
		TotalInclusiveDisplay:    format.Money(t.TotalInclusive, lang),
	}
}
