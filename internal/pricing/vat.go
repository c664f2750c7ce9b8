package pricing

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Tier identifies the VAT bracket a line item is taxed under.
type Tier string

const (
	// TierReduced applies to books and food.
	TierReduced Tier = "reduced"
	// TierStandard applies to everything else.
	TierStandard Tier = "standard"
)

var (
	reducedRate  = decimal.New(8, -2)
	standardRate = decimal.New(18, -2)
)

// Reduced tier markers. Matching is exact and case-sensitive.
var (
	reducedCategories = []string{"Kitap", "Gıda"}
	reducedTags       = []string{"kitap", "gıda"}
)

// Rate returns the VAT rate for the tier. Unknown tiers fall back to the standard rate.
func Rate(t Tier) decimal.Decimal {
	if t == TierReduced {
		return reducedRate
	}
	return standardRate
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t == TierReduced || t == TierStandard
}

// ClassifyTier maps catalog category and tag metadata to a VAT tier.
func ClassifyTier(category string, tags []string) Tier {
	if slices.Contains(reducedCategories, category) {
		return TierReduced
	}
	for _, tag := range tags {
		if slices.Contains(reducedTags, tag) {
			return TierReduced
		}
	}
	return TierStandard
}
