package pricing

import "testing"

func TestClassifyTier(t *testing.T) {
	cases := []struct {
		name     string
		category string
		tags     []string
		want     Tier
	}{
		{name: "book category", category: "Kitap", want: TierReduced},
		{name: "food category", category: "Gıda", want: TierReduced},
		{name: "electronics", category: "Elektronik", want: TierStandard},
		{name: "food tag without category", tags: []string{"gıda"}, want: TierReduced},
		{name: "book tag among others", category: "Hobi", tags: []string{"yeni", "kitap"}, want: TierReduced},
		{name: "no metadata", want: TierStandard},
		{name: "upper case category", category: "KITAP", want: TierStandard},
		{name: "lower case category", category: "kitap", want: TierStandard},
		{name: "capitalised tag", tags: []string{"Kitap"}, want: TierStandard},
		{name: "trailing space tag", tags: []string{"kitap "}, want: TierStandard},
		{name: "ascii food spelling", category: "Gida", tags: []string{"gida"}, want: TierStandard},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyTier(tc.category, tc.tags); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestRate(t *testing.T) {
	if got := Rate(TierReduced).String(); got != "0.08" {
		t.Fatalf("expected reduced rate 0.08, got %s", got)
	}
	if got := Rate(TierStandard).String(); got != "0.18" {
		t.Fatalf("expected standard rate 0.18, got %s", got)
	}
	if got := Rate(Tier("unknown")).String(); got != "0.18" {
		t.Fatalf("expected fallback to standard rate, got %s", got)
	}
}
