package format

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMoney(t *testing.T) {
	cases := []struct {
		in   string
		lang string
		want string
	}{
		{in: "1234.56", lang: "tr", want: "₺1.234,56"},
		{in: "1234.555", lang: "tr", want: "₺1.234,56"},
		{in: "1234.554", lang: "tr", want: "₺1.234,55"},
		{in: "0", lang: "tr", want: "₺0,00"},
		{in: "999", lang: "tr", want: "₺999,00"},
		{in: "1000000", lang: "tr", want: "₺1.000.000,00"},
		{in: "84.745762711864406780", lang: "tr", want: "₺84,75"},
		{in: "1234.56", lang: "en", want: "₺1,234.56"},
		{in: "-18.005", lang: "tr", want: "-₺18,01"},
	}
	for _, tc := range cases {
		amount := decimal.RequireFromString(tc.in)
		got := Money(amount, Locale(tc.lang, Turkish))
		require.Equal(t, tc.want, got, "input %s (%s)", tc.in, tc.lang)
	}
}

func TestPercent(t *testing.T) {
	require.Equal(t, "%18", Percent(decimal.RequireFromString("0.18"), Turkish))
	require.Equal(t, "8%", Percent(decimal.RequireFromString("0.08"), English))
	require.Equal(t, "%12,5", Percent(decimal.RequireFromString("0.125"), Turkish))
}

func TestLocale(t *testing.T) {
	require.Equal(t, English, Locale("en-US,en;q=0.9", Turkish))
	require.Equal(t, Turkish, Locale("tr-TR", English))
	require.Equal(t, Turkish, Locale("", Turkish))
	require.Equal(t, English, Locale("not a locale;;", English))
}
