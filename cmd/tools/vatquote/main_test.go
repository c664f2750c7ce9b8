package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/cart"
)

func TestRunJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-json", "seramik-kupa:2", "suc-ve-ceza"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var view cart.View
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &view))
	require.Len(t, view.Lines, 2)
	require.True(t, view.Totals.TotalInclusive.Equal(decimal.NewFromInt(344)))
	require.True(t, view.Totals.TotalVAT.Equal(decimal.NewFromInt(44)))
	require.Equal(t, "₺344,00", view.Totals.TotalInclusiveDisplay)
}

func TestRunTable(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-locale", "en", "akilli-saat"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Contains(t, stdout.String(), "akilli-saat")
	require.Contains(t, stdout.String(), "₺2,499.00")
}

func TestRunBadInput(t *testing.T) {
	cases := [][]string{
		{},
		{"seramik-kupa:0"},
		{"seramik-kupa:x"},
		{"yok-boyle-urun"},
		{"akilli-saat:99"},
		{"filtre-kahve"},
		{"-locale", "!!", "seramik-kupa"},
	}
	for _, args := range cases {
		var stdout, stderr bytes.Buffer
		require.Equal(t, 1, run(context.Background(), args, &stdout, &stderr), args)
		require.NotEmpty(t, stderr.String())
	}
}

func TestRunMissingFixture(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 2, run(context.Background(), []string{"-fixture", "does-not-exist.yaml", "seramik-kupa"}, &stdout, &stderr))
}
