package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/noah-isme/storefront-api/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"PORT":                  "",
		"REDIS_URL":             "",
		"CART_TTL":              "",
		"CATALOG_DEFAULT_LIMIT": "",
		"CATALOG_MAX_LIMIT":     "",
		"RATE_LIMIT_STRATEGY":   "",
		"DEFAULT_LOCALE":        "",
		"LOW_STOCK_THRESHOLD":   "",
		"SECURITY_HSTS_ENABLED": "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.False(t, cfg.RedisEnabled())
	require.Equal(t, 168*time.Hour, cfg.CartTTL)
	require.Equal(t, 12, cfg.CatalogDefaultLimit)
	require.Equal(t, 48, cfg.CatalogMaxLimit)
	require.Equal(t, "sliding", cfg.RateLimitStrategy)
	require.Equal(t, language.Turkish, cfg.DefaultLocale)
	require.Equal(t, 5, cfg.LowStockThreshold)
	require.True(t, cfg.HSTSEnabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"PORT":                  ":9090",
		"REDIS_URL":             "redis://localhost:6379/0",
		"CART_TTL":              "2h",
		"CORS_ALLOWED_ORIGINS":  "https://shop.example.com, ,https://admin.example.com",
		"RATE_LIMIT_STRATEGY":   "FIXED",
		"DEFAULT_LOCALE":        "en",
		"LOW_STOCK_THRESHOLD":   "10",
		"BODY_LIMIT_BYTES":      "2048",
		"IDEMPOTENCY_TTL":       "not-a-duration",
		"SECURITY_HSTS_ENABLED": "false",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.True(t, cfg.RedisEnabled())
	require.Equal(t, 2*time.Hour, cfg.CartTTL)
	require.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	require.Equal(t, "fixed", cfg.RateLimitStrategy)
	require.Equal(t, language.English, cfg.DefaultLocale)
	require.Equal(t, 10, cfg.LowStockThreshold)
	require.Equal(t, int64(2048), cfg.BodyLimitBytes)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.False(t, cfg.HSTSEnabled)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{"RATE_LIMIT_STRATEGY": "token-bucket"})
	require.Error(t, err)

	_, err = config.LoadForTests(map[string]string{"CATALOG_DEFAULT_LIMIT": "50", "CATALOG_MAX_LIMIT": "10"})
	require.Error(t, err)

	_, err = config.LoadForTests(map[string]string{"DEFAULT_LOCALE": "!!"})
	require.Error(t, err)
}
