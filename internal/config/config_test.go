package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRateLimitDefaultsByEnvironment(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("RATE_LIMIT_GENERAL", "")
	t.Setenv("RATE_LIMIT_AUTH", "")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 200, cfg.RateLimit.General)
	assert.Equal(t, 5, cfg.RateLimit.Auth)

	t.Setenv("NODE_ENV", "development")
	cfg = Load()
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 1000, cfg.RateLimit.General)
	assert.Equal(t, 20, cfg.RateLimit.Auth)
}

func TestLoadRateLimitOverride(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("RATE_LIMIT_AUTH", "50")

	cfg := Load()
	assert.Equal(t, 50, cfg.RateLimit.Auth)
}

func TestExchangeRatesConvertThroughUSD(t *testing.T) {
	rates, err := NewExchangeRates(DefaultExchangeRates())
	require.NoError(t, err)

	got := rates.Convert(decimal.NewFromInt(100), "USD", "eur")
	assert.True(t, got.Equal(decimal.NewFromInt(92)), got.String())

	got = rates.Convert(decimal.NewFromFloat(278.5), "PKR", "USD")
	assert.True(t, got.Equal(decimal.NewFromInt(1)), got.String())

	got = rates.Convert(decimal.NewFromInt(7), "XYZ", "USD")
	assert.True(t, got.Equal(decimal.NewFromInt(7)), got.String())
}

func TestExchangeRatesRejectNonPositive(t *testing.T) {
	_, err := NewExchangeRates(map[string]float64{"EUR": 0})
	assert.Error(t, err)
}
