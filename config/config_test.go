package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

const sampleYAML = `
- platform: binance
  targets:
    BTC: "50"
    ETH: "30"
    USDT: "20"
  threshold: "2.5"
  mode: passive
  max_orders: 3
  trade: true
- platform: hyperliquid
  valuation_currency: usdc
  targets:
    HYPE: "60"
    USDC: "40"
  hyperliquid_pairs: ["hype/usdc"]
`

func TestParse(t *testing.T) {
	configs, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, configs, 2)

	b := configs[0]
	assert.Equal(t, PlatformBinance, b.Platform)
	assert.True(t, b.Targets["BTC"].Equal(decimal.NewFromInt(50)))
	assert.True(t, b.Threshold.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, domain.PriceModePassive, b.Mode)
	assert.Equal(t, 3, b.MaxOrders)
	assert.True(t, b.Trade)
	assert.Equal(t, "USDT", b.ValuationCurrency)
	assert.Equal(t, []string{"BTC", "ETH", "USDT"}, b.Assets())

	h := configs[1]
	assert.Equal(t, "USDC", h.ValuationCurrency)
	assert.Equal(t, domain.PriceModeMid, h.Mode)
	assert.Equal(t, defaultMaxOrders, h.MaxOrders)
	assert.True(t, h.Threshold.Equal(decimal.NewFromInt(1)))
	require.Len(t, h.HyperliquidPairs, 1)
	assert.Equal(t, "HYPE", h.HyperliquidPairs[0].Base)
	assert.Equal(t, "USDC", h.HyperliquidPairs[0].Quote)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty list", `[]`},
		{"unknown platform", `- {platform: kraken, targets: {BTC: "100"}}`},
		{"targets not 100", `- {platform: binance, targets: {BTC: "50", USDT: "40"}}`},
		{"bad decimal", `- {platform: binance, targets: {BTC: "abc"}}`},
		{"bad mode", `- {platform: binance, mode: aggressive, targets: {BTC: "100"}}`},
		{"negative threshold", `- {platform: binance, threshold: "-1", targets: {BTC: "100"}}`},
		{"fee too high", `- {platform: binance, maker_fee: "1", targets: {BTC: "100"}}`},
		{"hyperliquid without pairs", `- {platform: hyperliquid, targets: {HYPE: "100"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration), "got %v", err)
		})
	}
}

func TestParseTargets(t *testing.T) {
	targets, err := ParseTargets("btc 50, ETH:30\nUSDT=20")
	require.NoError(t, err)
	assert.Len(t, targets, 3)
	assert.True(t, targets["BTC"].Equal(decimal.NewFromInt(50)))
	assert.True(t, targets["ETH"].Equal(decimal.NewFromInt(30)))
	assert.True(t, targets["USDT"].Equal(decimal.NewFromInt(20)))

	for _, in := range []string{"", "BTC 50, BTC 50", "BTC", "BTC x, USDT 100", "BTC 60, USDT 30"} {
		_, err := ParseTargets(in)
		assert.True(t, errors.Is(err, domain.ErrConfiguration), "input %q", in)
	}
}

func TestGet_FlagsOnly(t *testing.T) {
	dir := t.TempDir()
	configs, err := Get([]string{
		"--config", filepath.Join(dir, "missing.yaml"),
	}, nil)
	require.Error(t, err, "explicit missing config file is an error")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	configs, err = Get([]string{"--targets", "BTC 50, USDT 50", "--force", "--max_orders", "2"}, nil)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	c := configs[0]
	assert.Equal(t, PlatformSimulate, c.Platform)
	assert.Equal(t, "USDT", c.ValuationCurrency)
	assert.Equal(t, domain.PriceModeMid, c.Mode)
	assert.Equal(t, 2, c.MaxOrders)
	assert.True(t, c.Force)
	assert.False(t, c.Trade)
	assert.Equal(t, defaultWALDir, c.WALDir)
}

func TestGet_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	configs, err := Get([]string{"--config", path, "--mode", "cheap", "--trade=false"}, nil)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	for _, c := range configs {
		assert.Equal(t, domain.PriceModeCheap, c.Mode)
		assert.False(t, c.Trade)
	}
	assert.Equal(t, 3, configs[0].MaxOrders, "unset flags keep yaml values")
	assert.Equal(t, PlatformHyperliquid, configs[1].Platform)
}

func TestSubcommand(t *testing.T) {
	cmd, rest := Subcommand([]string{"history", "--config", "x.yaml"})
	assert.Equal(t, "history", cmd)
	assert.Equal(t, []string{"--config", "x.yaml"}, rest)

	cmd, rest = Subcommand([]string{"--trade"})
	assert.Empty(t, cmd)
	assert.Equal(t, []string{"--trade"}, rest)
}
