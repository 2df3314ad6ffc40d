package setup

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbh4ou/CryptoRebalanceSVC/config"
	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

func TestBuildConfig(t *testing.T) {
	a := defaultAnswers()
	a.Platform = config.PlatformHyperliquid
	a.Quote = "usdc"
	a.Targets = "HYPE 70, USDC 30"
	a.HyperliquidPairs = "purr/usdc, HYPE/USDC"
	a.Trade = true

	cfgTmp, err := BuildConfig(a)
	require.NoError(t, err)
	assert.Equal(t, "USDC", cfgTmp.ValuationCurrency)
	assert.Equal(t, map[string]string{"HYPE": "70", "USDC": "30"}, cfgTmp.Targets)
	assert.Equal(t, []string{"HYPE/USDC", "PURR/USDC"}, cfgTmp.HyperliquidPairs)
	require.NotNil(t, cfgTmp.MaxOrders)
	assert.Equal(t, 5, *cfgTmp.MaxOrders)
	assert.True(t, cfgTmp.Trade)
}

func TestBuildConfig_Invalid(t *testing.T) {
	a := defaultAnswers()
	a.Targets = "BTC 60, USDT 30"
	_, err := BuildConfig(a)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	a = defaultAnswers()
	a.MaxOrders = "many"
	_, err = BuildConfig(a)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	a = defaultAnswers()
	a.Platform = config.PlatformHyperliquid
	_, err = BuildConfig(a)
	assert.Error(t, err, "hyperliquid needs pairs")
}

func TestWrite_RoundTrip(t *testing.T) {
	cfgTmp, err := BuildConfig(defaultAnswers())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Write(path, cfgTmp))

	configs, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, config.PlatformSimulate, configs[0].Platform)
	assert.Equal(t, []string{"BTC", "ETH", "USDT"}, configs[0].Assets())
	assert.Equal(t, domain.PriceModeMid, configs[0].Mode)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateThreshold("2.5"))
	assert.Error(t, validateThreshold("-1"))
	assert.Error(t, validateThreshold("x"))
	assert.NoError(t, validateMaxOrders("0"))
	assert.Error(t, validateMaxOrders("-2"))
	assert.NoError(t, validatePairs("HYPE/USDC"))
	assert.Error(t, validatePairs("HYPEUSDC"))
	assert.Error(t, validatePairs(" , "))
}
