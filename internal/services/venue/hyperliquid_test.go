package venue

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

func newTestHyperliquid(pairs ...domain.TradePair) *Hyperliquid {
	return &Hyperliquid{
		l:        zap.NewNop(),
		pairs:    pairs,
		markets:  NewMarkets(pairs...),
		makerFee: HyperliquidMakerFee,
	}
}

func TestHyperliquid_RatesFromMidsCollapseSpread(t *testing.T) {
	h := newTestHyperliquid()
	pairs := []domain.TradePair{
		HyperliquidPair("HYPE", "USDC"),
		HyperliquidPair("PURR", "USDC"),
		HyperliquidPair("BAD", "USDC"),
		HyperliquidPair("NONE", "USDC"),
	}
	mids := map[string]string{
		"HYPE/USDC": "25.5",
		"PURR":      "0.2",
		"BAD/USDC":  "0",
	}

	rates := h.ratesFromMids(mids, pairs)
	require.Len(t, rates, 2)

	hype := rates["HYPE/USDC"]
	assert.True(t, hype.Mid.Equal(d("25.5")))
	assert.True(t, hype.High.Equal(hype.Mid))
	assert.True(t, hype.Low.Equal(hype.Mid))

	// falls back to the base coin key
	purr, ok := rates["PURR/USDC"]
	require.True(t, ok)
	assert.True(t, purr.Mid.Equal(d("0.2")))
	assert.True(t, purr.High.Equal(purr.Low))

	assert.NotContains(t, rates, "BAD/USDC")
	assert.NotContains(t, rates, "NONE/USDC")
}

func TestHyperliquid_ListPairsFromConfiguration(t *testing.T) {
	h := newTestHyperliquid(HyperliquidPair("HYPE", "USDC"))

	pairs, err := h.ListPairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	pairs[0].Base = "CHANGED"

	again, err := h.ListPairs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HYPE", again[0].Base, "callers get a copy")

	p := again[0]
	assert.True(t, p.Active)
	assert.True(t, p.Limits.MinCost.Equal(d("10")))
	assert.True(t, p.Precision.AmountStep.Equal(d("0.0001")))
	assert.True(t, p.Precision.PriceTick.Equal(d("0.0001")))
}

func TestHyperliquid_SubmitOrderRejectsUnknownPair(t *testing.T) {
	h := newTestHyperliquid(HyperliquidPair("HYPE", "USDC"))
	order := domain.NewOrder(domain.NewHop("PURR", "USDC", domain.DirectionBuy), d("10"), d("0.2"))

	_, err := h.SubmitOrder(context.Background(), order)
	assert.True(t, errors.Is(err, domain.ErrUnknownPair))
}

func TestCloidFromID(t *testing.T) {
	id := uuid.New()
	cloid := cloidFromID(id.String())
	assert.Equal(t, "0x"+strings.ReplaceAll(id.String(), "-", ""), cloid)

	other := cloidFromID("run-1")
	assert.Len(t, other, 34)
	assert.Equal(t, other, cloidFromID("run-1"))
	assert.Len(t, cloidFromID(""), 34)
}

func TestNewHyperliquid_Validation(t *testing.T) {
	_, err := NewHyperliquid(nil, "0xabc", []domain.TradePair{HyperliquidPair("HYPE", "USDC")}, zap.NewNop(), d("0"))
	assert.Error(t, err)
}
