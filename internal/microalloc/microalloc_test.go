package microalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_ZeroVolumeReturnsZeros(t *testing.T) {
	a := Allocate(SecondRecord{Volume: 0}, 0.01, DefaultConfig())
	assert.Zero(t, a.BuyTotal)
	assert.Zero(t, a.SellTotal)
	assert.Empty(t, a.Deltas)
}

func TestAllocate_ConservesVolume(t *testing.T) {
	sec := SecondRecord{
		TradeOpen: 100.00, TradeHigh: 100.10, TradeLow: 99.95, TradeClose: 100.05,
		Volume:  7,
		BidOpen: 99.98, BidHigh: 100.02, BidLow: 99.94, BidClose: 99.99,
		AskOpen: 100.02, AskHigh: 100.08, AskLow: 99.99, AskClose: 100.03,
	}
	a := Allocate(sec, 0.01, DefaultConfig())
	require.NotEmpty(t, a.Deltas)
	assert.InDelta(t, sec.Volume, a.BuyTotal+a.SellTotal, 1e-9)

	var sumBuy, sumSell float64
	for _, d := range a.Deltas {
		sumBuy += d.Buy
		sumSell += d.Sell
	}
	assert.InDelta(t, a.BuyTotal, sumBuy, 1e-9)
	assert.InDelta(t, a.SellTotal, sumSell, 1e-9)
}

func TestAllocate_NonPositiveSpreadSplitsEvenly(t *testing.T) {
	sec := SecondRecord{
		TradeOpen: 10, TradeHigh: 10, TradeLow: 10, TradeClose: 10,
		Volume:  10,
		BidOpen: 10, BidHigh: 10, BidLow: 10, BidClose: 10,
		AskOpen: 10, AskHigh: 10, AskLow: 10, AskClose: 10, // spread==0 -> 50/50
	}
	a := Allocate(sec, 1, DefaultConfig())
	assert.InDelta(t, 5.0, a.BuyTotal, 1e-9)
	assert.InDelta(t, 5.0, a.SellTotal, 1e-9)
}

func TestAllocate_PriceAtOrAboveAskIsAllBuy(t *testing.T) {
	sec := SecondRecord{
		TradeOpen: 110, TradeHigh: 110, TradeLow: 110, TradeClose: 110,
		Volume:  5,
		BidOpen: 100, BidHigh: 100, BidLow: 100, BidClose: 100,
		AskOpen: 105, AskHigh: 105, AskLow: 105, AskClose: 105,
	}
	a := Allocate(sec, 1, DefaultConfig())
	assert.InDelta(t, 5.0, a.BuyTotal, 1e-9)
	assert.InDelta(t, 0.0, a.SellTotal, 1e-9)
}

func TestAllocate_PriceAtOrBelowBidIsAllSell(t *testing.T) {
	sec := SecondRecord{
		TradeOpen: 90, TradeHigh: 90, TradeLow: 90, TradeClose: 90,
		Volume:  5,
		BidOpen: 100, BidHigh: 100, BidLow: 100, BidClose: 100,
		AskOpen: 105, AskHigh: 105, AskLow: 105, AskClose: 105,
	}
	a := Allocate(sec, 1, DefaultConfig())
	assert.InDelta(t, 0.0, a.BuyTotal, 1e-9)
	assert.InDelta(t, 5.0, a.SellTotal, 1e-9)
}

func TestAllocate_Deterministic(t *testing.T) {
	sec := SecondRecord{
		TradeOpen: 100.00, TradeHigh: 100.10, TradeLow: 99.95, TradeClose: 100.05,
		Volume:  37,
		BidOpen: 99.98, BidHigh: 100.02, BidLow: 99.94, BidClose: 99.99,
		AskOpen: 100.02, AskHigh: 100.08, AskLow: 99.99, AskClose: 100.03,
	}
	a1 := Allocate(sec, 0.01, DefaultConfig())
	a2 := Allocate(sec, 0.01, DefaultConfig())
	assert.Equal(t, a1.BuyTotal, a2.BuyTotal)
	assert.Equal(t, a1.SellTotal, a2.SellTotal)
	assert.Equal(t, a1.Deltas, a2.Deltas)
}

func TestMicroCount_ClampsToBounds(t *testing.T) {
	cfg := Config{Alpha: 1.0, NMin: 20, NMax: 300}
	assert.Equal(t, 20, microCount(1, cfg))
	assert.Equal(t, 300, microCount(10000, cfg))
	assert.Equal(t, 50, microCount(50, cfg))
}

func TestBuildPath_DegenerateSegmentFillsWithStart(t *testing.T) {
	path := buildPath(5, 5, 5, 5, 9)
	require.Len(t, path, 9)
	for _, p := range path {
		assert.Equal(t, 5.0, p)
	}
}

func TestBuildPath_ExactLength(t *testing.T) {
	for _, n := range []int{1, 2, 3, 20, 301} {
		path := buildPath(1, 2, 0.5, 1.5, n)
		assert.Len(t, path, n)
	}
}
