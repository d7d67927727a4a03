// FILE: bar.go
// Package vbar – Volume-partitioned footprint bars ("V-bars").
//
// A Bar is a plain record with explicit integer-tick fields; prices are a
// pure view (Price) over tick_size, not a dynamic/overridden attribute.
package vbar

import "time"

// Bar is one footprint bar: contiguous seconds whose summed volume reached
// the configured threshold V (or, for the last bar of a trade date, fell
// short of it — the "tail" bar).
type Bar struct {
	TradeDate int32 // YYYYMMDD
	Sequence  int   // 1-based index of this bar within TradeDate

	StartTime time.Time
	EndTime   time.Time

	OpenI, HighI, LowI, CloseI int32

	TotalVolume int64
	BuyVolume   int64
	SellVolume  int64

	// PricesI is strictly ascending. VolBuy[i]/VolSell[i] are the buy/sell
	// volume at PricesI[i].
	PricesI []int32
	VolBuy  []int32
	VolSell []int32
}

// Price converts an integer tick to a display price.
func Price(tick int32, tickSize float64) float64 {
	return float64(tick) * tickSize
}

// Open, High, Low, Close return display prices for the bar's OHLC ticks.
func (b *Bar) Open(tickSize float64) float64  { return Price(b.OpenI, tickSize) }
func (b *Bar) High(tickSize float64) float64  { return Price(b.HighI, tickSize) }
func (b *Bar) Low(tickSize float64) float64   { return Price(b.LowI, tickSize) }
func (b *Bar) Close(tickSize float64) float64 { return Price(b.CloseI, tickSize) }

// Period is the time the bar spans, end inclusive.
func (b *Bar) Period() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// Delta is the net buy-sell imbalance for the bar.
func (b *Bar) Delta() int64 {
	return b.BuyVolume - b.SellVolume
}

// POCTick returns the tick index carrying the largest combined buy+sell
// volume (the bar's Point of Control), and false if the bar has no ladder.
func (b *Bar) POCTick() (int32, bool) {
	if len(b.PricesI) == 0 {
		return 0, false
	}
	bestIdx := 0
	bestVol := int64(b.VolBuy[0]) + int64(b.VolSell[0])
	for i := 1; i < len(b.PricesI); i++ {
		v := int64(b.VolBuy[i]) + int64(b.VolSell[i])
		if v > bestVol {
			bestVol = v
			bestIdx = i
		}
	}
	return b.PricesI[bestIdx], true
}
