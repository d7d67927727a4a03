// FILE: reagg.go
// Package reagg – Re-aggregation of already-built V-bars into a coarser
// volume threshold (C5), without touching raw per-second data.
//
// Merge is a lazy channel-based iterator rather than a Python-style
// generator-of-callbacks: the caller ranges over the output channel and the
// merge goroutine blocks on send, so memory use stays bounded to one group
// of input bars regardless of how long the input channel runs.
package reagg

import (
	"sort"

	"github.com/chidi150c/footprint/internal/vbar"
)

// Merge reads bars from in (assumed to be in ascending time order for a
// single trade date) and emits coarser bars whose combined TotalVolume is
// >= v. If keepPartialTail is true, a final bar is emitted for any residual
// bars left in the buffer once in is closed; otherwise the residual is
// dropped. The returned channel is closed once in is drained and the
// optional tail bar (if any) has been sent.
func Merge(in <-chan *vbar.Bar, v int64, keepPartialTail bool) <-chan *vbar.Bar {
	out := make(chan *vbar.Bar)
	go func() {
		defer close(out)

		var buffer []*vbar.Bar
		var accumulated int64

		for bar := range in {
			buffer = append(buffer, bar)
			accumulated += bar.TotalVolume

			if accumulated >= v {
				out <- mergeGroup(buffer)
				buffer = nil
				accumulated = 0
			}
		}

		if len(buffer) > 0 && keepPartialTail {
			out <- mergeGroup(buffer)
		}
	}()
	return out
}

func mergeGroup(group []*vbar.Bar) *vbar.Bar {
	first := group[0]
	last := group[len(group)-1]

	merged := &vbar.Bar{
		TradeDate: first.TradeDate,
		Sequence:  first.Sequence,
		StartTime: first.StartTime,
		EndTime:   last.EndTime,
		OpenI:     first.OpenI,
		CloseI:    last.CloseI,
		HighI:     first.HighI,
		LowI:      first.LowI,
	}

	ladder := make(map[int32]*struct{ buy, sell int64 })
	var totalVolume, buyVolume, sellVolume int64
	for _, b := range group {
		if b.HighI > merged.HighI {
			merged.HighI = b.HighI
		}
		if b.LowI < merged.LowI {
			merged.LowI = b.LowI
		}
		totalVolume += b.TotalVolume
		buyVolume += b.BuyVolume
		sellVolume += b.SellVolume
		for i, tick := range b.PricesI {
			e := ladder[tick]
			if e == nil {
				e = &struct{ buy, sell int64 }{}
				ladder[tick] = e
			}
			e.buy += int64(b.VolBuy[i])
			e.sell += int64(b.VolSell[i])
		}
	}

	ticks := make([]int32, 0, len(ladder))
	for t := range ladder {
		ticks = append(ticks, t)
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })

	merged.PricesI = ticks
	merged.VolBuy = make([]int32, len(ticks))
	merged.VolSell = make([]int32, len(ticks))
	for i, t := range ticks {
		merged.VolBuy[i] = int32(ladder[t].buy)
		merged.VolSell[i] = int32(ladder[t].sell)
	}

	merged.TotalVolume = totalVolume
	merged.BuyVolume = buyVolume
	merged.SellVolume = sellVolume
	return merged
}
