// FILE: accumulator.go
// Package vbar – Streaming single-writer accumulator that turns per-second
// records into finalized V-bars (C2: V-bar segmentation, §4.2/§4.3).
package vbar

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/chidi150c/footprint/internal/microalloc"
)

// ErrMalformedBar is returned by Step/Finish when a bar's ladder cannot be
// reconciled against its totals (e.g. non-zero totals with an empty ladder).
var ErrMalformedBar = errors.New("vbar: malformed bar rejected")

// SecondRecord is one second of raw market data for a single symbol-day.
type SecondRecord struct {
	Time time.Time
	microalloc.SecondRecord
}

// Accumulator is a single-writer, single-symbol-day V-bar segmenter. It is
// not safe for concurrent use; spec.md's concurrency model keeps it that way
// on purpose (§5: strictly sequential within a symbol-day).
type Accumulator struct {
	tradeDate int32
	threshold int64
	tickSize  float64
	microCfg  microalloc.Config

	seq int

	active     bool
	currStart  time.Time
	currEnd    time.Time
	tradeOpen  float64
	tradeHigh  float64
	tradeLow   float64
	tradeClose float64

	totalF float64
	buyF   float64
	sellF  float64

	// bucket: tick -> (buyF, sellF)
	buckets map[int32]*bucketAccum
}

type bucketAccum struct {
	buy, sell float64
}

// NewAccumulator creates an accumulator for one symbol-day.
func NewAccumulator(tradeDate int32, v int64, tickSize float64, microCfg microalloc.Config) *Accumulator {
	return &Accumulator{
		tradeDate: tradeDate,
		threshold: v,
		tickSize:  tickSize,
		microCfg:  microCfg,
		buckets:   make(map[int32]*bucketAccum),
	}
}

// Step ingests one second. It returns a finalized bar (and resets internal
// state) when cumulative volume crosses the threshold; otherwise it returns
// (nil, nil). A non-nil error means the crossed-threshold bar was malformed
// and was dropped — the caller should log it and continue with the next
// second (spec.md §7: invariant violations are per-bar, not per-day, fatal).
func (a *Accumulator) Step(sec SecondRecord) (*Bar, error) {
	if !a.active {
		a.active = true
		a.currStart = sec.Time
		a.tradeOpen = sec.TradeOpen
		a.tradeHigh = sec.TradeHigh
		a.tradeLow = sec.TradeLow
	}

	alloc := microalloc.Allocate(sec.SecondRecord, a.tickSize, a.microCfg)

	a.totalF += sec.Volume
	a.buyF += alloc.BuyTotal
	a.sellF += alloc.SellTotal
	for tick, d := range alloc.Deltas {
		b := a.buckets[tick]
		if b == nil {
			b = &bucketAccum{}
			a.buckets[tick] = b
		}
		b.buy += d.Buy
		b.sell += d.Sell
	}

	if sec.TradeHigh > a.tradeHigh {
		a.tradeHigh = sec.TradeHigh
	}
	if sec.TradeLow < a.tradeLow {
		a.tradeLow = sec.TradeLow
	}
	a.tradeClose = sec.TradeClose
	a.currEnd = sec.Time

	if a.totalF >= float64(a.threshold) {
		return a.finalizeAndReset()
	}
	return nil, nil
}

// Finish flushes any residual accumulated volume as a tail bar. It is a
// no-op (returns nil, nil) if no seconds were accumulated since the last
// emission.
func (a *Accumulator) Finish() (*Bar, error) {
	if !a.active || a.totalF <= 0 {
		return nil, nil
	}
	return a.finalizeAndReset()
}

func (a *Accumulator) finalizeAndReset() (*Bar, error) {
	bar, err := a.finalize()
	a.reset()
	if err != nil {
		return nil, err
	}
	return bar, nil
}

func (a *Accumulator) reset() {
	a.active = false
	a.totalF = 0
	a.buyF = 0
	a.sellF = 0
	a.buckets = make(map[int32]*bucketAccum)
}

// finalize converts the float accumulators into an integer-typed Bar,
// applying largest-remainder rounding per spec.md §4.3.
func (a *Accumulator) finalize() (*Bar, error) {
	ticks := make([]int32, 0, len(a.buckets))
	for t := range a.buckets {
		ticks = append(ticks, t)
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })

	buyF := make([]float64, len(ticks))
	sellF := make([]float64, len(ticks))
	for i, t := range ticks {
		b := a.buckets[t]
		buyF[i] = b.buy
		sellF[i] = b.sell
	}

	totalVolume := nonNegRound(a.totalF)
	buyVolume := nonNegRound(a.buyF)
	if buyVolume > totalVolume {
		buyVolume = totalVolume
	}
	// Sell is derived from the rounded total so buy+sell == total even when
	// both float sides sit on .5 and would each round up.
	sellVolume := totalVolume - buyVolume

	if len(ticks) == 0 && totalVolume != 0 {
		return nil, fmt.Errorf("%w: trade_date=%d total_volume=%d has no ladder", ErrMalformedBar, a.tradeDate, totalVolume)
	}

	buyI := roundPreserveTotal(buyF, buyVolume)
	sellI := roundPreserveTotal(sellF, sellVolume)

	buyVolume = sumInt32(buyI)
	sellVolume = sumInt32(sellI)
	if buyVolume+sellVolume != totalVolume {
		totalVolume = buyVolume + sellVolume
	}

	bar := &Bar{
		TradeDate:   a.tradeDate,
		StartTime:   a.currStart,
		EndTime:     a.currEnd,
		OpenI:       toTick(a.tradeOpen, a.tickSize),
		HighI:       toTick(a.tradeHigh, a.tickSize),
		LowI:        toTick(a.tradeLow, a.tickSize),
		CloseI:      toTick(a.tradeClose, a.tickSize),
		TotalVolume: totalVolume,
		BuyVolume:   buyVolume,
		SellVolume:  sellVolume,
		PricesI:     ticks,
		VolBuy:      buyI,
		VolSell:     sellI,
	}

	if err := validateBar(bar); err != nil {
		return nil, err
	}

	a.seq++
	bar.Sequence = a.seq
	return bar, nil
}

func validateBar(b *Bar) error {
	if b.BuyVolume+b.SellVolume != b.TotalVolume {
		return fmt.Errorf("%w: buy+sell=%d != total=%d", ErrMalformedBar, b.BuyVolume+b.SellVolume, b.TotalVolume)
	}
	if len(b.PricesI) != len(b.VolBuy) || len(b.PricesI) != len(b.VolSell) {
		return fmt.Errorf("%w: ladder length mismatch", ErrMalformedBar)
	}
	for i := 1; i < len(b.PricesI); i++ {
		if b.PricesI[i] <= b.PricesI[i-1] {
			return fmt.Errorf("%w: prices_i not strictly ascending", ErrMalformedBar)
		}
	}
	if b.OpenI < b.LowI || b.OpenI > b.HighI {
		return fmt.Errorf("%w: open_i=%d outside [low_i=%d, high_i=%d]", ErrMalformedBar, b.OpenI, b.LowI, b.HighI)
	}
	if b.CloseI < b.LowI || b.CloseI > b.HighI {
		return fmt.Errorf("%w: close_i=%d outside [low_i=%d, high_i=%d]", ErrMalformedBar, b.CloseI, b.LowI, b.HighI)
	}
	return nil
}

func toTick(price, tickSize float64) int32 {
	if tickSize <= 0 {
		return int32(math.Round(price))
	}
	return int32(math.Round(price / tickSize))
}

func nonNegRound(f float64) int64 {
	v := int64(math.Round(f))
	if v < 0 {
		return 0
	}
	return v
}

func sumInt32(xs []int32) int64 {
	var s int64
	for _, x := range xs {
		s += int64(x)
	}
	return s
}

// roundPreserveTotal rounds values to the nearest integer while making the
// sum equal exactly target, using largest-remainder rounding: round to
// nearest, then add/subtract 1 to/from the entries with the largest/smallest
// fractional parts until the residual is absorbed. Subtraction never takes
// an entry below zero.
func roundPreserveTotal(values []float64, target int64) []int32 {
	n := len(values)
	if n == 0 {
		return nil
	}
	rounded := make([]int64, n)
	frac := make([]float64, n)
	var sum int64
	for i, v := range values {
		r := math.Round(v)
		if r < 0 {
			r = 0
		}
		rounded[i] = int64(r)
		frac[i] = v - math.Floor(v)
		sum += rounded[i]
	}

	delta := target - sum
	if delta > 0 {
		order := sortByFracDesc(frac)
		for _, idx := range order {
			if delta == 0 {
				break
			}
			rounded[idx]++
			delta--
		}
	} else if delta < 0 {
		order := sortByFracAsc(frac)
		for _, idx := range order {
			if delta == 0 {
				break
			}
			if rounded[idx] == 0 {
				continue
			}
			rounded[idx]--
			delta++
		}
	}

	out := make([]int32, n)
	for i, r := range rounded {
		out[i] = int32(r)
	}
	return out
}

func sortByFracDesc(frac []float64) []int {
	idx := make([]int, len(frac))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return frac[idx[i]] > frac[idx[j]] })
	return idx
}

func sortByFracAsc(frac []float64) []int {
	idx := make([]int, len(frac))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return frac[idx[i]] < frac[idx[j]] })
	return idx
}
