package reagg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/footprint/internal/vbar"
)

func mkBar(seq int, start time.Time, total int64, ticks []int32, buy, sell []int32) *vbar.Bar {
	return &vbar.Bar{
		TradeDate:   20260102,
		Sequence:    seq,
		StartTime:   start,
		EndTime:     start.Add(time.Second),
		OpenI:       ticks[0],
		CloseI:      ticks[len(ticks)-1],
		HighI:       ticks[len(ticks)-1],
		LowI:        ticks[0],
		TotalVolume: total,
		BuyVolume:   sumI32(buy),
		SellVolume:  sumI32(sell),
		PricesI:     ticks,
		VolBuy:      buy,
		VolSell:     sell,
	}
}

func sumI32(xs []int32) int64 {
	var s int64
	for _, x := range xs {
		s += int64(x)
	}
	return s
}

func feed(bars []*vbar.Bar) <-chan *vbar.Bar {
	ch := make(chan *vbar.Bar)
	go func() {
		defer close(ch)
		for _, b := range bars {
			ch <- b
		}
	}()
	return ch
}

func drain(ch <-chan *vbar.Bar) []*vbar.Bar {
	var out []*vbar.Bar
	for b := range ch {
		out = append(out, b)
	}
	return out
}

func TestMerge_CombinesUntilThreshold(t *testing.T) {
	base := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	bars := []*vbar.Bar{
		mkBar(1, base, 40, []int32{100, 101}, []int32{20, 0}, []int32{0, 20}),
		mkBar(2, base.Add(time.Second), 70, []int32{101, 102}, []int32{35, 0}, []int32{0, 35}),
	}
	out := drain(Merge(feed(bars), 100, true))
	require.Len(t, out, 1)
	merged := out[0]
	assert.Equal(t, int64(110), merged.TotalVolume)
	assert.Equal(t, int32(100), merged.OpenI)
	assert.Equal(t, int32(102), merged.CloseI)
	assert.Equal(t, bars[0].StartTime, merged.StartTime)
	assert.Equal(t, bars[1].EndTime, merged.EndTime)

	var ladderTotal int64
	for i := range merged.PricesI {
		ladderTotal += int64(merged.VolBuy[i]) + int64(merged.VolSell[i])
	}
	assert.Equal(t, merged.TotalVolume, ladderTotal)
}

func TestMerge_DropsPartialTailWhenDisabled(t *testing.T) {
	base := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	bars := []*vbar.Bar{
		mkBar(1, base, 10, []int32{100}, []int32{5}, []int32{5}),
	}
	out := drain(Merge(feed(bars), 1000, false))
	assert.Empty(t, out)
}

func TestMerge_KeepsPartialTailWhenEnabled(t *testing.T) {
	base := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	bars := []*vbar.Bar{
		mkBar(1, base, 10, []int32{100}, []int32{5}, []int32{5}),
	}
	out := drain(Merge(feed(bars), 1000, true))
	require.Len(t, out, 1)
	assert.Equal(t, int64(10), out[0].TotalVolume)
}

func TestMerge_PreservesVolumeAcrossMultipleGroups(t *testing.T) {
	base := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	var bars []*vbar.Bar
	var fed int64
	for i := 0; i < 9; i++ {
		v := int64(15 + i)
		fed += v
		bars = append(bars, mkBar(i+1, base.Add(time.Duration(i)*time.Second), v,
			[]int32{100 + int32(i)}, []int32{int32(v / 2)}, []int32{int32(v - v/2)}))
	}
	out := drain(Merge(feed(bars), 50, true))
	var got int64
	for _, b := range out {
		got += b.TotalVolume
	}
	assert.Equal(t, fed, got)
}
