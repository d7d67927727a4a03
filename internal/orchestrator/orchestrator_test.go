package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/footprint/internal/microalloc"
	"github.com/chidi150c/footprint/internal/source"
	"github.com/chidi150c/footprint/internal/store"
)

// fakeSource serves canned per-day tables keyed by trade date, recording how
// many times each date was fetched so tests can assert idempotency skips
// re-fetching dates already present.
type fakeSource struct {
	byDate map[int32]source.Table
	fetches map[int32]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{byDate: map[int32]source.Table{}, fetches: map[int32]int{}}
}

func (f *fakeSource) FetchDay(_ context.Context, symbol string, tradeDate int32) (source.Table, error) {
	f.fetches[tradeDate]++
	t, ok := f.byDate[tradeDate]
	if !ok {
		return source.Table{Symbol: symbol, TradeDate: tradeDate}, nil
	}
	return t, nil
}

func unixSecondAt(y, m, d, hh, mm, ss int) int64 {
	return time.Date(y, time.Month(m), d, hh, mm, ss, 0, time.UTC).Unix()
}

func secondsRecord(o, h, l, c, v float64) microalloc.SecondRecord {
	return microalloc.SecondRecord{
		TradeOpen: o, TradeHigh: h, TradeLow: l, TradeClose: c, Volume: v,
		BidOpen: o - 0.01, BidHigh: h - 0.01, BidLow: l - 0.01, BidClose: c - 0.01,
		AskOpen: o + 0.01, AskHigh: h + 0.01, AskLow: l + 0.01, AskClose: c + 0.01,
	}
}

func TestOrchestrator_RunIsIdempotent(t *testing.T) {
	const tradeDate = int32(20260105)
	src := newFakeSource()
	src.byDate[tradeDate] = source.Table{
		Symbol:    "BTC-USD",
		TradeDate: tradeDate,
		Seconds: []source.Second{
			{UnixSecond: unixSecondAt(2026, 1, 5, 9, 30, 0), SecondRecord: secondsRecord(100, 100.1, 99.9, 100, 10)},
			{UnixSecond: unixSecondAt(2026, 1, 5, 9, 30, 1), SecondRecord: secondsRecord(100, 100.2, 99.95, 100.1, 15)},
		},
	}

	st := store.New(t.TempDir())
	orch := New(src, st, nil)

	params := RunParams{
		Symbol: "BTC-USD", StartDate: tradeDate, EndDate: tradeDate,
		VUnit: 20, TickSize: 0.01, MicroConfig: microalloc.DefaultConfig(),
	}

	first, err := orch.Run(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 1, first.DatesProcessed)
	assert.NotEmpty(t, first.YearsCommitted)

	rowsBefore, err := st.ReadDate("BTC-USD", 2026, tradeDate)
	require.NoError(t, err)
	require.NotEmpty(t, rowsBefore)

	second, err := orch.Run(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 0, second.DatesProcessed, "second run should find nothing missing")
	assert.Empty(t, second.YearsCommitted)
	assert.Equal(t, 1, src.fetches[tradeDate], "idempotent re-run must not re-fetch an already-committed date")

	rowsAfter, err := st.ReadDate("BTC-USD", 2026, tradeDate)
	require.NoError(t, err)
	assert.Equal(t, rowsBefore, rowsAfter)
}

func TestOrchestrator_CrossMidnightSecondIsZeroed(t *testing.T) {
	const tradeDate = int32(20260105)
	src := newFakeSource()
	src.byDate[tradeDate] = source.Table{
		Symbol:    "BTC-USD",
		TradeDate: tradeDate,
		Seconds: []source.Second{
			{UnixSecond: unixSecondAt(2026, 1, 5, 23, 59, 59), SecondRecord: secondsRecord(100, 100.1, 99.9, 100, 5)},
			// Leaked first second of the next day: must contribute zero volume
			// when processing tradeDate.
			{UnixSecond: unixSecondAt(2026, 1, 6, 0, 0, 0), SecondRecord: secondsRecord(100, 100.1, 99.9, 100, 7)},
		},
	}

	st := store.New(t.TempDir())
	orch := New(src, st, nil)

	_, err := orch.Run(context.Background(), RunParams{
		Symbol: "BTC-USD", StartDate: tradeDate, EndDate: tradeDate,
		VUnit: 1000, TickSize: 0.01, MicroConfig: microalloc.DefaultConfig(),
	})
	require.NoError(t, err)

	rows, err := st.ReadDate("BTC-USD", 2026, tradeDate)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0].TotalVolume, "leaked next-day second must not add its volume to this trade date")
}

func TestOrchestrator_EmptyDayRecordsNoData(t *testing.T) {
	const tradeDate = int32(20260106)
	src := newFakeSource() // no entry for tradeDate => empty table

	st := store.New(t.TempDir())
	orch := New(src, st, nil)

	report, err := orch.Run(context.Background(), RunParams{
		Symbol: "BTC-USD", StartDate: tradeDate, EndDate: tradeDate,
		VUnit: 1000, TickSize: 0.01, MicroConfig: microalloc.DefaultConfig(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.DatesNoData)

	meta, err := st.ReadMeta("BTC-USD", 2026)
	require.NoError(t, err)
	assert.Contains(t, meta.NoDataDates, tradeDate)

	rows, err := st.ReadDate("BTC-USD", 2026, tradeDate)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
