// FILE: source.go
// Package source – The external data contract the aggregation engine reads
// from (spec.md §6): a per-second OHLCV+bid/ask table for one symbol-day.
package source

import (
	"context"

	"github.com/chidi150c/footprint/internal/microalloc"
)

// Second is one second of raw market data, keyed by its wall-clock second.
type Second struct {
	UnixSecond int64
	microalloc.SecondRecord
}

// Table is a full symbol-day of per-second records, ascending by
// UnixSecond. An empty Table (len(Seconds) == 0) means the symbol had no
// recorded activity that day.
type Table struct {
	Symbol    string
	TradeDate int32
	Seconds   []Second
}

// Source fetches per-second market data for a single symbol-day. It is the
// only boundary the engine has to an external data provider; everything
// downstream works purely off Table.
type Source interface {
	// FetchDay returns the per-second table for tradeDate, or a Table with
	// no Seconds if the symbol had no activity that day. It must not be
	// called concurrently for the same (symbol, tradeDate) pair from more
	// than one goroutine, and it must return ctx.Err() promptly on
	// cancellation.
	FetchDay(ctx context.Context, symbol string, tradeDate int32) (Table, error)
}
