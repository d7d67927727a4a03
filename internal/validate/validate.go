// FILE: validate.go
// Package validate – Cross-checks each trade date's first committed bar's
// open price against the source's own first-volume-bearing second that day
// (C7, spec.md §4.8). A mismatch larger than two ticks flags the date for
// investigation rather than silently trusting the aggregation.
package validate

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/footprint/internal/source"
	"github.com/chidi150c/footprint/internal/store"
	"github.com/chidi150c/footprint/internal/vbar"
)

// Status classifies one date's validation outcome.
type Status string

const (
	StatusOK          Status = "ok"
	StatusMismatch    Status = "mismatch"
	StatusMissingBars Status = "missing_footprint_data"
	StatusNoVolume    Status = "no_volume"
)

// Result is the outcome of validating one trade date.
type Result struct {
	TradeDate     int32
	Status        Status
	SourceOpen    decimal.Decimal
	FootprintOpen decimal.Decimal
	AbsDiff       decimal.Decimal
}

// ToleranceTicks is the maximum allowed open-price discrepancy, expressed
// in ticks, before a date is flagged as a mismatch.
const ToleranceTicks = 2

// Validate compares, for every date in dates, the source's first
// volume-bearing second's TradeOpen against the store's first bar's open
// price for that date. The year file is derived from each trade date
// directly (YYYYMMDD / 10000).
func Validate(ctx context.Context, src source.Source, st *store.Store, symbol string, tickSize float64, dates []int32) ([]Result, error) {
	results := make([]Result, 0, len(dates))

	for _, td := range dates {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		table, err := src.FetchDay(ctx, symbol, td)
		if err != nil {
			return results, fmt.Errorf("validate: fetching %s/%d: %w", symbol, td, err)
		}

		var sourceOpen decimal.Decimal
		haveSourceOpen := false
		for _, sec := range table.Seconds {
			if sec.Volume > 0 {
				sourceOpen = decimal.NewFromFloat(sec.TradeOpen)
				haveSourceOpen = true
				break
			}
		}
		if !haveSourceOpen {
			results = append(results, Result{TradeDate: td, Status: StatusNoVolume})
			continue
		}

		year := int(td / 10000)
		rows, err := st.ReadDate(symbol, year, td)
		if err != nil {
			return results, fmt.Errorf("validate: reading %s/%d: %w", symbol, td, err)
		}
		if len(rows) == 0 {
			results = append(results, Result{TradeDate: td, Status: StatusMissingBars, SourceOpen: sourceOpen})
			continue
		}

		bars := store.Reconstruct(rows)
		firstOpenI := bars[0].OpenI
		footprintOpen := decimal.NewFromFloat(vbar.Price(firstOpenI, tickSize))

		diff := sourceOpen.Sub(footprintOpen).Abs()
		tolerance := decimal.NewFromFloat(tickSize).Mul(decimal.NewFromInt(ToleranceTicks))

		status := StatusOK
		if diff.GreaterThan(tolerance) {
			status = StatusMismatch
		}
		results = append(results, Result{
			TradeDate:     td,
			Status:        status,
			SourceOpen:    sourceOpen,
			FootprintOpen: footprintOpen,
			AbsDiff:       diff,
		})
	}

	return results, nil
}
