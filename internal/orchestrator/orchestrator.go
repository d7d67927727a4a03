// FILE: orchestrator.go
// Package orchestrator – Top-level backfill driver (C6, spec.md §4.7): for
// a symbol and date range, detect missing trade dates per year, fetch and
// aggregate each one, and commit per year only once every day in that year
// has finished.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chidi150c/footprint/internal/metrics"
	"github.com/chidi150c/footprint/internal/microalloc"
	"github.com/chidi150c/footprint/internal/source"
	"github.com/chidi150c/footprint/internal/store"
	"github.com/chidi150c/footprint/internal/vbar"
)

// RunParams describes one backfill request.
type RunParams struct {
	Symbol         string
	StartDate      int32 // YYYYMMDD
	EndDate        int32 // YYYYMMDD
	VUnit          int64
	TickSize       float64
	MicroConfig    microalloc.Config
	ForceRecompute bool
}

// RunReport summarizes what a Run call did. RunID identifies the call in
// logs and is otherwise inert: it has no effect on what gets written to
// disk, so two runs over the same range produce identical store state even
// though their RunIDs differ (spec.md §8 property 7, idempotency modulo
// last_updated).
type RunReport struct {
	RunID          uuid.UUID
	Symbol         string
	DatesProcessed int
	DatesNoData    int
	BarsEmitted    int
	BarsRejected   int
	YearsCommitted []int
}

// Orchestrator wires a data Source to a Store, driven by RunParams.
type Orchestrator struct {
	Source  source.Source
	Store   *store.Store
	Logger  *slog.Logger
}

// New builds an Orchestrator, defaulting Logger to slog.Default() if nil.
func New(src source.Source, st *store.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{Source: src, Store: st, Logger: logger}
}

// Run executes one backfill request end to end. Dates with no activity are
// recorded in the year's metadata sidecar as no-data dates, not retried on
// future non-forced runs. A year is committed to disk exactly once, after
// every missing date targeting it has been fetched and aggregated.
func (o *Orchestrator) Run(ctx context.Context, p RunParams) (RunReport, error) {
	runID := uuid.New()
	log := o.Logger.With("component", "orchestrator", "symbol", p.Symbol, "run_id", runID)
	report := RunReport{RunID: runID, Symbol: p.Symbol}
	start := time.Now()
	defer func() { metrics.ObserveBackfillDuration(p.Symbol, time.Since(start).Seconds()) }()

	dates := daysInRange(p.StartDate, p.EndDate)
	if len(dates) == 0 {
		return report, nil
	}

	byYear := groupByYear(dates)
	years := sortedYearKeys(byYear)

	yearMissing := make(map[int][]int32, len(years))
	for _, y := range years {
		missing, err := o.Store.Missing(p.Symbol, y, byYear[y], p.ForceRecompute)
		if err != nil {
			return report, fmt.Errorf("orchestrator: detecting missing dates for year %d: %w", y, err)
		}
		if len(missing) > 0 {
			yearMissing[y] = missing
		}
	}
	if len(yearMissing) == 0 {
		log.Info("backfill_noop", "reason", "no_missing_dates")
		return report, nil
	}

	yearDays := make(map[int][]store.DayBars, len(years))
	yearNoData := make(map[int][]int32, len(years))

	for _, y := range years {
		missingSet := toSet(yearMissing[y])
		if len(missingSet) == 0 {
			continue
		}
		for _, td := range byYear[y] {
			if !missingSet[td] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}

			table, err := o.Source.FetchDay(ctx, p.Symbol, td)
			if err != nil {
				// Per-date isolation: the date stays missing and is retried
				// on the next run.
				log.Warn("fetch_failed", "trade_date", td, "error", err)
				continue
			}
			if len(table.Seconds) == 0 {
				yearNoData[y] = append(yearNoData[y], td)
				report.DatesNoData++
				metrics.IncNoDataDates(p.Symbol)
				continue
			}

			bars, err := aggregateDay(table, td, p.VUnit, p.TickSize, p.MicroConfig, log)
			if err != nil {
				return report, fmt.Errorf("orchestrator: aggregating %s/%d: %w", p.Symbol, td, err)
			}
			if len(bars) == 0 {
				yearNoData[y] = append(yearNoData[y], td)
				report.DatesNoData++
				metrics.IncNoDataDates(p.Symbol)
				continue
			}

			yearDays[y] = append(yearDays[y], store.DayBars{TradeDate: td, Bars: bars})
			report.DatesProcessed++
			report.BarsEmitted += len(bars)
			metrics.AddBarsEmitted(p.Symbol, float64(len(bars)))
			log.Info("day_aggregated", "trade_date", td, "bars", len(bars))
		}
	}

	// A failed commit aborts that year only; later years are still
	// committed and the first such error is returned.
	var commitErr error
	for _, y := range years {
		days := yearDays[y]
		noData := yearNoData[y]
		if len(days) == 0 && len(noData) == 0 {
			continue
		}
		if len(days) > 0 {
			force := yearMissing[y]
			if !p.ForceRecompute {
				force = datesOf(days)
			}
			if err := o.Store.CommitDays(p.Symbol, y, p.VUnit, p.TickSize, days, force); err != nil {
				if commitErr == nil {
					commitErr = fmt.Errorf("orchestrator: committing year %d: %w", y, err)
				}
				continue
			}
			metrics.IncDaysCommitted(p.Symbol, float64(len(days)))
			report.YearsCommitted = append(report.YearsCommitted, y)
		}
		if len(noData) > 0 {
			if err := o.Store.CommitNoDataDates(p.Symbol, y, p.VUnit, p.TickSize, noData); err != nil && commitErr == nil {
				commitErr = fmt.Errorf("orchestrator: recording no-data dates for year %d: %w", y, err)
			}
		}
	}

	return report, commitErr
}

// RunMany runs Run concurrently over disjoint symbols, fanning out with a
// plain sync.WaitGroup (see SPEC_FULL.md §8 for why this forgoes
// golang.org/x/sync/errgroup). Each RunParams in params is assumed to
// target a distinct Symbol; results are returned in the same order as
// params. reports[i] holds whatever Run returned for params[i], which is
// partial when that run failed; the error, if any, is in errs[i].
func (o *Orchestrator) RunMany(ctx context.Context, params []RunParams) ([]RunReport, []error) {
	reports := make([]RunReport, len(params))
	errs := make([]error, len(params))

	var wg sync.WaitGroup
	for i, p := range params {
		wg.Add(1)
		go func(i int, p RunParams) {
			defer wg.Done()
			r, err := o.Run(ctx, p)
			reports[i] = r
			errs[i] = err
		}(i, p)
	}
	wg.Wait()

	return reports, errs
}

func aggregateDay(table source.Table, tradeDate int32, vUnit int64, tickSize float64, microCfg microalloc.Config, log *slog.Logger) ([]*vbar.Bar, error) {
	acc := vbar.NewAccumulator(tradeDate, vUnit, tickSize, microCfg)
	var bars []*vbar.Bar

	for _, sec := range table.Seconds {
		ts := time.Unix(sec.UnixSecond, 0).UTC()
		// Guard against the source leaking a neighboring day's second across
		// the midnight boundary (spec.md §4.2 day-end rule): drop it before
		// it reaches the accumulator so it can't bleed its volume, OHLC, or
		// end_time into this day's bars.
		if toYYYYMMDD(ts) != tradeDate {
			continue
		}
		bar, err := acc.Step(vbar.SecondRecord{
			Time:         ts,
			SecondRecord: sec.SecondRecord,
		})
		if err != nil {
			metrics.IncBarsRejected(table.Symbol)
			log.Warn("bar_rejected", "trade_date", tradeDate, "error", err)
			continue
		}
		if bar != nil {
			bars = append(bars, bar)
		}
	}
	tail, err := acc.Finish()
	if err != nil {
		metrics.IncBarsRejected(table.Symbol)
		log.Warn("tail_bar_rejected", "trade_date", tradeDate, "error", err)
	} else if tail != nil {
		bars = append(bars, tail)
	}
	return bars, nil
}

func daysInRange(start, end int32) []int32 {
	if start > end {
		return nil
	}
	s, err1 := parseYYYYMMDD(start)
	e, err2 := parseYYYYMMDD(end)
	if err1 != nil || err2 != nil {
		return nil
	}
	var out []int32
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, toYYYYMMDD(d))
	}
	return out
}

func parseYYYYMMDD(v int32) (time.Time, error) {
	return time.Parse("20060102", fmt.Sprintf("%08d", v))
}

func toYYYYMMDD(t time.Time) int32 {
	return int32(t.Year())*10000 + int32(t.Month())*100 + int32(t.Day())
}

func groupByYear(dates []int32) map[int][]int32 {
	out := make(map[int][]int32)
	for _, d := range dates {
		y := int(d / 10000)
		out[y] = append(out[y], d)
	}
	return out
}

func sortedYearKeys(m map[int][]int32) []int {
	out := make([]int, 0, len(m))
	for y := range m {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

func toSet(xs []int32) map[int32]bool {
	out := make(map[int32]bool, len(xs))
	for _, x := range xs {
		out[x] = true
	}
	return out
}

func datesOf(days []store.DayBars) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = d.TradeDate
	}
	return out
}
