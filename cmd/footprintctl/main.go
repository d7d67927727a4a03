// FILE: main.go
// Package main – Program entrypoint and HTTP/metrics server for the
// footprint aggregation engine.
//
// Boot sequence:
//   1) config.LoadEnvFile()  – read .env (no shell exports required)
//   2) cfg := config.LoadFromEnv()
//   3) wire source/store/orchestrator
//   4) start Prometheus /healthz + /metrics server on cfg.Port
//   5) run the requested subcommand
//
// Subcommands:
//   backfill -start YYYYMMDD -end YYYYMMDD [-force]
//   read -date YYYYMMDD
//   reagg -date YYYYMMDD -target-v N [-keep-tail=false]
//   validate -start YYYYMMDD -end YYYYMMDD
//
// Example:
//   footprintctl backfill -start 20260101 -end 20260131
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chidi150c/footprint/internal/config"
	"github.com/chidi150c/footprint/internal/orchestrator"
	"github.com/chidi150c/footprint/internal/reagg"
	"github.com/chidi150c/footprint/internal/source"
	"github.com/chidi150c/footprint/internal/store"
	"github.com/chidi150c/footprint/internal/validate"
	"github.com/chidi150c/footprint/internal/vbar"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	rest := os.Args[2:]

	config.LoadEnvFile()
	cfg := config.LoadFromEnv()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	srv := startMetricsServer(cfg.Port, logger)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var runErr error
	switch sub {
	case "backfill":
		runErr = cmdBackfill(ctx, cfg, logger, rest)
	case "read":
		runErr = cmdRead(cfg, rest)
	case "reagg":
		runErr = cmdReagg(cfg, rest)
	case "validate":
		runErr = cmdValidate(ctx, cfg, rest)
	default:
		usage()
		os.Exit(2)
	}

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)

	if runErr != nil {
		log.Fatalf("%s: %v", sub, runErr)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: footprintctl <backfill|read|reagg|validate> [flags]")
}

func startMetricsServer(port int, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		logger.Info("serving_metrics", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()
	return srv
}

func cmdBackfill(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	start := fs.Int("start", 0, "start trade date YYYYMMDD")
	end := fs.Int("end", 0, "end trade date YYYYMMDD")
	force := fs.Bool("force", cfg.ForceRecompute, "force recompute existing dates")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *start == 0 || *end == 0 {
		return fmt.Errorf("backfill: -start and -end are required")
	}

	src := source.NewBridgeSource(cfg.BridgeURL)
	st := store.New(cfg.DataRoot)
	orch := orchestrator.New(src, st, logger)

	report, err := orch.Run(ctx, orchestrator.RunParams{
		Symbol:         cfg.Symbol,
		StartDate:      int32(*start),
		EndDate:        int32(*end),
		VUnit:          cfg.VUnit,
		TickSize:       cfg.TickSize,
		MicroConfig:    cfg.MicroConfig(),
		ForceRecompute: *force,
	})
	if err != nil {
		return err
	}
	logger.Info("backfill_complete",
		"run_id", report.RunID,
		"symbol", report.Symbol,
		"dates_processed", report.DatesProcessed,
		"dates_no_data", report.DatesNoData,
		"bars_emitted", report.BarsEmitted,
		"years_committed", report.YearsCommitted,
	)
	return nil
}

func cmdRead(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	date := fs.Int("date", 0, "trade date YYYYMMDD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *date == 0 {
		return fmt.Errorf("read: -date is required")
	}

	st := store.New(cfg.DataRoot)
	year := *date / 10000
	rows, err := st.ReadDate(cfg.Symbol, year, int32(*date))
	if err != nil {
		return err
	}
	bars := store.Reconstruct(rows)
	for _, b := range bars {
		fmt.Printf("seq=%d start=%s open=%.6f close=%.6f total=%d buy=%d sell=%d delta=%d\n",
			b.Sequence, b.StartTime.Format(time.RFC3339), b.Open(cfg.TickSize), b.Close(cfg.TickSize),
			b.TotalVolume, b.BuyVolume, b.SellVolume, b.Delta())
	}
	return nil
}

func cmdReagg(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("reagg", flag.ExitOnError)
	date := fs.Int("date", 0, "trade date YYYYMMDD")
	targetV := fs.Int64("target-v", 0, "target volume threshold")
	keepTail := fs.Bool("keep-tail", true, "emit the final partial group")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *date == 0 || *targetV == 0 {
		return fmt.Errorf("reagg: -date and -target-v are required")
	}

	st := store.New(cfg.DataRoot)
	year := *date / 10000
	rows, err := st.ReadDate(cfg.Symbol, year, int32(*date))
	if err != nil {
		return err
	}
	bars := store.Reconstruct(rows)

	in := make(chan *vbar.Bar)
	go func() {
		defer close(in)
		for _, b := range bars {
			in <- b
		}
	}()

	for merged := range reagg.Merge(in, *targetV, *keepTail) {
		fmt.Printf("seq=%d start=%s open=%.6f close=%.6f total=%d buy=%d sell=%d delta=%d\n",
			merged.Sequence, merged.StartTime.Format(time.RFC3339), merged.Open(cfg.TickSize), merged.Close(cfg.TickSize),
			merged.TotalVolume, merged.BuyVolume, merged.SellVolume, merged.Delta())
	}
	return nil
}

func cmdValidate(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	start := fs.Int("start", 0, "start trade date YYYYMMDD")
	end := fs.Int("end", 0, "end trade date YYYYMMDD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *start == 0 || *end == 0 {
		return fmt.Errorf("validate: -start and -end are required")
	}

	src := source.NewBridgeSource(cfg.BridgeURL)
	st := store.New(cfg.DataRoot)

	dates, err := yyyymmddRange(int32(*start), int32(*end))
	if err != nil {
		return err
	}

	results, err := validate.Validate(ctx, src, st, cfg.Symbol, cfg.TickSize, dates)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("date=%d status=%s source_open=%s footprint_open=%s abs_diff=%s\n",
			r.TradeDate, r.Status, r.SourceOpen.String(), r.FootprintOpen.String(), r.AbsDiff.String())
	}
	return nil
}

func yyyymmddRange(start, end int32) ([]int32, error) {
	s, err := time.Parse("20060102", fmt.Sprintf("%08d", start))
	if err != nil {
		return nil, fmt.Errorf("parsing -start: %w", err)
	}
	e, err := time.Parse("20060102", fmt.Sprintf("%08d", end))
	if err != nil {
		return nil, fmt.Errorf("parsing -end: %w", err)
	}
	var out []int32
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, int32(d.Year())*10000+int32(d.Month())*100+int32(d.Day()))
	}
	return out, nil
}
