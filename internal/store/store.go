// FILE: store.go
// Package store – Atomic, per-symbol-per-year parquet store for footprint
// bars, one row group per trade date (C3). ReadDate/ReadRange decode only
// the row group(s) whose trade date matches the request: the sidecar's
// dates_present is index-aligned with the file's row groups (CommitDays
// writes them in that same order), so a date maps directly to a row-group
// index and everything else in the file stays undecoded.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/chidi150c/footprint/internal/vbar"
)

// Store is a filesystem-rooted footprint bar archive. One Store instance is
// safe to share across goroutines operating on disjoint (symbol, year)
// pairs; it holds no mutable state of its own.
type Store struct {
	Root string
}

// New returns a Store rooted at dir.
func New(dir string) *Store {
	return &Store{Root: dir}
}

// SanitizeSymbol strips a leading "/" and removes interior "/" so a symbol
// never introduces nested or escaping path components.
func SanitizeSymbol(symbol string) string {
	s := strings.TrimPrefix(symbol, "/")
	s = strings.ReplaceAll(s, "/", "")
	return s
}

func (s *Store) symbolDir(symbol string) string {
	return filepath.Join(s.Root, SanitizeSymbol(symbol))
}

func (s *Store) yearPath(symbol string, year int) string {
	return filepath.Join(s.symbolDir(symbol), fmt.Sprintf("%d.parquet", year))
}

func (s *Store) metaPath(symbol string, year int) string {
	return filepath.Join(s.symbolDir(symbol), fmt.Sprintf("%d_meta.json", year))
}

// ReadMeta loads the year sidecar; if the sidecar does not exist yet it
// returns (without error) an empty YearMeta with only Symbol, Year and
// SchemaVersion set.
func (s *Store) ReadMeta(symbol string, year int) (YearMeta, error) {
	path := s.metaPath(symbol, year)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return YearMeta{Symbol: SanitizeSymbol(symbol), Year: year, SchemaVersion: 1}, nil
	}
	if err != nil {
		return YearMeta{}, fmt.Errorf("store: reading metadata %s: %w", path, err)
	}
	var m YearMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return YearMeta{}, fmt.Errorf("store: parsing metadata %s: %w", path, err)
	}
	return m, nil
}

func (s *Store) writeMeta(symbol string, year int, m YearMeta) error {
	path := s.metaPath(symbol, year)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: creating symbol dir: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encoding metadata: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("store: writing metadata tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: renaming metadata tmp: %w", err)
	}
	return nil
}

// PresentDates returns the set of trade dates already committed for
// symbol/year, read from the sidecar.
func (s *Store) PresentDates(symbol string, year int) (map[int32]bool, error) {
	m, err := s.ReadMeta(symbol, year)
	if err != nil {
		return nil, err
	}
	out := make(map[int32]bool, len(m.DatesPresent))
	for _, d := range m.DatesPresent {
		out[d] = true
	}
	return out, nil
}

// Missing returns the subset of targetDates not already present and not
// already recorded as a no-data date, unless forceRecompute is set, in
// which case every targetDate is considered missing.
func (s *Store) Missing(symbol string, year int, targetDates []int32, forceRecompute bool) ([]int32, error) {
	if forceRecompute {
		out := append([]int32(nil), targetDates...)
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out, nil
	}
	m, err := s.ReadMeta(symbol, year)
	if err != nil {
		return nil, err
	}
	present := make(map[int32]bool, len(m.DatesPresent))
	for _, d := range m.DatesPresent {
		present[d] = true
	}
	noData := make(map[int32]bool, len(m.NoDataDates))
	for _, d := range m.NoDataDates {
		noData[d] = true
	}
	var missing []int32
	for _, d := range targetDates {
		if present[d] || noData[d] {
			continue
		}
		missing = append(missing, d)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing, nil
}

// DayBars is one trade date's worth of bars, to be committed as a single
// row group.
type DayBars struct {
	TradeDate int32
	Bars      []*vbar.Bar
}

// CommitDays rewrites the year file so it contains, for every date in days
// plus every previously-present date not in forceRecomputeDates, exactly
// one row group sorted by start time, with row groups ordered by trade
// date ascending. The rewrite goes to a temp file and is atomically renamed
// into place; the sidecar is updated after the rename succeeds.
func (s *Store) CommitDays(symbol string, year int, vUnit int64, tickSize float64, days []DayBars, forceRecomputeDates []int32) error {
	existing, err := s.readAllRows(symbol, year)
	if err != nil {
		return err
	}

	forceSet := make(map[int32]bool, len(forceRecomputeDates))
	for _, d := range forceRecomputeDates {
		forceSet[d] = true
	}

	byDate := make(map[int32][]Row)
	for _, r := range existing {
		if forceSet[r.TradeDate] {
			continue
		}
		byDate[r.TradeDate] = append(byDate[r.TradeDate], r)
	}
	for _, d := range days {
		if len(d.Bars) == 0 {
			continue
		}
		byDate[d.TradeDate] = rowsFromBars(d.Bars)
	}

	dates := make([]int32, 0, len(byDate))
	for d, rows := range byDate {
		if len(rows) == 0 {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })

	yearPath := s.yearPath(symbol, year)
	tmpPath := yearPath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(yearPath), 0o755); err != nil {
		return fmt.Errorf("store: creating symbol dir: %w", err)
	}

	if err := writeRowGroupsByDate(tmpPath, dates, byDate); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, yearPath); err != nil {
		return fmt.Errorf("store: renaming year file tmp: %w", err)
	}

	barCounts := make(map[string]int, len(dates))
	for _, d := range dates {
		barCounts[strconv.Itoa(int(d))] = len(byDate[d])
	}
	prevMeta, err := s.ReadMeta(symbol, year)
	if err != nil {
		return err
	}
	noData := filterOutDates(prevMeta.NoDataDates, dates)

	meta := YearMeta{
		Symbol:         SanitizeSymbol(symbol),
		Year:           year,
		VUnit:          vUnit,
		TickSize:       tickSize,
		DatesPresent:   dates,
		BarCountByDate: barCounts,
		NoDataDates:    noData,
		LastUpdated:    time.Now().UTC().Format(time.RFC3339),
		SchemaVersion:  1,
	}
	return s.writeMeta(symbol, year, meta)
}

// CommitNoDataDates records dates that were probed and found to have no
// trading activity, without touching the parquet file.
func (s *Store) CommitNoDataDates(symbol string, year int, vUnit int64, tickSize float64, noDataDates []int32) error {
	m, err := s.ReadMeta(symbol, year)
	if err != nil {
		return err
	}
	set := make(map[int32]bool, len(m.NoDataDates)+len(noDataDates))
	for _, d := range m.NoDataDates {
		set[d] = true
	}
	for _, d := range noDataDates {
		set[d] = true
	}
	merged := make([]int32, 0, len(set))
	for d := range set {
		merged = append(merged, d)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })

	m.VUnit = vUnit
	m.TickSize = tickSize
	m.NoDataDates = merged
	m.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	if m.SchemaVersion == 0 {
		m.SchemaVersion = 1
	}
	return s.writeMeta(symbol, year, m)
}

func filterOutDates(src []int32, remove []int32) []int32 {
	rm := make(map[int32]bool, len(remove))
	for _, d := range remove {
		rm[d] = true
	}
	out := make([]int32, 0, len(src))
	for _, d := range src {
		if !rm[d] {
			out = append(out, d)
		}
	}
	return out
}

func rowsFromBars(bars []*vbar.Bar) []Row {
	rows := make([]Row, len(bars))
	for i, b := range bars {
		rows[i] = Row{
			TradeDate:   b.TradeDate,
			StartTime:   b.StartTime,
			EndTime:     b.EndTime,
			OpenI:       b.OpenI,
			HighI:       b.HighI,
			LowI:        b.LowI,
			CloseI:      b.CloseI,
			TotalVolume: b.TotalVolume,
			BuyVolume:   b.BuyVolume,
			SellVolume:  b.SellVolume,
			PricesI:     b.PricesI,
			VolBuy:      b.VolBuy,
			VolSell:     b.VolSell,
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartTime.Before(rows[j].StartTime) })
	return rows
}

// writeRowGroupsByDate writes one row group per date, in the given date
// order, using the low-level generic writer so each Flush boundary is an
// explicit row-group boundary.
func writeRowGroupsByDate(path string, dates []int32, byDate map[int32][]Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: creating year tmp file: %w", err)
	}
	defer f.Close()

	writer := parquet.NewGenericWriter[Row](f, parquet.Compression(&parquet.Snappy))
	for _, d := range dates {
		rows := byDate[d]
		if len(rows) == 0 {
			continue
		}
		if _, err := writer.Write(rows); err != nil {
			writer.Close()
			return fmt.Errorf("store: writing row group for date %d: %w", d, err)
		}
		if err := writer.Flush(); err != nil {
			writer.Close()
			return fmt.Errorf("store: flushing row group for date %d: %w", d, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("store: closing year writer: %w", err)
	}
	return nil
}

// readAllRows decodes the entire year file. It exists for CommitDays, which
// legitimately needs every existing row to rebuild the file; read paths
// (ReadDate/ReadRange) must use readRowGroupAt instead so they never decode
// row groups the caller didn't ask for.
func (s *Store) readAllRows(symbol string, year int) ([]Row, error) {
	path := s.yearPath(symbol, year)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("store: reading year file %s: %w", path, err)
	}
	return rows, nil
}

// openYearFile opens the year's parquet file for row-group-scoped reads. It
// returns (nil, nil, nil) if the file does not exist. Callers must close the
// returned *os.File once done with the *parquet.File.
func (s *Store) openYearFile(symbol string, year int) (*os.File, *parquet.File, error) {
	path := s.yearPath(symbol, year)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: opening year file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("store: stat year file %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("store: opening parquet file %s: %w", path, err)
	}
	return f, pf, nil
}

// readRowGroupAt decodes exactly one row group (the physical unit a trade
// date occupies, per the row-group-per-day discipline) without touching any
// other row group in the file.
func readRowGroupAt(pf *parquet.File, index int) ([]Row, error) {
	groups := pf.RowGroups()
	if index < 0 || index >= len(groups) {
		return nil, fmt.Errorf("store: row group index %d out of range (have %d)", index, len(groups))
	}
	rg := groups[index]
	reader := rg.Rows()
	defer reader.Close()

	schema := pf.Schema()
	out := make([]Row, 0, rg.NumRows())
	buf := make([]parquet.Row, 128)
	for {
		n, err := reader.ReadRows(buf)
		for i := 0; i < n; i++ {
			var row Row
			if decodeErr := schema.Reconstruct(&row, buf[i]); decodeErr != nil {
				return nil, fmt.Errorf("store: decoding row group %d: %w", index, decodeErr)
			}
			out = append(out, row)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("store: reading row group %d: %w", index, err)
		}
	}
	return out, nil
}

// ReadDate returns the rows for a single trade date, sorted by start time.
// It maps tradeDate to its row-group index via the sidecar's DatesPresent
// (index-aligned with the file's row groups) and decodes only that one row
// group; a date absent from DatesPresent never touches the parquet file.
func (s *Store) ReadDate(symbol string, year int, tradeDate int32) ([]Row, error) {
	m, err := s.ReadMeta(symbol, year)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, d := range m.DatesPresent {
		if d == tradeDate {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}

	f, pf, err := s.openYearFile(symbol, year)
	if err != nil {
		return nil, err
	}
	if pf == nil {
		return nil, nil
	}
	defer f.Close()

	rows, err := readRowGroupAt(pf, idx)
	if err != nil {
		return nil, fmt.Errorf("store: reading date %d: %w", tradeDate, err)
	}
	return rows, nil
}

// ReadRange returns rows for every trade date in [fromDate, toDate] across
// however many year files that range spans, sorted by trade date then start
// time. fromDate/toDate are YYYYMMDD integers; fromYear/toYear bound the
// year files actually opened. For each year, only the row groups whose
// DatesPresent entry falls in range are decoded (one filtered read per
// year, per spec.md §4.4); years and dates outside the range never open a
// file at all.
func (s *Store) ReadRange(symbol string, fromYear, toYear int, fromDate, toDate int32) ([]Row, error) {
	var out []Row
	for year := fromYear; year <= toYear; year++ {
		m, err := s.ReadMeta(symbol, year)
		if err != nil {
			return nil, err
		}
		var idxs []int
		for i, d := range m.DatesPresent {
			if d >= fromDate && d <= toDate {
				idxs = append(idxs, i)
			}
		}
		if len(idxs) == 0 {
			continue
		}

		f, pf, err := s.openYearFile(symbol, year)
		if err != nil {
			return nil, err
		}
		if pf == nil {
			continue
		}
		for _, idx := range idxs {
			rows, err := readRowGroupAt(pf, idx)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("store: reading year %d: %w", year, err)
			}
			out = append(out, rows...)
		}
		f.Close()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TradeDate != out[j].TradeDate {
			return out[i].TradeDate < out[j].TradeDate
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}
