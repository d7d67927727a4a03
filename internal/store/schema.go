// FILE: schema.go
// Package store – Columnar on-disk representation of footprint bars,
// partitioned by symbol and year, one row group per trade date (C3).
package store

import "time"

// Row is the on-disk parquet row for one footprint bar. Field order matches
// the column order written to every year file; it must not be reordered
// once data has been committed with it.
type Row struct {
	TradeDate int32     `parquet:"trade_date"`
	StartTime time.Time `parquet:"start_time,timestamp"`
	EndTime   time.Time `parquet:"end_time,timestamp"`

	OpenI  int32 `parquet:"open_i"`
	HighI  int32 `parquet:"high_i"`
	LowI   int32 `parquet:"low_i"`
	CloseI int32 `parquet:"close_i"`

	TotalVolume int64 `parquet:"total_volume"`
	BuyVolume   int64 `parquet:"buy_volume"`
	SellVolume  int64 `parquet:"sell_volume"`

	PricesI []int32 `parquet:"prices_i"`
	VolBuy  []int32 `parquet:"vol_buy"`
	VolSell []int32 `parquet:"vol_sell"`
}

// YearMeta is the JSON sidecar written alongside each year's parquet file.
// It lets readers answer "which trade dates exist" and "which dates have
// been probed and found empty" without scanning the parquet file itself.
type YearMeta struct {
	Symbol    string `json:"symbol"`
	Year      int    `json:"year"`
	VUnit     int64  `json:"v_unit"`
	TickSize  float64 `json:"tick_size"`

	// DatesPresent is sorted ascending; it is also the row-group order of
	// the parquet file (one row group per date, in this order).
	DatesPresent   []int32         `json:"dates_present"`
	BarCountByDate map[string]int `json:"bar_count_by_date"`
	NoDataDates    []int32        `json:"no_data_dates"`

	LastUpdated   string `json:"last_updated"`
	SchemaVersion int    `json:"schema_version"`
}
