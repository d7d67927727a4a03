// FILE: reconstruct.go
// Package store – Row -> vbar.Bar reconstruction (the read-path mirror of
// rowsFromBars), with sequence numbers reassigned in start-time order since
// parquet rows do not carry the in-memory Sequence field.
package store

import "github.com/chidi150c/footprint/internal/vbar"

// Reconstruct converts rows (already sorted by trade date then start time,
// as ReadDate/ReadRange guarantee) back into Bar values, one per row, with
// Sequence assigned 1-based per trade date in the given order.
func Reconstruct(rows []Row) []*vbar.Bar {
	bars := make([]*vbar.Bar, len(rows))
	seqByDate := make(map[int32]int)
	for i, r := range rows {
		seqByDate[r.TradeDate]++
		bars[i] = &vbar.Bar{
			TradeDate:   r.TradeDate,
			Sequence:    seqByDate[r.TradeDate],
			StartTime:   r.StartTime,
			EndTime:     r.EndTime,
			OpenI:       r.OpenI,
			HighI:       r.HighI,
			LowI:        r.LowI,
			CloseI:      r.CloseI,
			TotalVolume: r.TotalVolume,
			BuyVolume:   r.BuyVolume,
			SellVolume:  r.SellVolume,
			PricesI:     r.PricesI,
			VolBuy:      r.VolBuy,
			VolSell:     r.VolSell,
		}
	}
	return bars
}
