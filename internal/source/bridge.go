// FILE: bridge.go
// Package source – HTTP bridge client, modeled on the trading host's
// broker_bridge.go: a thin JSON client against a local sidecar that fronts
// the actual market data provider.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// BridgeSource fetches per-second tables from an HTTP sidecar.
//
//	GET {base}/footprint/seconds?symbol=...&trade_date=YYYYMMDD
type BridgeSource struct {
	base string
	hc   *http.Client
}

// NewBridgeSource builds a BridgeSource against base, trimming whitespace
// and an accidental trailing comment the way a hand-edited .env often has.
func NewBridgeSource(base string) *BridgeSource {
	base = strings.TrimSpace(base)
	if i := strings.IndexAny(base, " \t#"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if base == "" {
		base = "http://127.0.0.1:8787"
	}
	base = strings.TrimRight(base, "/")
	return &BridgeSource{
		base: base,
		hc:   &http.Client{Timeout: 30 * time.Second},
	}
}

type bridgeSecondRow struct {
	UnixSecond int64   `json:"unix_second"`
	TradeOpen  float64 `json:"trade_open"`
	TradeHigh  float64 `json:"trade_high"`
	TradeLow   float64 `json:"trade_low"`
	TradeClose float64 `json:"trade_close"`
	Volume     float64 `json:"volume"`
	BidOpen    float64 `json:"bid_open"`
	BidHigh    float64 `json:"bid_high"`
	BidLow     float64 `json:"bid_low"`
	BidClose   float64 `json:"bid_close"`
	AskOpen    float64 `json:"ask_open"`
	AskHigh    float64 `json:"ask_high"`
	AskLow     float64 `json:"ask_low"`
	AskClose   float64 `json:"ask_close"`
}

// bridgeResponse tolerates either a bare array or an object wrapping it in
// "seconds", matching the sidecar-response shapes the trading host's own
// bridge tooling already had to handle.
type bridgeResponse struct {
	Seconds []bridgeSecondRow `json:"seconds"`
}

func (b *BridgeSource) FetchDay(ctx context.Context, symbol string, tradeDate int32) (Table, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("trade_date", strconv.Itoa(int(tradeDate)))

	u := fmt.Sprintf("%s/footprint/seconds?%s", b.base, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Table{}, fmt.Errorf("source: building request: %w (url=%s)", err, u)
	}
	req.Header.Set("User-Agent", "footprint/bridge")

	res, err := b.hc.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("source: request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return Table{Symbol: symbol, TradeDate: tradeDate}, nil
	}
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return Table{}, fmt.Errorf("source: bridge returned %d: %s", res.StatusCode, string(body))
	}

	rows, err := decodeRows(res.Body)
	if err != nil {
		return Table{}, fmt.Errorf("source: decoding response: %w", err)
	}

	seconds := make([]Second, 0, len(rows))
	for _, r := range rows {
		seconds = append(seconds, rowToSecond(r))
	}
	return Table{Symbol: symbol, TradeDate: tradeDate, Seconds: seconds}, nil
}

// decodeRows tolerates both a bare JSON array of rows and a
// {"seconds":[...]} wrapper.
func decodeRows(body io.Reader) ([]bridgeSecondRow, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		var rows []bridgeSecondRow
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var wrapped bridgeResponse
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Seconds, nil
}

func rowToSecond(r bridgeSecondRow) Second {
	s := Second{UnixSecond: r.UnixSecond}
	s.TradeOpen = r.TradeOpen
	s.TradeHigh = r.TradeHigh
	s.TradeLow = r.TradeLow
	s.TradeClose = r.TradeClose
	s.Volume = r.Volume
	s.BidOpen = r.BidOpen
	s.BidHigh = r.BidHigh
	s.BidLow = r.BidLow
	s.BidClose = r.BidClose
	s.AskOpen = r.AskOpen
	s.AskHigh = r.AskHigh
	s.AskLow = r.AskLow
	s.AskClose = r.AskClose
	return s
}
