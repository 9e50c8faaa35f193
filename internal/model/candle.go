package model

import "encoding/json"

// Candle is one timeframe bucket of OHLCV data for a single symbol.
// Prices are float64: the hot ingestion path mutates these fields once per
// trade under the producer's candle lock, and a decimal type there would
// turn that mutation into an allocation per trade for no precision benefit
// (exchange trade prices arrive as wire strings anyway, parsed once at the
// edge). Chart rendering, where leading-zero counting and rounding matter,
// uses shopspring/decimal on the single scalar it needs — see internal/chart.
type Candle struct {
	Symbol      string  `json:"symbol"`
	OpenTimeMs  int64   `json:"open_time_ms"`
	CloseTimeMs int64   `json:"close_time_ms,omitempty"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	BaseVolume  float64 `json:"base_volume"`
	QuoteVolume float64 `json:"quote_volume"`
	Closed      bool    `json:"closed"`
}

// JSON returns the JSON-encoded candle, ignoring errors (hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// TickerDaily is a per-symbol 24h snapshot, replaced wholesale on refresh.
type TickerDaily struct {
	LastPrice         float64 `json:"last_price"`
	QuoteVolume24h    float64 `json:"quote_volume_24h"`
	PriceChangePct24h float64 `json:"price_change_pct_24h"`
}

// TradeEvent is one aggregated trade delivered by an exchange stream.
type TradeEvent struct {
	Symbol      string
	TradeTimeMs int64
	Price       float64
	Quantity    float64
}
