// Package binance implements model.ExchangeClient against the Binance spot
// and USD-M futures APIs via github.com/adshao/go-binance/v2.
package binance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"

	"trading-systemv1/internal/model"
)

const (
	MarketTypeSpot    = "spot"
	MarketTypeFutures = "futures"

	// DefaultWSChunkSize is the fallback per-shard symbol batch size.
	DefaultWSChunkSize = 20
)

// wsChunkSize is the per-exchange subscription-limit override table. Most
// exchanges tolerate the default; any exchange whose server imposes a
// different limit gets an entry here rather than a runtime probe.
var wsChunkSize = map[string]int{
	"bingx": 30,
}

// Client wraps the spot and futures Binance SDK clients behind
// model.ExchangeClient. A Client is bound to one market type for the
// lifetime of a Producer (the exchange-client contract's stream method
// takes no market-type argument), while its REST methods still accept
// marketType explicitly for flexibility.
type Client struct {
	spot    *binance.Client
	futures *futures.Client
	name    string // exchange name, for the wsChunkSize table

	activeMarketType string
}

// New creates a Client bound to marketType (MarketTypeSpot or
// MarketTypeFutures), using apiKey/apiSecret (both may be empty for
// public-only endpoints: symbol listing, tickers, klines, and trade
// streams require no authentication).
func New(apiKey, apiSecret, marketType string) *Client {
	return &Client{
		spot:             binance.NewClient(apiKey, apiSecret),
		futures:          futures.NewClient(apiKey, apiSecret),
		name:             "binance",
		activeMarketType: marketType,
	}
}

// WSChunkSize returns the maximum symbols per shard for marketType.
func (c *Client) WSChunkSize(marketType string) int {
	if n, ok := wsChunkSize[c.name]; ok {
		return n
	}
	return DefaultWSChunkSize
}

// ListSymbols returns all tradeable symbols for marketType, partitioned
// into batches of WSChunkSize(marketType).
func (c *Client) ListSymbols(ctx context.Context, marketType string) ([][]string, error) {
	var symbols []string

	switch marketType {
	case MarketTypeSpot:
		info, err := c.spot.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance: exchange info: %w", err)
		}
		for _, s := range info.Symbols {
			if s.Status == "TRADING" {
				symbols = append(symbols, s.Symbol)
			}
		}

	case MarketTypeFutures:
		info, err := c.futures.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance: futures exchange info: %w", err)
		}
		for _, s := range info.Symbols {
			if s.Status == "TRADING" {
				symbols = append(symbols, s.Symbol)
			}
		}

	default:
		return nil, fmt.Errorf("binance: unsupported market type %q", marketType)
	}

	chunk := c.WSChunkSize(marketType)
	return batch(symbols, chunk), nil
}

func batch(symbols []string, size int) [][]string {
	if size < 1 {
		size = DefaultWSChunkSize
	}
	var out [][]string
	for i := 0; i < len(symbols); i += size {
		end := i + size
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[i:end])
	}
	return out
}

// Ticker24h returns the full 24h snapshot map, keyed by symbol.
func (c *Client) Ticker24h(ctx context.Context, marketType string) (map[string]model.TickerDaily, error) {
	out := make(map[string]model.TickerDaily)

	switch marketType {
	case MarketTypeSpot:
		stats, err := c.spot.NewListPriceChangeStatsService().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance: 24h ticker: %w", err)
		}
		for _, s := range stats {
			last, _ := strconv.ParseFloat(s.LastPrice, 64)
			quoteVol, _ := strconv.ParseFloat(s.QuoteVolume, 64)
			pct, _ := strconv.ParseFloat(s.PriceChangePercent, 64)
			out[s.Symbol] = model.TickerDaily{
				LastPrice:         last,
				QuoteVolume24h:    quoteVol,
				PriceChangePct24h: pct,
			}
		}

	case MarketTypeFutures:
		stats, err := c.futures.NewListPriceChangeStatsService().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance: futures 24h ticker: %w", err)
		}
		for _, s := range stats {
			last, _ := strconv.ParseFloat(s.LastPrice, 64)
			quoteVol, _ := strconv.ParseFloat(s.QuoteVolume, 64)
			pct, _ := strconv.ParseFloat(s.PriceChangePercent, 64)
			out[s.Symbol] = model.TickerDaily{
				LastPrice:         last,
				QuoteVolume24h:    quoteVol,
				PriceChangePct24h: pct,
			}
		}

	default:
		return nil, fmt.Errorf("binance: unsupported market type %q", marketType)
	}

	return out, nil
}

// RecentKlines fetches up to limit recent candles for symbol at the given
// timeframe (e.g. "5m"), most recent last. It queries whichever market
// c was bound to in New, the same way ListSymbols and Ticker24h do —
// chart context for a futures-bound client must come from the futures
// klines endpoint, not spot.
func (c *Client) RecentKlines(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	switch c.activeMarketType {
	case MarketTypeFutures:
		klines, err := c.futures.NewKlinesService().
			Symbol(symbol).
			Interval(timeframe).
			Limit(limit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance: futures klines %s: %w", symbol, err)
		}
		out := make([]model.Candle, 0, len(klines))
		for _, k := range klines {
			out = append(out, candleFromStrings(symbol, k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume, k.QuoteAssetVolume))
		}
		return out, nil

	default:
		klines, err := c.spot.NewKlinesService().
			Symbol(symbol).
			Interval(timeframe).
			Limit(limit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance: klines %s: %w", symbol, err)
		}
		out := make([]model.Candle, 0, len(klines))
		for _, k := range klines {
			out = append(out, candleFromStrings(symbol, k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume, k.QuoteAssetVolume))
		}
		return out, nil
	}
}

func candleFromStrings(symbol string, openTimeMs, closeTimeMs int64, open, high, low, closeP, volume, quoteVolume string) model.Candle {
	o, _ := strconv.ParseFloat(open, 64)
	h, _ := strconv.ParseFloat(high, 64)
	l, _ := strconv.ParseFloat(low, 64)
	c, _ := strconv.ParseFloat(closeP, 64)
	v, _ := strconv.ParseFloat(volume, 64)
	qv, _ := strconv.ParseFloat(quoteVolume, 64)
	return model.Candle{
		Symbol:      symbol,
		OpenTimeMs:  openTimeMs,
		CloseTimeMs: closeTimeMs,
		Open:        o,
		High:        h,
		Low:         l,
		Close:       c,
		BaseVolume:  v,
		QuoteVolume: qv,
		Closed:      true,
	}
}

// DeepLink returns a human deep link to the symbol's trading page, used in
// the signal message text.
func (c *Client) DeepLink(symbol, marketType string) string {
	if marketType == MarketTypeFutures {
		return fmt.Sprintf("https://www.binance.com/en/futures/%s", symbol)
	}
	return fmt.Sprintf("https://www.binance.com/en/trade/%s", symbol)
}

// Close releases the underlying HTTP clients. The go-binance SDK clients
// hold no persistent connections beyond net/http's own pool, so this is a
// no-op kept to satisfy model.ExchangeClient.
func (c *Client) Close() error {
	return nil
}
