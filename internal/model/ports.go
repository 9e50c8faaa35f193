package model

import "context"

// StreamHandle controls one live WebSocket subscription.
type StreamHandle interface {
	Start() error
	Stop() error
	Running() bool
}

// TradeCallback is invoked once per trade delivered by a stream.
type TradeCallback func(TradeEvent)

// ExchangeClient is the external collaborator contract for market data:
// symbol discovery, 24h ticker snapshots, historical klines, and live
// aggregated-trade streams.
type ExchangeClient interface {
	// ListSymbols returns all tradeable symbols for marketType, already
	// partitioned into batches of at most WSChunkSize(marketType).
	ListSymbols(ctx context.Context, marketType string) ([][]string, error)

	// Ticker24h returns the full 24h snapshot map, keyed by symbol.
	Ticker24h(ctx context.Context, marketType string) (map[string]TickerDaily, error)

	// RecentKlines fetches up to limit recent candles for symbol at the
	// given timeframe (e.g. "5m"), most recent last.
	RecentKlines(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)

	// OpenAggTradeStream subscribes to the aggregated-trade feed for symbols
	// and invokes cb for every trade. The returned handle is not started
	// until Start is called.
	OpenAggTradeStream(ctx context.Context, symbols []string, cb TradeCallback) (StreamHandle, error)

	// WSChunkSize returns the maximum symbols per shard for marketType.
	WSChunkSize(marketType string) int

	// Close releases any underlying HTTP/WS clients.
	Close() error
}

// MessageRef identifies a previously sent notification message, so its
// media can later be edited in place.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Notifier is the external collaborator contract for dispatching signals.
type Notifier interface {
	SendText(ctx context.Context, token string, chatID int64, text string) (*MessageRef, error)
	EditMedia(ctx context.Context, token string, ref MessageRef, photo []byte, caption string) error
	Close() error
}

// SettingsStore is the external collaborator contract for the single
// hot-reloadable settings record.
type SettingsStore interface {
	Get(ctx context.Context) (Settings, error)
}
