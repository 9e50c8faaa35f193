// Package producer owns the live candle history and 24h ticker snapshot for
// every known symbol, fed by sharded WebSocket connections to the exchange.
package producer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trading-systemv1/internal/model"
	"trading-systemv1/internal/ringbuf"
)

const (
	// TimeframeSeconds is the candle bucket width.
	TimeframeSeconds = 3
	// MaxHistorySeconds is the oldest retained candle age.
	MaxHistorySeconds = 15 * 60
	// TickersCheckInterval is the new-symbol discovery cadence.
	TickersCheckInterval = 600 * time.Second
	// TickerDailyUpdateInterval is the 24h snapshot refresh cadence.
	TickerDailyUpdateInterval = 5 * time.Second
	// DefaultWSChunkSize is the fallback per-shard symbol batch size.
	DefaultWSChunkSize = 20

	timeframeMs     = TimeframeSeconds * 1000
	maxHistoryMs    = MaxHistorySeconds * 1000
	dequeCapacity   = MaxHistorySeconds/TimeframeSeconds + 2
	staggerInterval = 500 * time.Millisecond
)

// Producer ingests trades, maintains per-symbol candle history, refreshes
// 24h ticker snapshots, and discovers newly listed symbols.
type Producer struct {
	client     model.ExchangeClient
	marketType string
	log        *slog.Logger

	candlesLock sync.Mutex
	candles     map[string]*ringbuf.CandleDeque

	tickerLock sync.RWMutex
	tickers    map[string]model.TickerDaily

	symbols *model.SymbolSet

	mu      sync.Mutex
	shards  []model.StreamHandle
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running bool

	// OnTrade, OnCandleClosed, and OnShardsChanged are optional metrics
	// hooks, invoked synchronously from the hot path; nil is a valid value
	// and is checked before every call.
	OnTrade         func()
	OnCandleClosed  func()
	OnShardsChanged func(count int)
}

// New creates a Producer bound to client for marketType (e.g. "spot",
// "futures").
func New(client model.ExchangeClient, marketType string, log *slog.Logger) *Producer {
	return &Producer{
		client:     client,
		marketType: marketType,
		log:        log,
		candles:    make(map[string]*ringbuf.CandleDeque),
		tickers:    make(map[string]model.TickerDaily),
		symbols:    model.NewSymbolSet(),
	}
}

// Start lists all symbols, opens one WebSocket shard per batch, and launches
// the discovery and ticker-daily loops. It returns once all shards have been
// started (it does not block for the lifetime of the run; the loops run
// until ctx is cancelled or Stop is called).
func (p *Producer) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	batches, err := p.client.ListSymbols(runCtx, p.marketType)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		for _, sym := range batch {
			p.symbols.Add(sym)
		}
	}

	if err := p.startShardsStaggered(runCtx, batches); err != nil {
		return err
	}

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.discoveryLoop(runCtx)
	}()
	go func() {
		defer p.wg.Done()
		p.tickerDailyLoop(runCtx)
	}()

	return nil
}

func (p *Producer) startShardsStaggered(ctx context.Context, batches [][]string) error {
	for i, batch := range batches {
		if i > 0 {
			select {
			case <-time.After(staggerInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := p.startShard(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (p *Producer) startShard(ctx context.Context, batch []string) error {
	handle, err := p.client.OpenAggTradeStream(ctx, batch, p.onTrade)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.shards = append(p.shards, handle)
	count := len(p.shards)
	p.mu.Unlock()
	if p.OnShardsChanged != nil {
		p.OnShardsChanged(count)
	}

	if err := handle.Start(); err != nil {
		p.log.Error("shard start failed", "error", err, "symbols", len(batch))
		return err
	}
	return nil
}

// onTrade is the per-trade callback invoked by every shard. It implements
// the trade-ingestion algorithm: bucket alignment, rollover detection,
// in-place accumulation, and history-bound eviction.
func (p *Producer) onTrade(ev model.TradeEvent) {
	if p.OnTrade != nil {
		p.OnTrade()
	}

	alignedOpen := (ev.TradeTimeMs / timeframeMs) * timeframeMs

	p.candlesLock.Lock()
	defer p.candlesLock.Unlock()

	deque, ok := p.candles[ev.Symbol]
	if !ok {
		deque = ringbuf.NewCandleDeque(dequeCapacity)
		p.candles[ev.Symbol] = deque
	}

	last := deque.Last()
	switch {
	case last == nil:
		deque.Append(model.Candle{
			Symbol:      ev.Symbol,
			OpenTimeMs:  alignedOpen,
			Open:        ev.Price,
			High:        ev.Price,
			Low:         ev.Price,
			Close:       ev.Price,
			BaseVolume:  ev.Quantity,
			QuoteVolume: ev.Quantity * ev.Price,
		})

	case ev.TradeTimeMs >= last.OpenTimeMs+timeframeMs:
		last.CloseTimeMs = last.OpenTimeMs + timeframeMs
		last.Closed = true
		if p.OnCandleClosed != nil {
			p.OnCandleClosed()
		}
		deque.Append(model.Candle{
			Symbol:      ev.Symbol,
			OpenTimeMs:  alignedOpen,
			Open:        ev.Price,
			High:        ev.Price,
			Low:         ev.Price,
			Close:       ev.Price,
			BaseVolume:  ev.Quantity,
			QuoteVolume: ev.Quantity * ev.Price,
		})

	default:
		// Covers both the ordinary same-bucket case and the deliberately
		// simplified late-trade case (trade_time_ms < last.OpenTimeMs):
		// both are folded into the current candle rather than routed to a
		// historical bucket.
		if ev.Price > last.High {
			last.High = ev.Price
		}
		if ev.Price < last.Low {
			last.Low = ev.Price
		}
		last.Close = ev.Price
		last.BaseVolume += ev.Quantity
		last.QuoteVolume += ev.Quantity * ev.Price
	}

	deque.EvictBefore(alignedOpen - maxHistoryMs)

	if p.symbols.Add(ev.Symbol) {
		p.log.Debug("trade for previously unlisted symbol accepted", "symbol", ev.Symbol)
	}
}

// discoveryLoop re-lists symbols every TickersCheckInterval and starts one
// new shard per discovery cycle for newly seen symbols.
func (p *Producer) discoveryLoop(ctx context.Context) {
	ticker := time.NewTicker(TickersCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.discoverOnce(ctx)
		}
	}
}

func (p *Producer) discoverOnce(ctx context.Context) {
	batches, err := p.client.ListSymbols(ctx, p.marketType)
	if err != nil {
		p.log.Warn("symbol discovery failed, retrying next cycle", "error", err)
		return
	}

	var fresh []string
	for _, batch := range batches {
		for _, sym := range batch {
			if p.symbols.Add(sym) {
				fresh = append(fresh, sym)
			}
		}
	}
	if len(fresh) == 0 {
		return
	}

	p.log.Info("discovered new symbols", "count", len(fresh))
	if err := p.startShard(ctx, fresh); err != nil {
		p.log.Error("failed to start shard for newly discovered symbols", "error", err)
	}
}

// tickerDailyLoop refreshes the 24h ticker snapshot every
// TickerDailyUpdateInterval, swapping it in wholesale.
func (p *Producer) tickerDailyLoop(ctx context.Context) {
	ticker := time.NewTicker(TickerDailyUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := p.client.Ticker24h(ctx, p.marketType)
			if err != nil {
				p.log.Warn("ticker-daily refresh failed, keeping last-good snapshot", "error", err)
				continue
			}
			p.tickerLock.Lock()
			p.tickers = snap
			p.tickerLock.Unlock()
		}
	}
}

// SnapshotCandles returns a fresh copy of every symbol's candle buffer.
func (p *Producer) SnapshotCandles() map[string][]model.Candle {
	p.candlesLock.Lock()
	defer p.candlesLock.Unlock()

	out := make(map[string][]model.Candle, len(p.candles))
	for sym, deque := range p.candles {
		out[sym] = deque.Snapshot()
	}
	return out
}

// SnapshotTickerDaily returns a fresh copy of the 24h ticker map.
func (p *Producer) SnapshotTickerDaily() map[string]model.TickerDaily {
	p.tickerLock.RLock()
	defer p.tickerLock.RUnlock()

	out := make(map[string]model.TickerDaily, len(p.tickers))
	for sym, td := range p.tickers {
		out[sym] = td
	}
	return out
}

// Symbols returns the current known symbol set.
func (p *Producer) Symbols() *model.SymbolSet {
	return p.symbols
}

// Stop cancels the discovery and ticker-daily loops and stops every shard.
// Shard stop errors are logged, not returned: shutdown always completes.
func (p *Producer) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	shards := p.shards
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, shard := range shards {
		if err := shard.Stop(); err != nil {
			p.log.Warn("shard stop error", "error", err)
		}
	}
	p.wg.Wait()
}
