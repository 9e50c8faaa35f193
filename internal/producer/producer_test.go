package producer

import (
	"context"
	"log/slog"
	"io"
	"sync"
	"testing"

	"trading-systemv1/internal/model"
)

// fakeHandle is a no-op StreamHandle for tests that exercise onTrade
// directly without a live shard.
type fakeHandle struct{ running bool }

func (h *fakeHandle) Start() error   { h.running = true; return nil }
func (h *fakeHandle) Stop() error    { h.running = false; return nil }
func (h *fakeHandle) Running() bool  { return h.running }

// fakeExchange is a minimal model.ExchangeClient for discovery tests.
type fakeExchange struct {
	mu       sync.Mutex
	batches  [][]string
	streamed [][]string
}

func (f *fakeExchange) ListSymbols(ctx context.Context, marketType string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches, nil
}

func (f *fakeExchange) Ticker24h(ctx context.Context, marketType string) (map[string]model.TickerDaily, error) {
	return map[string]model.TickerDaily{}, nil
}

func (f *fakeExchange) RecentKlines(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	return nil, nil
}

func (f *fakeExchange) OpenAggTradeStream(ctx context.Context, symbols []string, cb model.TradeCallback) (model.StreamHandle, error) {
	f.mu.Lock()
	f.streamed = append(f.streamed, symbols)
	f.mu.Unlock()
	return &fakeHandle{}, nil
}

func (f *fakeExchange) WSChunkSize(marketType string) int { return DefaultWSChunkSize }
func (f *fakeExchange) Close() error                      { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOnTradeSingleBucketFill(t *testing.T) {
	p := New(&fakeExchange{}, "spot", testLogger())

	p.onTrade(model.TradeEvent{Symbol: "S1", TradeTimeMs: 1000, Price: 10, Quantity: 1})
	p.onTrade(model.TradeEvent{Symbol: "S1", TradeTimeMs: 1500, Price: 12, Quantity: 2})
	p.onTrade(model.TradeEvent{Symbol: "S1", TradeTimeMs: 2999, Price: 8, Quantity: 3})

	buf := p.SnapshotCandles()["S1"]
	if len(buf) != 1 {
		t.Fatalf("len(buf) = %d, want 1", len(buf))
	}
	c := buf[0]
	if c.OpenTimeMs != 0 || c.Open != 10 || c.High != 12 || c.Low != 8 || c.Close != 8 {
		t.Fatalf("candle = %+v, want open_time=0 o=10 h=12 l=8 c=8", c)
	}
	if c.BaseVolume != 6 {
		t.Fatalf("BaseVolume = %v, want 6", c.BaseVolume)
	}
	if c.QuoteVolume != 58 {
		t.Fatalf("QuoteVolume = %v, want 58", c.QuoteVolume)
	}
	if c.Closed {
		t.Fatalf("candle should still be open")
	}
}

func TestOnTradeRollover(t *testing.T) {
	p := New(&fakeExchange{}, "spot", testLogger())

	p.onTrade(model.TradeEvent{Symbol: "S1", TradeTimeMs: 1000, Price: 10, Quantity: 1})
	p.onTrade(model.TradeEvent{Symbol: "S1", TradeTimeMs: 1500, Price: 12, Quantity: 2})
	p.onTrade(model.TradeEvent{Symbol: "S1", TradeTimeMs: 2999, Price: 8, Quantity: 3})
	p.onTrade(model.TradeEvent{Symbol: "S1", TradeTimeMs: 3100, Price: 11, Quantity: 1})

	buf := p.SnapshotCandles()["S1"]
	if len(buf) != 2 {
		t.Fatalf("len(buf) = %d, want 2", len(buf))
	}
	prior := buf[0]
	if !prior.Closed || prior.CloseTimeMs != 3000 {
		t.Fatalf("prior candle = %+v, want closed at 3000", prior)
	}
	next := buf[1]
	if next.OpenTimeMs != 3000 || next.Open != 11 || next.High != 11 || next.Low != 11 || next.Close != 11 {
		t.Fatalf("next candle = %+v, want o=h=l=c=11 at open_time=3000", next)
	}
	if next.BaseVolume != 1 || next.QuoteVolume != 11 {
		t.Fatalf("next candle volumes = %+v, want base=1 quote=11", next)
	}
}

func TestOnTradeLateTradeFoldsIntoCurrentBucket(t *testing.T) {
	p := New(&fakeExchange{}, "spot", testLogger())

	p.onTrade(model.TradeEvent{Symbol: "S1", TradeTimeMs: 2000, Price: 10, Quantity: 1})
	// Late trade: timestamp behind the current bucket's open time.
	p.onTrade(model.TradeEvent{Symbol: "S1", TradeTimeMs: 1000, Price: 50, Quantity: 1})

	buf := p.SnapshotCandles()["S1"]
	if len(buf) != 1 {
		t.Fatalf("len(buf) = %d, want 1 (late trade must not create a new bucket)", len(buf))
	}
	if buf[0].High != 50 || buf[0].Close != 50 {
		t.Fatalf("late trade was not folded into current candle: %+v", buf[0])
	}
}

func TestOnTradeEvictionBound(t *testing.T) {
	p := New(&fakeExchange{}, "spot", testLogger())

	total := int64(MaxHistorySeconds*2) * 1000
	for ts := int64(0); ts < total; ts += timeframeMs {
		p.onTrade(model.TradeEvent{Symbol: "S1", TradeTimeMs: ts, Price: 1, Quantity: 1})
	}

	buf := p.SnapshotCandles()["S1"]
	maxLen := MaxHistorySeconds/TimeframeSeconds + 1
	if len(buf) > maxLen {
		t.Fatalf("len(buf) = %d, want <= %d", len(buf), maxLen)
	}
}

func TestOnTradeOpenTimeStrictlyIncreasing(t *testing.T) {
	p := New(&fakeExchange{}, "spot", testLogger())
	for ts := int64(0); ts < 30000; ts += 750 {
		p.onTrade(model.TradeEvent{Symbol: "S1", TradeTimeMs: ts, Price: 1, Quantity: 1})
	}
	buf := p.SnapshotCandles()["S1"]
	for i := 1; i < len(buf); i++ {
		if buf[i].OpenTimeMs <= buf[i-1].OpenTimeMs {
			t.Fatalf("open times not strictly increasing at index %d: %d <= %d", i, buf[i].OpenTimeMs, buf[i-1].OpenTimeMs)
		}
	}
}

func TestDiscoverOnceStartsOneShardForNewSymbols(t *testing.T) {
	ex := &fakeExchange{batches: [][]string{{"A", "B"}}}
	p := New(ex, "spot", testLogger())
	p.symbols.Add("A")
	p.symbols.Add("B")

	ex.mu.Lock()
	ex.batches = [][]string{{"A", "B", "C"}}
	ex.mu.Unlock()

	p.discoverOnce(context.Background())

	if !p.symbols.Has("C") {
		t.Fatalf("SymbolSet should contain newly discovered symbol C")
	}
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if len(ex.streamed) != 1 {
		t.Fatalf("expected exactly one new shard, got %d", len(ex.streamed))
	}
	if len(ex.streamed[0]) != 1 || ex.streamed[0][0] != "C" {
		t.Fatalf("new shard should subscribe to exactly {C}, got %v", ex.streamed[0])
	}
	if p.symbols.Len() != 3 {
		t.Fatalf("SymbolSet.Len() = %d, want 3", p.symbols.Len())
	}
}
