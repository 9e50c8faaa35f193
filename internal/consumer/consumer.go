// Package consumer periodically evaluates every symbol's volume multiplier
// against the producer's shared state, enforces per-symbol cooldowns, and
// dispatches notifications.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"trading-systemv1/internal/chart"
	"trading-systemv1/internal/cooldown"
	"trading-systemv1/internal/klinecache"
	"trading-systemv1/internal/model"
)

// EvalTick is the evaluation loop period.
const EvalTick = 1 * time.Second

const (
	chartKlineTimeframe = "5m"
	chartKlineLimit     = 500
)

// candleSource is the read-through accessor surface the consumer needs
// from the producer. Defined here (rather than depending on the concrete
// producer.Producer type) so the consumer can be tested without a real
// producer.
type candleSource interface {
	SnapshotCandles() map[string][]model.Candle
	SnapshotTickerDaily() map[string]model.TickerDaily
}

// deepLinker is implemented by exchange clients that can render a deep
// link for a symbol; optional, since the contract itself does not require
// it.
type deepLinker interface {
	DeepLink(symbol, marketType string) string
}

// Consumer evaluates symbols on a fixed tick and dispatches signals.
type Consumer struct {
	producer   candleSource
	client     model.ExchangeClient
	notifier   model.Notifier
	marketType string
	log        *slog.Logger

	cache *klinecache.Cache
	pool  *chart.Pool
	durableStore durableStore

	settings atomic.Pointer[model.Settings]
	cooldown *cooldownState

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// OnSignal, OnCooldownBlock, and OnTick are optional metrics hooks.
	OnSignal        func(symbol string)
	OnCooldownBlock func()
	OnTick          func(d time.Duration)
}

// durableStore is the subset of *cooldown.Store the consumer needs, named
// as an interface so tests can substitute a fake without touching Redis.
type durableStore interface {
	Load(ctx context.Context) (map[string]cooldown.Entry, error)
	Save(symbol string, until time.Time, count int)
	Close() error
}

// New creates a Consumer. durable may be nil, in which case cooldown state
// is in-memory only for the process lifetime.
func New(producer candleSource, client model.ExchangeClient, notifier model.Notifier, marketType string, cache *klinecache.Cache, pool *chart.Pool, durable durableStore, log *slog.Logger) *Consumer {
	c := &Consumer{
		producer:     producer,
		client:       client,
		notifier:     notifier,
		marketType:   marketType,
		log:          log,
		cache:        cache,
		pool:         pool,
		durableStore: durable,
		cooldown:     newCooldownState(),
	}
	c.settings.Store(&model.Settings{})
	return c
}

// UpdateSettings atomically swaps the active settings. Safe to call
// concurrently with the evaluation loop; readers within a tick never
// observe a torn value.
func (c *Consumer) UpdateSettings(s model.Settings) {
	c.settings.Store(&s)
}

func (c *Consumer) currentSettings() model.Settings {
	return *c.settings.Load()
}

// Start loads durable cooldown state (if configured) and launches the
// evaluation loop.
func (c *Consumer) Start(ctx context.Context) {
	if c.durableStore != nil {
		entries, err := c.durableStore.Load(ctx)
		if err != nil {
			c.log.Warn("cooldown durability load failed, starting with empty cooldown state", "error", err)
		} else {
			converted := make(map[string]cooldownEntry, len(entries))
			for symbol, e := range entries {
				converted[symbol] = cooldownEntry{Until: e.Until, Count: e.Count}
			}
			c.cooldown.restore(converted)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(runCtx)
	}()
}

func (c *Consumer) loop(ctx context.Context) {
	ticker := time.NewTicker(EvalTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Consumer) tick(ctx context.Context) {
	tickStart := time.Now()
	if c.OnTick != nil {
		defer func() { c.OnTick(time.Since(tickStart)) }()
	}

	settings := c.currentSettings()
	if !settings.IsReady() {
		return
	}

	candles := c.producer.SnapshotCandles()
	tickers := c.producer.SnapshotTickerDaily()
	now := time.Now()

	var wg sync.WaitGroup
	fired := 0

	for symbol, buffer := range candles {
		if c.cooldown.IsBlocked(symbol, now) {
			if c.OnCooldownBlock != nil {
				c.OnCooldownBlock()
			}
			continue
		}
		td, ok := tickers[symbol]
		if !ok {
			c.log.Warn("no 24h ticker snapshot for known symbol, skipping this tick", "symbol", symbol)
			continue
		}

		multiplier := Multiplier(buffer, td.QuoteVolume24h, settings.IntervalSeconds, now)
		if multiplier <= settings.MinMultiplier {
			continue
		}

		until := now.Add(time.Duration(settings.TimeoutSeconds) * time.Second)
		c.cooldown.Block(symbol, until)
		count := c.cooldown.IncrementSignalCount(symbol)
		if c.durableStore != nil {
			c.durableStore.Save(symbol, until, count)
		}
		if c.OnSignal != nil {
			c.OnSignal(symbol)
		}

		fired++
		wg.Add(1)
		go func(symbol string, buffer []model.Candle, td model.TickerDaily, multiplier float64, count int) {
			defer wg.Done()
			c.sendAndEnrich(ctx, symbol, buffer, td, multiplier, count, settings)
		}(symbol, buffer, td, multiplier, count)
	}

	wg.Wait()
	if fired > 0 {
		c.log.Info("evaluation tick dispatched signals", "count", fired)
	}
}

// Multiplier computes the volume multiplier for one symbol's candle buffer
// against its 24h quote volume, at instant now, per the reference formula:
// numerator uses base volume from recent candles, denominator uses quote
// volume from the daily ticker. This ratio deliberately mixes units; it is
// a tunable unitless score, not a dimensioned quantity.
func Multiplier(buffer []model.Candle, dailyQuoteVolume float64, intervalSeconds int, now time.Time) float64 {
	if intervalSeconds <= 0 || dailyQuoteVolume <= 0 {
		return 0
	}

	thresholdMs := (now.Unix() - int64(intervalSeconds)) * 1000
	var volInInterval float64
	found := false
	for _, k := range buffer {
		if k.OpenTimeMs > thresholdMs {
			volInInterval += k.BaseVolume
			found = true
		}
	}
	if !found {
		return 0
	}

	volPerSecWindow := volInInterval / float64(intervalSeconds)
	volPerSecDaily := dailyQuoteVolume / 86400
	if volPerSecDaily == 0 {
		return 0
	}
	return volPerSecWindow / volPerSecDaily
}

func (c *Consumer) sendAndEnrich(ctx context.Context, symbol string, buffer []model.Candle, td model.TickerDaily, multiplier float64, signalCount int, settings model.Settings) {
	deepLink := symbol
	if dl, ok := c.client.(deepLinker); ok {
		deepLink = dl.DeepLink(symbol, c.marketType)
	}

	text := buildText(symbol, multiplier, td.PriceChangePct24h, td.QuoteVolume24h, signalCount, deepLink)

	ref, err := c.notifier.SendText(ctx, settings.BotToken, settings.ChatID, text)
	if err != nil || ref == nil {
		c.log.Error("signal send failed", "symbol", symbol, "error", err)
		return
	}

	bufCopy := make([]model.Candle, len(buffer))
	copy(bufCopy, buffer)

	klines, err := c.fetchChartKlines(ctx, symbol)
	if err != nil {
		c.log.Error("chart-context kline fetch failed, signal sent without chart", "symbol", symbol, "error", err)
		return
	}
	if len(klines) == 0 {
		return
	}

	startPrice := klines[0].Open
	finalPrice := klines[len(klines)-1].Close
	var pctChange float64
	if startPrice != 0 {
		pctChange = (finalPrice - startPrice) / startPrice * 100
	}

	png, err := c.pool.Submit(ctx, chart.Request{
		Symbol:     symbol,
		Candles:    klines,
		StartPrice: startPrice,
		FinalPrice: finalPrice,
		PctChange:  pctChange,
	})
	if err != nil {
		c.log.Error("chart render failed, signal sent without chart", "symbol", symbol, "error", err)
		return
	}

	if err := c.notifier.EditMedia(ctx, settings.BotToken, *ref, png, text); err != nil {
		c.log.Error("chart attach failed", "symbol", symbol, "error", err)
	}
}

func (c *Consumer) fetchChartKlines(ctx context.Context, symbol string) ([]model.Candle, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, symbol); ok {
			return cached, nil
		}
	}

	klines, err := c.client.RecentKlines(ctx, symbol, chartKlineTimeframe, chartKlineLimit)
	if err != nil {
		return nil, fmt.Errorf("recent klines: %w", err)
	}

	if c.cache != nil {
		c.cache.Put(ctx, symbol, klines)
	}
	return klines, nil
}

// Stop halts the evaluation loop and closes the notifier. The exchange
// client, shared with the producer, is not closed here. Idempotent.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	if err := c.notifier.Close(); err != nil {
		c.log.Warn("notifier close error", "error", err)
	}
}
