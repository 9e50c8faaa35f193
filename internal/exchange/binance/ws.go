package binance

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"

	"trading-systemv1/internal/model"
)

// shard is one WebSocket connection subscribing to a batch of symbols'
// aggregated-trade stream. It satisfies model.StreamHandle.
type shard struct {
	symbols    []string
	marketType string
	cb         model.TradeCallback

	mu      sync.Mutex
	running bool
	stopC   chan struct{}
	doneC   chan struct{}
}

// OpenAggTradeStream creates (but does not start) a shard subscribing to
// the aggregated-trade feed for symbols.
func (c *Client) OpenAggTradeStream(ctx context.Context, symbols []string, cb model.TradeCallback) (model.StreamHandle, error) {
	return &shard{symbols: symbols, marketType: c.marketType(), cb: cb}, nil
}

// marketType reports which family of WS endpoints this client is bound to.
// A Client is constructed once per market type by the caller (the
// producer), so this simply reflects that choice back for shard creation.
func (c *Client) marketType() string {
	return c.activeMarketType
}

func (s *shard) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	var doneC, stopC chan struct{}
	var err error

	switch s.marketType {
	case MarketTypeFutures:
		handler := func(event *futures.WsAggTradeEvent) {
			price, _ := strconv.ParseFloat(event.Price, 64)
			qty, _ := strconv.ParseFloat(event.Quantity, 64)
			s.cb(model.TradeEvent{
				Symbol:      event.Symbol,
				TradeTimeMs: event.TradeTime,
				Price:       price,
				Quantity:    qty,
			})
		}
		errHandler := func(e error) {}
		doneC, stopC, err = futures.WsCombinedAggTradeServe(s.symbols, handler, errHandler)

	default:
		handler := func(event *binance.WsAggTradeEvent) {
			price, _ := strconv.ParseFloat(event.Price, 64)
			qty, _ := strconv.ParseFloat(event.Quantity, 64)
			s.cb(model.TradeEvent{
				Symbol:      event.Symbol,
				TradeTimeMs: event.TradeTime,
				Price:       price,
				Quantity:    qty,
			})
		}
		errHandler := func(e error) {}
		doneC, stopC, err = binance.WsCombinedAggTradeServe(s.symbols, handler, errHandler)
	}

	if err != nil {
		return fmt.Errorf("binance: open agg-trade shard: %w", err)
	}

	s.doneC = doneC
	s.stopC = stopC
	s.running = true
	return nil
}

func (s *shard) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	close(s.stopC)
	<-s.doneC
	s.running = false
	return nil
}

func (s *shard) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
