package chart

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"trading-systemv1/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoolSubmitRendersAndReturnsPNG(t *testing.T) {
	p := NewPool(1, 1, testLogger())
	defer p.Close()

	req := Request{
		Symbol: "BTCUSDT",
		Candles: []model.Candle{
			{OpenTimeMs: 0, Open: 1, High: 2, Low: 0.5, Close: 1.5, BaseVolume: 10},
			{OpenTimeMs: 3000, Open: 1.5, High: 2.5, Low: 1, Close: 2, BaseVolume: 20},
		},
		StartPrice: 1,
		FinalPrice: 2,
		PctChange:  100,
	}

	png, err := p.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(png) == 0 {
		t.Fatalf("expected non-empty PNG output")
	}
}

func TestPoolSubmitSaturatedReturnsImmediately(t *testing.T) {
	// Built directly (bypassing NewPool) with no worker goroutines draining
	// jobs, so the single queue slot fills deterministically on the second
	// Submit.
	p := &Pool{jobs: make(chan renderJob, 1), log: testLogger()}

	var saturated int
	p.OnSaturated = func() { saturated++ }

	req := Request{
		Symbol:  "BTCUSDT",
		Candles: []model.Candle{{OpenTimeMs: 0, Open: 1, High: 1, Low: 1, Close: 1, BaseVolume: 1}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Submit(ctx, req) // fills the one queue slot; nothing drains it

	// Give the first Submit a moment to enqueue before the second races it.
	for len(p.jobs) == 0 {
	}

	_, err := p.Submit(context.Background(), req)
	if err != ErrPoolSaturated {
		t.Fatalf("Submit() error = %v, want ErrPoolSaturated", err)
	}
	if saturated != 1 {
		t.Fatalf("OnSaturated called %d times, want 1", saturated)
	}
}
