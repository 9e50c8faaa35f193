package binance

import "testing"

func TestBatchSplitsEvenly(t *testing.T) {
	symbols := []string{"A", "B", "C", "D", "E"}
	got := batch(symbols, 2)
	want := [][]string{{"A", "B"}, {"C", "D"}, {"E"}}

	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("batch %d: got %v, want %v", i, got[i], want[i])
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("batch %d: got %v, want %v", i, got[i], want[i])
			}
		}
	}
}

func TestBatchZeroSizeFallsBackToDefault(t *testing.T) {
	symbols := make([]string, DefaultWSChunkSize+1)
	for i := range symbols {
		symbols[i] = "S"
	}
	got := batch(symbols, 0)
	if len(got[0]) != DefaultWSChunkSize {
		t.Fatalf("first batch size = %d, want %d", len(got[0]), DefaultWSChunkSize)
	}
}

func TestWSChunkSizeDefault(t *testing.T) {
	c := New("", "", MarketTypeSpot)
	if got := c.WSChunkSize(MarketTypeSpot); got != DefaultWSChunkSize {
		t.Fatalf("WSChunkSize = %d, want default %d", got, DefaultWSChunkSize)
	}
}

func TestDeepLinkFuturesVsSpot(t *testing.T) {
	c := New("", "", MarketTypeFutures)
	if got := c.DeepLink("BTCUSDT", MarketTypeFutures); got != "https://www.binance.com/en/futures/BTCUSDT" {
		t.Fatalf("DeepLink(futures) = %q", got)
	}
	if got := c.DeepLink("BTCUSDT", MarketTypeSpot); got != "https://www.binance.com/en/trade/BTCUSDT" {
		t.Fatalf("DeepLink(spot) = %q", got)
	}
}
