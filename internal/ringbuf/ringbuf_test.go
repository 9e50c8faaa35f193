package ringbuf

import (
	"testing"

	"trading-systemv1/internal/model"
)

func TestCandleDequeAppendAndLast(t *testing.T) {
	d := NewCandleDeque(4)
	d.Append(model.Candle{OpenTimeMs: 0, Close: 10})
	d.Append(model.Candle{OpenTimeMs: 3000, Close: 11})

	if d.Len() != 2 {
		t.Fatalf("Len = %d, want 2", d.Len())
	}
	last := d.Last()
	if last.OpenTimeMs != 3000 || last.Close != 11 {
		t.Fatalf("Last = %+v, want OpenTimeMs=3000 Close=11", last)
	}

	last.Close = 99
	if d.Last().Close != 99 {
		t.Fatalf("mutation through Last() did not persist")
	}
}

func TestCandleDequeEvictBefore(t *testing.T) {
	d := NewCandleDeque(4)
	for i := int64(0); i < 10; i++ {
		d.Append(model.Candle{OpenTimeMs: i * 3000})
	}
	d.EvictBefore(6 * 3000)

	snap := d.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("len after evict = %d, want 4", len(snap))
	}
	if snap[0].OpenTimeMs != 6*3000 {
		t.Fatalf("oldest surviving OpenTimeMs = %d, want %d", snap[0].OpenTimeMs, 6*3000)
	}
	if snap[len(snap)-1].OpenTimeMs != 9*3000 {
		t.Fatalf("newest OpenTimeMs = %d, want %d", snap[len(snap)-1].OpenTimeMs, 9*3000)
	}
}

func TestCandleDequeSnapshotIsCopy(t *testing.T) {
	d := NewCandleDeque(2)
	d.Append(model.Candle{OpenTimeMs: 0, Close: 1})

	snap := d.Snapshot()
	snap[0].Close = 42

	if d.Last().Close != 1 {
		t.Fatalf("Snapshot mutation leaked into deque: got %v, want 1", d.Last().Close)
	}
}

func TestCandleDequeCompactReclaimsSpace(t *testing.T) {
	d := NewCandleDeque(4)
	for i := int64(0); i < 100; i++ {
		d.Append(model.Candle{OpenTimeMs: i})
		d.EvictBefore(i - 2)
	}
	if d.Len() > 3 {
		t.Fatalf("Len = %d, want <= 3 after steady-state eviction", d.Len())
	}
	if len(d.buf) > 2*d.Len() {
		t.Fatalf("backing length = %d, want <= %d once the evicted prefix is compacted", len(d.buf), 2*d.Len())
	}
}
