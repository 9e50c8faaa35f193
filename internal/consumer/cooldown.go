package consumer

import "time"

// cooldownState is the Consumer's exclusive, single-goroutine-owned
// cooldown and signal-count bookkeeping. It needs no lock: only the
// evaluation loop ever touches it.
type cooldownState struct {
	blocked map[string]time.Time
	counts  map[string]int
}

func newCooldownState() *cooldownState {
	return &cooldownState{
		blocked: make(map[string]time.Time),
		counts:  make(map[string]int),
	}
}

// IsBlocked reports whether symbol is still within its cooldown window at
// now. Expiry is lazy: an entry past its expiry is treated as absent rather
// than proactively removed.
func (c *cooldownState) IsBlocked(symbol string, now time.Time) bool {
	until, ok := c.blocked[symbol]
	if !ok {
		return false
	}
	return now.Before(until)
}

// Block sets symbol's cooldown to expire at until. Setting an already
// future expiry to the same value again is a no-op in effect (the map entry
// is simply overwritten with an identical value).
func (c *cooldownState) Block(symbol string, until time.Time) {
	c.blocked[symbol] = until
}

// IncrementSignalCount increments and returns symbol's running signal
// count.
func (c *cooldownState) IncrementSignalCount(symbol string) int {
	c.counts[symbol]++
	return c.counts[symbol]
}

// SignalCount returns symbol's current signal count without incrementing.
func (c *cooldownState) SignalCount(symbol string) int {
	return c.counts[symbol]
}

// restore seeds the state from a durable snapshot at startup.
func (c *cooldownState) restore(entries map[string]cooldownEntry) {
	for symbol, e := range entries {
		c.blocked[symbol] = e.Until
		c.counts[symbol] = e.Count
	}
}

// cooldownEntry is one symbol's restored cooldown state, converted from
// internal/cooldown's Entry at startup.
type cooldownEntry struct {
	Until time.Time
	Count int
}
