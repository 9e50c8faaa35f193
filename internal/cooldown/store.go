// Package cooldown persists the consumer's per-symbol cooldown expiry and
// signal count to Redis, so a process restart during an active cooldown
// window does not immediately re-fire a duplicate signal for that symbol.
//
// This answers the reference design's open question about restart
// semantics: the in-memory cooldown map is loaded from this store once at
// startup and mirrored to it, write-behind, on every mutation. Redis is
// never read back mid-run; the in-memory map remains the single source of
// truth for a running process.
package cooldown

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisKey     = "screener:cooldowns"
	writeBufSize = 256
)

// entry is the durable, JSON-encoded representation of one symbol's
// cooldown state.
type entry struct {
	UntilUnix int64 `json:"until_unix"`
	Count     int   `json:"count"`
}

// Entry mirrors consumer's cooldownEntry shape for the store's public API,
// avoiding a dependency from this package back into internal/consumer.
type Entry struct {
	Until time.Time
	Count int
}

type writeReq struct {
	symbol string
	e      entry
}

// Store is a write-behind Redis mirror of the consumer's cooldown state.
type Store struct {
	client *redis.Client
	log    *slog.Logger
	cb     *circuitBreaker

	writes chan writeReq
	done   chan struct{}

	// OnWriteDropped is an optional metrics hook, called when the write
	// buffer is full and a durability write is dropped.
	OnWriteDropped func()
}

// NewStore connects to addr (optionally authenticated with password) and
// starts the background write-behind goroutine. The background goroutine
// is stopped by Close.
func NewStore(addr, password string, log *slog.Logger) *Store {
	s := &Store{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		log:    log,
		cb:     newCircuitBreaker(5, 10*time.Second),
		writes: make(chan writeReq, writeBufSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Store) run() {
	defer close(s.done)
	for req := range s.writes {
		data, err := json.Marshal(req.e)
		if err != nil {
			continue
		}
		err = s.cb.execute(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return s.client.HSet(ctx, redisKey, req.symbol, data).Err()
		})
		if err != nil {
			s.log.Warn("cooldown durability write failed", "symbol", req.symbol, "error", err)
		}
	}
}

// Save enqueues a best-effort write of symbol's cooldown expiry and signal
// count. Never blocks the caller beyond the channel buffer; a full buffer
// drops the write and logs, since durability here is an optimization, not a
// correctness requirement of the running process.
func (s *Store) Save(symbol string, until time.Time, count int) {
	select {
	case s.writes <- writeReq{symbol: symbol, e: entry{UntilUnix: until.Unix(), Count: count}}:
	default:
		s.log.Warn("cooldown durability write buffer full, dropping", "symbol", symbol)
		if s.OnWriteDropped != nil {
			s.OnWriteDropped()
		}
	}
}

// Load reads every persisted cooldown entry. Entries already expired at
// load time are omitted, since they carry no restart-continuity value.
func (s *Store) Load(ctx context.Context) (map[string]Entry, error) {
	raw, err := s.client.HGetAll(ctx, redisKey).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	now := time.Now()
	out := make(map[string]Entry, len(raw))
	for symbol, data := range raw {
		var e entry
		if json.Unmarshal([]byte(data), &e) != nil {
			continue
		}
		until := time.Unix(e.UntilUnix, 0)
		if until.Before(now) {
			continue
		}
		out[symbol] = Entry{Until: until, Count: e.Count}
	}
	return out, nil
}

// Client returns the underlying Redis client, for liveness probing.
func (s *Store) Client() *redis.Client { return s.client }

// Close stops the background writer and the underlying Redis client. The
// writer first drains every write still queued, then Close closes the
// client.
func (s *Store) Close() error {
	close(s.writes)
	<-s.done
	return s.client.Close()
}
