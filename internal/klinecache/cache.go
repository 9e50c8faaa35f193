// Package klinecache caches the ~500-candle chart-context REST fetch used
// by the consumer's send-and-enrich task, in a local SQLite database. A
// cache hit inside the TTL avoids a redundant exchange round trip when a
// symbol signals again shortly after a prior signal.
//
// Adapted from the teacher's WAL-mode batched-writer idiom: single
// connection, busy-timeout tuned for a single-writer workload, schema
// created on open.
package klinecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trading-systemv1/internal/model"
)

// Cache is a local kline-fetch cache backed by SQLite.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	log *slog.Logger

	// OnHit and OnMiss are optional metrics hooks.
	OnHit  func()
	OnMiss func()
}

// Config configures the Cache.
type Config struct {
	DBPath string        // path to SQLite database file, e.g. "data/klines.db"
	TTL    time.Duration // default 60s when zero
}

// New opens (creating if absent) the cache database in WAL mode.
func New(cfg Config, log *slog.Logger) (*Cache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 60 * time.Second
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("klinecache: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kline_fetches (
			symbol     TEXT PRIMARY KEY,
			fetched_at INTEGER NOT NULL,
			data       TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("klinecache: schema: %w", err)
	}

	return &Cache{db: db, ttl: cfg.TTL, log: log}, nil
}

// Get returns a cached kline slice for symbol if it was fetched within the
// TTL, or ok=false otherwise (including on any read error, which is logged
// and treated as a miss — the cache is a pure optimization).
func (c *Cache) Get(ctx context.Context, symbol string) (candles []model.Candle, ok bool) {
	miss := func() (candles []model.Candle, ok bool) {
		if c.OnMiss != nil {
			c.OnMiss()
		}
		return nil, false
	}

	var fetchedAt int64
	var data string
	err := c.db.QueryRowContext(ctx,
		`SELECT fetched_at, data FROM kline_fetches WHERE symbol = ?`, symbol,
	).Scan(&fetchedAt, &data)
	if err == sql.ErrNoRows {
		return miss()
	}
	if err != nil {
		c.log.Warn("klinecache read failed, falling through to REST fetch", "symbol", symbol, "error", err)
		return miss()
	}

	if time.Since(time.Unix(fetchedAt, 0)) > c.ttl {
		return miss()
	}

	var out []model.Candle
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return miss()
	}
	if c.OnHit != nil {
		c.OnHit()
	}
	return out, true
}

// Put stores candles for symbol, stamped with the current time.
func (c *Cache) Put(ctx context.Context, symbol string, candles []model.Candle) {
	data, err := json.Marshal(candles)
	if err != nil {
		return
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO kline_fetches (symbol, fetched_at, data) VALUES (?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET fetched_at = excluded.fetched_at, data = excluded.data`,
		symbol, time.Now().Unix(), string(data),
	)
	if err != nil {
		c.log.Warn("klinecache write failed", "symbol", symbol, "error", err)
	}
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
