// Package metrics exposes Prometheus counters/gauges and a /healthz
// endpoint for the screener.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the screener.
type Metrics struct {
	TradesTotal    prometheus.Counter
	CandlesClosed  prometheus.Counter
	WSReconnects   *prometheus.CounterVec // labels: market_type
	WSShardsActive prometheus.Gauge

	SignalsTotal        *prometheus.CounterVec // labels: symbol
	CooldownBlocks      prometheus.Counter
	EvalTickDur         prometheus.Histogram
	ChartRenderDur      prometheus.Histogram
	ChartPoolSaturated  prometheus.Counter
	SettingsRefreshFail prometheus.Counter

	KlineCacheHits   prometheus.Counter
	KlineCacheMisses prometheus.Counter

	CooldownCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	CooldownWritesDropped       prometheus.Counter

	SymbolsDiscovered prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_trades_total",
			Help: "Total aggregated trades received from exchange WebSocket streams",
		}),
		CandlesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_candles_closed_total",
			Help: "Total candle buckets finalized",
		}),
		WSReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_ws_reconnects_total",
			Help: "WebSocket shard reconnection attempts",
		}, []string{"market_type"}),
		WSShardsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_ws_shards_active",
			Help: "Number of currently running WebSocket shards",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_signals_total",
			Help: "Total volume-surge signals dispatched, by symbol",
		}, []string{"symbol"}),
		CooldownBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_cooldown_blocks_total",
			Help: "Evaluation ticks skipped because the symbol was in cooldown",
		}),
		EvalTickDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_eval_tick_duration_seconds",
			Help:    "Consumer evaluation tick processing latency",
			Buckets: prometheus.DefBuckets,
		}),
		ChartRenderDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_chart_render_duration_seconds",
			Help:    "Chart rendering latency",
			Buckets: prometheus.DefBuckets,
		}),
		ChartPoolSaturated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_chart_pool_saturated_total",
			Help: "Chart render requests rejected because the worker pool queue was full",
		}),
		SettingsRefreshFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_settings_refresh_failures_total",
			Help: "Failed attempts to refresh settings from Postgres",
		}),
		KlineCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_kline_cache_hits_total",
			Help: "Kline REST-fetch cache hits",
		}),
		KlineCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_kline_cache_misses_total",
			Help: "Kline REST-fetch cache misses",
		}),
		CooldownCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_cooldown_circuit_breaker_state",
			Help: "Cooldown-store Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		CooldownWritesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_cooldown_writes_dropped_total",
			Help: "Cooldown durability writes dropped because the write buffer was full",
		}),
		SymbolsDiscovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_symbols_discovered",
			Help: "Number of tradable symbols currently tracked",
		}),
	}

	prometheus.MustRegister(
		m.TradesTotal,
		m.CandlesClosed,
		m.WSReconnects,
		m.WSShardsActive,
		m.SignalsTotal,
		m.CooldownBlocks,
		m.EvalTickDur,
		m.ChartRenderDur,
		m.ChartPoolSaturated,
		m.SettingsRefreshFail,
		m.KlineCacheHits,
		m.KlineCacheMisses,
		m.CooldownCircuitBreakerState,
		m.CooldownWritesDropped,
		m.SymbolsDiscovered,
	)

	return m
}

// HealthStatus represents overall system health.
type HealthStatus struct {
	mu sync.RWMutex

	WSConnected    bool      `json:"ws_connected"`
	LastTradeTime  time.Time `json:"last_trade_time"`
	RedisConnected bool      `json:"redis_connected"`
	PostgresOK     bool      `json:"postgres_ok"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	RedisLatencyMs    float64   `json:"redis_latency_ms"`
	PostgresLatencyMs float64   `json:"postgres_latency_ms"`
	LastCheckAt       time.Time `json:"last_check_at"`
	StartedAt         time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTradeTime(t time.Time) {
	h.mu.Lock()
	h.LastTradeTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetPostgresOK(v bool) {
	h.mu.Lock()
	h.PostgresOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckPostgres runs a trivial query and records latency + health.
func (h *HealthStatus) CheckPostgres(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.PostgresOK = err == nil
	h.PostgresLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, pg *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if pg != nil {
					h.CheckPostgres(probeCtx, pg)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.WSConnected || !h.RedisConnected || !h.PostgresOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.PostgresOK {
		overallStatus = "unhealthy"
	}

	tradeAge := ""
	if !h.LastTradeTime.IsZero() {
		tradeAge = time.Since(h.LastTradeTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status            string  `json:"status"`
		Uptime            string  `json:"uptime"`
		WSConnected       bool    `json:"ws_connected"`
		LastTradeTime     string  `json:"last_trade_time"`
		TradeAge          string  `json:"trade_age"`
		RedisConnected    bool    `json:"redis_connected"`
		RedisLatencyMs    float64 `json:"redis_latency_ms"`
		PostgresOK        bool    `json:"postgres_ok"`
		PostgresLatencyMs float64 `json:"postgres_latency_ms"`
		SQLiteOK          bool    `json:"sqlite_ok"`
		LastCheckAt       string  `json:"last_check_at"`
	}{
		Status:            overallStatus,
		Uptime:            time.Since(h.StartedAt).Round(time.Second).String(),
		WSConnected:       h.WSConnected,
		LastTradeTime:     h.LastTradeTime.Format(time.RFC3339),
		TradeAge:          tradeAge,
		RedisConnected:    h.RedisConnected,
		RedisLatencyMs:    h.RedisLatencyMs,
		PostgresOK:        h.PostgresOK,
		PostgresLatencyMs: h.PostgresLatencyMs,
		SQLiteOK:          h.SQLiteOK,
		LastCheckAt:       h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
