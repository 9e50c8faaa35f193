package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trading-systemv1/config"
	"trading-systemv1/internal/chart"
	"trading-systemv1/internal/consumer"
	"trading-systemv1/internal/cooldown"
	"trading-systemv1/internal/exchange/binance"
	"trading-systemv1/internal/klinecache"
	"trading-systemv1/internal/logger"
	"trading-systemv1/internal/metrics"
	"trading-systemv1/internal/notification"
	"trading-systemv1/internal/producer"
	"trading-systemv1/internal/screener"
	"trading-systemv1/internal/settings"
)

const (
	chartPoolWorkers   = 4
	chartPoolQueueSize = 64
)

func main() {
	cfg := config.Load()

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := logger.Init("screener", level)
	log.Info("starting", "exchange", cfg.Exchange, "market_type", cfg.MarketType)

	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exchangeClient := binance.New(cfg.ExchangeKey, cfg.ExchangeSecret, cfg.MarketType)
	defer exchangeClient.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		log.Error("failed to create sqlite data directory", "error", err)
		os.Exit(1)
	}
	klineCache, err := klinecache.New(klinecache.Config{DBPath: cfg.SQLitePath, TTL: 60 * time.Second}, log)
	if err != nil {
		log.Error("kline cache init failed", "error", err)
		os.Exit(1)
	}
	defer klineCache.Close()
	health.SetSQLiteOK(true)
	klineCache.OnHit = func() { prom.KlineCacheHits.Inc() }
	klineCache.OnMiss = func() { prom.KlineCacheMisses.Inc() }

	cooldownStore := cooldown.NewStore(cfg.RedisAddr, cfg.RedisPassword, log)
	defer cooldownStore.Close()
	cooldownStore.OnWriteDropped = func() { prom.CooldownWritesDropped.Inc() }

	chartPool := chart.NewPool(chartPoolWorkers, chartPoolQueueSize, log)
	defer chartPool.Close()
	chartPool.OnSaturated = func() { prom.ChartPoolSaturated.Inc() }
	chartPool.OnRenderDuration = func(d time.Duration) { prom.ChartRenderDur.Observe(d.Seconds()) }

	settingsStore, err := settings.New(settings.Config{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		DB:       cfg.PostgresDB,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
	})
	if err != nil {
		log.Error("settings store init failed", "error", err)
		os.Exit(1)
	}
	defer settingsStore.Close()

	notifier := notification.NewTelegramNotifier()

	prod := producer.New(exchangeClient, cfg.MarketType, log)
	prod.OnTrade = func() { prom.TradesTotal.Inc() }
	prod.OnCandleClosed = func() { prom.CandlesClosed.Inc() }
	prod.OnShardsChanged = func(count int) { prom.WSShardsActive.Set(float64(count)) }

	cons := consumer.New(prod, exchangeClient, notifier, cfg.MarketType, klineCache, chartPool, cooldownStore, log)
	cons.OnSignal = func(symbol string) { prom.SignalsTotal.WithLabelValues(symbol).Inc() }
	cons.OnCooldownBlock = func() { prom.CooldownBlocks.Inc() }
	cons.OnTick = func(d time.Duration) { prom.EvalTickDur.Observe(d.Seconds()) }

	sup := screener.New(prod, cons, settingsStore, log)

	if err := sup.Start(ctx); err != nil {
		log.Error("screener start failed", "error", err)
		os.Exit(1)
	}
	health.SetWSConnected(true)
	health.StartLivenessChecker(ctx, cooldownStore.Client(), settingsStore.DB(), 10*time.Second)

	log.Info("screener running")

	<-sigCh
	log.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	sup.Stop()
	metricsSrv.Stop(shutdownCtx)

	log.Info("shutdown complete")
}
