// Package screener wires one producer and one consumer together and keeps
// the consumer's settings fresh from the settings store.
package screener

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trading-systemv1/internal/model"
)

// SettingsRefreshInterval is how often the supervisor re-reads settings from
// the store and pushes them into the consumer.
const SettingsRefreshInterval = 10 * time.Second

// producerLifecycle is the subset of producer.Producer the supervisor needs.
type producerLifecycle interface {
	Start(ctx context.Context) error
	Stop()
}

// consumerLifecycle is the subset of consumer.Consumer the supervisor needs.
type consumerLifecycle interface {
	Start(ctx context.Context)
	UpdateSettings(s model.Settings)
	Stop()
}

// settingsEnsurer creates the singleton settings row if it is absent.
type settingsEnsurer interface {
	EnsureExists(ctx context.Context) error
	model.SettingsStore
}

// Supervisor owns one producer and one consumer and keeps the consumer's
// settings in sync with the settings store, mirroring the reference
// screener's start/stop/update-settings-cycle lifecycle.
type Supervisor struct {
	producer producerLifecycle
	consumer consumerLifecycle
	settings settingsEnsurer
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Supervisor. Settings must already exist or be creatable via
// EnsureExists; Start calls EnsureExists once before the first fetch.
func New(producer producerLifecycle, consumer consumerLifecycle, settings settingsEnsurer, log *slog.Logger) *Supervisor {
	return &Supervisor{
		producer: producer,
		consumer: consumer,
		settings: settings,
		log:      log,
	}
}

// Start ensures the settings row exists, fetches it once, and launches the
// producer, the consumer, and the settings-refresh loop. Returns once all
// three are running; it does not block until shutdown.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.settings.EnsureExists(runCtx); err != nil {
		s.log.Error("settings ensure-exists failed", "error", err)
		return err
	}

	initial, err := s.settings.Get(runCtx)
	if err != nil {
		s.log.Error("initial settings fetch failed", "error", err)
		return err
	}
	s.consumer.UpdateSettings(initial)

	if err := s.producer.Start(runCtx); err != nil {
		s.log.Error("producer start failed", "error", err)
		return err
	}
	s.consumer.Start(runCtx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.settingsRefreshLoop(runCtx)
	}()

	s.log.Info("screener started")
	return nil
}

func (s *Supervisor) settingsRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(SettingsRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			settings, err := s.settings.Get(ctx)
			if err != nil {
				s.log.Error("settings refresh failed", "error", err)
				continue
			}
			s.consumer.UpdateSettings(settings)
		}
	}
}

// Stop halts the settings-refresh loop, then the consumer, then the
// producer. Idempotent.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.consumer.Stop()
	s.producer.Stop()

	s.log.Info("screener stopped")
}
