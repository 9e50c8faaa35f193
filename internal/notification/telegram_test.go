package notification

import (
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TestBotForConcurrentAccessIsSafe exercises the burst scenario a
// multi-signal tick produces: several goroutines (one per fired symbol)
// resolving the same cached bot token at once. Run with -race to confirm
// no concurrent map access.
func TestBotForConcurrentAccessIsSafe(t *testing.T) {
	const token = "cached-token"
	want := &tgbotapi.BotAPI{Token: token}

	n := &TelegramNotifier{bots: map[string]*tgbotapi.BotAPI{token: want}}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bot, err := n.botFor(token)
			if err != nil {
				t.Errorf("botFor() error = %v", err)
				return
			}
			if bot != want {
				t.Errorf("botFor() returned %p, want cached %p", bot, want)
			}
		}()
	}
	wg.Wait()
}

func TestCloseResetsBotCache(t *testing.T) {
	n := &TelegramNotifier{bots: map[string]*tgbotapi.BotAPI{"tok": {}}}
	if err := n.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(n.bots) != 0 {
		t.Fatalf("expected empty bot cache after Close, got %d entries", len(n.bots))
	}
}
