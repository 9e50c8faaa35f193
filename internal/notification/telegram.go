// Package notification implements model.Notifier against the Telegram Bot
// HTTP API.
package notification

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trading-systemv1/internal/model"
)

// TelegramNotifier sends and edits signal messages via the Telegram Bot
// API. It holds one *tgbotapi.BotAPI per token seen, since the bot token is
// part of the (hot-reloadable) settings rather than fixed at construction.
// A tick that fires several signals dispatches one goroutine per symbol,
// so botFor is reached concurrently and mu guards the cache accordingly.
type TelegramNotifier struct {
	mu   sync.Mutex
	bots map[string]*tgbotapi.BotAPI
}

// NewTelegramNotifier creates an empty notifier; bots are created lazily
// per token on first use.
func NewTelegramNotifier() *TelegramNotifier {
	return &TelegramNotifier{bots: make(map[string]*tgbotapi.BotAPI)}
}

func (n *TelegramNotifier) botFor(token string) (*tgbotapi.BotAPI, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if bot, ok := n.bots[token]; ok {
		return bot, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}
	n.bots[token] = bot
	return bot, nil
}

// SendText sends text to chatID using token, with HTML parse mode and
// disabled link previews, per the signal message format.
func (n *TelegramNotifier) SendText(ctx context.Context, token string, chatID int64, text string) (*model.MessageRef, error) {
	bot, err := n.botFor(token)
	if err != nil {
		return nil, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	sent, err := bot.Send(msg)
	if err != nil {
		return nil, fmt.Errorf("telegram: send message: %w", err)
	}

	return &model.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// EditMedia attaches photo to the message identified by ref, keeping
// caption as the new caption, with HTML parse mode.
func (n *TelegramNotifier) EditMedia(ctx context.Context, token string, ref model.MessageRef, photo []byte, caption string) error {
	bot, err := n.botFor(token)
	if err != nil {
		return err
	}

	media := tgbotapi.NewInputMediaPhoto(tgbotapi.FileBytes{
		Name:  fmt.Sprintf("%d.png", ref.MessageID),
		Bytes: photo,
	})
	media.Caption = caption
	media.ParseMode = tgbotapi.ModeHTML

	edit := tgbotapi.EditMessageMediaConfig{
		BaseEdit: tgbotapi.BaseEdit{
			ChatID:    ref.ChatID,
			MessageID: ref.MessageID,
		},
		Media: media,
	}

	if _, err := bot.Request(edit); err != nil {
		return fmt.Errorf("telegram: edit message media: %w", err)
	}
	return nil
}

// Close drops every cached bot. tgbotapi holds no persistent connections
// beyond net/http's own pool; this just frees the cache.
func (n *TelegramNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bots = make(map[string]*tgbotapi.BotAPI)
	return nil
}
