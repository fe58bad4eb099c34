// Package notify delivers human-readable messages about actuator
// transitions over a Telegram bot and routes chat commands back into the
// controllers.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// reconnectBackoff is the fixed pause after a polling error. An idle bot can
// lose its connection after hours of silence; a plain reconnect fixes it.
const reconnectBackoff = 2 * time.Second

// Telegram sends notifications to a single chat and dispatches commands
// received from it. Delivery is best-effort: a failed send is the caller's
// problem to log, never retried here.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger

	mu       sync.Mutex
	commands map[string]func(args []string)
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:      bot,
		chatID:   chatID,
		logger:   slog.Default().With("notifier", "telegram"),
		commands: make(map[string]func(args []string)),
	}, nil
}

// Send posts the text to the configured chat and returns the message id, so
// the caller can retract it later.
func (t *Telegram) Send(text string) (int, error) {
	sent, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// Delete retracts a previously sent message.
func (t *Telegram) Delete(messageID int) error {
	_, err := t.bot.Request(tgbotapi.NewDeleteMessage(t.chatID, messageID))
	return err
}

// Handle registers a command handler, e.g. Handle("fenster", ...) for
// "/fenster auf 30". Must be called before Run.
func (t *Telegram) Handle(command string, handler func(args []string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands[command] = handler
}

// Run long-polls for updates until the context is cancelled. Polling errors
// are logged and followed by a fixed short backoff before reconnecting.
func (t *Telegram) Run(ctx context.Context) {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cfg := tgbotapi.NewUpdate(offset)
		cfg.Timeout = 30
		updates, err := t.bot.GetUpdates(cfg)
		if err != nil {
			t.logger.Error("polling failed, reconnecting", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectBackoff):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			t.dispatch(update)
		}
	}
}

func (t *Telegram) dispatch(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if msg.Chat == nil || msg.Chat.ID != t.chatID {
		t.logger.Warn("ignoring command from foreign chat")
		return
	}

	t.mu.Lock()
	handler, ok := t.commands[msg.Command()]
	t.mu.Unlock()
	if !ok {
		t.logger.Info("unknown command", "command", msg.Command())
		return
	}
	handler(strings.Fields(msg.CommandArguments()))
}
