package notify

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const telegramQueueSize = 64

// sender is the part of the Telegram client used to post messages
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts loan events to a chat from a background goroutine
type Telegram struct {
	sender sender
	chatID int64
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewTelegram connects to the Bot API with token and starts the delivery loop
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Info("Telegram notifications enabled", zap.String("bot", bot.Self.UserName), zap.Int64("chat_id", chatID))
	return newTelegram(bot, chatID, logger), nil
}

func newTelegram(s sender, chatID int64, logger *zap.Logger) *Telegram {
	t := &Telegram{
		sender: s,
		chatID: chatID,
		logger: logger,
		queue:  make(chan Event, telegramQueueSize),
		done:   make(chan struct{}),
	}
	go t.run()
	return t
}

// Publish queues event; it is dropped when the queue is full
func (t *Telegram) Publish(_ context.Context, event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.queue <- event:
	default:
		t.logger.Warn("Telegram queue full, dropping event", zap.String("type", string(event.Type)), zap.String("isbn", event.ISBN))
	}
}

// Close stops accepting events and waits for queued ones to be sent
func (t *Telegram) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
	t.mu.Unlock()
	<-t.done
}

func (t *Telegram) run() {
	defer close(t.done)
	for event := range t.queue {
		msg := tgbotapi.NewMessage(t.chatID, formatEvent(event))
		if _, err := t.sender.Send(msg); err != nil {
			t.logger.Error("Failed to send telegram notification", zap.String("isbn", event.ISBN), zap.Error(err))
		}
	}
}

// formatEvent renders the chat text of an event
func formatEvent(e Event) string {
	book := e.ISBN
	if e.Title != "" {
		book = fmt.Sprintf("«%s» (%s)", e.Title, e.ISBN)
	}
	date := e.At.Format("02/01/2006 15:04")
	switch e.Type {
	case EventLoanCreated:
		return fmt.Sprintf("📚 Préstamo: %s al usuario %s, %s", book, e.UserID, date)
	case EventLoanReturned:
		return fmt.Sprintf("✅ Devolución: %s del usuario %s, %s", book, e.UserID, date)
	}
	return fmt.Sprintf("%s: %s, usuario %s", e.Type, book, e.UserID)
}
