package notify

import (
	"fmt"
	"html"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the slice of the Telegram API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers due reminders as Telegram messages. It is
// fire-and-forget: delivery failures are logged, never propagated back
// to the callers that scheduled the reminder.
type TelegramNotifier struct {
	sender Sender
	engine *Engine
	log    *zap.Logger
	chatID atomic.Int64
	wg     sync.WaitGroup
}

func NewTelegramNotifier(sender Sender, chatID int64, log *zap.Logger) *TelegramNotifier {
	n := &TelegramNotifier{
		sender: sender,
		engine: NewEngine(16),
		log:    log,
	}
	n.chatID.Store(chatID)
	return n
}

func (n *TelegramNotifier) Start() {
	n.engine.Start()
	n.wg.Add(1)
	go n.deliver()
}

func (n *TelegramNotifier) Stop() {
	n.engine.Stop()
	n.wg.Wait()
}

// BindChat records the chat reminders are delivered to. With no chat id
// configured, the first chat that talks to the bot claims delivery.
func (n *TelegramNotifier) BindChat(chatID int64) {
	n.chatID.Store(chatID)
}

// Schedule arms a reminder to fire after fireIn. A reminder already
// pending under the same key is replaced.
func (n *TelegramNotifier) Schedule(key string, fireIn time.Duration, title, body string) error {
	return n.engine.Schedule(Reminder{
		Key:    key,
		FireAt: time.Now().Add(fireIn),
		Title:  title,
		Body:   body,
	})
}

// Cancel removes the pending reminder for key, if any.
func (n *TelegramNotifier) Cancel(key string) {
	n.engine.Cancel(key)
}

func (n *TelegramNotifier) deliver() {
	defer n.wg.Done()
	for r := range n.engine.C() {
		chatID := n.chatID.Load()
		if chatID == 0 {
			n.log.Warn("reminder due but no chat bound, dropping",
				zap.String("key", r.Key))
			continue
		}
		// Title and body are plain text; escape them so a name like
		// "Wash <the> windows" survives HTML parse mode.
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("<b>%s</b>\n%s",
			html.EscapeString(r.Title), html.EscapeString(r.Body)))
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := n.sender.Send(msg); err != nil {
			n.log.Warn("reminder delivery failed",
				zap.String("key", r.Key), zap.Error(err))
		}
	}
}
