package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"feed-game/internal/domain"
)

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram шлёт служебные уведомления оператору инсталляции: окончание игры,
// перезапуски, аварии генератора.
type Telegram struct {
	bot    botAPI
	chatID int64
	log    zerolog.Logger
}

var _ domain.Notifier = (*Telegram)(nil)

// NewTelegram создаёт уведомитель.
func NewTelegram(bot botAPI, chatID int64, logger zerolog.Logger) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, log: logger}
}

// Notify отправляет сообщение в служебный чат.
func (t *Telegram) Notify(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("отправка уведомления: %w", err)
	}
	return nil
}

// Nop — заглушка для инсталляций без телеграм-бота.
type Nop struct{}

var _ domain.Notifier = Nop{}

// Notify ничего не делает.
func (Nop) Notify(context.Context, string) error { return nil }
