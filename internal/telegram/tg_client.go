package telegram

import (
	"context"

	"civictrack/backend/internal/apperr"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// BotAPI is the subset of *tgbotapi.BotAPI used here.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Sender delivers plain notification text to a linked chat.
type Sender struct {
	bot    BotAPI
	logger *zap.Logger
}

func NewSender(bot BotAPI, logger *zap.Logger) *Sender {
	return &Sender{bot: bot, logger: logger}
}

// SendChat sends text to chatID.
func (s *Sender) SendChat(ctx context.Context, chatID int64, text string) error {
	if chatID == 0 {
		return apperr.Validation("telegram chat is not linked", "telegramChatId")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := s.bot.Send(msg)
	if err != nil {
		return apperr.Upstream("failed to send telegram message", err)
	}

	s.logger.Debug("telegram message sent", zap.Int64("chat_id", chatID), zap.Int("message_id", sent.MessageID))
	return nil
}
