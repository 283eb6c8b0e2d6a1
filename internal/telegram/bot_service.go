// Package telegram is the Telegram notification channel: a Sender used by
// the dispatcher and a small bot that links chats to user accounts.
package telegram

import (
	"context"
	"strings"

	"civictrack/backend/internal/auth"
	"civictrack/backend/internal/config"
	"civictrack/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// UserStore is what the bot needs from the user directory.
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
}

// Translator renders bot replies.
type Translator interface {
	GetString(lang, key string) string
	Format(lang, key string, args ...interface{}) string
	Languages() []string
}

const langCallbackPrefix = "set_lang_"

// BotService handles bot commands:
//
//	/start <token>  link this chat to the account the token was issued for
//	/stop           unlink
//	/language       pick the language of notifications
type BotService struct {
	bot       BotAPI
	users     UserStore
	text      Translator
	jwtSecret string
	logger    *zap.Logger
}

func NewBotService(bot BotAPI, users UserStore, text Translator, jwtSecret string, logger *zap.Logger) *BotService {
	return &BotService{bot: bot, users: users, text: text, jwtSecret: jwtSecret, logger: logger}
}

// Run consumes updates until the channel closes or ctx is done.
func (s *BotService) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes a single update.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		msg := update.Message
		switch msg.Command() {
		case "start":
			s.handleStart(ctx, msg.Chat.ID, strings.TrimSpace(msg.CommandArguments()))
		case "stop":
			s.handleStop(ctx, msg.Chat.ID)
		case "language":
			s.handleLanguageCommand(ctx, msg.Chat.ID)
		}
	case update.CallbackQuery != nil:
		s.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (s *BotService) handleStart(ctx context.Context, chatID int64, token string) {
	if token == "" {
		s.reply(chatID, s.text.GetString(config.DefaultLanguage, "telegram.welcome"))
		return
	}

	claims, err := auth.ParseLinkToken(s.jwtSecret, token)
	if err != nil {
		s.reply(chatID, s.text.GetString(config.DefaultLanguage, "telegram.invalid_token"))
		return
	}

	user, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil || user == nil {
		s.logger.Warn("telegram link for unknown user", zap.String("user_id", claims.UserID), zap.Error(err))
		s.reply(chatID, s.text.GetString(config.DefaultLanguage, "telegram.invalid_token"))
		return
	}

	user.TelegramChatID = chatID
	if err := s.users.SaveUser(ctx, user); err != nil {
		s.logger.Error("failed to link telegram chat", zap.String("user_id", user.ID), zap.Error(err))
		s.reply(chatID, s.text.GetString(languageOf(user), "telegram.error"))
		return
	}

	s.logger.Info("telegram chat linked", zap.String("user_id", user.ID), zap.Int64("chat_id", chatID))
	s.reply(chatID, s.text.Format(languageOf(user), "telegram.linked", displayName(user)))
}

func (s *BotService) handleStop(ctx context.Context, chatID int64) {
	user := s.linkedUser(ctx, chatID)
	if user == nil {
		return
	}

	user.TelegramChatID = 0
	if err := s.users.SaveUser(ctx, user); err != nil {
		s.logger.Error("failed to unlink telegram chat", zap.String("user_id", user.ID), zap.Error(err))
		s.reply(chatID, s.text.GetString(languageOf(user), "telegram.error"))
		return
	}
	s.reply(chatID, s.text.GetString(languageOf(user), "telegram.unlinked"))
}

// handleLanguageCommand sends a keyboard with one button per loaded language.
func (s *BotService) handleLanguageCommand(ctx context.Context, chatID int64) {
	user := s.linkedUser(ctx, chatID)
	if user == nil {
		return
	}

	var row []tgbotapi.InlineKeyboardButton
	for _, lang := range sortedLanguages(s.text.Languages()) {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			s.text.GetString(lang, "language.name"), langCallbackPrefix+lang))
	}

	msg := tgbotapi.NewMessage(chatID, s.text.GetString(languageOf(user), "telegram.choose_language"))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	if _, err := s.bot.Send(msg); err != nil {
		s.logger.Warn("failed to send language keyboard", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (s *BotService) handleCallbackQuery(ctx context.Context, q *tgbotapi.CallbackQuery) {
	// Respond to the callback query to remove the "loading" state
	if _, err := s.bot.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		s.logger.Debug("failed to answer callback", zap.Error(err))
	}
	if q.Message == nil || !strings.HasPrefix(q.Data, langCallbackPrefix) {
		return
	}

	chatID := q.Message.Chat.ID
	lang := strings.TrimPrefix(q.Data, langCallbackPrefix)
	if !contains(s.text.Languages(), lang) {
		return
	}

	user := s.linkedUser(ctx, chatID)
	if user == nil {
		return
	}
	user.Language = lang
	if err := s.users.SaveUser(ctx, user); err != nil {
		s.logger.Error("failed to update language", zap.String("user_id", user.ID), zap.Error(err))
		s.reply(chatID, s.text.GetString(lang, "telegram.error"))
		return
	}
	s.reply(chatID, s.text.GetString(lang, "telegram.language_changed"))
}

// linkedUser returns the user linked to chatID, replying with a hint when
// there is none.
func (s *BotService) linkedUser(ctx context.Context, chatID int64) *models.User {
	user, err := s.users.FindUserByTelegramChatID(ctx, chatID)
	if err != nil {
		s.logger.Warn("failed to look up telegram chat", zap.Int64("chat_id", chatID), zap.Error(err))
		s.reply(chatID, s.text.GetString(config.DefaultLanguage, "telegram.error"))
		return nil
	}
	if user == nil {
		s.reply(chatID, s.text.GetString(config.DefaultLanguage, "telegram.not_linked"))
		return nil
	}
	return user
}

func (s *BotService) reply(chatID int64, text string) {
	if _, err := s.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		s.logger.Warn("failed to send telegram reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
