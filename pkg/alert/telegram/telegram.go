// Package telegram implements the alert sink on the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sink sends alert messages to a single Telegram chat.
type Sink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// New creates a Telegram sink for the given bot token and chat.
func New(token string, chatID int64, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	logger.Info("telegram sink ready", "bot", bot.Self.UserName)
	return &Sink{bot: bot, chatID: chatID, logger: logger}, nil
}

// Send delivers a plain-text message.
func (s *Sink) Send(ctx context.Context, text string) error {
	return s.send(ctx, text, "")
}

// SendMarkdown delivers a Markdown-formatted message.
func (s *Sink) SendMarkdown(ctx context.Context, text string) error {
	return s.send(ctx, text, tgbotapi.ModeMarkdown)
}

func (s *Sink) send(ctx context.Context, text, parseMode string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.ParseMode = parseMode
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}

	s.logger.Debug("sent telegram message", "chars", len(text))
	return nil
}
