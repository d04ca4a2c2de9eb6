// Package telegram connects the analysis pipeline to Telegram chats.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const pollTimeout = 60

// Bot wraps the Telegram bot API.
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *CommandHandler
	logger  *slog.Logger
}

// New creates a Bot. Returns nil if token is empty (Telegram disabled).
func New(token string, handler *CommandHandler, logger *slog.Logger) (*Bot, error) {
	if token == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram.New: %w", err)
	}
	b := &Bot{api: api, handler: handler, logger: logger}
	if handler != nil {
		handler.replier = b
		handler.botUsername = api.Self.UserName
	}
	return b, nil
}

// Run polls for updates until ctx is done
func (b *Bot) Run(ctx context.Context) error {
	if b == nil {
		return nil
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("telegram bot polling", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil && b.handler != nil {
				// Provider calls can be slow; one message must not stall polling.
				go b.handler.Handle(ctx, update.Message)
			}
		}
	}
}

// Reply sends text as a reply to messageID in chatID
func (b *Bot) Reply(chatID int64, messageID int, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = messageID
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram.Reply: %w", err)
	}
	return nil
}
