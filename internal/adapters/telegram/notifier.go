// Package telegram delivers bot alerts to a Telegram chat.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"spotbot/internal/ports"
)

// Notifier implements ports.Notifier over the Telegram Bot API. A Notifier
// constructed without a token is disabled: every method is a no-op so callers
// never have to nil-check.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger ports.Logger
}

// Config holds configuration for the Telegram notifier.
type Config struct {
	Token  string // empty disables the notifier
	ChatID int64
	Logger ports.Logger
}

// New creates a Telegram notifier. With an empty token it returns a disabled
// notifier and no error, so the bot can run without Telegram configured.
func New(cfg Config) (*Notifier, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Telegram notifier")
	}
	if cfg.Token == "" {
		cfg.Logger.Warn(context.Background(), "Telegram token not configured, notifications disabled")
		return &Notifier{logger: cfg.Logger}, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize Telegram bot: %w", err)
	}
	cfg.Logger.Info(context.Background(), "Telegram notifier authorized", map[string]interface{}{"account": bot.Self.UserName})
	return &Notifier{bot: bot, chatID: cfg.ChatID, logger: cfg.Logger}, nil
}

func (n *Notifier) enabled() bool {
	return n.bot != nil
}

// Send delivers a plain text message to the configured chat.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if !n.enabled() {
		return nil
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error(ctx, err, "Failed to send Telegram message")
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

// SendWithAction delivers a message with a single inline action button.
func (n *Notifier) SendWithAction(ctx context.Context, text, buttonLabel, actionToken string) (int, error) {
	if !n.enabled() {
		return 0, nil
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(buttonLabel, actionToken),
		),
	)
	sent, err := n.bot.Send(msg)
	if err != nil {
		n.logger.Error(ctx, err, "Failed to send Telegram action message")
		return 0, fmt.Errorf("sending telegram action message: %w", err)
	}
	return sent.MessageID, nil
}

// SendConfirmation delivers a message with confirm and cancel buttons.
func (n *Notifier) SendConfirmation(ctx context.Context, text, confirmLabel, confirmToken, cancelLabel, cancelToken string) (int, error) {
	if !n.enabled() {
		return 0, nil
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(confirmLabel, confirmToken),
			tgbotapi.NewInlineKeyboardButtonData(cancelLabel, cancelToken),
		),
	)
	sent, err := n.bot.Send(msg)
	if err != nil {
		n.logger.Error(ctx, err, "Failed to send Telegram confirmation message")
		return 0, fmt.Errorf("sending telegram confirmation message: %w", err)
	}
	return sent.MessageID, nil
}

// DeleteMessage removes a previously sent interactive message.
func (n *Notifier) DeleteMessage(ctx context.Context, messageID int) error {
	if !n.enabled() || messageID == 0 {
		return nil
	}
	if _, err := n.bot.Request(tgbotapi.NewDeleteMessage(n.chatID, messageID)); err != nil {
		n.logger.Error(ctx, err, "Failed to delete Telegram message", map[string]interface{}{"messageID": messageID})
		return fmt.Errorf("deleting telegram message %d: %w", messageID, err)
	}
	return nil
}
