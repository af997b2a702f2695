package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"alertd/internal/alert"
	"alertd/internal/directory"
)

// TelegramConfig configures the telegram channel.
type TelegramConfig struct {
	Token       string
	PollTimeout time.Duration
}

// Telegram sends alert text to the recipient's configured chat id. Recipients
// without a telegram binding are not routable on this channel.
type Telegram struct {
	bot *tele.Bot
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b}, nil
}

func (c *Telegram) Name() string { return "telegram" }

func (c *Telegram) Send(ctx context.Context, a alert.Alert, rcpt directory.Recipient) error {
	_ = ctx // telebot manages its own request timeouts
	if rcpt.TelegramChatID == 0 {
		return fmt.Errorf("%w: %q has no telegram chat id", ErrNotRoutable, rcpt.ID)
	}
	text := formatTelegramText(a)
	_, err := c.bot.Send(&tele.Chat{ID: rcpt.TelegramChatID}, text, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}

func formatTelegramText(a alert.Alert) string {
	prefix := ""
	switch a.Severity {
	case alert.SeverityCritical:
		prefix = "🚨 "
	case alert.SeverityWarning:
		prefix = "⚠️ "
	default:
		prefix = "ℹ️ "
	}
	return prefix + a.Title + "\n\n" + a.Message
}
