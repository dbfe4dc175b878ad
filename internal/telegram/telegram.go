// Package telegram wraps the Bot API client. Replies are composed as
// CommonMark and rendered to Telegram HTML on the way out; long replies
// are split to fit the message limit.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nugget/pulse/internal/format"
)

// DefaultEndpoint is the Bot API URL template (token, method).
const DefaultEndpoint = tgbotapi.APIEndpoint

const levelTrace = slog.Level(-8)

// Keyboard is an inline keyboard attached to a message.
type Keyboard = tgbotapi.InlineKeyboardMarkup

// Sender is the outbound half of the Bot API used by the rest of Pulse.
type Sender interface {
	// Send delivers md to chatID. kb, when non-nil, is attached to the
	// last chunk. It returns the ID of the last message sent.
	Send(ctx context.Context, chatID int64, md string, kb *Keyboard) (int, error)

	// Edit replaces the text (and keyboard) of an existing message.
	Edit(ctx context.Context, chatID int64, messageID int, md string, kb *Keyboard) error

	// AnswerCallback acknowledges a callback query, optionally as an
	// alert dialog.
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// Client implements Sender on top of tgbotapi.BotAPI.
type Client struct {
	api    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewClient connects to the Bot API and verifies the token with getMe.
// An empty endpoint uses DefaultEndpoint.
func NewClient(token, endpoint string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger = logger.With("component", "telegram")
	_ = tgbotapi.SetLogger(botLogger{logger: logger})

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connect to bot API: %w", err)
	}
	logger.Info("bot API connected", "username", api.Self.UserName, "id", api.Self.ID)
	return &Client{api: api, logger: logger}, nil
}

// Username returns the bot's @username.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// Send implements Sender.
func (c *Client) Send(ctx context.Context, chatID int64, md string, kb *Keyboard) (int, error) {
	chunks := format.Split(md, format.MaxMessageLength)
	if len(chunks) == 0 {
		return 0, errors.New("empty message")
	}

	var lastID int
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return lastID, err
		}

		msg := tgbotapi.NewMessage(chatID, format.TelegramHTML(chunk))
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if kb != nil && i == len(chunks)-1 {
			msg.ReplyMarkup = *kb
		}

		sent, err := c.api.Send(msg)
		if err != nil && isParseError(err) {
			c.logger.Warn("HTML rejected, resending as plain text", "chat_id", chatID, "error", err)
			msg.Text = chunk
			msg.ParseMode = ""
			sent, err = c.api.Send(msg)
		}
		if err != nil {
			return lastID, fmt.Errorf("send message to %d: %w", chatID, err)
		}
		lastID = sent.MessageID
		c.logger.Log(ctx, levelTrace, "message sent", "chat_id", chatID, "message_id", sent.MessageID, "text", chunk)
	}
	return lastID, nil
}

// Edit implements Sender. Edits longer than one message are truncated.
func (c *Client) Edit(ctx context.Context, chatID int64, messageID int, md string, kb *Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body := format.TelegramHTML(format.Truncate(md, format.MaxMessageLength))

	var edit tgbotapi.EditMessageTextConfig
	if kb != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, body, *kb)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, body)
	}
	edit.ParseMode = tgbotapi.ModeHTML

	if _, err := c.api.Request(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("edit message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

// AnswerCallback implements Sender.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cb := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := c.api.Request(cb); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// SetWebhook registers url as the update endpoint. A non-empty secret
// is echoed by Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	allowed, _ := json.Marshal([]string{"message", "callback_query"})
	params := tgbotapi.Params{"url": url, "allowed_updates": string(allowed)}
	params.AddNonEmpty("secret_token", secret)

	if _, err := c.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	c.logger.Info("webhook registered", "url", url, "secret", secret != "")
	return nil
}

func isParseError(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "can't parse entities")
}

// botLogger routes the library's debug output into slog.
type botLogger struct {
	logger *slog.Logger
}

func (b botLogger) Println(v ...interface{}) {
	b.logger.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (b botLogger) Printf(format string, v ...interface{}) {
	b.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
