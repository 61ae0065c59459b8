// Package telegram connects the dispatcher to the Telegram Bot API using
// long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/auth"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/dispatch"
)

// DefaultPollTimeout is the long polling timeout in seconds.
const DefaultPollTimeout = 10

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler processes one event.
type Handler interface {
	Dispatch(ctx context.Context, ev dispatch.Event) dispatch.Outcome
}

// Bot polls Telegram for updates, hands them to a Handler and renders the
// replies.
type Bot struct {
	api         API
	pollTimeout int
	logger      *slog.Logger

	wg sync.WaitGroup
}

// Option configures the bot.
type Option func(*Bot)

// WithPollTimeout sets the long polling timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(b *Bot) {
		b.pollTimeout = seconds
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// New creates a bot on top of api.
func New(api API, opts ...Option) *Bot {
	b := &Bot{
		api:         api,
		pollTimeout: DefaultPollTimeout,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Connect logs in with token and returns the API client.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return api, nil
}

// Run removes any webhook, then polls for updates until ctx is cancelled.
// Every update is handled on its own goroutine; Run waits for them before
// returning.
func (b *Bot) Run(ctx context.Context, h Handler) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("polling for updates", "timeout", b.pollTimeout)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopping update polling")
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := b.eventFrom(update)
			if !ok {
				continue
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				h.Dispatch(ctx, ev)
			}()
		}
	}
}

// eventFrom maps an update to an event. Plain text and commands other
// than /start, /menu and /wol are logged and dropped.
func (b *Bot) eventFrom(update tgbotapi.Update) (dispatch.Event, bool) {
	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		var chatID int64
		var messageID int
		if q.Message != nil && q.Message.Chat != nil {
			chatID = q.Message.Chat.ID
			messageID = q.Message.MessageID
		}
		ev := dispatch.NewEvent(caller(q.From), chatID, dispatch.ParseToken(q.Data))
		ev.Message = messageID
		ev.CallbackID = q.ID
		ev.Raw = q.Data
		return ev, true

	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil {
			return dispatch.Event{}, false
		}
		if !msg.IsCommand() {
			b.logger.Debug("ignoring text message", "chat_id", msg.Chat.ID)
			return dispatch.Event{}, false
		}
		switch msg.Command() {
		case "start", "menu", "wol":
			ev := dispatch.NewEvent(caller(msg.From), msg.Chat.ID, dispatch.TokenStart)
			ev.Raw = msg.Text
			return ev, true
		default:
			b.logger.Warn("unknown command", "command", msg.Command(), "chat_id", msg.Chat.ID)
			return dispatch.Event{}, false
		}
	}
	return dispatch.Event{}, false
}

func caller(u *tgbotapi.User) *auth.Identity {
	if u == nil {
		return nil
	}
	id := auth.Identity(u.ID)
	return &id
}

// Acknowledge answers the callback query behind ev.
func (b *Bot) Acknowledge(_ context.Context, ev dispatch.Event) error {
	if ev.CallbackID == "" {
		return nil
	}
	_, err := b.api.Request(tgbotapi.NewCallback(ev.CallbackID, ""))
	return err
}

// Render edits the message a button was pressed on, or sends a new message
// when the event did not come from a button.
func (b *Bot) Render(_ context.Context, ev dispatch.Event, reply dispatch.Reply) error {
	// Buttons on inline messages carry no chat to answer in.
	if ev.Conversation == 0 {
		b.logger.Warn("no chat to reply in, dropping reply", "event_id", ev.ID, "text", reply.Text)
		return nil
	}

	if ev.Message != 0 {
		edit := tgbotapi.NewEditMessageText(ev.Conversation, ev.Message, reply.Text)
		if reply.Keyboard != nil {
			markup := inlineKeyboard(reply.Keyboard)
			edit.ReplyMarkup = &markup
		}
		_, err := b.api.Send(edit)
		return err
	}

	msg := tgbotapi.NewMessage(ev.Conversation, reply.Text)
	if reply.Keyboard != nil {
		msg.ReplyMarkup = inlineKeyboard(reply.Keyboard)
	}
	_, err := b.api.Send(msg)
	return err
}

func inlineKeyboard(kb dispatch.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Token.Data()))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Ensure Bot implements the dispatch.Presenter interface.
var _ dispatch.Presenter = (*Bot)(nil)
