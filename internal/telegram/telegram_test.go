package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/dispatch"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	stopped  bool
	updates  chan tgbotapi.Update
	config   tgbotapi.UpdateConfig
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = config
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

type recordingHandler struct {
	mu     sync.Mutex
	events []dispatch.Event
	seen   chan struct{}
}

func (h *recordingHandler) Dispatch(_ context.Context, ev dispatch.Event) dispatch.Outcome {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	h.seen <- struct{}{}
	return dispatch.Outcome{}
}

func commandMessage(chatID, userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: userID},
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}
}

func TestEventFromCallback(t *testing.T) {
	b := New(newFakeAPI())

	ev, ok := b.eventFrom(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 111},
		Data:    "shutdown_yes",
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: 42}},
	}})
	require.True(t, ok)

	assert.NotEmpty(t, ev.ID)
	require.NotNil(t, ev.Caller)
	assert.EqualValues(t, 111, *ev.Caller)
	assert.EqualValues(t, 42, ev.Conversation)
	assert.Equal(t, 77, ev.Message)
	assert.Equal(t, "cb-1", ev.CallbackID)
	assert.Equal(t, dispatch.TokenShutdownYes, ev.Token)
	assert.Equal(t, "shutdown_yes", ev.Raw)
}

func TestEventFromUnknownCallback(t *testing.T) {
	b := New(newFakeAPI())

	ev, ok := b.eventFrom(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-2",
		Data: "format_c",
	}})
	require.True(t, ok)
	assert.Equal(t, dispatch.TokenUnknown, ev.Token)
	assert.Nil(t, ev.Caller)
}

func TestEventFromMessages(t *testing.T) {
	b := New(newFakeAPI())

	tests := []struct {
		name   string
		msg    *tgbotapi.Message
		wantOK bool
	}{
		{"start", commandMessage(42, 111, "/start"), true},
		{"menu", commandMessage(42, 111, "/menu"), true},
		{"wol", commandMessage(42, 111, "/wol"), true},
		{"start addressed to bot", commandMessage(42, 111, "/start@wol_bot"), true},
		{"other command", commandMessage(42, 111, "/reboot"), false},
		{"plain text", &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 42}}, false},
		{"no chat", &tgbotapi.Message{Text: "/start"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := b.eventFrom(tgbotapi.Update{Message: tt.msg})
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, dispatch.TokenStart, ev.Token)
				assert.Zero(t, ev.Message, "start replies with a new message")
				assert.EqualValues(t, 42, ev.Conversation)
			}
		})
	}

	_, ok := b.eventFrom(tgbotapi.Update{})
	assert.False(t, ok)
}

func TestRenderEditsMessage(t *testing.T) {
	api := newFakeAPI()
	b := New(api)

	ev := dispatch.Event{Conversation: 42, Message: 77}
	require.NoError(t, b.Render(context.Background(), ev, dispatch.Reply{Text: "hi", Keyboard: dispatch.ConfirmShutdown()}))
	require.NoError(t, b.Render(context.Background(), ev, dispatch.Reply{Text: "wait"}))

	require.Len(t, api.sent, 2)
	edit, ok := api.sent[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, "hi", edit.Text)
	assert.EqualValues(t, 42, edit.ChatID)
	assert.Equal(t, 77, edit.MessageID)
	require.NotNil(t, edit.ReplyMarkup)
	require.Len(t, edit.ReplyMarkup.InlineKeyboard, 1)
	row := edit.ReplyMarkup.InlineKeyboard[0]
	require.Len(t, row, 2)
	assert.Equal(t, "shutdown_yes", *row[0].CallbackData)
	assert.Equal(t, "cancel", *row[1].CallbackData)

	plain := api.sent[1].(tgbotapi.EditMessageTextConfig)
	assert.Nil(t, plain.ReplyMarkup)
}

func TestRenderWithoutChat(t *testing.T) {
	api := newFakeAPI()
	b := New(api)

	// A button pressed on an inline message has no chat attached.
	ev, ok := b.eventFrom(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:              "cb-3",
		From:            &tgbotapi.User{ID: 111},
		Data:            "status",
		InlineMessageID: "inline-1",
	}})
	require.True(t, ok)
	assert.Zero(t, ev.Conversation)

	require.NoError(t, b.Render(context.Background(), ev, dispatch.Reply{Text: dispatch.TextMenu}))
	assert.Empty(t, api.sent)

	require.NoError(t, b.Acknowledge(context.Background(), ev))
	assert.Len(t, api.requests, 1)
}

func TestRenderSendsNewMessage(t *testing.T) {
	api := newFakeAPI()
	b := New(api)

	require.NoError(t, b.Render(context.Background(), dispatch.Event{Conversation: 42}, dispatch.Reply{
		Text:     dispatch.TextMenu,
		Keyboard: dispatch.MainMenu(),
	}))

	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, dispatch.TextMenu, msg.Text)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "wol", *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "shutdown_confirm", *markup.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "status", *markup.InlineKeyboard[1][0].CallbackData)
}

func TestAcknowledge(t *testing.T) {
	api := newFakeAPI()
	b := New(api)

	require.NoError(t, b.Acknowledge(context.Background(), dispatch.Event{}))
	assert.Empty(t, api.requests)

	require.NoError(t, b.Acknowledge(context.Background(), dispatch.Event{CallbackID: "cb-9"}))
	require.Len(t, api.requests, 1)
	cb, ok := api.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb-9", cb.CallbackQueryID)
}

func TestRun(t *testing.T) {
	api := newFakeAPI()
	b := New(api, WithPollTimeout(30))
	h := &recordingHandler{seen: make(chan struct{}, 8)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, h) }()

	api.updates <- tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 111},
		Data:    "status",
		Message: &tgbotapi.Message{MessageID: 5, Chat: &tgbotapi.Chat{ID: 42}},
	}}
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 42}}}
	api.updates <- tgbotapi.Update{Message: commandMessage(42, 111, "/start")}

	for i := 0; i < 2; i++ {
		select {
		case <-h.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("handler was not called")
		}
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
	require.NotEmpty(t, api.requests)
	_, isDelete := api.requests[0].(tgbotapi.DeleteWebhookConfig)
	assert.True(t, isDelete, "webhook must be removed before polling")
	assert.Equal(t, 30, api.config.Timeout)
	assert.Equal(t, []string{"message", "callback_query"}, api.config.AllowedUpdates)

	h.mu.Lock()
	defer h.mu.Unlock()
	tokens := map[dispatch.Token]bool{}
	for _, ev := range h.events {
		tokens[ev.Token] = true
	}
	assert.Equal(t, map[dispatch.Token]bool{dispatch.TokenStatus: true, dispatch.TokenStart: true}, tokens)
}
