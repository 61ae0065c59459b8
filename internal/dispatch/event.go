package dispatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/auth"
)

// Event is one inbound interaction from the chat transport.
type Event struct {
	// ID correlates log lines for this interaction.
	ID string

	// Caller is the user who triggered the event, nil if unknown.
	Caller *auth.Identity

	// Conversation is the chat the event came from.
	Conversation int64

	// Message is the message to edit in place, 0 to send a new one.
	Message int

	// CallbackID is set for button presses and is what Acknowledge answers.
	CallbackID string

	Token Token

	// Raw is the original callback data or text, kept for logging.
	Raw string
}

// NewEvent creates an event with a fresh ID.
func NewEvent(caller *auth.Identity, conversation int64, token Token) Event {
	return Event{
		ID:           uuid.NewString(),
		Caller:       caller,
		Conversation: conversation,
		Token:        token,
	}
}

// Presenter renders dispatcher output back to the user.
type Presenter interface {
	// Acknowledge confirms receipt of a button press so the client stops
	// its spinner.
	Acknowledge(ctx context.Context, ev Event) error

	// Render shows reply for ev, editing ev.Message when it is set.
	Render(ctx context.Context, ev Event, reply Reply) error
}
