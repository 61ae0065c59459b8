// Package dispatch turns authorized chat interactions into at most one
// remote action each, and walks the shutdown confirmation flow.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/action"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/auth"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/debounce"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/workpool"
)

// ErrNotConfirmed is logged when a shutdown confirmation arrives for a
// conversation that is not waiting for one.
var ErrNotConfirmed = errors.New("shutdown not awaiting confirmation")

// Dispatcher routes events through authorization, debounce and the
// confirmation state machine to the registered actions.
type Dispatcher struct {
	allow     *auth.AllowSet
	debounce  *debounce.Table
	states    *StateStore
	pool      *workpool.Pool
	actions   *action.Registry
	presenter Presenter

	ackUnauthorized bool
	logger          *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithAckUnauthorized makes the dispatcher acknowledge button presses from
// callers who are not allowed, so their client stops spinning. Nothing else
// is rendered for them either way.
func WithAckUnauthorized(ack bool) Option {
	return func(d *Dispatcher) {
		d.ackUnauthorized = ack
	}
}

// WithStateStore replaces the conversation state store.
func WithStateStore(s *StateStore) Option {
	return func(d *Dispatcher) {
		d.states = s
	}
}

// New creates a dispatcher.
func New(allow *auth.AllowSet, table *debounce.Table, pool *workpool.Pool, actions *action.Registry, presenter Presenter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		allow:     allow,
		debounce:  table,
		pool:      pool,
		actions:   actions,
		presenter: presenter,
		states:    NewStateStore(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch handles one event and returns how it ended. The outcome has
// already been rendered through the presenter, except for Denied, which
// renders nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (out Outcome) {
	logger := d.logger.With(
		"event_id", ev.ID,
		"conversation", ev.Conversation,
		"token", ev.Token.String(),
	)
	if ev.Caller != nil {
		logger = logger.With("user_id", int64(*ev.Caller))
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling event", "panic", r)
			out = d.finish(ctx, ev, logger, Outcome{Status: StatusFailed, Text: TextMenu, Keyboard: MainMenu()})
		}
	}()

	if !d.allow.IsAllowed(ev.Caller) {
		logger.Warn("unauthorized access attempt", "raw", ev.Raw)
		if d.ackUnauthorized {
			d.acknowledge(ctx, ev, logger)
		}
		return Outcome{Status: StatusDenied}
	}

	switch ev.Token {
	case TokenStart:
		d.states.Set(ev.Conversation, StateIdle)
		return d.finish(ctx, ev, logger, Outcome{Status: StatusOK, Text: TextMenu, Keyboard: MainMenu()})

	case TokenCancel:
		d.acknowledge(ctx, ev, logger)
		d.states.Set(ev.Conversation, StateIdle)
		logger.Info("operation cancelled")
		return d.finish(ctx, ev, logger, Outcome{Status: StatusOK, Text: TextCancelled, Keyboard: MainMenu()})

	case TokenShutdownYes:
		if d.states.Get(ev.Conversation) != StateAwaitingShutdownConfirm {
			return d.expired(ctx, ev, logger)
		}
		if rejected, ok := d.throttle(ctx, ev, logger); !ok {
			return rejected
		}
		if !d.states.CompareAndSwap(ev.Conversation, StateAwaitingShutdownConfirm, StateIdle) {
			return d.expired(ctx, ev, logger)
		}
		return d.run(ctx, ev, logger, action.NameShutdown, TextShutdownProgress)

	case TokenShutdownConfirm:
		if rejected, ok := d.throttle(ctx, ev, logger); !ok {
			return rejected
		}
		d.acknowledge(ctx, ev, logger)
		d.states.Set(ev.Conversation, StateAwaitingShutdownConfirm)
		logger.Info("shutdown confirmation requested")
		return d.finish(ctx, ev, logger, Outcome{Status: StatusOK, Text: TextConfirmShutdown, Keyboard: ConfirmShutdown()})

	case TokenWake:
		if rejected, ok := d.throttle(ctx, ev, logger); !ok {
			return rejected
		}
		d.states.Set(ev.Conversation, StateIdle)
		return d.run(ctx, ev, logger, action.NameWake, TextWakeProgress)

	case TokenStatus:
		if rejected, ok := d.throttle(ctx, ev, logger); !ok {
			return rejected
		}
		d.states.Set(ev.Conversation, StateIdle)
		return d.run(ctx, ev, logger, action.NameStatus, TextStatusProgress)

	default:
		logger.Warn("unknown command", "raw", ev.Raw)
		d.acknowledge(ctx, ev, logger)
		return d.finish(ctx, ev, logger, Outcome{Status: StatusOK, Text: TextUnknownCommand, Keyboard: MainMenu()})
	}
}

// throttle applies the per-identity debounce window. When the window is
// still open the press is acknowledged and answered with a wait notice.
func (d *Dispatcher) throttle(ctx context.Context, ev Event, logger *slog.Logger) (Outcome, bool) {
	if d.debounce.Allow(*ev.Caller) {
		return Outcome{}, true
	}
	logger.Warn("user is pressing buttons too fast")
	d.acknowledge(ctx, ev, logger)
	return d.finish(ctx, ev, logger, Outcome{Status: StatusRejected, Text: TextPleaseWait}), false
}

func (d *Dispatcher) expired(ctx context.Context, ev Event, logger *slog.Logger) Outcome {
	logger.Warn("ignoring shutdown confirmation", "error", ErrNotConfirmed)
	d.acknowledge(ctx, ev, logger)
	d.states.Set(ev.Conversation, StateIdle)
	return d.finish(ctx, ev, logger, Outcome{Status: StatusOK, Text: TextConfirmExpired, Keyboard: MainMenu()})
}

// run acknowledges the press, shows progress and executes the named action
// on the worker pool. A result that arrives after ctx ends is dropped.
func (d *Dispatcher) run(ctx context.Context, ev Event, logger *slog.Logger, name, progress string) Outcome {
	d.acknowledge(ctx, ev, logger)
	if err := d.presenter.Render(ctx, ev, Reply{Text: progress}); err != nil {
		logger.Warn("failed to render progress", "error", err)
	}

	a, ok := d.actions.Get(name)
	if !ok {
		logger.Error("action not registered", "action", name)
		return d.finish(ctx, ev, logger, Outcome{Status: StatusFailed, Text: TextNotConfigured, Keyboard: MainMenu()})
	}

	logger.Info("running action", "action", name)
	result, err := action.Execute(ctx, d.pool, a)

	out := outcomeFor(name, result, err)
	if err != nil {
		logger.Error("action failed",
			"action", name,
			"status", out.Status.String(),
			"kind", errorKind(err),
			"error", err,
		)
	} else {
		logger.Info("action finished", "action", name, "result", result.Message)
	}
	return d.finish(ctx, ev, logger, out)
}

func outcomeFor(name string, result *action.Result, err error) Outcome {
	out := Outcome{Status: StatusOK, Keyboard: MainMenu()}

	if err != nil {
		out.Status = StatusFailed
		// Only the status check has a time budget of its own.
		if name == action.NameStatus && (errors.Is(err, action.ErrTimedOut) || errors.Is(err, context.DeadlineExceeded)) {
			out.Status = StatusTimedOut
		}
	}

	switch name {
	case action.NameWake:
		out.Text = TextWakeOK
		if out.Status != StatusOK {
			out.Text = TextWakeFailed
		}
	case action.NameShutdown:
		out.Text = TextShutdownOK
		if out.Status != StatusOK {
			out.Text = TextShutdownFailed
		}
	case action.NameStatus:
		switch {
		case out.Status == StatusTimedOut:
			out.Text = TextStatusTimedOut
		case out.Status != StatusOK:
			out.Text = TextStatusFailed
		default:
			out.Text = statusText(result.Report)
		}
	}
	return out
}

// errorKind names the failure class for logs.
func errorKind(err error) string {
	var connErr *connector.ConnectError
	var authErr *connector.AuthError
	var execErr *connector.ExecError
	switch {
	case errors.Is(err, action.ErrTimedOut), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, workpool.ErrPanic):
		return "panic"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &connErr):
		return "connect"
	case errors.As(err, &execErr):
		return "exec"
	default:
		return "other"
	}
}

func statusText(r *action.Report) string {
	switch {
	case r == nil || !r.Online:
		return TextStatusOffline
	case r.Degraded():
		return TextStatusDegraded
	case r.Uptime != nil:
		u := r.Uptime
		text := fmt.Sprintf("%s\n\nUp: %s", TextStatusOnline, u.Up)
		if u.Users >= 0 {
			text += fmt.Sprintf("\nUsers: %d", u.Users)
		}
		return text + fmt.Sprintf("\nLoad: %.2f %.2f %.2f", u.Load[0], u.Load[1], u.Load[2])
	default:
		return TextStatusOnline + "\n\n" + r.Details
	}
}

func (d *Dispatcher) acknowledge(ctx context.Context, ev Event, logger *slog.Logger) {
	if ev.CallbackID == "" {
		return
	}
	if err := d.presenter.Acknowledge(ctx, ev); err != nil {
		logger.Warn("failed to acknowledge callback", "error", err)
	}
}

func (d *Dispatcher) finish(ctx context.Context, ev Event, logger *slog.Logger, out Outcome) Outcome {
	if err := d.presenter.Render(ctx, ev, Reply{Text: out.Text, Keyboard: out.Keyboard}); err != nil {
		logger.Error("failed to render reply", "error", err)
	}
	return out
}
