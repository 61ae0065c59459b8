// Package action implements the remote operations the bot can perform:
// waking the server, shutting it down and checking its status.
package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/workpool"
)

// Action names.
const (
	NameWake     = "wake"
	NameShutdown = "shutdown"
	NameStatus   = "status"
)

// Result holds the outcome of an action.
type Result struct {
	// Message is a short human-readable description of what happened.
	Message string

	// Data holds any additional output data from the action.
	Data map[string]any

	// Report is set by the status action.
	Report *Report
}

// Action is the interface that all actions must implement.
type Action interface {
	// Name returns the action's unique identifier.
	Name() string

	// Run performs the action. Every run opens and closes its own remote
	// session; nothing is pooled or retried.
	Run(ctx context.Context) (*Result, error)
}

// Bounded is implemented by actions that must answer within a fixed time,
// including any wait for a free worker.
type Bounded interface {
	Timeout() time.Duration
}

// Execute runs a on pool. For a Bounded action the budget starts before
// the worker slot is requested; running out of it is ErrTimedOut.
func Execute(ctx context.Context, pool *workpool.Pool, a Action) (*Result, error) {
	runCtx := ctx
	b, bounded := a.(Bounded)
	bounded = bounded && b.Timeout() > 0
	if bounded {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.Timeout())
		defer cancel()
	}

	result, err := workpool.Run(runCtx, pool, a.Run)
	if err != nil && bounded && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, ErrTimedOut
	}
	return result, err
}

// Registry holds the actions available to the dispatcher and the CLI.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry creates a registry holding the given actions.
func NewRegistry(actions ...Action) *Registry {
	r := &Registry{actions: make(map[string]Action)}
	for _, a := range actions {
		r.Register(a)
	}
	return r
}

// Register adds an action to the registry.
// It panics if an action with the same name is already registered.
func (r *Registry) Register(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if _, exists := r.actions[name]; exists {
		panic(fmt.Sprintf("action %q is already registered", name))
	}
	r.actions[name] = a
}

// Get retrieves an action by name.
func (r *Registry) Get(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered action names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Done creates a successful Result.
func Done(msg string) *Result {
	return &Result{Message: msg}
}

// DoneWithData creates a successful Result with additional data.
func DoneWithData(msg string, data map[string]any) *Result {
	return &Result{Message: msg, Data: data}
}

// runRemote opens a session to profile, runs one command and closes the
// session again.
func runRemote(ctx context.Context, d connector.Dialer, profile connector.HostProfile, cmd string) (*connector.Result, error) {
	conn, err := connector.Open(ctx, d, profile)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return conn.Execute(ctx, cmd)
}
