package dispatch

import "sync"

// State is where a conversation stands in the shutdown confirmation flow.
type State int

const (
	StateIdle State = iota
	StateAwaitingShutdownConfirm
)

func (s State) String() string {
	if s == StateAwaitingShutdownConfirm {
		return "awaiting_shutdown_confirm"
	}
	return "idle"
}

// StateStore keeps the confirmation state of each conversation. Unknown
// conversations are Idle.
type StateStore struct {
	mu     sync.Mutex
	states map[int64]State
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[int64]State)}
}

// Get returns the state of a conversation.
func (s *StateStore) Get(conv int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[conv]
}

// Set stores the state of a conversation.
func (s *StateStore) Set(conv int64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == StateIdle {
		delete(s.states, conv)
		return
	}
	s.states[conv] = st
}

// CompareAndSwap sets the state to next only if it currently is old.
func (s *StateStore) CompareAndSwap(conv int64, old, next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[conv] != old {
		return false
	}
	if next == StateIdle {
		delete(s.states, conv)
	} else {
		s.states[conv] = next
	}
	return true
}
