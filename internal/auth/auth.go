// Package auth decides which chat identities may trigger actions.
package auth

import (
	"sort"
	"strconv"
	"strings"
)

// Identity is the numeric id of the caller as reported by the chat platform.
type Identity int64

// String returns the decimal form of the identity.
func (id Identity) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// AllowSet is the fixed set of identities permitted to invoke actions.
// It is built once at startup and never mutated afterwards, so it is safe
// for concurrent use without locking.
type AllowSet struct {
	members map[Identity]struct{}
}

// NewAllowSet creates an AllowSet containing the given identities.
// Duplicates are collapsed.
func NewAllowSet(ids ...Identity) *AllowSet {
	s := &AllowSet{members: make(map[Identity]struct{}, len(ids))}
	for _, id := range ids {
		s.members[id] = struct{}{}
	}
	return s
}

// IsAllowed reports whether id belongs to the set. A nil id (an event
// without a sender) is never allowed.
func (s *AllowSet) IsAllowed(id *Identity) bool {
	if s == nil || id == nil {
		return false
	}
	_, ok := s.members[*id]
	return ok
}

// Len returns the number of distinct identities in the set.
func (s *AllowSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.members)
}

// List returns the members in ascending order.
func (s *AllowSet) List() []Identity {
	if s == nil {
		return nil
	}
	ids := make([]Identity, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// String renders the set as a comma separated list.
func (s *AllowSet) String() string {
	ids := s.List()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}
