// Package store implements the in-memory conversation registry. It is the
// single source of truth for per-chat state: transcript, responder mode and
// model-facing history. Nothing here survives a process restart.
//
// Two levels of locking are used. A fine-grained per-chat mutex guards every
// read or mutation of a conversation, so dashboard snapshots are always
// consistent. A separate coarse per-chat turn lock serializes whole
// inbound-message turns (read gates → provider call → write reply) so that
// concurrent messages for the same chat cannot interleave their
// read-modify-write sequences; it is deliberately not held by snapshot
// readers, which must stay responsive while a provider call is in flight.
package store

import (
	"sync"
	"time"

	"github.com/sushiaki/sora-backend/internal/domain"
)

type entry struct {
	mu     sync.Mutex // guards conv
	turnMu sync.Mutex // serializes full turns, see package comment
	conv   *domain.Conversation
}

// ConversationStore is a keyed registry of conversations, created lazily on
// first reference and listed in insertion order. Safe for concurrent use.
type ConversationStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	// Now is the clock used for creation timestamps; replaceable in tests.
	Now func() time.Time
}

// NewConversationStore returns an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		entries: make(map[string]*entry),
		Now:     time.Now,
	}
}

// getOrCreate returns the entry for chatID, creating it on first reference.
func (s *ConversationStore) getOrCreate(chatID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[chatID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[chatID]; ok {
		return e
	}
	e = &entry{conv: domain.NewConversation(chatID, s.Now())}
	s.entries[chatID] = e
	s.order = append(s.order, chatID)
	return e
}

// LockTurn serializes inbound-message turns for one chat. It creates the
// conversation if needed and returns the unlock function.
func (s *ConversationStore) LockTurn(chatID string) func() {
	e := s.getOrCreate(chatID)
	e.turnMu.Lock()
	return e.turnMu.Unlock
}

// Update runs fn on the conversation for chatID under its lock, creating the
// conversation on first reference, and returns a deep-copied snapshot of the
// resulting state.
func (s *ConversationStore) Update(chatID string, fn func(*domain.Conversation)) domain.Conversation {
	e := s.getOrCreate(chatID)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.conv)
	return snapshot(e.conv)
}

// Snapshot returns a deep copy of the conversation, if it exists.
func (s *ConversationStore) Snapshot(chatID string) (domain.Conversation, bool) {
	s.mu.RLock()
	e, ok := s.entries[chatID]
	s.mu.RUnlock()
	if !ok {
		return domain.Conversation{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.conv), true
}

// List returns deep copies of all conversations in insertion order.
func (s *ConversationStore) List() []domain.Conversation {
	s.mu.RLock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	entries := make([]*entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, s.entries[id])
	}
	s.mu.RUnlock()

	out := make([]domain.Conversation, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, snapshot(e.conv))
		e.mu.Unlock()
	}
	return out
}

// Delete removes a conversation and reports whether it existed.
func (s *ConversationStore) Delete(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[chatID]; !ok {
		return false
	}
	delete(s.entries, chatID)
	for i, id := range s.order {
		if id == chatID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// ClearAll removes every conversation and returns how many were dropped.
func (s *ConversationStore) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = make(map[string]*entry)
	s.order = nil
	return n
}

// Len returns the number of conversations.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// snapshot deep-copies a conversation so callers can marshal or inspect it
// after the lock is released.
func snapshot(c *domain.Conversation) domain.Conversation {
	out := *c
	out.Messages = make([]domain.Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	out.HandledObjections = make([]string, len(c.HandledObjections))
	copy(out.HandledObjections, c.HandledObjections)
	out.History = make([]domain.Turn, len(c.History))
	copy(out.History, c.History)
	if c.LastHumanActivity != nil {
		t := *c.LastHumanActivity
		out.LastHumanActivity = &t
	}
	return out
}
