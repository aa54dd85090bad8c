package autocompact

import (
	"sync"
	"time"
)

// State is the per-session bookkeeping shared by the Hook and the Executor:
// which sessions are pending compaction, the last token-limit error seen for
// each, and each session's retry progress. Entries for different sessions
// never interact. State is safe for concurrent use.
type State struct {
	mu      sync.Mutex
	pending map[string]struct{}
	errors  map[string]*ParsedTokenLimitError
	retries map[string]*RetryState
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		pending: map[string]struct{}{},
		errors:  map[string]*ParsedTokenLimitError{},
		retries: map[string]*RetryState{},
	}
}

// GetOrCreate returns a copy of the session's retry state, registering a
// zero state first if the session has none. Use Has to ask whether the
// session has ever attempted compaction.
func (s *State) GetOrCreate(sessionID string) RetryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrCreate(sessionID)
}

func (s *State) getOrCreate(sessionID string) *RetryState {
	rs, ok := s.retries[sessionID]
	if !ok {
		rs = &RetryState{}
		s.retries[sessionID] = rs
	}
	return rs
}

// Has reports whether the session has a retry state.
func (s *State) Has(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.retries[sessionID]
	return ok
}

// RecordAttempt increments the session's attempt counter, stamps the attempt
// time and returns the new count.
func (s *State) RecordAttempt(sessionID string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.getOrCreate(sessionID)
	rs.Attempt++
	rs.LastAttemptTime = now
	return rs.Attempt
}

// MarkPending flags the session as awaiting compaction.
func (s *State) MarkPending(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[sessionID] = struct{}{}
}

// IsPending reports whether the session awaits compaction.
func (s *State) IsPending(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[sessionID]
	return ok
}

// SetError records the last token-limit error for the session.
func (s *State) SetError(sessionID string, parsed *ParsedTokenLimitError) {
	if parsed == nil {
		return
	}
	cp := *parsed
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[sessionID] = &cp
}

// Error returns the last token-limit error recorded for the session.
func (s *State) Error(sessionID string) (ParsedTokenLimitError, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parsed, ok := s.errors[sessionID]
	if !ok {
		return ParsedTokenLimitError{}, false
	}
	return *parsed, true
}

// Clear removes the session's retry state, pending flag and cached error in
// one step.
func (s *State) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, sessionID)
	delete(s.errors, sessionID)
	delete(s.retries, sessionID)
}

// Len returns the number of sessions with any entry.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(s.retries))
	for id := range s.pending {
		seen[id] = struct{}{}
	}
	for id := range s.errors {
		seen[id] = struct{}{}
	}
	for id := range s.retries {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// Reset drops every entry.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.pending)
	clear(s.errors)
	clear(s.retries)
}
