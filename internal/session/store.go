package session

import "sync"

// Turn roles as fed back to the model providers.
const (
	RoleCustomer  = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role string
	Text string
}

// Store holds per-customer conversation histories for the lifetime of the
// process. Nothing here is persisted: after a restart customers keep their
// profile but lose conversational context, which is acceptable.
type Store struct {
	mu       sync.Mutex
	sessions map[string][]Turn
}

func NewStore() *Store {
	return &Store{sessions: make(map[string][]Turn)}
}

// History returns a copy of the customer's history, creating the session on
// first contact.
func (s *Store) History(customerID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns, ok := s.sessions[customerID]
	if !ok {
		s.sessions[customerID] = nil
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append adds a turn to the customer's history.
func (s *Store) Append(customerID string, t Turn) {
	s.mu.Lock()
	s.sessions[customerID] = append(s.sessions[customerID], t)
	s.mu.Unlock()
}

// TrimToLast keeps only the most recent n turns, preserving their order.
// Called after a completed order so post-order chatter ("thanks", "ok")
// still has context without the history growing without bound.
func (s *Store) TrimToLast(customerID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.sessions[customerID]
	if len(turns) > n {
		trimmed := make([]Turn, n)
		copy(trimmed, turns[len(turns)-n:])
		s.sessions[customerID] = trimmed
	}
}

// Len reports the current history length. Used by tests and the status API.
func (s *Store) Len(customerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions[customerID])
}
