package profile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Profile is everything the bot remembers about a customer across restarts.
type Profile struct {
	Name        string    `json:"name,omitempty"`
	Address     string    `json:"address,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	LastOrder   string    `json:"lastOrder,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Update is a partial profile change. Empty fields preserve the stored value
// — profiles are merged, never wholesale-replaced.
type Update struct {
	Name      string
	Address   string
	Phone     string
	LastOrder string
}

// Store keeps the customer-id → profile mapping in memory and mirrors every
// merge to a single JSON document on disk. The whole file is rewritten on
// each merge so a crash mid-write can lose at most the latest merge, never
// corrupt other records into a partially-appended state.
type Store struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	profiles map[string]Profile
}

// Open loads the profile mapping from path. A missing or unreadable file
// yields an empty mapping; the bot keeps serving with what it has.
func Open(path string, logger *slog.Logger) *Store {
	s := &Store{path: path, logger: logger, profiles: make(map[string]Profile)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read profiles", "path", path, "error", err)
		}
		return s
	}
	if err := json.Unmarshal(data, &s.profiles); err != nil {
		logger.Warn("failed to parse profiles, starting empty", "path", path, "error", err)
		s.profiles = make(map[string]Profile)
	}
	return s
}

// Get returns the stored profile for customerID, or a zero profile if the
// customer has never ordered. Never fails.
func (s *Store) Get(customerID string) Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[customerID]
}

// Merge applies the non-empty fields of u to the customer's profile, stamps
// it, and rewrites the backing file. The in-memory mapping is updated before
// the write is attempted, so a storage failure is surfaced to the caller but
// does not lose the merge for the running process.
func (s *Store) Merge(customerID string, u Update) error {
	s.mu.Lock()
	p := s.profiles[customerID]
	if u.Name != "" {
		p.Name = u.Name
	}
	if u.Address != "" {
		p.Address = u.Address
	}
	if u.Phone != "" {
		p.Phone = u.Phone
	}
	if u.LastOrder != "" {
		p.LastOrder = u.LastOrder
	}
	p.LastUpdated = time.Now().UTC()
	s.profiles[customerID] = p

	data, err := json.MarshalIndent(s.profiles, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	return nil
}
