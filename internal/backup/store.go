package backup

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/mesnalabs/mesna-bot/internal/order"
)

// Record is one backed-up order: the decoded order plus the customer it came
// from and when it was extracted.
type Record struct {
	ID         string `json:"id"`
	CustomerID string `json:"userId"`
	Timestamp  string `json:"timestamp"`
	order.Order
}

// Store appends order records to a local JSON-array file. The whole array is
// read, extended, and rewritten on each append. A corrupt file is treated as
// empty rather than blocking new orders — lossy but available.
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Append adds rec to the backup file.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.readAll()
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// List returns all backed-up records, newest last.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

func (s *Store) readAll() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read backup file", "path", s.path, "error", err)
		}
		return nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("backup file corrupt, treating as empty", "path", s.path, "error", err)
		return nil
	}
	return records
}
