package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/mesnalabs/mesna-bot/internal/menu"
)

// Settings is the runtime-editable business configuration. Unlike env config
// it can change while the bot is running (the dashboard saves it), so all
// access goes through the Store.
type Settings struct {
	RestaurantName   string    `json:"restaurantName"`
	AdminPhone       string    `json:"adminPhone,omitempty"`
	DeliveryCharges  int       `json:"deliveryCharges"`
	MinDeliveryOrder int       `json:"minDeliveryOrder"`
	SheetID          string    `json:"sheetId,omitempty"`
	Menu             menu.Menu `json:"menu,omitempty"`
}

// Update carries a partial settings change from the dashboard. Nil fields
// leave the current value untouched.
type Update struct {
	RestaurantName   *string
	AdminPhone       *string
	DeliveryCharges  *int
	MinDeliveryOrder *int
	SheetID          *string
	Menu             menu.Menu
}

type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	current Settings
}

// Open loads the settings document from path. A missing file yields defaults;
// a corrupt file is logged and treated the same way so the bot still starts.
func Open(path string, logger *slog.Logger) *Store {
	s := &Store{
		path:    path,
		logger:  logger,
		current: Settings{RestaurantName: "Janan Cafe", DeliveryCharges: 150},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read settings file", "path", path, "error", err)
		}
		return s
	}
	if err := json.Unmarshal(data, &s.current); err != nil {
		logger.Warn("failed to parse settings file, using defaults", "path", path, "error", err)
		s.current = Settings{RestaurantName: "Janan Cafe", DeliveryCharges: 150}
	}
	if s.current.RestaurantName == "" {
		s.current.RestaurantName = "Janan Cafe"
	}
	return s
}

// Current returns a snapshot of the settings.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Apply merges the update into the current settings and rewrites the whole
// document. The in-memory value is updated even when the write fails, so the
// running bot uses the new settings either way.
func (s *Store) Apply(u Update) error {
	s.mu.Lock()
	if u.RestaurantName != nil {
		s.current.RestaurantName = *u.RestaurantName
	}
	if u.AdminPhone != nil {
		s.current.AdminPhone = *u.AdminPhone
	}
	if u.DeliveryCharges != nil {
		s.current.DeliveryCharges = *u.DeliveryCharges
	}
	if u.MinDeliveryOrder != nil {
		s.current.MinDeliveryOrder = *u.MinDeliveryOrder
	}
	if u.SheetID != nil {
		s.current.SheetID = *u.SheetID
	}
	if u.Menu != nil {
		s.current.Menu = u.Menu
	}
	snapshot := s.current
	s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
