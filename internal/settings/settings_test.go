package settings

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mesnalabs/mesna-bot/internal/menu"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestOpen_MissingFileUsesDefaults(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "settings.json"), discardLogger())

	st := s.Current()
	if st.RestaurantName != "Janan Cafe" {
		t.Errorf("expected default restaurant name, got %q", st.RestaurantName)
	}
	if st.DeliveryCharges != 150 {
		t.Errorf("expected default delivery charges 150, got %d", st.DeliveryCharges)
	}
}

func TestOpen_CorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := Open(path, discardLogger())
	if st := s.Current(); st.RestaurantName != "Janan Cafe" || st.DeliveryCharges != 150 {
		t.Errorf("expected defaults over corrupt file, got %+v", st)
	}
}

func TestApply_PartialUpdatePreservesRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := Open(path, discardLogger())

	if err := s.Apply(Update{AdminPhone: strPtr("92300admin"), MinDeliveryOrder: intPtr(500)}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := s.Apply(Update{RestaurantName: strPtr("Karachi Grill")}); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	st := s.Current()
	if st.RestaurantName != "Karachi Grill" {
		t.Errorf("expected updated name, got %q", st.RestaurantName)
	}
	if st.AdminPhone != "92300admin" || st.MinDeliveryOrder != 500 {
		t.Errorf("expected earlier fields preserved, got %+v", st)
	}
	if st.DeliveryCharges != 150 {
		t.Errorf("expected untouched default preserved, got %d", st.DeliveryCharges)
	}
}

func TestApply_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := Open(path, discardLogger())

	m := menu.Menu{"Drinks": {{Name: "Lassi", Price: "120"}}}
	if err := s.Apply(Update{RestaurantName: strPtr("Karachi Grill"), SheetID: strPtr("sheet-1"), Menu: m}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	reopened := Open(path, discardLogger())
	st := reopened.Current()
	if st.RestaurantName != "Karachi Grill" || st.SheetID != "sheet-1" {
		t.Errorf("expected settings to survive reopen, got %+v", st)
	}
	if len(st.Menu["Drinks"]) != 1 || st.Menu["Drinks"][0].Name != "Lassi" {
		t.Errorf("expected menu to survive reopen, got %+v", st.Menu)
	}
}

func TestApply_WriteFailureKeepsMemory(t *testing.T) {
	// Path inside a directory that does not exist: write fails, memory holds.
	s := Open(filepath.Join(t.TempDir(), "missing", "settings.json"), discardLogger())

	if err := s.Apply(Update{RestaurantName: strPtr("Karachi Grill")}); err == nil {
		t.Fatal("expected write error")
	}
	if st := s.Current(); st.RestaurantName != "Karachi Grill" {
		t.Errorf("expected in-memory value despite write failure, got %q", st.RestaurantName)
	}
}
