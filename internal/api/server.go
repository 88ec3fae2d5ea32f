package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mesnalabs/mesna-bot/internal/backup"
	"github.com/mesnalabs/mesna-bot/internal/settings"
)

// sheetURLPattern extracts a spreadsheet ID from a pasted Google Sheets URL,
// so admins can paste the whole link into the dashboard.
var sheetURLPattern = regexp.MustCompile(`/d/([a-zA-Z0-9-_]+)`)

// Hooks are the bot-process operations the dashboard can trigger.
type Hooks struct {
	Paired         func() bool
	RefreshMenu    func(ctx context.Context)
	Logout         func(ctx context.Context) error
	SheetIDChanged func(id string)
}

// Server is the dashboard HTTP API. The dashboard UI itself lives elsewhere;
// this serves its data and control endpoints.
type Server struct {
	router   *chi.Mux
	port     int
	settings *settings.Store
	backups  *backup.Store
	hooks    Hooks
	logger   *slog.Logger
}

func NewServer(port int, st *settings.Store, bk *backup.Store, hooks Hooks, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		settings: st,
		backups:  bk,
		hooks:    hooks,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/status", s.status)
	router.Get("/api/v1/settings", s.getSettings)
	router.Put("/api/v1/settings", s.saveSettings)
	router.Get("/api/v1/orders", s.orders)
	router.Post("/api/v1/menu/refresh", s.refreshMenu)
	router.Post("/api/v1/logout", s.logout)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("dashboard API starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	paired := false
	if s.hooks.Paired != nil {
		paired = s.hooks.Paired()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"restaurant": s.settings.Current().RestaurantName,
		"paired":     paired,
	})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Current())
}

type settingsRequest struct {
	Name             *string `json:"name"`
	AdminPhone       *string `json:"adminPhone"`
	DeliveryCharges  *int    `json:"deliveryCharges"`
	MinDeliveryOrder *int    `json:"minDeliveryOrder"`
	SheetID          *string `json:"sheetId"`
}

func (s *Server) saveSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if req.SheetID != nil {
		id := ExtractSheetID(*req.SheetID)
		req.SheetID = &id
	}

	err := s.settings.Apply(settings.Update{
		RestaurantName:   req.Name,
		AdminPhone:       req.AdminPhone,
		DeliveryCharges:  req.DeliveryCharges,
		MinDeliveryOrder: req.MinDeliveryOrder,
		SheetID:          req.SheetID,
	})
	if err != nil {
		s.logger.Error("failed to persist settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if req.SheetID != nil && s.hooks.SheetIDChanged != nil {
		s.hooks.SheetIDChanged(*req.SheetID)
	}

	s.logger.Info("settings saved")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": s.settings.Current()})
}

func (s *Server) orders(w http.ResponseWriter, r *http.Request) {
	records := s.backups.List()
	if records == nil {
		records = []backup.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) refreshMenu(w http.ResponseWriter, r *http.Request) {
	if s.hooks.RefreshMenu != nil {
		s.hooks.RefreshMenu(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if s.hooks.Logout == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "logout not available"})
		return
	}
	if err := s.hooks.Logout(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// ExtractSheetID accepts either a bare spreadsheet ID or a full Sheets URL
// and returns the ID.
func ExtractSheetID(raw string) string {
	if m := sheetURLPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
