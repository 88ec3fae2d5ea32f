package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mesnalabs/mesna-bot/internal/ai"
	"github.com/mesnalabs/mesna-bot/internal/api"
	"github.com/mesnalabs/mesna-bot/internal/backup"
	"github.com/mesnalabs/mesna-bot/internal/bot"
	"github.com/mesnalabs/mesna-bot/internal/config"
	"github.com/mesnalabs/mesna-bot/internal/events"
	"github.com/mesnalabs/mesna-bot/internal/menu"
	"github.com/mesnalabs/mesna-bot/internal/profile"
	"github.com/mesnalabs/mesna-bot/internal/session"
	"github.com/mesnalabs/mesna-bot/internal/settings"
	"github.com/mesnalabs/mesna-bot/internal/sheets"
	"github.com/mesnalabs/mesna-bot/internal/sink"
	"github.com/mesnalabs/mesna-bot/internal/wa"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("mesna starting", "port", cfg.Port, "provider", cfg.Provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	settingsStore := settings.Open(cfg.SettingsPath, slog.Default())
	profiles := profile.Open(cfg.ProfilesPath, slog.Default())
	backups := backup.NewStore(cfg.BackupPath, slog.Default())
	sessions := session.NewStore()

	// Spreadsheet ledger (optional — orders are kept locally without it)
	var sheetsClient *sheets.Client
	if creds := loadGoogleCreds(cfg); creds != nil {
		sheetID := settingsStore.Current().SheetID
		if sheetID == "" {
			sheetID = cfg.SheetID
		}
		var err error
		sheetsClient, err = sheets.New(ctx, creds, sheetID, slog.Default())
		if err != nil {
			slog.Warn("sheets client unavailable, orders saved locally only", "error", err)
			sheetsClient = nil
		} else {
			slog.Info("sheets client ready", "spreadsheet", sheetID)
		}
	} else {
		slog.Warn("no service account credentials — running without spreadsheet ledger")
	}

	// Conversational model provider
	var provider ai.Provider
	if cfg.Provider == "gemini" {
		key := cfg.GeminiAPIKey
		if key == "" {
			key = cfg.AIAPIKey
		}
		provider = ai.NewGeminiClient(key, cfg.GeminiModel)
	} else {
		if cfg.AIAPIKey == "" {
			slog.Error("AI_API_KEY is required")
			os.Exit(1)
		}
		provider = ai.NewOpenAIClient(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
	}
	slog.Info("model provider ready", "provider", cfg.Provider)

	// Dashboard events (optional — the bot works without live observers)
	var eventsClient *events.Client
	if cfg.NatsURL != "" {
		var err error
		eventsClient, err = events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Warn("nats unavailable — running without dashboard events", "error", err)
		} else {
			defer eventsClient.Close()
			slog.Info("dashboard events connected", "url", cfg.NatsURL)
		}
	} else {
		slog.Warn("NATS_URL not set — running without dashboard events")
	}

	// WhatsApp transport
	waClient, err := wa.NewClient(ctx, cfg.SessionDB, slog.Default())
	if err != nil {
		slog.Error("failed to initialise whatsapp client", "error", err)
		os.Exit(1)
	}

	// Order sink fan-out
	var ledger sink.Ledger
	if sheetsClient != nil {
		ledger = sheetsClient
	}
	var publisher sink.Publisher
	if eventsClient != nil {
		publisher = eventsClient
	}
	dispatcher := sink.NewDispatcher(profiles, settingsStore, backups, ledger, waClient, publisher, slog.Default())

	// Message pipeline
	menus := menu.NewHolder(settingsStore.Current().Menu)
	var menuSource bot.MenuSource
	if sheetsClient != nil {
		menuSource = sheetsClient
	}
	handler := bot.New(sessions, profiles, provider, menus, menuSource, settingsStore, dispatcher, waClient, cfg.MediaDir, slog.Default())

	waClient.OnMessage(handler.HandleAsync)
	waClient.OnQR(func(code string) {
		if eventsClient != nil {
			if err := eventsClient.Publish(events.SubjectPairingQR, map[string]string{"code": code}); err != nil {
				slog.Warn("failed to publish pairing code", "error", err)
			}
		}
	})
	waClient.OnPaired(func() {
		if eventsClient != nil {
			_ = eventsClient.Publish(events.SubjectPairingState, map[string]string{"state": "ready"})
		}
		handler.RefreshMenu(ctx)
	})
	waClient.OnLoggedOut(func() {
		// Deliberate fail-fast: the supervisor restarts the process and a
		// fresh QR pairing cycle begins.
		slog.Error("logged out from whatsapp — exiting for re-pairing")
		os.Exit(1)
	})

	// Dashboard API
	srv := api.NewServer(cfg.Port, settingsStore, backups, api.Hooks{
		Paired:      waClient.Paired,
		RefreshMenu: handler.RefreshMenu,
		Logout: func(ctx context.Context) error {
			if err := waClient.Logout(ctx); err != nil {
				return err
			}
			go func() {
				time.Sleep(time.Second)
				slog.Info("session cleared — exiting for restart")
				os.Exit(0)
			}()
			return nil
		},
		SheetIDChanged: func(id string) {
			if sheetsClient != nil {
				sheetsClient.SetSpreadsheetID(id)
			}
			if eventsClient != nil {
				_ = eventsClient.Publish(events.SubjectSettings, map[string]string{"sheetId": id})
			}
		},
	}, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("dashboard API error", "error", err)
		}
	}()

	if err := waClient.Connect(ctx); err != nil {
		slog.Error("whatsapp connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("mesna ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	waClient.Disconnect()
	cancel()
	slog.Info("mesna stopped")
}

func loadGoogleCreds(cfg config.Config) []byte {
	if cfg.GoogleCredsJSON != "" {
		return []byte(cfg.GoogleCredsJSON)
	}
	data, err := os.ReadFile(cfg.GoogleCredsPath)
	if err != nil {
		return nil
	}
	return data
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
