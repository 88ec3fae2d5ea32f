package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/mesnalabs/mesna-bot/internal/ai"
	"github.com/mesnalabs/mesna-bot/internal/config"
	"github.com/mesnalabs/mesna-bot/internal/settings"
	"github.com/mesnalabs/mesna-bot/internal/sheets"
)

// menusync extracts a menu from a photographed menu image with Gemini vision,
// saves it as the local fallback menu, and optionally pushes it to the
// spreadsheet Menu tab.
func main() {
	imagePath := flag.String("image", "menu.jpg", "path to the menu image")
	pushSheet := flag.Bool("sheet", false, "also rewrite the spreadsheet Menu tab")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	key := cfg.GeminiAPIKey
	if key == "" {
		key = cfg.AIAPIKey
	}
	if key == "" {
		slog.Error("GEMINI_API_KEY or AI_API_KEY is required")
		os.Exit(1)
	}

	ctx := context.Background()
	gemini := ai.NewGeminiClient(key, cfg.GeminiModel)

	slog.Info("extracting menu from image", "image", *imagePath)
	extracted, err := gemini.AnalyzeMenuImage(ctx, *imagePath)
	if err != nil {
		slog.Error("menu extraction failed", "error", err)
		os.Exit(1)
	}
	slog.Info("menu extracted", "categories", len(extracted))

	settingsStore := settings.Open(cfg.SettingsPath, slog.Default())
	if err := settingsStore.Apply(settings.Update{Menu: extracted}); err != nil {
		slog.Error("failed to save local menu", "error", err)
		os.Exit(1)
	}
	slog.Info("local menu updated", "path", cfg.SettingsPath)

	if !*pushSheet {
		return
	}

	creds := []byte(cfg.GoogleCredsJSON)
	if len(creds) == 0 {
		var readErr error
		creds, readErr = os.ReadFile(cfg.GoogleCredsPath)
		if readErr != nil {
			slog.Error("service account credentials not found", "error", readErr)
			os.Exit(1)
		}
	}

	sheetID := settingsStore.Current().SheetID
	if sheetID == "" {
		sheetID = cfg.SheetID
	}
	client, err := sheets.New(ctx, creds, sheetID, slog.Default())
	if err != nil {
		slog.Error("sheets client failed", "error", err)
		os.Exit(1)
	}
	if err := client.UpdateMenu(ctx, extracted); err != nil {
		slog.Error("failed to update spreadsheet menu", "error", err)
		os.Exit(1)
	}
	slog.Info("spreadsheet menu updated", "spreadsheet", sheetID)
}
