package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port            int
	LogLevel        string
	NatsURL         string
	NatsToken       string
	Provider        string
	AIAPIKey        string
	AIBaseURL       string
	AIModel         string
	GeminiAPIKey    string
	GeminiModel     string
	SheetID         string
	GoogleCredsJSON string
	GoogleCredsPath string
	SessionDB       string
	SettingsPath    string
	ProfilesPath    string
	BackupPath      string
	MediaDir        string
}

func Load() Config {
	return Config{
		Port:            envInt("MESNA_PORT", 3000),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		Provider:        envStr("AI_PROVIDER", "openai"),
		AIAPIKey:        envStr("AI_API_KEY", ""),
		AIBaseURL:       envStr("AI_BASE_URL", "https://api.bytez.com/v1"),
		AIModel:         envStr("AI_MODEL", "gpt-4o"),
		GeminiAPIKey:    envStr("GEMINI_API_KEY", ""),
		GeminiModel:     envStr("GEMINI_MODEL", "gemini-1.5-flash"),
		SheetID:         envStr("GOOGLE_SHEET_ID", ""),
		GoogleCredsJSON: envStr("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleCredsPath: envStr("GOOGLE_SERVICE_ACCOUNT_JSON_PATH", "service-account.json"),
		SessionDB:       envStr("MESNA_SESSION_DB", "mesna.db"),
		SettingsPath:    envStr("MESNA_SETTINGS_PATH", "settings.json"),
		ProfilesPath:    envStr("MESNA_PROFILES_PATH", "profiles.json"),
		BackupPath:      envStr("MESNA_BACKUP_PATH", "orders.json"),
		MediaDir:        envStr("MESNA_MEDIA_DIR", "."),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
