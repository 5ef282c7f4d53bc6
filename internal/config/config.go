package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken string
	// ChatID is the chat reminders are delivered to. Zero means "bind
	// to whichever chat talks to the bot first".
	ChatID       int64
	DatabaseURL  string
	PrefsPath    string
	SyncInterval time.Duration
	Debug        bool
}

// Load reads configuration from the environment (and a .env file if
// present) with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		ChatID:        parseInt64(os.Getenv("TELEGRAM_CHAT_ID")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		PrefsPath:     strings.TrimSpace(os.Getenv("PREFS_PATH")),
		SyncInterval:  parseMinutes(os.Getenv("REMINDER_SYNC_INTERVAL_MINS")),
		Debug:         parseBool(os.Getenv("DEBUG")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "chore_planner.db"
	}
	if cfg.PrefsPath == "" {
		cfg.PrefsPath = "chore_prefs.json"
	}
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = 15 * time.Minute
	}
	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func parseInt64(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseMinutes(raw string) time.Duration {
	mins, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || mins <= 0 {
		return 0
	}
	return time.Duration(mins) * time.Minute
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}
