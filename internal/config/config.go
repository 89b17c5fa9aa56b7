package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN       string
	Environment string
	HTTPAddr    string

	// External directory service (professors, groups, students).
	DirectoryBaseURL string

	// Notification gateways. When both are empty the console notifier is
	// used.
	SendgridAPIKey string
	EmailFrom      string
	EmailFromName  string
	TelegramToken  string
	TelegramChatID string

	// Reaper timing.
	ReaperInterval time.Duration
	// Hour of day (0-23) at which the upcoming-exams digest goes out.
	ReminderHour int

	MigrationsDir string
}

func Load() (*Config, error) {
	// Load .env when present; real deployments rely on the environment.
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		DBDSN:            os.Getenv("DB_DSN"),
		Environment:      os.Getenv("ENV"),
		HTTPAddr:         os.Getenv("HTTP_ADDR"),
		DirectoryBaseURL: os.Getenv("DIRECTORY_BASE_URL"),
		SendgridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		EmailFrom:        os.Getenv("EMAIL_FROM"),
		EmailFromName:    os.Getenv("EMAIL_FROM_NAME"),
		TelegramToken:    os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		MigrationsDir:    os.Getenv("MIGRATIONS_DIR"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.EmailFromName == "" {
		cfg.EmailFromName = "Exam Scheduler"
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "migrations"
	}

	interval, err := durationEnv("REAPER_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.ReaperInterval = interval

	hour, err := intEnv("REMINDER_HOUR", 17)
	if err != nil {
		return nil, err
	}
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("REMINDER_HOUR must be between 0 and 23, got %d", hour)
	}
	cfg.ReminderHour = hour

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.DirectoryBaseURL == "" {
		return nil, fmt.Errorf("DIRECTORY_BASE_URL is required but not set")
	}

	return cfg, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
