package config

import (
	"errors"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	HTTPPort    string
	LogLevel    string

	JWTSecret             string
	DashboardUser         string
	DashboardPasswordHash string

	WebhookBaseURL    string
	WebhookPausePath  string
	WebhookDeletePath string
	WebhookSendPath   string
	WebhookQRPath     string
	WebhookTimeout    time.Duration

	IngestSecret     string
	WhatsAppInstance string
	DedupeWindow     time.Duration
}

var AppConfig Config

// LoadConfig fills AppConfig and exits when required settings are missing.
func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg, err := Load()
	if err != nil {
		log.Fatal(err)
	}
	AppConfig = cfg
}

// Load reads the configuration from the environment and checks the settings
// the server cannot start without.
func Load() (Config, error) {
	cfg := FromEnv()
	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET environment variable is required")
	}
	if cfg.DashboardPasswordHash == "" {
		return cfg, errors.New("DASHBOARD_PASSWORD_HASH environment variable is required")
	}
	return cfg, nil
}

// FromEnv reads the configuration without validating it. dashctl uses it
// since it never serves the dashboard.
func FromEnv() Config {
	return Config{
		DatabaseURL: getEnv("DATABASE_URL", "riobutcher.db"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogLevel:    strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),

		JWTSecret:             getEnv("JWT_SECRET", ""),
		DashboardUser:         getEnv("DASHBOARD_USER", "riobutcher"),
		DashboardPasswordHash: getEnv("DASHBOARD_PASSWORD_HASH", ""),

		WebhookBaseURL:    strings.TrimRight(getEnv("WEBHOOK_BASE_URL", "https://webhook.riobutcher.cloud"), "/"),
		WebhookPausePath:  getEnv("WEBHOOK_PAUSE_PATH", "/webhook/d093367f-1bdb-48c0-a859-378aba603e79"),
		WebhookDeletePath: getEnv("WEBHOOK_DELETE_PATH", "/webhook/1e798b10-12b1-4767-8169-eadbc278b77c"),
		WebhookSendPath:   getEnv("WEBHOOK_SEND_PATH", "/webhook/6489800a-f2b7-40e3-bd71-76d77ea140b3"),
		WebhookQRPath:     getEnv("WEBHOOK_QR_PATH", "/webhook/3ffa3f9a-0011-4389-b274-ab2dde07177b"),
		WebhookTimeout:    time.Duration(getEnvAsInt("WEBHOOK_TIMEOUT_SECONDS", 15)) * time.Second,

		IngestSecret:     getEnv("INGEST_SECRET", ""),
		WhatsAppInstance: getEnv("WHATSAPP_INSTANCE", "rio-butcher-main"),
		DedupeWindow:     time.Duration(getEnvAsInt("DEDUPE_WINDOW_SECONDS", 10)) * time.Second,
	}
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
