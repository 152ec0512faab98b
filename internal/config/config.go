package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr    string
	DataDir       string
	BaseURL       string
	SessionSecret string
	LogLevel      string

	// Playback token policy.
	TokenTTL       time.Duration
	MaxViews       int
	LivenessWindow time.Duration

	// Hosting provider (signed embed references).
	EmbedBaseURL    string
	EmbedSigningKey string
	EmbedTTL        time.Duration

	// Payment webhook shared secret.
	PaymentSecret string

	CleanupInterval time.Duration

	// Bootstrap admin, created on first start when the store is empty.
	AdminEmail    string
	AdminPassword string
}

func Load() *Config {
	return &Config{
		ListenAddr:      envOr("LISTEN_ADDR", ":8080"),
		DataDir:         envOr("DATA_DIR", "./data"),
		BaseURL:         envOr("BASE_URL", "http://localhost:8080"),
		SessionSecret:   envOr("SESSION_SECRET", "change-me-in-production-32-bytes!"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		TokenTTL:        envDurationOr("TOKEN_TTL", 4*time.Hour),
		MaxViews:        envIntOr("TOKEN_MAX_VIEWS", 3),
		LivenessWindow:  envDurationOr("LIVENESS_WINDOW", 5*time.Minute),
		EmbedBaseURL:    envOr("EMBED_BASE_URL", "https://stream.example.com"),
		EmbedSigningKey: envOr("EMBED_SIGNING_KEY", "change-me-embed-signing-key"),
		EmbedTTL:        envDurationOr("EMBED_TTL", 4*time.Hour),
		PaymentSecret:   envOr("PAYMENT_WEBHOOK_SECRET", ""),
		CleanupInterval: envDurationOr("CLEANUP_INTERVAL", 15*time.Minute),
		AdminEmail:      envOr("ADMIN_EMAIL", ""),
		AdminPassword:   envOr("ADMIN_PASSWORD", ""),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
