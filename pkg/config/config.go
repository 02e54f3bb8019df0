package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the webhook trader.
// The risk policy lives in a separate YAML file (see internal/risk).
type Config struct {
	Port string

	// WazirX
	WazirxAPIKey    string
	WazirxAPISecret string

	// Execution
	DryRun                bool
	RequestTimeoutSeconds int // per outbound exchange call

	// Risk policy file
	RiskPolicyPath string

	// Telegram notifications
	TelegramEnabled  bool
	TelegramBotToken string
	TelegramChatID   string

	// Auth for mutating admin endpoints
	JWTSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                  getEnv("PORT", "5000"),
		WazirxAPIKey:          os.Getenv("WAZIRX_API_KEY"),
		WazirxAPISecret:       os.Getenv("WAZIRX_SECRET_KEY"),
		DryRun:                getEnv("DRY_RUN", "true") == "true",
		RequestTimeoutSeconds: getEnvInt("REQUEST_TIMEOUT_SECONDS", 10),
		RiskPolicyPath:        getEnv("RISK_POLICY_PATH", "risk.yaml"),
		TelegramEnabled:       getEnv("TELEGRAM_ENABLED", "false") == "true",
		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:        os.Getenv("TELEGRAM_CHAT_ID"),
		JWTSecret:             getEnv("JWT_SECRET", "dev-secret"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
