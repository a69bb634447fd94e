package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストレージの種類。
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// 認証方式。
const (
	AuthModeFirebase = "firebase"
	AuthModeHMAC     = "hmac"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	Storage     string
	DatabaseURL string

	// Database pool
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Auth
	AuthMode          string
	FirebaseProjectID string
	AuthHMACSecret    string

	// Rate Limit（1ユーザーあたり毎分のリクエスト数）
	RateLimitGeneral int
	RateLimitAI      int

	// AI
	GeminiAPIKey         string
	GeminiModel          string
	AITimeout            time.Duration
	OpenFoodFactsBaseURL string
	SuggestionLimit      int

	// Events
	KafkaBrokers []string
	KafkaTopic   string

	// Cleanup
	BoughtRetentionDays int
	CleanupInterval     time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はまとめてエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Storage = strings.ToLower(getEnvString("STORAGE", StoragePostgres))
	cfg.AuthMode = strings.ToLower(getEnvString("AUTH_MODE", AuthModeFirebase))

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.Storage != StorageMemory {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.FirebaseProjectID = os.Getenv("FIREBASE_PROJECT_ID")
	cfg.AuthHMACSecret = os.Getenv("AUTH_HMAC_SECRET")
	switch cfg.AuthMode {
	case AuthModeHMAC:
		if cfg.AuthHMACSecret == "" {
			missing = append(missing, "AUTH_HMAC_SECRET")
		}
	default:
		if cfg.FirebaseProjectID == "" {
			missing = append(missing, "FIREBASE_PROJECT_ID")
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE: %q", cfg.Storage)
	}
	switch cfg.AuthMode {
	case AuthModeFirebase, AuthModeHMAC:
	default:
		return nil, fmt.Errorf("unsupported AUTH_MODE: %q", cfg.AuthMode)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAI = getEnvInt("RATE_LIMIT_AI", 10)
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-1.5-flash")
	cfg.AITimeout = getEnvDuration("AI_TIMEOUT", 20*time.Second)
	cfg.OpenFoodFactsBaseURL = getEnvString("OPENFOODFACTS_BASE_URL", "https://world.openfoodfacts.org")
	cfg.SuggestionLimit = getEnvInt("SUGGESTION_LIMIT", 5)
	cfg.KafkaBrokers = getEnvList("KAFKA_BROKERS")
	cfg.KafkaTopic = getEnvString("KAFKA_TOPIC", "kitchenstock.events")
	cfg.BoughtRetentionDays = getEnvInt("BOUGHT_RETENTION_DAYS", 30)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 0)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// UsesMemoryStorage はインメモリストレージで動作する設定かどうかを返す。
func (c *Config) UsesMemoryStorage() bool { return c.Storage == StorageMemory }

// AIEnabled はGeminiの呼び出しが構成されているかどうかを返す。
func (c *Config) AIEnabled() bool { return c.GeminiAPIKey != "" }

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの値を空要素を除いて返す。
func getEnvList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
