package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 管理者が変更する店舗設定はbot_settingsテーブルにあり、ここには含まない。
type Config struct {
	// Database
	DatabaseURL string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Chat gateway
	GatewayURL     string
	GatewayToken   string
	GatewayTimeout time.Duration
	WebhookSecret  string

	// Channels
	ServiceChannel      string
	CouriersChannel     string
	CustomersChannel    string
	VIPCustomersChannel string
	ReviewsURL          string

	// Rate Limit
	RateLimitPerMinute int

	// Worker
	SessionKeyPrefix       string
	SessionTTL             time.Duration
	RenotifyInterval       time.Duration
	RenotifyIdle           time.Duration
	RenotifyWindow         time.Duration
	SettingsReloadInterval time.Duration

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr == "" {
		missing = append(missing, "REDIS_ADDR")
	}

	cfg.GatewayURL = os.Getenv("CHAT_GATEWAY_URL")
	if cfg.GatewayURL == "" {
		missing = append(missing, "CHAT_GATEWAY_URL")
	}

	cfg.GatewayToken = os.Getenv("CHAT_GATEWAY_TOKEN")
	if cfg.GatewayToken == "" {
		missing = append(missing, "CHAT_GATEWAY_TOKEN")
	}

	cfg.ServiceChannel = os.Getenv("SERVICE_CHANNEL")
	if cfg.ServiceChannel == "" {
		missing = append(missing, "SERVICE_CHANNEL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.GatewayTimeout = getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second)
	cfg.WebhookSecret = getEnvString("WEBHOOK_SECRET", "")
	cfg.CouriersChannel = getEnvString("COURIERS_CHANNEL", "")
	cfg.CustomersChannel = getEnvString("CUSTOMERS_CHANNEL", "")
	cfg.VIPCustomersChannel = getEnvString("VIP_CUSTOMERS_CHANNEL", "")
	cfg.ReviewsURL = reviewsURL(getEnvString("REVIEWS_CHANNEL", ""))
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 60)
	cfg.SessionKeyPrefix = getEnvString("SESSION_KEY_PREFIX", "shoppybot:session")
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 0)
	cfg.RenotifyInterval = getEnvDuration("RENOTIFY_INTERVAL", 10*time.Minute)
	cfg.RenotifyIdle = getEnvDuration("RENOTIFY_IDLE", 30*time.Minute)
	cfg.RenotifyWindow = getEnvDuration("RENOTIFY_WINDOW", 24*time.Hour)
	cfg.SettingsReloadInterval = getEnvDuration("SETTINGS_RELOAD_INTERVAL", time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

// reviewsURL はレビューチャンネルをリンクに変換する。
// @から始まるチャンネル名はt.meのリンクにする。
func reviewsURL(channel string) string {
	if name, ok := strings.CutPrefix(channel, "@"); ok {
		return "https://t.me/" + name
	}
	return channel
}

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
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
