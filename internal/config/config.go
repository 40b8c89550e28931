package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database（空の場合はインメモリリポジトリを使う）
	DatabaseURL string

	// Server
	ServerPort string
	BaseURL    string

	// Session
	SessionTTL         time.Duration
	SessionRememberTTL time.Duration
	PasswordResetTTL   time.Duration

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAuth    int

	// Password reset delivery
	ResetWebhookURL string

	// Argon2
	Argon2MemoryKB    uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8

	// Worker
	CleanupInterval time.Duration

	// Logging
	LogLevel string

	// create-admin
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// LoadDotEnv は.envファイルを環境変数に読み込む。既に設定済みの変数は上書きしない。
// ファイルが存在しない場合はエラーにしない。
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: %v", []string{"BASE_URL"})
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("BASE_URL must be an absolute http(s) URL: %q", cfg.BaseURL)
	}

	// Optional fields with defaults
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 8*time.Hour)
	cfg.SessionRememberTTL = getEnvDuration("SESSION_REMEMBER_TTL", 14*24*time.Hour)
	cfg.PasswordResetTTL = getEnvDuration("PASSWORD_RESET_TTL", 30*time.Minute)
	cfg.CookieSecure = u.Scheme == "https"
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.ResetWebhookURL = os.Getenv("RESET_WEBHOOK_URL")
	memoryKB, err := getEnvBounded("ARGON2_MEMORY_KB", 64*1024, math.MaxUint32)
	if err != nil {
		return nil, err
	}
	iterations, err := getEnvBounded("ARGON2_ITERATIONS", 1, math.MaxUint32)
	if err != nil {
		return nil, err
	}
	parallelism, err := getEnvBounded("ARGON2_PARALLELISM", 2, math.MaxUint8)
	if err != nil {
		return nil, err
	}
	cfg.Argon2MemoryKB = uint32(memoryKB)
	cfg.Argon2Iterations = uint32(iterations)
	cfg.Argon2Parallelism = uint8(parallelism)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.AdminEmail = os.Getenv("ADMIN_EMAIL")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	cfg.AdminName = getEnvString("ADMIN_NAME", "Administrator")

	return cfg, nil
}

// InMemory はインメモリリポジトリで動作する構成かどうかを返す。
func (c *Config) InMemory() bool {
	return c.DatabaseURL == ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvInt は正の整数を読み込む。不正な値や0以下はデフォルト値になる。
func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

// getEnvBounded は1以上upper以下の整数を読み込む。
// 未設定なら既定値、範囲外や整数でない値はエラーとする。
func getEnvBounded(key string, defaultVal, upper uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n < 1 || n > upper {
		return 0, fmt.Errorf("%s must be an integer between 1 and %d: %q", key, upper, v)
	}
	return n, nil
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
