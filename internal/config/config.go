package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`

	// Report (生成AI API)
	GeminiAPIKey          string        `env:"GEMINI_API_KEY" env-required:"true"`
	GeminiEndpoint        string        `env:"GEMINI_ENDPOINT" env-default:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiModel           string        `env:"GEMINI_MODEL" env-default:"gemini-1.5-flash"`
	ReportTimeout         time.Duration `env:"REPORT_TIMEOUT" env-default:"60s"`
	ReportMaxResponseSize int64         `env:"REPORT_MAX_RESPONSE_SIZE" env-default:"1048576"`

	// Session
	SessionMaxAge          int           `env:"SESSION_MAX_AGE" env-default:"34560000"` // 400日
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" env-default:"24h"`

	// Rate Limit (req/min)
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" env-default:"120"`
	RateLimitReport  int `env:"RATE_LIMIT_REPORT" env-default:"10"`

	// Server
	ServerPort string `env:"SERVER_PORT" env-default:"8080"`
	BaseURL    string `env:"BASE_URL" env-required:"true"`

	// Cookie
	CookieSecure bool   `env:"-"`
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" env-default:"http://localhost:5173"`

	// 日付境界と時刻表示に使うタイムゾーン
	Timezone string `env:"TIMEZONE" env-default:"Asia/Tokyo"`
	location *time.Location

	// Logging
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定または空の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}

// Validate は読み込んだ設定値を検証し、派生値を設定する。
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.location = loc

	if c.ReportTimeout < 0 {
		return fmt.Errorf("REPORT_TIMEOUT must not be negative: %v", c.ReportTimeout)
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitReport <= 0 {
		return fmt.Errorf("rate limits must be positive: general=%d report=%d", c.RateLimitGeneral, c.RateLimitReport)
	}

	return nil
}

// Location はTIMEZONEに対応するロケーションを返す。
// Validate前はtime.Localを返す。
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}
