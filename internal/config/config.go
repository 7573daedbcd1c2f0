package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Server
	Port    string `envconfig:"PORT" default:"8080"`
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	// Session / Cookie
	SessionCookieName string `envconfig:"SESSION_COOKIE_NAME" default:"session_id"`
	CookieDomain      string `envconfig:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN"`

	// Feed
	FeedURL          string        `envconfig:"FEED_URL" default:"https://pentester.land/writeups.json"`
	FeedFetchTimeout time.Duration `envconfig:"FEED_FETCH_TIMEOUT" default:"30s"`
	FeedMaxBodyBytes int64         `envconfig:"FEED_MAX_BODY_BYTES" default:"67108864"`

	// Upload
	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"67108864"`

	// Rate Limit (req/min/user)
	IngestRateLimit int `envconfig:"INGEST_RATE_LIMIT" default:"6"`
	APIRateLimit    int `envconfig:"API_RATE_LIMIT" default:"120"`

	// Observability
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに .env があれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded environment from .env")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は全サブコマンド共通の設定値を検証する。
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
	}
	if c.FeedFetchTimeout <= 0 {
		return fmt.Errorf("FEED_FETCH_TIMEOUT must be > 0")
	}
	if c.FeedMaxBodyBytes <= 0 {
		return fmt.Errorf("FEED_MAX_BODY_BYTES must be > 0")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be > 0")
	}
	if c.IngestRateLimit < 1 {
		return fmt.Errorf("INGEST_RATE_LIMIT must be >= 1")
	}
	if c.APIRateLimit < 1 {
		return fmt.Errorf("API_RATE_LIMIT must be >= 1")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ValidateServer はAPIサーバー起動時にのみ必要な設定値を検証する。
func (c *Config) ValidateServer() error {
	var missing []string
	if strings.TrimSpace(c.CORSAllowedOrigin) == "" {
		missing = append(missing, "CORS_ALLOWED_ORIGIN")
	}
	if strings.TrimSpace(c.Port) == "" {
		missing = append(missing, "PORT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	if c.CORSAllowedOrigin == "*" {
		return fmt.Errorf("CORS_ALLOWED_ORIGIN must not be a wildcard")
	}
	return nil
}

// CookieSecure はBASE_URLがHTTPSの場合にtrueを返す。
func (c *Config) CookieSecure() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

// ParseLogLevel はLOG_LEVELの値をslog.Levelに変換する。
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error: %q", s)
	}
}
