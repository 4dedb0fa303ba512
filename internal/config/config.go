// Package config はアプリケーション設定の読み込みと検証を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
)

// StorageBackend はストレージバックエンドの種別を表す。
type StorageBackend string

const (
	// BackendMemory はプロセス内メモリストアを示す。再起動で全データが消える。
	BackendMemory StorageBackend = "memory"
	// BackendPostgres はPostgreSQLによる永続ストアを示す。
	BackendPostgres StorageBackend = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageBackend StorageBackend
	DatabaseURL    string

	// Auth
	JWTSecret string
	// LegacyHeaderAuth はX-User-Idヘッダーによる旧認証方式を許可する。
	// 後方互換のためだけに残されており、新規連携では使用しないこと。
	LegacyHeaderAuth bool

	// Rate Limit（req/min/user）
	RateLimitGeneral    int
	RateLimitBlogCreate int

	// Listing
	PublishedPageLimit    int
	PublishedPageLimitMax int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、またはバックエンド選択が不完全な場合はエラーを返す。
// 設定不備のままモックに退化して起動することはない。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	backend := getEnvString("STORAGE_BACKEND", string(BackendPostgres))
	switch StorageBackend(backend) {
	case BackendMemory:
		cfg.StorageBackend = BackendMemory
	case BackendPostgres:
		cfg.StorageBackend = BackendPostgres
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND: %q (must be %q or %q)",
			backend, BackendMemory, BackendPostgres)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.LegacyHeaderAuth = getEnvBool("LEGACY_HEADER_AUTH", false)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitBlogCreate = getEnvInt("RATE_LIMIT_BLOG_CREATE", 10)
	cfg.PublishedPageLimit = getEnvInt("PUBLISHED_PAGE_LIMIT", 20)
	cfg.PublishedPageLimitMax = getEnvInt("PUBLISHED_PAGE_LIMIT_MAX", 100)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
