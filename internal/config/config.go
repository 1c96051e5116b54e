// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Media library
	MediaRoot        string
	VideoExtensions  []string
	ImageExtensions  []string
	SearchMaxDepth   int
	SearchMaxResults int

	// Database (operator account + albums)
	DatabaseURL string

	// TLS (optional; if both set, the server uses HTTPS)
	TLSCertFile string
	TLSKeyFile  string

	// Auth
	JWTSecret        string
	OperatorUsername string
	OperatorPassword string
}

// DefaultVideoExtensions is the video allow-list used when
// VIDEO_EXTENSIONS is not set.
var DefaultVideoExtensions = []string{
	"mp4", "mkv", "webm", "avi", "mov", "m4v", "mpg", "mpeg", "ts", "flv", "wmv",
}

// DefaultImageExtensions is the image allow-list used when
// IMAGE_EXTENSIONS is not set.
var DefaultImageExtensions = []string{
	"jpg", "jpeg", "png", "gif", "webp", "bmp", "svg", "avif", "heic", "tiff",
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	searchMaxDepth, err := envInt("SEARCH_MAX_DEPTH", 10)
	if err != nil {
		return nil, err
	}
	searchMaxResults, err := envInt("SEARCH_MAX_RESULTS", 100)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddr:       envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:      envOr("METRICS_ADDR", ":9090"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        envOr("LOG_FORMAT", "json"),
		MediaRoot:        envOr("MEDIA_ROOT", ""),
		VideoExtensions:  envList("VIDEO_EXTENSIONS", DefaultVideoExtensions),
		ImageExtensions:  envList("IMAGE_EXTENSIONS", DefaultImageExtensions),
		SearchMaxDepth:   searchMaxDepth,
		SearchMaxResults: searchMaxResults,
		DatabaseURL:      envOr("DATABASE_URL", ""),
		TLSCertFile:      envOr("TLS_CERT_FILE", ""),
		TLSKeyFile:       envOr("TLS_KEY_FILE", ""),
		JWTSecret:        envOr("JWT_SECRET", ""),
		OperatorUsername: envOr("OPERATOR_USERNAME", "operator"),
		OperatorPassword: envOr("OPERATOR_PASSWORD", ""),
	}

	if cfg.MediaRoot == "" {
		return nil, fmt.Errorf("MEDIA_ROOT is required")
	}
	abs, err := filepath.Abs(cfg.MediaRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve MEDIA_ROOT: %w", err)
	}
	cfg.MediaRoot = abs

	info, err := os.Stat(cfg.MediaRoot)
	if err != nil {
		return nil, fmt.Errorf("stat MEDIA_ROOT %s: %w", cfg.MediaRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("MEDIA_ROOT %s is not a directory", cfg.MediaRoot)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.SearchMaxDepth < 0 {
		return nil, fmt.Errorf("SEARCH_MAX_DEPTH must be >= 0")
	}
	if cfg.SearchMaxResults <= 0 {
		return nil, fmt.Errorf("SEARCH_MAX_RESULTS must be > 0")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer: %q", key, v)
	}
	return i, nil
}

// envList parses a comma-separated extension list. Entries are
// lowercased and stripped of a leading dot, so ".MP4, mkv" works.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(part)), ".")
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
