// ABOUTME: Server configuration loaded from TOPOEDIT_* environment variables.
// ABOUTME: Enforces security constraint: remote access requires auth token.
package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/2389-research/topoedit/history"
)

// ConfigError represents configuration validation errors.
var (
	ErrRemoteWithoutToken = errors.New(
		"TOPOEDIT_ALLOW_REMOTE is true but TOPOEDIT_AUTH_TOKEN is not set; refusing to start without authentication",
	)
	ErrNonLoopbackBind = errors.New(
		"TOPOEDIT_BIND is a non-loopback address but TOPOEDIT_ALLOW_REMOTE is not true; set TOPOEDIT_ALLOW_REMOTE=true and TOPOEDIT_AUTH_TOKEN to allow remote access",
	)
	ErrInvalidSetting = errors.New("invalid configuration value")
)

// Config holds server configuration loaded from environment variables.
type Config struct {
	Home        string        // Data directory (TOPOEDIT_HOME, default: ~/.topoedit)
	Bind        string        // Socket address (TOPOEDIT_BIND, default: 127.0.0.1:7780)
	Env         string        // Deployment environment (TOPOEDIT_ENV, default: development)
	AllowRemote bool          // Allow non-loopback connections (TOPOEDIT_ALLOW_REMOTE, default: false)
	AuthToken   string        // Bearer token for API auth (TOPOEDIT_AUTH_TOKEN, optional)
	MaxSessions int           // Open session cap (TOPOEDIT_MAX_SESSIONS, default: 100)
	SessionTTL  time.Duration // Idle session lifetime (TOPOEDIT_SESSION_TTL, default: 1h)
	MaxHistory  int           // Snapshots kept per session (TOPOEDIT_MAX_HISTORY, default: 50)
	CORSOrigins []string      // Allowed browser origins (TOPOEDIT_CORS_ORIGINS, comma-separated)
}

// ConfigFromEnv loads configuration from TOPOEDIT_* environment variables with sensible defaults.
func ConfigFromEnv() (*Config, error) {
	home := envOrDefault("TOPOEDIT_HOME", "")
	if home == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "/tmp"
		}
		home = filepath.Join(homeDir, ".topoedit")
	}

	bind := envOrDefault("TOPOEDIT_BIND", "127.0.0.1:7780")
	env := envOrDefault("TOPOEDIT_ENV", "development")

	allowRemote := false
	if v := os.Getenv("TOPOEDIT_ALLOW_REMOTE"); v == "true" || v == "1" || v == "yes" {
		allowRemote = true
	}

	authToken := os.Getenv("TOPOEDIT_AUTH_TOKEN")

	maxSessions, err := envInt("TOPOEDIT_MAX_SESSIONS", 100)
	if err != nil {
		return nil, err
	}
	maxHistory, err := envInt("TOPOEDIT_MAX_HISTORY", history.DefaultMaxHistory)
	if err != nil {
		return nil, err
	}
	ttl := time.Hour
	if v := os.Getenv("TOPOEDIT_SESSION_TTL"); v != "" {
		ttl, err = time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("%w: TOPOEDIT_SESSION_TTL=%s", ErrInvalidSetting, v)
		}
	}

	var origins []string
	for _, o := range strings.Split(os.Getenv("TOPOEDIT_CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	// Security: remote access requires auth token
	if allowRemote && authToken == "" {
		return nil, ErrRemoteWithoutToken
	}

	// Security: refuse non-loopback binds unless explicitly opting into remote access.
	// Only 127.0.0.0/8, ::1, and "localhost" are considered safe.
	if !allowRemote {
		if host, _, err := net.SplitHostPort(bind); err == nil {
			ip := net.ParseIP(host)
			switch {
			case ip != nil && ip.IsLoopback():
			case host == "localhost":
			default:
				// Empty host, unspecified and routable addresses, other hostnames
				return nil, fmt.Errorf("%w: TOPOEDIT_BIND=%s", ErrNonLoopbackBind, bind)
			}
		}
	}

	return &Config{
		Home:        home,
		Bind:        bind,
		Env:         env,
		AllowRemote: allowRemote,
		AuthToken:   authToken,
		MaxSessions: maxSessions,
		SessionTTL:  ttl,
		MaxHistory:  maxHistory,
		CORSOrigins: origins,
	}, nil
}

// ScenePath is the SQLite database holding saved scenes.
func (c *Config) ScenePath() string {
	return filepath.Join(c.Home, "scenes.db")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s=%s", ErrInvalidSetting, key, v)
	}
	return n, nil
}
