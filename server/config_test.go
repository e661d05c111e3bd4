// ABOUTME: Tests for environment-based configuration and the loopback/auth safety rules.
// ABOUTME: Each test clears the TOPOEDIT_* variables it depends on via t.Setenv.
package server

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TOPOEDIT_HOME", "TOPOEDIT_BIND", "TOPOEDIT_ENV", "TOPOEDIT_ALLOW_REMOTE",
		"TOPOEDIT_AUTH_TOKEN", "TOPOEDIT_MAX_SESSIONS", "TOPOEDIT_SESSION_TTL",
		"TOPOEDIT_MAX_HISTORY", "TOPOEDIT_CORS_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("TOPOEDIT_HOME", "/data/topoedit")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/data/topoedit", cfg.Home)
	assert.Equal(t, "127.0.0.1:7780", cfg.Bind)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.AllowRemote)
	assert.Equal(t, 100, cfg.MaxSessions)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 50, cfg.MaxHistory)
	assert.Empty(t, cfg.CORSOrigins)
	assert.Equal(t, filepath.Join("/data/topoedit", "scenes.db"), cfg.ScenePath())
}

func TestConfigOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("TOPOEDIT_BIND", "localhost:9000")
	t.Setenv("TOPOEDIT_ENV", "production")
	t.Setenv("TOPOEDIT_MAX_SESSIONS", "5")
	t.Setenv("TOPOEDIT_SESSION_TTL", "15m")
	t.Setenv("TOPOEDIT_MAX_HISTORY", "20")
	t.Setenv("TOPOEDIT_CORS_ORIGINS", "http://localhost:3000, https://range.example.com")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", cfg.Bind)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 5, cfg.MaxSessions)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 20, cfg.MaxHistory)
	assert.Equal(t, []string{"http://localhost:3000", "https://range.example.com"}, cfg.CORSOrigins)
}

func TestConfigRejectsBadNumbers(t *testing.T) {
	for key, val := range map[string]string{
		"TOPOEDIT_MAX_SESSIONS": "many",
		"TOPOEDIT_MAX_HISTORY":  "0",
		"TOPOEDIT_SESSION_TTL":  "soon",
	} {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(key, val)
			_, err := ConfigFromEnv()
			assert.ErrorIs(t, err, ErrInvalidSetting)
		})
	}
}

func TestConfigRemoteRequiresToken(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("TOPOEDIT_ALLOW_REMOTE", "true")

	_, err := ConfigFromEnv()
	assert.ErrorIs(t, err, ErrRemoteWithoutToken)

	t.Setenv("TOPOEDIT_AUTH_TOKEN", "secret")
	t.Setenv("TOPOEDIT_BIND", "0.0.0.0:7780")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.AllowRemote)
}

func TestConfigRefusesNonLoopbackBind(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:7780":   true,
		"127.0.0.2:7780":   true,
		"[::1]:7780":       true,
		"localhost:7780":   true,
		"0.0.0.0:7780":     false,
		":7780":            false,
		"192.168.1.4:7780": false,
		"range.lab:7780":   false,
	}
	for bind, ok := range cases {
		t.Run(bind, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv("TOPOEDIT_BIND", bind)
			_, err := ConfigFromEnv()
			if ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrNonLoopbackBind)
			}
		})
	}
}
