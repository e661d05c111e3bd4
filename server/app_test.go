// ABOUTME: Tests for the assembled HTTP stack: health, metrics, auth, CORS, and the editing API.
// ABOUTME: Also covers the request logger, the bearer middleware, and graceful shutdown.
package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Home:        t.TempDir(),
		Bind:        "127.0.0.1:0",
		Env:         "test",
		MaxSessions: 10,
		SessionTTL:  time.Hour,
		MaxHistory:  20,
	}
}

func newTestApp(t *testing.T, cfg *Config) *App {
	t.Helper()
	app, err := NewApp(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func serve(app *App, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	w := serve(app, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Content-Type"))
}

func TestAPIThroughStack(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	w := serve(app, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(app, httptest.NewRequest(http.MethodGet, "/api/scenes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = serve(app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok","sessions":1}`, w.Body.String())
}

func TestMetricsExposeRoutesAndCommands(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	serve(app, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	serve(app, httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil))

	w := serve(app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `topoedit_http_requests_total{method="POST",route="/api/sessions",status="201"} 1`)
	assert.Contains(t, body, `topoedit_http_requests_total{method="GET",route="/api/sessions/{id}",status="404"} 1`)
	assert.Contains(t, body, `topoedit_editor_commands_total{command="create_session",outcome="ok"} 1`)
	assert.Contains(t, body, `topoedit_sessions_open 1`)
}

func TestAuthProtectsAPI(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuthToken = "s3cret"
	app := newTestApp(t, cfg)

	w := serve(app, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = serve(app, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = serve(app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddlewareRejectsWrongToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := AuthMiddleware("right")(next)

	req := httptest.NewRequest(http.MethodGet, "/api/scenes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")

	req = httptest.NewRequest(http.MethodOptions, "/api/scenes", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig(t)
	cfg.CORSOrigins = []string{"http://localhost:3000"}
	cfg.AuthToken = "s3cret"
	app := newTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := serve(app, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEqual(t, http.StatusUnauthorized, w.Code)
}

func TestRequestLoggerWritesOneEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "ok")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/scenes", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/scenes", fields["path"])
	assert.EqualValues(t, http.StatusAccepted, fields["status"])
	assert.EqualValues(t, 2, fields["bytes"])
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		l, err := NewLogger(env)
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReportsBindFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bind = "127.0.0.1:-1"
	app := newTestApp(t, cfg)

	err := app.Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "serve:"))
}
