// ABOUTME: Application wiring: session store, scene database, metrics, and the HTTP middleware stack.
// ABOUTME: Run serves until the context is cancelled, then shuts down gracefully.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/2389-research/topoedit/editor"
	"github.com/2389-research/topoedit/history"
	"github.com/2389-research/topoedit/render"
	"github.com/2389-research/topoedit/scene"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const (
	cleanupInterval = time.Minute
	shutdownTimeout = 5 * time.Second
	renderCacheTTL  = 10 * time.Minute
)

// App owns the long-lived server components.
type App struct {
	cfg     *Config
	logger  *zap.Logger
	store   *editor.Store
	scenes  *scene.SQLiteStore
	metrics *Metrics
	renders *render.Cache
	handler http.Handler
}

// NewApp creates the data directory, opens the scene database and builds
// the HTTP handler.
func NewApp(cfg *Config, logger *zap.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.Home, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	scenes, err := scene.Open(cfg.ScenePath())
	if err != nil {
		return nil, err
	}

	store := editor.NewStore(cfg.MaxSessions, cfg.SessionTTL,
		history.WithMaxHistory(cfg.MaxHistory),
		history.WithLogger(logger.Named("history")),
	)
	a := &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		scenes:  scenes,
		metrics: NewMetrics("topoedit", store.Len),
		renders: render.NewCache(render.RenderDOTSource, renderCacheTTL),
	}
	a.handler = a.routes()
	return a, nil
}

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(a.logger))
	r.Use(a.metrics.Middleware)

	if len(a.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   a.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if a.cfg.AuthToken != "" {
		r.Use(AuthMiddleware(a.cfg.AuthToken))
	}

	r.Get("/health", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Mount("/", editor.NewServer(a.store,
		editor.WithScenes(a.scenes),
		editor.WithLogger(a.logger.Named("editor")),
		editor.WithRecorder(a.metrics),
		editor.WithRenderer(a.renders),
	))
	return r
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, a.store.Len())
}

// Run serves on the configured bind address until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	stopCleanup := a.store.StartCleanup(cleanupInterval)
	defer stopCleanup()

	srv := &http.Server{
		Addr:              a.cfg.Bind,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", a.cfg.Bind), zap.String("home", a.cfg.Home))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the scene database.
func (a *App) Close() error {
	return a.scenes.Close()
}
