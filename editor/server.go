// ABOUTME: HTTP server struct with chi router, session store, scene store, and functional options
// ABOUTME: Configures the JSON editing API under /api and wires handler methods

package editor

import (
	"context"
	"net/http"

	"github.com/2389-research/topoedit/scene"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SceneStore persists named topologies between sessions.
type SceneStore interface {
	Save(ctx context.Context, sc *scene.Scene) error
	Get(ctx context.Context, id string) (*scene.Scene, error)
	List(ctx context.Context) ([]scene.Summary, error)
	Delete(ctx context.Context, id string) error
}

// CommandRecorder observes the outcome of every editing command.
type CommandRecorder interface {
	ObserveCommand(command string, err error)
}

// Renderer turns DOT text into an image format such as svg or png.
type Renderer interface {
	RenderDOTSource(ctx context.Context, dotText string, format string) ([]byte, error)
}

// ServerOption configures optional Server behavior.
type ServerOption func(*Server)

// WithScenes enables the save and scene routes backed by scenes.
func WithScenes(scenes SceneStore) ServerOption {
	return func(s *Server) {
		s.scenes = scenes
	}
}

// WithLogger sets the logger used for handler failures.
func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRenderer enables svg and png export through r.
func WithRenderer(r Renderer) ServerOption {
	return func(s *Server) {
		s.renderer = r
	}
}

// WithRecorder reports command outcomes to rec.
func WithRecorder(rec CommandRecorder) ServerOption {
	return func(s *Server) {
		s.recorder = rec
	}
}

// Server holds the chi router, the session store and the optional scene store.
type Server struct {
	router   chi.Router
	store    *Store
	scenes   SceneStore
	recorder CommandRecorder
	renderer Renderer
	logger   *zap.Logger
}

// NewServer creates a Server with all routes configured.
func NewServer(store *Store, opts ...ServerOption) *Server {
	s := &Server{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		// Session lifecycle
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleCloseSession)
		r.Get("/sessions/{id}/topology", s.handleGetTopology)
		r.Put("/sessions/{id}/topology", s.handlePutTopology)

		// Editing commands
		r.Post("/sessions/{id}/nodes", s.handleAddNode)
		r.Patch("/sessions/{id}/nodes/{nodeId}", s.handlePatchNode)
		r.Get("/sessions/{id}/nodes/{nodeId}/movable", s.handleMovable)
		r.Post("/sessions/{id}/translate", s.handleTranslate)
		r.Post("/sessions/{id}/edges", s.handleConnect)
		r.Patch("/sessions/{id}/edges/{edgeId}/style", s.handleEdgeStyle)
		r.Post("/sessions/{id}/groups", s.handleCreateGroup)
		r.Delete("/sessions/{id}/groups/{groupId}", s.handleUngroup)
		r.Post("/sessions/{id}/groups/recompute", s.handleRecompute)
		r.Post("/sessions/{id}/delete", s.handleDelete)
		r.Post("/sessions/{id}/paste", s.handlePaste)
		r.Post("/sessions/{id}/selection", s.handleSelect)

		// History
		r.Post("/sessions/{id}/undo", s.handleUndo)
		r.Post("/sessions/{id}/redo", s.handleRedo)
		r.Get("/sessions/{id}/history", s.handleHistory)
		r.Delete("/sessions/{id}/history", s.handleClearHistory)

		// Inspection
		r.Get("/sessions/{id}/validate", s.handleValidate)
		r.Get("/sessions/{id}/export", s.handleExport)

		// Scenes
		if s.scenes != nil {
			r.Post("/sessions/{id}/save", s.handleSaveScene)
			r.Get("/scenes", s.handleListScenes)
			r.Get("/scenes/{sceneId}", s.handleGetScene)
			r.Delete("/scenes/{sceneId}", s.handleDeleteScene)
		}
	})

	s.router = r
	return s
}

// ServeHTTP implements the http.Handler interface, delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) record(command string, err error) {
	if s.recorder != nil {
		s.recorder.ObserveCommand(command, err)
	}
}
