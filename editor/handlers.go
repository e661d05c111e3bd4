// ABOUTME: HTTP handler methods for the editing API
// ABOUTME: Covers session lifecycle, editing commands, undo/redo, export, validation, and scenes

package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/2389-research/topoedit/geom"
	"github.com/2389-research/topoedit/history"
	"github.com/2389-research/topoedit/render"
	"github.com/2389-research/topoedit/scene"
	"github.com/2389-research/topoedit/topo"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// maxBodySize caps request bodies at 10MB.
const maxBodySize = 10 << 20

var (
	errMalformedBody  = errors.New("malformed request body")
	errInvalidRequest = errors.New("invalid request")
	errBodyTooLarge   = errors.New("request body too large (max 10MB)")
	errSessionMissing = errors.New("session not found")
)

var validate = validator.New()

type errorResponse struct {
	Error string `json:"error"`
}

// mutationResponse is returned by every editing command: the ids the
// command produced or touched plus the resulting session state.
type mutationResponse struct {
	IDs []string `json:"ids"`
	View
}

type createdResponse struct {
	View
	Report *topo.LoadReport `json:"report,omitempty"`
}

type nodePatchRequest struct {
	Position *geom.Point `json:"position,omitempty"`
	topo.NodeUpdate
}

type translateRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type connectRequest struct {
	Source string     `json:"source" validate:"required"`
	Target string     `json:"target" validate:"required"`
	Attrs  topo.Props `json:"attrs,omitempty"`
}

type groupRequest struct {
	Name    string   `json:"name" validate:"max=200"`
	Members []string `json:"members"`
}

type idsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type selectionRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

type saveRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type historyResponse struct {
	history.Status
	Snapshots []history.Snapshot `json:"snapshots"`
}

type movableResponse struct {
	ID      string `json:"id"`
	Movable bool   `json:"movable"`
}

// handleCreateSession opens a session from a posted document, a stored
// scene (?scene=<id>), or an empty canvas when neither is given.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var (
		doc     *topo.Document
		sc      *scene.Scene
		sceneID = r.URL.Query().Get("scene")
	)

	if sceneID != "" {
		if s.scenes == nil {
			s.writeError(w, r, fmt.Errorf("%w: %s", scene.ErrNotFound, sceneID))
			return
		}
		found, err := s.scenes.Get(r.Context(), sceneID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		sc = found
		doc = found.Doc
	} else {
		body, err := readBody(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			doc, err = topo.DecodeDocument(body)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
		}
	}

	sess, report, err := s.store.Create(doc)
	s.record("create_session", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sc != nil {
		sess.AttachScene(sc.ID, sc.Name)
	}
	writeJSON(w, http.StatusCreated, createdResponse{View: sess.View(), Report: report})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.store.Delete(id) {
		s.writeError(w, r, errSessionMissing)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetTopology(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Topology())
}

// handlePutTopology replaces the session's graph with the posted document.
func (s *Server) handlePutTopology(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := topo.DecodeDocument(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := sess.Load(doc)
	s.record("load", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createdResponse{View: sess.View(), Report: report})
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req topo.NodeSpec
	if !s.decode(w, r, &req) {
		return
	}
	n, err := sess.AddNode(req)
	s.record("add_node", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mutationResponse{IDs: []string{n.ID}, View: sess.View()})
}

// handlePatchNode moves a node when a position is given, otherwise edits it.
func (s *Server) handlePatchNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	nodeID := chi.URLParam(r, "nodeId")
	var req nodePatchRequest
	if !s.decode(w, r, &req) {
		return
	}

	u := req.NodeUpdate
	edits := u.Name != nil || u.Size != nil || u.Data != nil || u.Attrs != nil
	if req.Position != nil && edits {
		s.writeError(w, r, fmt.Errorf("%w: position cannot be combined with other changes", errInvalidRequest))
		return
	}

	var err error
	if req.Position != nil {
		err = sess.MoveNode(nodeID, *req.Position)
		s.record("move_node", err)
	} else {
		err = sess.UpdateNode(nodeID, u)
		s.record("update_node", err)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{IDs: []string{nodeID}, View: sess.View()})
}

// handleMovable answers whether a node may be dragged. The selection comes
// from ?selected=a,b when present, else from the session.
func (s *Server) handleMovable(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	nodeID := chi.URLParam(r, "nodeId")

	var sel topo.Selection
	if r.URL.Query().Has("selected") {
		sel = topo.NewSelection(splitIDs(r.URL.Query().Get("selected"))...)
	}
	writeJSON(w, http.StatusOK, movableResponse{ID: nodeID, Movable: sess.CanMove(nodeID, sel)})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req translateRequest
	if !s.decode(w, r, &req) {
		return
	}
	moved := sess.TranslateSelection(req.DX, req.DY)
	s.record("translate", nil)
	writeJSON(w, http.StatusOK, mutationResponse{IDs: nonNil(moved), View: sess.View()})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req connectRequest
	if !s.decode(w, r, &req) {
		return
	}
	e, err := sess.Connect(req.Source, req.Target, req.Attrs)
	s.record("connect", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mutationResponse{IDs: []string{e.ID}, View: sess.View()})
}

func (s *Server) handleEdgeStyle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	edgeID := chi.URLParam(r, "edgeId")
	var req topo.EdgeStyle
	if !s.decode(w, r, &req) {
		return
	}
	err := sess.SetEdgeStyle(edgeID, req)
	s.record("edge_style", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{IDs: []string{edgeID}, View: sess.View()})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req groupRequest
	if !s.decode(w, r, &req) {
		return
	}
	grp, err := sess.CreateGroup(req.Name, req.Members)
	s.record("create_group", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mutationResponse{IDs: []string{grp.ID}, View: sess.View()})
}

func (s *Server) handleUngroup(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "groupId")
	err := sess.Ungroup(groupID)
	s.record("ungroup", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{IDs: []string{groupID}, View: sess.View()})
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.RecomputeGroups()
	s.record("recompute", nil)
	writeJSON(w, http.StatusOK, mutationResponse{IDs: []string{}, View: sess.View()})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req idsRequest
	if !s.decode(w, r, &req) {
		return
	}
	removed := sess.Delete(req.IDs)
	s.record("delete", nil)
	writeJSON(w, http.StatusOK, mutationResponse{IDs: nonNil(removed), View: sess.View()})
}

func (s *Server) handlePaste(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req idsRequest
	if !s.decode(w, r, &req) {
		return
	}
	created, err := sess.Paste(req.IDs)
	s.record("paste", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mutationResponse{IDs: nonNil(created), View: sess.View()})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	var sel []string
	if req.All {
		sel = sess.SelectAll()
	} else {
		sel = sess.Select(req.IDs)
	}
	writeJSON(w, http.StatusOK, mutationResponse{IDs: sel, View: sess.View()})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	err := sess.Undo()
	s.record("undo", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	err := sess.Redo()
	s.record("redo", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.RLock()
	resp := historyResponse{Status: sess.history.State(), Snapshots: sess.history.Snapshots()}
	sess.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	st := sess.ClearHistory()
	s.record("clear_history", nil)
	writeJSON(w, http.StatusOK, st)
}

// handleValidate re-runs the linter and returns diagnostics.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	diags := sess.Validate()
	if diags == nil {
		diags = []topo.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":       !topo.HasErrors(diags),
		"diagnostics": diags,
	})
}

// handleExport returns the topology as a downloadable file.
// Sanitizes the scene name for use as a filename to prevent path traversal and injection.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	body, contentType, err := s.export(r, sess, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	_, name := sess.SceneInfo()
	ext := format
	if ext == "" {
		ext = "json"
	}
	filename := sanitizeFilename(name) + "." + ext

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// export renders image formats through the configured renderer and leaves
// the document formats to the session.
func (s *Server) export(r *http.Request, sess *Session, format string) ([]byte, string, error) {
	if format != "svg" && format != "png" {
		return sess.Export(format)
	}
	if s.renderer == nil {
		return nil, "", fmt.Errorf("%w: %s rendering is not enabled", ErrUnknownFormat, format)
	}
	src, _, err := sess.Export("dot")
	if err != nil {
		return nil, "", err
	}
	out, err := s.renderer.RenderDOTSource(r.Context(), string(src), format)
	if err != nil {
		return nil, "", err
	}
	return out, render.ContentType(format), nil
}

// handleSaveScene persists the session's topology, updating the scene it
// was opened from when there is one.
func (s *Server) handleSaveScene(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req saveRequest
	if !s.decode(w, r, &req) {
		return
	}

	sceneID, _ := sess.SceneInfo()
	sc := &scene.Scene{ID: sceneID, Name: req.Name, Description: req.Description, Doc: sess.Topology()}
	if sceneID != "" {
		if existing, err := s.scenes.Get(r.Context(), sceneID); err == nil {
			sc.CreatedAt = existing.CreatedAt
		}
	}
	err := s.scenes.Save(r.Context(), sc)
	s.record("save", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess.AttachScene(sc.ID, sc.Name)
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	list, err := s.scenes.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scenes.Get(r.Context(), chi.URLParam(r, "sceneId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleDeleteScene(w http.ResponseWriter, r *http.Request) {
	if err := s.scenes.Delete(r.Context(), chi.URLParam(r, "sceneId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the {id} URL parameter, writing a 404 when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, r, errSessionMissing)
		return nil, false
	}
	return sess, true
}

// decode reads a JSON body into v and validates it, writing the error
// response itself when either step fails.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errMalformedBody, err))
		return false
	}
	if err := validate.Struct(v); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %s", errInvalidRequest, formatValidation(err)))
		return false
	}
	return true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return body, nil
}

func formatValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errSessionMissing),
		errors.Is(err, topo.ErrNotFound),
		errors.Is(err, scene.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, topo.ErrNotMovable),
		errors.Is(err, topo.ErrDuplicateID),
		errors.Is(err, ErrNothingToUndo),
		errors.Is(err, ErrNothingToRedo):
		return http.StatusConflict
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, topo.ErrInvalidDocument),
		errors.Is(err, topo.ErrMissingID),
		errors.Is(err, topo.ErrMissingEndpoint),
		errors.Is(err, topo.ErrSelfLoop),
		errors.Is(err, topo.ErrGroupEndpoint),
		errors.Is(err, topo.ErrInvalidParent),
		errors.Is(err, topo.ErrEmptyGroup),
		errors.Is(err, topo.ErrInvalidMember),
		errors.Is(err, ErrUnknownFormat),
		errors.Is(err, render.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, render.ErrGraphvizUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func splitIDs(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// sanitizeFilename converts a scene name into a safe filename base.
func sanitizeFilename(name string) string {
	if name == "" {
		return "topology"
	}
	safe := unsafeFilenameChars.ReplaceAllString(name, "_")
	if len(safe) > 100 {
		safe = safe[:100]
	}
	return safe
}
