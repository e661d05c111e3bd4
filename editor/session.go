// ABOUTME: Editing session wrapping a topology graph, its undo/redo history, and the current selection.
// ABOUTME: Every command runs under the session lock and records one history snapshot on success.

package editor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2389-research/topoedit/dot"
	"github.com/2389-research/topoedit/geom"
	"github.com/2389-research/topoedit/history"
	"github.com/2389-research/topoedit/topo"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrUnknownFormat = errors.New("unknown export format")
)

// Session is one open topology. Fields other than ID and CreatedAt must be
// read through the accessor methods, which take the lock.
type Session struct {
	mu          sync.RWMutex
	ID          string
	Name        string
	SceneID     string
	graph       *topo.MemGraph
	history     *history.Manager
	selection   topo.Selection
	diagnostics []topo.Diagnostic
	CreatedAt   time.Time
	LastAccess  time.Time
}

// NewSession builds a session over doc, or over an empty canvas when doc is
// nil. The loaded state becomes the first history snapshot.
func NewSession(id string, doc *topo.Document, opts ...history.Option) (*Session, *topo.LoadReport, error) {
	g := topo.NewMemGraph()
	report := &topo.LoadReport{}
	if doc != nil {
		r, err := topo.Deserialize(g, doc)
		if err != nil {
			return nil, nil, err
		}
		report = r
	}

	now := time.Now()
	sess := &Session{
		ID:         id,
		graph:      g,
		history:    history.New(g, opts...),
		selection:  topo.NewSelection(),
		CreatedAt:  now,
		LastAccess: now,
	}
	sess.diagnostics = topo.Lint(topo.Serialize(g))
	return sess, report, nil
}

// RLock acquires a read lock for safe concurrent reads of session data.
func (sess *Session) RLock() {
	sess.mu.RLock()
}

// RUnlock releases a read lock.
func (sess *Session) RUnlock() {
	sess.mu.RUnlock()
}

// View is a consistent copy of the session state.
type View struct {
	ID          string                `json:"id"`
	Name        string                `json:"name,omitempty"`
	SceneID     string                `json:"sceneId,omitempty"`
	Topology    *topo.Document        `json:"topology"`
	Selection   []string              `json:"selection"`
	EdgeStyles  map[string]topo.Props `json:"edgeStyles,omitempty"`
	History     history.Status        `json:"history"`
	Diagnostics []topo.Diagnostic     `json:"diagnostics"`
}

// View returns the current state under a read lock.
func (sess *Session) View() View {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.view()
}

func (sess *Session) view() View {
	sel := make([]string, 0, len(sess.selection))
	for _, n := range sess.graph.Nodes() {
		if sess.selection.Has(n.ID) {
			sel = append(sel, n.ID)
		}
	}
	var styles map[string]topo.Props
	for _, e := range sess.graph.Edges() {
		if sess.selection.Has(e.ID) {
			sel = append(sel, e.ID)
		}
		if e.Highlight != nil {
			if styles == nil {
				styles = make(map[string]topo.Props)
			}
			styles[e.ID] = e.Highlight
		}
	}
	diags := sess.diagnostics
	if diags == nil {
		diags = []topo.Diagnostic{}
	}
	return View{
		ID:          sess.ID,
		Name:        sess.Name,
		SceneID:     sess.SceneID,
		Topology:    topo.Serialize(sess.graph),
		Selection:   sel,
		EdgeStyles:  styles,
		History:     sess.history.State(),
		Diagnostics: diags,
	}
}

// Topology serializes the current graph.
func (sess *Session) Topology() *topo.Document {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return topo.Serialize(sess.graph)
}

// Load replaces the graph with doc and records it as a new history entry.
func (sess *Session) Load(doc *topo.Document) (*topo.LoadReport, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	report, err := topo.Deserialize(sess.graph, doc)
	if err != nil {
		return nil, err
	}
	sess.selection = topo.NewSelection()
	sess.commit()
	return report, nil
}

// AddNode places a new node on the canvas.
func (sess *Session) AddNode(spec topo.NodeSpec) (topo.Node, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	n, err := topo.AddNode(sess.graph, spec)
	if err != nil {
		return topo.Node{}, err
	}
	sess.commit()
	return n, nil
}

// MoveNode drops a node at pos, honouring the current selection.
func (sess *Session) MoveNode(id string, pos geom.Point) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := topo.MoveNode(sess.graph, id, pos, sess.selection); err != nil {
		return err
	}
	sess.commit()
	return nil
}

// TranslateSelection shifts every selected element by (dx, dy).
func (sess *Session) TranslateSelection(dx, dy float64) []string {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	moved := topo.TranslateSelection(sess.graph, sess.selection, dx, dy)
	if len(moved) > 0 {
		sess.commit()
	}
	return moved
}

// CanMove reports whether id may be dragged with sel as the selection.
// A nil sel means the session's current selection.
func (sess *Session) CanMove(id string, sel topo.Selection) bool {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	if sel == nil {
		sel = sess.selection
	}
	return topo.CanMove(sess.graph, id, sel)
}

// UpdateNode edits a node's name, size, data or attributes.
func (sess *Session) UpdateNode(id string, u topo.NodeUpdate) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := topo.UpdateNode(sess.graph, id, u); err != nil {
		return err
	}
	sess.commit()
	return nil
}

// Connect adds an edge between two normal nodes.
func (sess *Session) Connect(source, target string, attrs topo.Props) (topo.Edge, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	e, err := topo.Connect(sess.graph, source, target, attrs)
	if err != nil {
		return topo.Edge{}, err
	}
	sess.commit()
	return e, nil
}

// SetEdgeStyle applies a custom style override to an edge.
func (sess *Session) SetEdgeStyle(id string, s topo.EdgeStyle) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := topo.SetEdgeStyle(sess.graph, id, s); err != nil {
		return err
	}
	sess.commit()
	return nil
}

// CreateGroup groups the given normal nodes under a new named group.
func (sess *Session) CreateGroup(name string, memberIDs []string) (topo.Node, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	grp, err := topo.CreateGroup(sess.graph, name, memberIDs)
	if err != nil {
		return topo.Node{}, err
	}
	sess.commit()
	return grp, nil
}

// Ungroup dissolves a group, keeping its members.
func (sess *Session) Ungroup(groupID string) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := topo.Ungroup(sess.graph, groupID); err != nil {
		return err
	}
	sess.commit()
	return nil
}

// RecomputeGroups refits every non-empty group around its members and
// returns how many were refit.
func (sess *Session) RecomputeGroups() int {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	n := topo.RecomputeAll(sess.graph)
	topo.EnforceLayering(sess.graph)
	sess.commit()
	return n
}

// Delete removes the given elements and returns the ids actually removed.
func (sess *Session) Delete(ids []string) []string {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	removed := topo.Delete(sess.graph, ids)
	if len(removed) > 0 {
		sess.commit()
	}
	return removed
}

// Paste copies the given elements, offset from the originals, and selects
// the copies.
func (sess *Session) Paste(ids []string) ([]string, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	created, err := topo.Paste(sess.graph, ids, topo.PasteOffset)
	if err != nil {
		return nil, err
	}
	sess.selection = topo.NewSelection(created...)
	sess.applySelection()
	sess.commit()
	return created, nil
}

// Select replaces the selection. Unknown ids are ignored.
func (sess *Session) Select(ids []string) []string {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.selection = topo.NewSelection(ids...)
	sess.applySelection()
	return sess.view().Selection
}

// SelectAll selects every normal node and edge.
func (sess *Session) SelectAll() []string {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.selection = topo.NewSelection(topo.SelectAll(sess.graph)...)
	sess.applySelection()
	return sess.view().Selection
}

// Undo restores the previous snapshot.
func (sess *Session) Undo() error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.history.Undo() {
		return ErrNothingToUndo
	}
	sess.afterRestore()
	return nil
}

// Redo restores the snapshot that was last undone.
func (sess *Session) Redo() error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.history.Redo() {
		return ErrNothingToRedo
	}
	sess.afterRestore()
	return nil
}

// HistoryState summarizes the undo/redo position.
func (sess *Session) HistoryState() history.Status {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.history.State()
}

// Snapshots lists the retained history entries, oldest first.
func (sess *Session) Snapshots() []history.Snapshot {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.history.Snapshots()
}

// ClearHistory drops all snapshots and re-baselines on the current graph.
func (sess *Session) ClearHistory() history.Status {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.history.Clear()
	sess.history.SaveState()
	return sess.history.State()
}

// Validate re-runs the linter and returns the diagnostics.
func (sess *Session) Validate() []topo.Diagnostic {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.diagnostics = topo.Lint(topo.Serialize(sess.graph))
	return sess.diagnostics
}

// Export renders the topology as dot, yaml or json and returns the body
// with its content type.
func (sess *Session) Export(format string) ([]byte, string, error) {
	sess.mu.RLock()
	doc := topo.Serialize(sess.graph)
	name := sess.Name
	sess.mu.RUnlock()

	switch format {
	case "", "json":
		data, err := topo.EncodeDocument(doc)
		return data, "application/json", err
	case "yaml":
		data, err := topo.EncodeYAML(doc)
		return data, "application/yaml", err
	case "dot":
		if name == "" {
			name = "topology"
		}
		return []byte(dot.Serialize(dot.FromDocument(name, doc))), "text/vnd.graphviz", nil
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// AttachScene records the scene the session was loaded from or saved to.
func (sess *Session) AttachScene(sceneID, name string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.SceneID = sceneID
	sess.Name = name
}

// SceneInfo returns the attached scene id and name.
func (sess *Session) SceneInfo() (string, string) {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.SceneID, sess.Name
}

// commit restyles the selection, then records a snapshot and refreshes
// diagnostics after a mutation.
func (sess *Session) commit() {
	sess.applySelection()
	sess.history.SaveState()
	sess.diagnostics = topo.Lint(topo.Serialize(sess.graph))
}

// afterRestore re-applies what survives of the selection to the restored graph.
func (sess *Session) afterRestore() {
	sess.pruneSelection()
	sess.applySelection()
	sess.diagnostics = topo.Lint(topo.Serialize(sess.graph))
}

func (sess *Session) pruneSelection() {
	for id := range sess.selection {
		_, isNode := sess.graph.Node(id)
		_, isEdge := sess.graph.Edge(id)
		if !isNode && !isEdge {
			delete(sess.selection, id)
		}
	}
}

func (sess *Session) applySelection() {
	sess.pruneSelection()
	topo.ApplySelection(sess.graph, sess.selection)
}
