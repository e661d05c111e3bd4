// ABOUTME: Graph handle abstraction consumed by the core plus the in-memory MemGraph implementation.
// ABOUTME: MemGraph keeps insertion order, enforces edge and parent invariants, and emits change events.
package topo

import (
	"errors"
	"fmt"
	"slices"

	"github.com/2389-research/topoedit/geom"
)

var (
	ErrDuplicateID     = errors.New("duplicate element id")
	ErrMissingID       = errors.New("element id is required")
	ErrMissingEndpoint = errors.New("edge endpoint does not exist")
	ErrSelfLoop        = errors.New("edge cannot connect a node to itself")
	ErrGroupEndpoint   = errors.New("groups are not connectable")
	ErrInvalidParent   = errors.New("parent must reference an existing group")
)

// Graph is the rendering-surface handle the core operates on. Lookups return
// copies; every mutation goes through a setter so the surface can react.
// Setters return false when id does not resolve to an element they apply to.
type Graph interface {
	Nodes() []Node
	Edges() []Edge
	Node(id string) (Node, bool)
	Edge(id string) (Edge, bool)

	AddNode(n Node) error
	AddEdge(e Edge) error
	Remove(id string) bool
	Clear()

	SetBounds(id string, r geom.Rect) bool
	SetZIndex(id string, z int) bool
	SetParent(id, parent string) bool
	SetName(id, name string) bool
	SetData(id string, data Props) bool
	SetAttrs(id string, attrs Props) bool
	SetRouting(id string, router, connector *Strategy) bool
	SetEdgeStyle(id string, custom bool, customAttrs Props) bool
	SetHighlight(id string, line Props) bool

	CellsBBox(ids []string) (geom.Rect, bool)
}

// ChangeOp names a structural mutation reported to observers.
type ChangeOp string

const (
	ChangeAdded   ChangeOp = "added"
	ChangeRemoved ChangeOp = "removed"
	ChangeUpdated ChangeOp = "updated"
	ChangeCleared ChangeOp = "cleared"
)

// Change describes one mutation of a MemGraph.
type Change struct {
	Op   ChangeOp
	ID   string
	Kind Kind
}

// MemGraph is an in-memory Graph. It is not safe for concurrent use; callers
// that share one across goroutines must serialize access.
type MemGraph struct {
	nodes     map[string]*Node
	edges     map[string]*Edge
	nodeOrder []string
	edgeOrder []string
	observer  func(Change)
}

// NewMemGraph creates an empty graph.
func NewMemGraph() *MemGraph {
	return &MemGraph{
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
	}
}

// OnChange registers fn to be called after every mutation. Passing nil
// removes the observer.
func (g *MemGraph) OnChange(fn func(Change)) {
	g.observer = fn
}

func (g *MemGraph) emit(op ChangeOp, id string, kind Kind) {
	if g.observer != nil {
		g.observer(Change{Op: op, ID: id, Kind: kind})
	}
}

// Nodes returns every node in insertion order.
func (g *MemGraph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id].clone())
	}
	return out
}

// Edges returns every edge in insertion order.
func (g *MemGraph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		out = append(out, g.edges[id].clone())
	}
	return out
}

// Node looks up a node by id.
func (g *MemGraph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Edge looks up an edge by id.
func (g *MemGraph) Edge(id string) (Edge, bool) {
	e, ok := g.edges[id]
	if !ok {
		return Edge{}, false
	}
	return e.clone(), true
}

func (g *MemGraph) exists(id string) bool {
	_, n := g.nodes[id]
	_, e := g.edges[id]
	return n || e
}

// AddNode inserts a node. Groups are never draggable and may not have a parent.
func (g *MemGraph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrMissingID
	}
	if g.exists(n.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
	}
	if n.Kind == "" {
		n.Kind = KindNormal
	}
	n.Draggable = !n.IsGroup()
	if n.IsGroup() {
		n.Type = TypeGroup
		n.Parent = ""
	}
	if n.Parent != "" {
		if p, ok := g.nodes[n.Parent]; !ok || !p.IsGroup() {
			return fmt.Errorf("%w: %s", ErrInvalidParent, n.Parent)
		}
	}
	n = n.clone()
	n.Data = stripReserved(n.Data)
	g.nodes[n.ID] = &n
	g.nodeOrder = append(g.nodeOrder, n.ID)
	g.emit(ChangeAdded, n.ID, n.Kind)
	return nil
}

// AddEdge inserts an edge between two existing non-group nodes. Missing
// router or connector strategies default to Normal.
func (g *MemGraph) AddEdge(e Edge) error {
	if e.ID == "" {
		return ErrMissingID
	}
	if g.exists(e.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	if err := g.checkEndpoints(e.Source, e.Target); err != nil {
		return err
	}
	e = e.clone()
	if e.Router == nil {
		e.Router = &Strategy{Name: Normal}
	}
	if e.Connector == nil {
		e.Connector = &Strategy{Name: Normal}
	}
	g.edges[e.ID] = &e
	g.edgeOrder = append(g.edgeOrder, e.ID)
	g.emit(ChangeAdded, e.ID, KindEdge)
	return nil
}

func (g *MemGraph) checkEndpoints(source, target string) error {
	if source == target {
		return fmt.Errorf("%w: %s", ErrSelfLoop, source)
	}
	for _, id := range []string{source, target} {
		n, ok := g.nodes[id]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingEndpoint, id)
		}
		if n.IsGroup() {
			return fmt.Errorf("%w: %s", ErrGroupEndpoint, id)
		}
	}
	return nil
}

// Remove deletes an element. Removing a node also removes its connected
// edges; removing a group clears the parent of each of its members.
func (g *MemGraph) Remove(id string) bool {
	if e, ok := g.edges[id]; ok {
		g.removeEdge(e.ID)
		return true
	}
	n, ok := g.nodes[id]
	if !ok {
		return false
	}

	for _, eid := range slices.Clone(g.edgeOrder) {
		e := g.edges[eid]
		if e.Source == id || e.Target == id {
			g.removeEdge(eid)
		}
	}
	if n.IsGroup() {
		for _, mid := range g.nodeOrder {
			if m := g.nodes[mid]; m.Parent == id {
				m.Parent = ""
				g.emit(ChangeUpdated, mid, m.Kind)
			}
		}
	}

	delete(g.nodes, id)
	g.nodeOrder = slices.DeleteFunc(g.nodeOrder, func(s string) bool { return s == id })
	g.emit(ChangeRemoved, id, n.Kind)
	return true
}

func (g *MemGraph) removeEdge(id string) {
	delete(g.edges, id)
	g.edgeOrder = slices.DeleteFunc(g.edgeOrder, func(s string) bool { return s == id })
	g.emit(ChangeRemoved, id, KindEdge)
}

// Clear removes every element.
func (g *MemGraph) Clear() {
	g.nodes = make(map[string]*Node)
	g.edges = make(map[string]*Edge)
	g.nodeOrder = nil
	g.edgeOrder = nil
	g.emit(ChangeCleared, "", "")
}

// SetBounds sets a node's position and size.
func (g *MemGraph) SetBounds(id string, r geom.Rect) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	if n.Bounds != r {
		n.Bounds = r
		g.emit(ChangeUpdated, id, n.Kind)
	}
	return true
}

// SetZIndex sets the stacking order of a node or edge.
func (g *MemGraph) SetZIndex(id string, z int) bool {
	if n, ok := g.nodes[id]; ok {
		if n.ZIndex != z {
			n.ZIndex = z
			g.emit(ChangeUpdated, id, n.Kind)
		}
		return true
	}
	if e, ok := g.edges[id]; ok {
		if e.ZIndex != z {
			e.ZIndex = z
			g.emit(ChangeUpdated, id, KindEdge)
		}
		return true
	}
	return false
}

// SetParent links a normal node to a group, or unlinks it when parent is "".
// Returns false when the node is missing or a group, or the parent is not a group.
func (g *MemGraph) SetParent(id, parent string) bool {
	n, ok := g.nodes[id]
	if !ok || n.IsGroup() {
		return false
	}
	if parent != "" {
		p, ok := g.nodes[parent]
		if !ok || !p.IsGroup() {
			return false
		}
	}
	if n.Parent != parent {
		n.Parent = parent
		g.emit(ChangeUpdated, id, n.Kind)
	}
	return true
}

// SetName sets the stored name of a node.
func (g *MemGraph) SetName(id, name string) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	n.Name = name
	g.emit(ChangeUpdated, id, n.Kind)
	return true
}

// SetData replaces the data bag of a node or edge.
func (g *MemGraph) SetData(id string, data Props) bool {
	if n, ok := g.nodes[id]; ok {
		n.Data = stripReserved(data)
		g.emit(ChangeUpdated, id, n.Kind)
		return true
	}
	if e, ok := g.edges[id]; ok {
		e.Data = data.Clone()
		g.emit(ChangeUpdated, id, KindEdge)
		return true
	}
	return false
}

// SetAttrs replaces the visual attribute bag of a node or edge.
func (g *MemGraph) SetAttrs(id string, attrs Props) bool {
	if n, ok := g.nodes[id]; ok {
		n.Attrs = attrs.Clone()
		g.emit(ChangeUpdated, id, n.Kind)
		return true
	}
	if e, ok := g.edges[id]; ok {
		e.Attrs = attrs.Clone()
		g.emit(ChangeUpdated, id, KindEdge)
		return true
	}
	return false
}

// SetRouting sets an edge's router and connector strategies.
func (g *MemGraph) SetRouting(id string, router, connector *Strategy) bool {
	e, ok := g.edges[id]
	if !ok {
		return false
	}
	e.Router = router.clone()
	e.Connector = connector.clone()
	g.emit(ChangeUpdated, id, KindEdge)
	return true
}

// SetEdgeStyle records an edge's custom visual override.
func (g *MemGraph) SetEdgeStyle(id string, custom bool, customAttrs Props) bool {
	e, ok := g.edges[id]
	if !ok {
		return false
	}
	e.CustomStyle = custom
	e.CustomAttrs = customAttrs.Clone()
	g.emit(ChangeUpdated, id, KindEdge)
	return true
}

// SetHighlight sets the selection line style of an edge. It emits no
// change: highlighting is not part of the topology.
func (g *MemGraph) SetHighlight(id string, line Props) bool {
	e, ok := g.edges[id]
	if !ok {
		return false
	}
	e.Highlight = line.Clone()
	return true
}

// CellsBBox returns the union bounding box of the given nodes. Unknown ids
// and edges are ignored.
func (g *MemGraph) CellsBBox(ids []string) (geom.Rect, bool) {
	rects := make([]geom.Rect, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			rects = append(rects, n.Bounds)
		}
	}
	return geom.Union(rects...)
}
