// ABOUTME: Editing commands composed from the graph handle, boundary engine, and containment resolver.
// ABOUTME: Each command leaves the groups it touched recomputed before returning.
package topo

import (
	"errors"
	"fmt"

	"github.com/2389-research/topoedit/geom"
	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("element not found")
	ErrNotMovable    = errors.New("element cannot be moved directly")
	ErrEmptyGroup    = errors.New("a group needs at least one member")
	ErrInvalidMember = errors.New("only normal nodes can join a group")
)

// PasteOffset is the displacement applied to pasted copies.
var PasteOffset = geom.Point{X: 20, Y: 20}

// Edge style defaults.
const (
	DefaultStroke       = "#1890ff"
	DefaultStrokeWidth  = 2.0
	IdleStroke          = "#333"
	IdleStrokeWidth     = 1.0
	Orth                = "orth"
	Rounded             = "rounded"
	orthPadding         = 20
	orthDirection       = "H"
	roundedCornerRadius = 8
)

func newID() string {
	return uuid.New().String()
}

// NodeSpec describes a node to place on the canvas.
type NodeSpec struct {
	ID       string     `json:"id,omitempty"`
	Type     string     `json:"type" validate:"required"`
	Name     string     `json:"name,omitempty"`
	Position geom.Point `json:"position"`
	Size     geom.Size  `json:"size"`
	Data     Props      `json:"data,omitempty"`
	Attrs    Props      `json:"attrs,omitempty"`
}

// AddNode places a normal node and links it to the group it was dropped into.
func AddNode(g Graph, spec NodeSpec) (Node, error) {
	id := spec.ID
	if id == "" {
		id = newID()
	}
	n := Node{
		ID:     id,
		Kind:   KindNormal,
		Type:   spec.Type,
		Name:   spec.Name,
		Bounds: geom.NewRect(spec.Position, spec.Size),
		ZIndex: ZMember,
		Data:   spec.Data,
		Attrs:  spec.Attrs,
	}
	if err := g.AddNode(n); err != nil {
		return Node{}, fmt.Errorf("add node: %w", err)
	}
	ResolveContainment(g, id)
	out, _ := g.Node(id)
	return out, nil
}

// MoveNode drops a node at pos and re-resolves its group.
func MoveNode(g Graph, id string, pos geom.Point, sel Selection) error {
	n, ok := g.Node(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !CanMove(g, id, sel) {
		return fmt.Errorf("%w: %s", ErrNotMovable, id)
	}
	g.SetBounds(id, n.Bounds.MoveTo(pos))
	ResolveContainment(g, id)
	return nil
}

// TranslateSelection shifts the selection by (dx, dy). A selected group
// carries its members; a member of a selected group is not moved twice.
// It returns the ids that moved.
func TranslateSelection(g Graph, sel Selection, dx, dy float64) []string {
	bulk := BeginBulk(g)
	moved := make(map[string]bool)
	var out []string

	for _, n := range g.Nodes() {
		if !n.IsGroup() || !sel.Has(n.ID) {
			continue
		}
		g.SetBounds(n.ID, n.Bounds.Translate(dx, dy))
		moved[n.ID] = true
		out = append(out, n.ID)
		for _, mid := range Members(g, n.ID) {
			m, _ := g.Node(mid)
			g.SetBounds(mid, m.Bounds.Translate(dx, dy))
			moved[mid] = true
			out = append(out, mid)
		}
		bulk.Touch(n.ID)
	}

	for _, n := range g.Nodes() {
		if n.IsGroup() || moved[n.ID] || !sel.Has(n.ID) || !CanMove(g, n.ID, sel) {
			continue
		}
		g.SetBounds(n.ID, n.Bounds.Translate(dx, dy))
		bulk.Place(n.ID)
		out = append(out, n.ID)
	}

	bulk.End()
	return out
}

// NodeUpdate carries the optional parts of a node edit. Nil fields are left unchanged.
type NodeUpdate struct {
	Name  *string    `json:"name,omitempty"`
	Size  *geom.Size `json:"size,omitempty" validate:"omitempty"`
	Data  Props      `json:"data,omitempty"`
	Attrs Props      `json:"attrs,omitempty"`
}

// UpdateNode applies u to a node and refreshes the group it belongs to.
// Renaming a group also rewrites its label text.
func UpdateNode(g Graph, id string, u NodeUpdate) error {
	n, ok := g.Node(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if u.Data != nil {
		g.SetData(id, u.Data)
	}
	if u.Attrs != nil {
		g.SetAttrs(id, u.Attrs)
	}
	if u.Name != nil {
		g.SetName(id, *u.Name)
		if n.IsGroup() {
			// The label is what a group displays, so it follows the name.
			cur, _ := g.Node(id)
			g.SetAttrs(id, cur.Attrs.Merge(Props{"label": Props{"text": *u.Name}}))
		}
	}
	if u.Size != nil && !n.IsGroup() {
		g.SetBounds(id, geom.NewRect(n.Bounds.Position(), *u.Size))
	}
	if n.Parent != "" {
		RecomputeBoundary(g, n.Parent)
	}
	return nil
}

func checkEndpoints(g Graph, source, target string) error {
	if source == target {
		return fmt.Errorf("%w: %s", ErrSelfLoop, source)
	}
	for _, id := range []string{source, target} {
		n, ok := g.Node(id)
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingEndpoint, id)
		}
		if n.IsGroup() {
			return fmt.Errorf("%w: %s", ErrGroupEndpoint, id)
		}
	}
	return nil
}

func orthRouter() *Strategy {
	return &Strategy{Name: Orth, Args: Props{"padding": orthPadding, "direction": orthDirection}}
}

func roundedConnector() *Strategy {
	return &Strategy{Name: Rounded, Args: Props{"radius": roundedCornerRadius}}
}

// Connect links two normal nodes with the editor's default routing and line
// style. attrs, when given, is layered over the default style.
func Connect(g Graph, source, target string, attrs Props) (Edge, error) {
	if err := checkEndpoints(g, source, target); err != nil {
		return Edge{}, err
	}
	base := Props{"line": Props{"stroke": DefaultStroke, "strokeWidth": DefaultStrokeWidth}}
	e := Edge{
		ID:        newID(),
		Source:    source,
		Target:    target,
		Router:    orthRouter(),
		Connector: roundedConnector(),
		ZIndex:    ZEdge,
		Attrs:     base.Merge(attrs),
	}
	if err := g.AddEdge(e); err != nil {
		return Edge{}, fmt.Errorf("connect: %w", err)
	}
	out, _ := g.Edge(e.ID)
	return out, nil
}

// EdgeStyle is a user-chosen visual override for one edge.
type EdgeStyle struct {
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty" validate:"gte=0"`
	Dasharray   string  `json:"strokeDasharray,omitempty"`
	Connector   string  `json:"connector,omitempty" validate:"omitempty,oneof=normal rounded"`
}

// SetEdgeStyle records s as the custom override of edge id. A rounded
// connector is always paired with the orthogonal router.
func SetEdgeStyle(g Graph, id string, s EdgeStyle) error {
	e, ok := g.Edge(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.Stroke == "" {
		s.Stroke = DefaultStroke
	}
	if s.StrokeWidth == 0 {
		s.StrokeWidth = DefaultStrokeWidth
	}

	router := &Strategy{Name: Normal}
	connector := &Strategy{Name: Normal}
	if s.Connector == Rounded {
		router = orthRouter()
		connector = roundedConnector()
	}

	custom := Props{"line": Props{
		"stroke":          s.Stroke,
		"strokeWidth":     s.StrokeWidth,
		"strokeDasharray": s.Dasharray,
	}}
	g.SetAttrs(id, e.Attrs.Merge(custom))
	g.SetRouting(id, router, connector)
	g.SetEdgeStyle(id, true, custom)
	return nil
}

// EdgeStyleFor computes the line attributes of e for the given selection
// state. A custom override always wins over the built-in styles.
func EdgeStyleFor(e Edge, selected bool) Props {
	if e.CustomStyle {
		line := e.CustomAttrs.Map("line").Clone()
		if line == nil {
			line = Props{}
		}
		if selected {
			w, ok := line.Float("strokeWidth")
			if !ok {
				w = IdleStrokeWidth
			}
			line["strokeWidth"] = w + 1
		}
		return line
	}
	if selected {
		return Props{"stroke": DefaultStroke, "strokeWidth": IdleStrokeWidth + 1, "strokeDasharray": ""}
	}
	return Props{"stroke": IdleStroke, "strokeWidth": IdleStrokeWidth, "strokeDasharray": ""}
}

// ApplySelection sets every edge's highlight for sel and the transient
// selected flag on nodes and edges. Neither reaches the serialized document.
func ApplySelection(g Graph, sel Selection) {
	for _, n := range g.Nodes() {
		g.SetData(n.ID, n.Data.Merge(Props{keySelected: sel.Has(n.ID)}))
	}
	for _, e := range g.Edges() {
		selected := sel.Has(e.ID)
		g.SetHighlight(e.ID, EdgeStyleFor(e, selected))
		g.SetData(e.ID, e.Data.Merge(Props{keySelected: selected}))
	}
}

// CreateGroup wraps memberIDs in a new group. Members leaving another group
// shrink it.
func CreateGroup(g Graph, name string, memberIDs []string) (Node, error) {
	if len(memberIDs) == 0 {
		return Node{}, ErrEmptyGroup
	}
	var prev []string
	for _, id := range memberIDs {
		n, ok := g.Node(id)
		if !ok {
			return Node{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if n.IsGroup() {
			return Node{}, fmt.Errorf("%w: %s", ErrInvalidMember, id)
		}
		if n.Parent != "" {
			prev = append(prev, n.Parent)
		}
	}

	box, _ := g.CellsBBox(memberIDs)
	if name == "" {
		name = UnnamedGroup
	}
	group := Node{
		ID:     newID(),
		Kind:   KindGroup,
		Type:   TypeGroup,
		Name:   name,
		Bounds: box.Expand(Padding),
		ZIndex: ZGroup,
		Attrs:  Props{"label": Props{"text": name}},
	}
	if err := g.AddNode(group); err != nil {
		return Node{}, fmt.Errorf("create group: %w", err)
	}
	for _, id := range memberIDs {
		g.SetParent(id, group.ID)
	}
	RecomputeBoundary(g, group.ID)
	for _, id := range prev {
		RecomputeBoundary(g, id)
	}
	EnforceLayering(g)

	out, _ := g.Node(group.ID)
	return out, nil
}

// Ungroup releases a group's members and removes the group.
func Ungroup(g Graph, groupID string) error {
	n, ok := g.Node(groupID)
	if !ok || !n.IsGroup() {
		return fmt.Errorf("%w: group %s", ErrNotFound, groupID)
	}
	for _, id := range Members(g, groupID) {
		g.SetParent(id, "")
	}
	g.Remove(groupID)
	return nil
}

// Delete removes the given elements with their connected edges and returns
// the ids that were removed. Groups that lost members are recomputed.
func Delete(g Graph, ids []string) []string {
	var removed []string
	touched := make(map[string]bool)
	var order []string

	for _, id := range ids {
		if n, ok := g.Node(id); ok && n.Parent != "" && !touched[n.Parent] {
			touched[n.Parent] = true
			order = append(order, n.Parent)
		}
		if g.Remove(id) {
			removed = append(removed, id)
		}
	}
	for _, id := range order {
		RecomputeBoundary(g, id)
	}
	return removed
}

// Paste copies the given elements under fresh ids, shifted by offset.
// Copying a group copies its members; edges whose endpoints were both
// copied come along. Containment for loose copies is resolved once, after
// everything is placed. It returns the new ids.
func Paste(g Graph, ids []string, offset geom.Point) ([]string, error) {
	want := make(map[string]bool)
	for _, id := range ids {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		want[id] = true
		if n.IsGroup() {
			for _, mid := range Members(g, id) {
				want[mid] = true
			}
		}
	}

	remap := make(map[string]string)
	var out []string
	bulk := BeginBulk(g)
	defer bulk.End()

	nodes := g.Nodes()
	place := func(n Node) error {
		cp := n
		cp.ID = newID()
		cp.Bounds = n.Bounds.Translate(offset.X, offset.Y)
		cp.Parent = remap[n.Parent]
		if err := g.AddNode(cp); err != nil {
			return fmt.Errorf("paste %s: %w", n.ID, err)
		}
		remap[n.ID] = cp.ID
		out = append(out, cp.ID)
		if cp.IsGroup() {
			bulk.Touch(cp.ID)
		} else if cp.Parent == "" {
			bulk.Place(cp.ID)
		}
		return nil
	}
	for _, n := range nodes {
		if want[n.ID] && n.IsGroup() {
			if err := place(n); err != nil {
				return out, err
			}
		}
	}
	for _, n := range nodes {
		if want[n.ID] && !n.IsGroup() {
			if err := place(n); err != nil {
				return out, err
			}
		}
	}

	for _, e := range g.Edges() {
		src, okS := remap[e.Source]
		dst, okT := remap[e.Target]
		if !okS || !okT {
			continue
		}
		cp := e
		cp.ID = newID()
		cp.Source, cp.Target = src, dst
		if err := g.AddEdge(cp); err != nil {
			return out, fmt.Errorf("paste %s: %w", e.ID, err)
		}
		out = append(out, cp.ID)
	}
	return out, nil
}

// SelectAll returns every normal node and edge. Groups are never selected in bulk.
func SelectAll(g Graph) []string {
	var out []string
	for _, n := range g.Nodes() {
		if !n.IsGroup() {
			out = append(out, n.ID)
		}
	}
	for _, e := range g.Edges() {
		out = append(out, e.ID)
	}
	return out
}
