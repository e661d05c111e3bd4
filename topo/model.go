// ABOUTME: Element types for the topology editor: normal nodes, group nodes, and edges.
// ABOUTME: Each element has a fixed core schema plus opaque data/attrs bags owned by the UI.
package topo

import "github.com/2389-research/topoedit/geom"

// Kind discriminates the element variants on the canvas.
type Kind string

const (
	KindNormal Kind = "normalNode"
	KindGroup  Kind = "groupNode"
	KindEdge   Kind = "edge"
)

// TypeGroup is the UI node type carried by every group node.
const TypeGroup = "group"

// UnnamedGroup is the display name of a group with no label and no stored name.
const UnnamedGroup = "unnamed group"

// Reserved keys. The core never stores these inside a Data bag; they are
// promoted to first-class fields on Node.
const (
	keyType     = "type"
	keyParent   = "parent"
	keySelected = "selected"
)

// Props is an opaque property bag passed through the core untouched.
type Props map[string]any

// Clone returns a deep copy of the bag. Nested maps and slices are copied
// so snapshots never alias live state.
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Props:
		return t.Clone()
	case map[string]any:
		return map[string]any(Props(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Map returns the nested bag stored under key, or nil.
func (p Props) Map(key string) Props {
	switch t := p[key].(type) {
	case Props:
		return t
	case map[string]any:
		return Props(t)
	}
	return nil
}

// String returns the string stored under key, or "".
func (p Props) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Float returns the numeric value stored under key.
func (p Props) Float(key string) (float64, bool) {
	switch t := p[key].(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

// Merge returns a copy of p with every key from o layered on top. Nested
// bags are merged recursively.
func (p Props) Merge(o Props) Props {
	out := p.Clone()
	if out == nil {
		out = Props{}
	}
	for k, v := range o {
		if nested := o.Map(k); nested != nil {
			if existing := out.Map(k); existing != nil {
				out[k] = existing.Merge(nested)
				continue
			}
		}
		out[k] = cloneValue(v)
	}
	return out
}

// Node is a placeable element: either a host/network element or a group.
type Node struct {
	ID        string
	Kind      Kind
	Type      string
	Parent    string
	Name      string
	Bounds    geom.Rect
	ZIndex    int
	Draggable bool
	Data      Props
	Attrs     Props
}

// IsGroup reports whether the node is a group container.
func (n Node) IsGroup() bool {
	return n.Kind == KindGroup
}

// Label returns the text of the node's label attribute, if any.
func (n Node) Label() string {
	return n.Attrs.Map("label").String("text")
}

// DisplayName resolves a group's name from its label first, then its stored
// name, then the placeholder.
func (n Node) DisplayName() string {
	if l := n.Label(); l != "" {
		return l
	}
	if n.Name != "" {
		return n.Name
	}
	return UnnamedGroup
}

func (n Node) clone() Node {
	n.Data = n.Data.Clone()
	n.Attrs = n.Attrs.Clone()
	return n
}

// Strategy is a named router or connector configuration with optional arguments,
// e.g. {name: "orth", args: {padding: 20, direction: "H"}}.
type Strategy struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	Args Props  `json:"args,omitempty" yaml:"args,omitempty"`
}

// Normal is the default straight router/connector strategy.
const Normal = "normal"

func (s *Strategy) clone() *Strategy {
	if s == nil {
		return nil
	}
	return &Strategy{Name: s.Name, Args: s.Args.Clone()}
}

// Edge is a link between two non-group nodes.
type Edge struct {
	ID          string
	Source      string
	Target      string
	Router      *Strategy
	Connector   *Strategy
	CustomStyle bool
	CustomAttrs Props
	ZIndex      int
	Data        Props
	Attrs       Props

	// Highlight is the line style the current selection gives the edge.
	// It is display state only and never serialized.
	Highlight Props
}

func (e Edge) clone() Edge {
	e.Router = e.Router.clone()
	e.Connector = e.Connector.clone()
	e.CustomAttrs = e.CustomAttrs.Clone()
	e.Data = e.Data.Clone()
	e.Attrs = e.Attrs.Clone()
	e.Highlight = e.Highlight.Clone()
	return e
}

// Selection is the set of element ids the user currently has selected.
type Selection map[string]struct{}

// NewSelection builds a selection from ids.
func NewSelection(ids ...string) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is selected.
func (s Selection) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// stripReserved removes keys the core owns from a UI data bag.
func stripReserved(p Props) Props {
	if p == nil {
		return nil
	}
	out := p.Clone()
	delete(out, keyType)
	delete(out, keyParent)
	return out
}
