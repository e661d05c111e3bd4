// ABOUTME: Topology serializer converting live graph state to and from the Document format.
// ABOUTME: Load order is groups, nodes, parent links, boundaries, then edges; bad edges are skipped.
package topo

import (
	"github.com/2389-research/topoedit/geom"
)

// Provisional size of a group created during load, before its members are known.
var provisionalGroupSize = geom.Size{Width: 200, Height: 100}

// Serialize captures g as a Document. Group nodes are emitted before normal
// nodes; each class keeps insertion order. Transient UI state is excluded.
func Serialize(g Graph) *Document {
	nodes := g.Nodes()
	doc := &Document{
		Nodes:  make([]NodeRecord, 0, len(nodes)),
		Edges:  []EdgeRecord{},
		Groups: []GroupRecord{},
	}

	// Groups lead so a loaded document serializes back in the same order.
	ordered := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n.IsGroup() {
			ordered = append(ordered, n)
		}
	}
	for _, n := range nodes {
		if !n.IsGroup() {
			ordered = append(ordered, n)
		}
	}

	for _, n := range ordered {
		rec := NodeRecord{
			ID:     n.ID,
			Type:   n.Type,
			X:      n.Bounds.X,
			Y:      n.Bounds.Y,
			Width:  n.Bounds.Width,
			Height: n.Bounds.Height,
			Parent: n.Parent,
			Data:   withoutTransient(n.Data),
			Attrs:  n.Attrs.Clone(),
		}
		if n.IsGroup() {
			rec.Name = n.DisplayName()
		} else {
			rec.Name = n.Name
		}
		doc.Nodes = append(doc.Nodes, rec)
	}

	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, EdgeRecord{
			ID:          e.ID,
			Source:      liveEndpoint(g, e.Source),
			Target:      liveEndpoint(g, e.Target),
			Router:      e.Router.clone(),
			Connector:   e.Connector.clone(),
			CustomStyle: e.CustomStyle,
			CustomAttrs: e.CustomAttrs.Clone(),
			Data:        withoutTransient(e.Data),
			Attrs:       e.Attrs.Clone(),
		})
	}

	for _, n := range nodes {
		if !n.IsGroup() {
			continue
		}
		children := []string{}
		for _, m := range nodes {
			if m.Parent == n.ID {
				children = append(children, m.ID)
			}
		}
		doc.Groups = append(doc.Groups, GroupRecord{ID: n.ID, Name: n.DisplayName(), Children: children})
	}

	return doc
}

func liveEndpoint(g Graph, id string) string {
	if _, ok := g.Node(id); ok {
		return id
	}
	return ""
}

func withoutTransient(p Props) Props {
	if p == nil {
		return nil
	}
	out := p.Clone()
	delete(out, keySelected)
	if len(out) == 0 {
		return nil
	}
	return out
}

// LoadReport lists the recoverable problems found while loading a document.
type LoadReport struct {
	SkippedEdges   []string `json:"skippedEdges,omitempty"`
	DroppedParents []string `json:"droppedParents,omitempty"`
	SkippedNodes   []string `json:"skippedNodes,omitempty"`
}

// Clean reports whether the load had no recoverable problems.
func (r *LoadReport) Clean() bool {
	return len(r.SkippedEdges) == 0 && len(r.DroppedParents) == 0 && len(r.SkippedNodes) == 0
}

// Deserialize replaces the contents of g with doc. A document that fails
// validation is rejected before g is touched. Edges with missing or invalid
// endpoints and parent links to missing groups are skipped and reported.
func Deserialize(g Graph, doc *Document) (*LoadReport, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	report := &LoadReport{}
	g.Clear()

	for _, rec := range doc.Nodes {
		if !rec.IsGroup() {
			continue
		}
		err := g.AddNode(Node{
			ID:     rec.ID,
			Kind:   KindGroup,
			Type:   TypeGroup,
			Name:   groupName(rec),
			Bounds: geom.NewRect(geom.Point{X: rec.X, Y: rec.Y}, provisionalGroupSize),
			ZIndex: ZGroup,
			Data:   rec.Data,
			Attrs:  rec.Attrs,
		})
		if err != nil {
			report.SkippedNodes = append(report.SkippedNodes, rec.ID)
		}
	}

	for _, rec := range doc.Nodes {
		if rec.IsGroup() {
			continue
		}
		err := g.AddNode(Node{
			ID:        rec.ID,
			Kind:      KindNormal,
			Type:      rec.Type,
			Name:      rec.Name,
			Bounds:    geom.Rect{X: rec.X, Y: rec.Y, Width: rec.Width, Height: rec.Height},
			ZIndex:    ZMember,
			Draggable: true,
			Data:      rec.Data,
			Attrs:     rec.Attrs,
		})
		if err != nil {
			report.SkippedNodes = append(report.SkippedNodes, rec.ID)
		}
	}

	for _, rec := range doc.Nodes {
		if rec.IsGroup() || rec.Parent == "" {
			continue
		}
		if !g.SetParent(rec.ID, rec.Parent) {
			report.DroppedParents = append(report.DroppedParents, rec.ID)
		}
	}

	for _, rec := range doc.Nodes {
		if !rec.IsGroup() {
			continue
		}
		if !RecomputeBoundary(g, rec.ID) {
			// Memberless groups keep their declared size when one was stored.
			if rec.Width > 0 && rec.Height > 0 {
				g.SetBounds(rec.ID, geom.Rect{X: rec.X, Y: rec.Y, Width: rec.Width, Height: rec.Height})
			}
		}
	}

	for _, rec := range doc.Edges {
		router := rec.Router.clone()
		if router == nil {
			router = &Strategy{Name: Normal}
		}
		connector := rec.Connector.clone()
		if connector == nil {
			connector = &Strategy{Name: Normal}
		}

		attrs := rec.Attrs.Clone()
		if rec.CustomStyle && rec.CustomAttrs != nil {
			attrs = attrs.Merge(rec.CustomAttrs)
		}

		err := g.AddEdge(Edge{
			ID:          rec.ID,
			Source:      rec.Source,
			Target:      rec.Target,
			Router:      router,
			Connector:   connector,
			CustomStyle: rec.CustomStyle,
			CustomAttrs: rec.CustomAttrs,
			ZIndex:      ZEdge,
			Data:        rec.Data,
			Attrs:       attrs,
		})
		if err != nil {
			report.SkippedEdges = append(report.SkippedEdges, rec.ID)
		}
	}

	return report, nil
}

func groupName(rec NodeRecord) string {
	if rec.Name != "" {
		return rec.Name
	}
	return UnnamedGroup
}
