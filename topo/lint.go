// ABOUTME: Lint rules for topology documents covering edge endpoints, parent links, and group bounds.
// ABOUTME: Provides a single Lint(doc) function that runs every check and returns diagnostics.
package topo

import (
	"fmt"
	"math"
	"slices"

	"github.com/2389-research/topoedit/geom"
)

// Diagnostic is a lint finding associated with a node or edge.
type Diagnostic struct {
	Severity string `json:"severity"` // "error", "warning"
	Message  string `json:"message"`
	NodeID   string `json:"nodeId,omitempty"`
	EdgeID   string `json:"edgeId,omitempty"`
	Rule     string `json:"rule"`
}

// boundsTolerance absorbs float noise when comparing stored and derived group bounds.
const boundsTolerance = 0.5

// Lint runs all lint rules on the document and returns any diagnostics found.
func Lint(doc *Document) []Diagnostic {
	nodes := make(map[string]NodeRecord, len(doc.Nodes))
	for _, n := range doc.Nodes {
		nodes[n.ID] = n
	}

	var diags []Diagnostic
	diags = append(diags, checkEdgeEndpoints(doc, nodes)...)
	diags = append(diags, checkSelfLoops(doc)...)
	diags = append(diags, checkGroupEndpoints(doc, nodes)...)
	diags = append(diags, checkParents(doc, nodes)...)
	diags = append(diags, checkEmptyGroups(doc)...)
	diags = append(diags, checkGroupBounds(doc)...)
	diags = append(diags, checkGroupChildren(doc)...)
	return diags
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	return slices.ContainsFunc(diags, func(d Diagnostic) bool { return d.Severity == "error" })
}

// checkEdgeEndpoints verifies every edge references existing nodes.
func checkEdgeEndpoints(doc *Document, nodes map[string]NodeRecord) []Diagnostic {
	var diags []Diagnostic
	for _, e := range doc.Edges {
		if _, ok := nodes[e.Source]; !ok {
			diags = append(diags, Diagnostic{
				Severity: "error",
				Message:  fmt.Sprintf("edge source %q does not exist", e.Source),
				EdgeID:   e.ID,
				Rule:     "dangling_edge",
			})
		}
		if _, ok := nodes[e.Target]; !ok {
			diags = append(diags, Diagnostic{
				Severity: "error",
				Message:  fmt.Sprintf("edge target %q does not exist", e.Target),
				EdgeID:   e.ID,
				Rule:     "dangling_edge",
			})
		}
	}
	return diags
}

func checkSelfLoops(doc *Document) []Diagnostic {
	var diags []Diagnostic
	for _, e := range doc.Edges {
		if e.Source != "" && e.Source == e.Target {
			diags = append(diags, Diagnostic{
				Severity: "error",
				Message:  fmt.Sprintf("self-loop on node %q", e.Source),
				EdgeID:   e.ID,
				Rule:     "self_loop",
			})
		}
	}
	return diags
}

func checkGroupEndpoints(doc *Document, nodes map[string]NodeRecord) []Diagnostic {
	var diags []Diagnostic
	for _, e := range doc.Edges {
		for _, id := range []string{e.Source, e.Target} {
			if n, ok := nodes[id]; ok && n.IsGroup() {
				diags = append(diags, Diagnostic{
					Severity: "error",
					Message:  fmt.Sprintf("edge connects group %q", id),
					EdgeID:   e.ID,
					Rule:     "group_endpoint",
				})
			}
		}
	}
	return diags
}

// checkParents flags parent links to missing nodes, to non-groups, and on groups.
func checkParents(doc *Document, nodes map[string]NodeRecord) []Diagnostic {
	var diags []Diagnostic
	for _, n := range doc.Nodes {
		if n.Parent == "" {
			continue
		}
		if n.IsGroup() {
			diags = append(diags, Diagnostic{
				Severity: "error",
				Message:  fmt.Sprintf("group %q cannot be nested in %q", n.ID, n.Parent),
				NodeID:   n.ID,
				Rule:     "nested_group",
			})
			continue
		}
		p, ok := nodes[n.Parent]
		if !ok || !p.IsGroup() {
			diags = append(diags, Diagnostic{
				Severity: "error",
				Message:  fmt.Sprintf("parent %q of node %q is not a group", n.Parent, n.ID),
				NodeID:   n.ID,
				Rule:     "orphan_parent",
			})
		}
	}
	return diags
}

func membersOf(doc *Document, groupID string) []NodeRecord {
	var out []NodeRecord
	for _, n := range doc.Nodes {
		if n.Parent == groupID && !n.IsGroup() {
			out = append(out, n)
		}
	}
	return out
}

func checkEmptyGroups(doc *Document) []Diagnostic {
	var diags []Diagnostic
	for _, n := range doc.Nodes {
		if n.IsGroup() && len(membersOf(doc, n.ID)) == 0 {
			diags = append(diags, Diagnostic{
				Severity: "warning",
				Message:  fmt.Sprintf("group %q has no members", n.ID),
				NodeID:   n.ID,
				Rule:     "empty_group",
			})
		}
	}
	return diags
}

// checkGroupBounds flags groups whose stored box differs from the box their members derive.
func checkGroupBounds(doc *Document) []Diagnostic {
	var diags []Diagnostic
	for _, n := range doc.Nodes {
		if !n.IsGroup() {
			continue
		}
		members := membersOf(doc, n.ID)
		if len(members) == 0 {
			continue
		}
		rects := make([]geom.Rect, 0, len(members))
		for _, m := range members {
			rects = append(rects, geom.Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height})
		}
		box, _ := geom.Union(rects...)
		want := box.Expand(Padding)
		got := geom.Rect{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
		if !nearlyEqual(got, want) {
			diags = append(diags, Diagnostic{
				Severity: "warning",
				Message:  fmt.Sprintf("group %q bounds are stale and will be recomputed on load", n.ID),
				NodeID:   n.ID,
				Rule:     "stale_bounds",
			})
		}
	}
	return diags
}

func nearlyEqual(a, b geom.Rect) bool {
	return math.Abs(a.X-b.X) <= boundsTolerance &&
		math.Abs(a.Y-b.Y) <= boundsTolerance &&
		math.Abs(a.Width-b.Width) <= boundsTolerance &&
		math.Abs(a.Height-b.Height) <= boundsTolerance
}

// checkGroupChildren flags group records whose children list disagrees with the nodes' parent links.
func checkGroupChildren(doc *Document) []Diagnostic {
	var diags []Diagnostic
	for _, gr := range doc.Groups {
		var want []string
		for _, m := range membersOf(doc, gr.ID) {
			want = append(want, m.ID)
		}
		got := slices.Clone(gr.Children)
		slices.Sort(got)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			diags = append(diags, Diagnostic{
				Severity: "warning",
				Message:  fmt.Sprintf("group %q lists children that do not match parent links", gr.ID),
				NodeID:   gr.ID,
				Rule:     "group_children",
			})
		}
	}
	return diags
}
