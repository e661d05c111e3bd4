// ABOUTME: Tests for serializing live graphs to documents and loading them back.
// ABOUTME: Covers round trips, name fallback, transient stripping, and skip-and-report loading.
package topo

import (
	"testing"

	"github.com/2389-research/topoedit/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLab assembles a small range: two hosts in a DMZ group, a loose
// router, and links with default and custom styles.
func buildLab(t *testing.T) *MemGraph {
	t.Helper()
	g := NewMemGraph()
	web, err := AddNode(g, NodeSpec{ID: "web", Type: "container", Position: geom.Point{X: 100, Y: 100}, Size: geom.Size{Width: 60, Height: 40}, Data: Props{"image": "nginx"}})
	require.NoError(t, err)
	db, err := AddNode(g, NodeSpec{ID: "db", Type: "container", Position: geom.Point{X: 200, Y: 100}, Size: geom.Size{Width: 60, Height: 40}})
	require.NoError(t, err)
	_, err = AddNode(g, NodeSpec{ID: "rtr", Type: "router", Position: geom.Point{X: 600, Y: 300}, Size: geom.Size{Width: 40, Height: 40}})
	require.NoError(t, err)

	_, err = CreateGroup(g, "DMZ", []string{web.ID, db.ID})
	require.NoError(t, err)

	_, err = Connect(g, "web", "db", nil)
	require.NoError(t, err)
	uplink, err := Connect(g, "db", "rtr", nil)
	require.NoError(t, err)
	require.NoError(t, SetEdgeStyle(g, uplink.ID, EdgeStyle{Stroke: "#f5222d", StrokeWidth: 3, Connector: Rounded}))
	return g
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	g := buildLab(t)
	doc := Serialize(g)

	loaded := NewMemGraph()
	report, err := Deserialize(loaded, doc)
	require.NoError(t, err)
	assert.True(t, report.Clean())

	again := Serialize(loaded)
	assert.True(t, Equal(doc, again))
	assert.Len(t, again.Edges, 2)
}

func TestSerializeGroupsListChildren(t *testing.T) {
	doc := Serialize(buildLab(t))

	require.Len(t, doc.Groups, 1)
	assert.Equal(t, "DMZ", doc.Groups[0].Name)
	assert.Equal(t, []string{"web", "db"}, doc.Groups[0].Children)

	// Group records lead the node list.
	assert.Equal(t, TypeGroup, doc.Nodes[0].Type)
	assert.Equal(t, "DMZ", doc.Nodes[0].Name)
}

func TestSerializeGroupNameFallback(t *testing.T) {
	g := NewMemGraph()
	require.NoError(t, g.AddNode(Node{ID: "named", Kind: KindGroup, Name: "stored", Attrs: Props{"label": Props{"text": "Label"}}}))
	require.NoError(t, g.AddNode(Node{ID: "stored", Kind: KindGroup, Name: "Stored"}))
	require.NoError(t, g.AddNode(Node{ID: "bare", Kind: KindGroup}))

	doc := Serialize(g)
	names := map[string]string{}
	for _, gr := range doc.Groups {
		names[gr.ID] = gr.Name
	}
	assert.Equal(t, map[string]string{"named": "Label", "stored": "Stored", "bare": UnnamedGroup}, names)
}

func TestSerializeStripsTransientState(t *testing.T) {
	g := NewMemGraph()
	mustNode(t, g, "a", rect(0, 0, 10, 10), "")
	mustNode(t, g, "b", rect(50, 0, 10, 10), "")
	g.SetData("a", Props{"selected": true, "ip": "10.0.0.5"})
	require.NoError(t, g.AddEdge(Edge{ID: "e", Source: "a", Target: "b", Data: Props{"selected": true}}))

	doc := Serialize(g)
	assert.Equal(t, Props{"ip": "10.0.0.5"}, doc.Nodes[0].Data)
	assert.Nil(t, doc.Edges[0].Data)
}

func TestSerializeRoutingDefaults(t *testing.T) {
	g := NewMemGraph()
	mustNode(t, g, "a", rect(0, 0, 10, 10), "")
	mustNode(t, g, "b", rect(50, 0, 10, 10), "")
	require.NoError(t, g.AddEdge(Edge{ID: "e", Source: "a", Target: "b"}))

	doc := Serialize(g)
	require.NotNil(t, doc.Edges[0].Router)
	assert.Equal(t, Normal, doc.Edges[0].Router.Name)
	assert.Equal(t, Normal, doc.Edges[0].Connector.Name)
}

func TestDeserializeSkipsBadEdgesAndParents(t *testing.T) {
	doc := &Document{
		Nodes: []NodeRecord{
			{ID: "a", Type: "container", X: 0, Y: 0, Width: 10, Height: 10},
			{ID: "b", Type: "container", X: 50, Y: 0, Width: 10, Height: 10, Parent: "gone"},
		},
		Edges: []EdgeRecord{
			{ID: "ok", Source: "a", Target: "b"},
			{ID: "dangling", Source: "a", Target: "ghost"},
			{ID: "empty", Source: "", Target: "b"},
			{ID: "loop", Source: "a", Target: "a"},
		},
		Groups: []GroupRecord{},
	}

	g := NewMemGraph()
	report, err := Deserialize(g, doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"dangling", "empty", "loop"}, report.SkippedEdges)
	assert.Equal(t, []string{"b"}, report.DroppedParents)
	assert.False(t, report.Clean())
	assert.Len(t, g.Edges(), 1)
	b, _ := g.Node("b")
	assert.Empty(t, b.Parent)
}

func TestDeserializeRecomputesGroups(t *testing.T) {
	doc := &Document{
		Nodes: []NodeRecord{
			{ID: "a", Type: "container", X: 100, Y: 100, Width: 50, Height: 50, Parent: "G"},
			{ID: "G", Type: TypeGroup, X: 0, Y: 0, Width: 5, Height: 5},
			{ID: "lonely", Type: TypeGroup, X: 300, Y: 300, Width: 120, Height: 80},
			{ID: "void", Type: TypeGroup, X: 10, Y: 500},
		},
		Edges:  []EdgeRecord{},
		Groups: []GroupRecord{},
	}

	g := NewMemGraph()
	_, err := Deserialize(g, doc)
	require.NoError(t, err)

	assert.Equal(t, rect(80, 80, 90, 90), bounds(t, g, "G"))
	assert.Equal(t, rect(300, 300, 120, 80), bounds(t, g, "lonely"))
	assert.Equal(t, rect(10, 500, 200, 100), bounds(t, g, "void"))

	grp, _ := g.Node("G")
	a, _ := g.Node("a")
	assert.False(t, grp.Draggable)
	assert.True(t, a.Draggable)
	assert.Equal(t, UnnamedGroup, grp.Name)
	assert.Equal(t, ZMember, a.ZIndex)
}

func TestDeserializeReappliesCustomStyle(t *testing.T) {
	doc := &Document{
		Nodes: []NodeRecord{
			{ID: "a", Type: "container", Width: 10, Height: 10},
			{ID: "b", Type: "container", X: 50, Width: 10, Height: 10},
		},
		Edges: []EdgeRecord{{
			ID: "e", Source: "a", Target: "b",
			Router:      &Strategy{Name: Orth, Args: Props{"padding": 20.0}},
			CustomStyle: true,
			CustomAttrs: Props{"line": Props{"stroke": "#000"}},
			Attrs:       Props{"line": Props{"stroke": "#fff", "strokeWidth": 2.0}},
		}},
		Groups: []GroupRecord{},
	}

	g := NewMemGraph()
	_, err := Deserialize(g, doc)
	require.NoError(t, err)

	e, ok := g.Edge("e")
	require.True(t, ok)
	assert.Equal(t, Orth, e.Router.Name)
	assert.Equal(t, Normal, e.Connector.Name)
	assert.Equal(t, Props{"stroke": "#000", "strokeWidth": 2.0}, e.Attrs.Map("line"))
	assert.Equal(t, ZEdge, e.ZIndex)
}

func TestDeserializeRejectsInvalidDocumentUntouched(t *testing.T) {
	g := NewMemGraph()
	mustNode(t, g, "keep", rect(0, 0, 10, 10), "")

	_, err := Deserialize(g, &Document{Nodes: []NodeRecord{{ID: "", Type: "container"}}})
	require.ErrorIs(t, err, ErrInvalidDocument)

	_, ok := g.Node("keep")
	assert.True(t, ok)
}
