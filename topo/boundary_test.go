// ABOUTME: Tests for group boundary recomputation, padding, idempotence, and z-order layering.
// ABOUTME: Shared graph-building helpers for the topo package tests live here too.
package topo

import (
	"testing"

	"github.com/2389-research/topoedit/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rect(x, y, w, h float64) geom.Rect {
	return geom.Rect{X: x, Y: y, Width: w, Height: h}
}

func mustNode(t *testing.T, g Graph, id string, r geom.Rect, parent string) {
	t.Helper()
	require.NoError(t, g.AddNode(Node{ID: id, Kind: KindNormal, Type: "container", Bounds: r, Parent: parent}))
}

func mustGroup(t *testing.T, g Graph, id string, r geom.Rect) {
	t.Helper()
	require.NoError(t, g.AddNode(Node{ID: id, Kind: KindGroup, Name: id, Bounds: r}))
}

func bounds(t *testing.T, g Graph, id string) geom.Rect {
	t.Helper()
	n, ok := g.Node(id)
	require.True(t, ok, "node %s", id)
	return n.Bounds
}

func TestRecomputeBoundaryPadsMemberUnion(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "G", rect(0, 0, 10, 10))
	mustNode(t, g, "A", rect(100, 100, 50, 50), "G")
	mustNode(t, g, "B", rect(200, 150, 50, 50), "G")
	g.SetZIndex("G", 7)

	require.True(t, RecomputeBoundary(g, "G"))

	assert.Equal(t, rect(80, 80, 190, 140), bounds(t, g, "G"))
	grp, _ := g.Node("G")
	a, _ := g.Node("A")
	assert.Equal(t, ZGroup, grp.ZIndex)
	assert.Equal(t, ZMember, a.ZIndex)
}

func TestRecomputeBoundaryIsIdempotent(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "G", rect(0, 0, 10, 10))
	mustNode(t, g, "A", rect(40, 60, 30, 30), "G")

	RecomputeBoundary(g, "G")
	first := bounds(t, g, "G")
	RecomputeBoundary(g, "G")

	assert.Equal(t, first, bounds(t, g, "G"))
}

func TestRecomputeBoundaryNoops(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "empty", rect(5, 5, 200, 100))
	mustNode(t, g, "A", rect(0, 0, 10, 10), "")

	assert.False(t, RecomputeBoundary(g, "missing"))
	assert.False(t, RecomputeBoundary(g, "A"))
	assert.False(t, RecomputeBoundary(g, "empty"))
	assert.Equal(t, rect(5, 5, 200, 100), bounds(t, g, "empty"))
}

func TestRecomputeAllAndLayering(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "G1", rect(0, 0, 1, 1))
	mustGroup(t, g, "G2", rect(0, 0, 1, 1))
	mustGroup(t, g, "G3", rect(0, 0, 1, 1))
	mustNode(t, g, "A", rect(0, 0, 10, 10), "G1")
	mustNode(t, g, "B", rect(500, 0, 10, 10), "G2")
	mustNode(t, g, "C", rect(900, 0, 10, 10), "")
	require.NoError(t, g.AddEdge(Edge{ID: "e", Source: "A", Target: "C"}))

	assert.Equal(t, 2, RecomputeAll(g))
	assert.Equal(t, rect(480, -20, 50, 50), bounds(t, g, "G2"))

	g.SetZIndex("C", 9)
	g.SetZIndex("G3", 4)
	EnforceLayering(g)
	c, _ := g.Node("C")
	g3, _ := g.Node("G3")
	e, _ := g.Edge("e")
	assert.Equal(t, ZMember, c.ZIndex)
	assert.Equal(t, ZGroup, g3.ZIndex)
	assert.Equal(t, ZEdge, e.ZIndex)
}

func TestMembersAndGroupsKeepInsertionOrder(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "G2", rect(0, 0, 1, 1))
	mustGroup(t, g, "G1", rect(0, 0, 1, 1))
	mustNode(t, g, "z", rect(0, 0, 1, 1), "G1")
	mustNode(t, g, "a", rect(0, 0, 1, 1), "G1")

	var ids []string
	for _, n := range Groups(g) {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"G2", "G1"}, ids)
	assert.Equal(t, []string{"z", "a"}, Members(g, "G1"))
}
