// ABOUTME: Tests for movement permission, containment resolution, and bulk scopes.
// ABOUTME: Verifies first-match group selection, center rule, and single recompute per bulk.
package topo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanMove(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "G", rect(0, 0, 100, 100))
	mustNode(t, g, "A", rect(10, 10, 20, 20), "G")
	mustNode(t, g, "B", rect(300, 10, 20, 20), "")
	require.NoError(t, g.AddEdge(Edge{ID: "e", Source: "A", Target: "B"}))

	tests := []struct {
		name string
		id   string
		sel  Selection
		want bool
	}{
		{"group never moves", "G", NewSelection(), false},
		{"selected group never moves", "G", NewSelection("G"), false},
		{"member with its group selected", "A", NewSelection("G"), false},
		{"member on its own", "A", NewSelection("A"), true},
		{"member with nothing selected", "A", nil, true},
		{"loose node", "B", NewSelection("G"), true},
		{"edge", "e", NewSelection(), true},
		{"unknown id", "ghost", NewSelection(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanMove(g, tt.id, tt.sel))
		})
	}
}

func TestResolveContainmentJoinsAndLeaves(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "G", rect(0, 0, 1, 1))
	mustNode(t, g, "A", rect(100, 100, 50, 50), "G")
	RecomputeBoundary(g, "G")
	require.Equal(t, rect(80, 80, 90, 90), bounds(t, g, "G"))

	mustNode(t, g, "B", rect(90, 90, 20, 20), "")
	parent, changed := ResolveContainment(g, "B")
	assert.Equal(t, "G", parent)
	assert.True(t, changed)
	assert.Equal(t, rect(70, 70, 100, 100), bounds(t, g, "G"))

	g.SetBounds("B", rect(500, 500, 20, 20))
	parent, changed = ResolveContainment(g, "B")
	assert.Empty(t, parent)
	assert.True(t, changed)
	assert.Equal(t, rect(80, 80, 90, 90), bounds(t, g, "G"))

	b, _ := g.Node("B")
	assert.Empty(t, b.Parent)
}

func TestResolveContainmentUsesCenter(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "G", rect(0, 0, 100, 100))
	// Overhangs the right edge, but the center is inside.
	mustNode(t, g, "A", rect(80, 40, 30, 20), "")

	parent, _ := ResolveContainment(g, "A")
	assert.Equal(t, "G", parent)
}

func TestResolveContainmentFirstGroupWins(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "first", rect(0, 0, 200, 200))
	mustGroup(t, g, "second", rect(50, 50, 200, 200))
	mustNode(t, g, "A", rect(100, 100, 10, 10), "")

	parent, _ := ResolveContainment(g, "A")
	assert.Equal(t, "first", parent)
}

func TestResolveContainmentUnchangedParent(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "G", rect(0, 0, 1, 1))
	mustNode(t, g, "A", rect(100, 100, 50, 50), "G")
	RecomputeBoundary(g, "G")

	parent, changed := ResolveContainment(g, "A")
	assert.Equal(t, "G", parent)
	assert.False(t, changed)
}

func TestResolveContainmentIgnoresGroupsAndUnknown(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "outer", rect(0, 0, 500, 500))
	mustGroup(t, g, "inner", rect(10, 10, 50, 50))

	parent, changed := ResolveContainment(g, "inner")
	assert.Empty(t, parent)
	assert.False(t, changed)

	parent, changed = ResolveContainment(g, "ghost")
	assert.Empty(t, parent)
	assert.False(t, changed)

	inner, _ := g.Node("inner")
	assert.Empty(t, inner.Parent)
}

func TestBulkRecomputesEachGroupOnce(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "G", rect(0, 0, 1, 1))
	mustNode(t, g, "A", rect(100, 100, 50, 50), "G")
	RecomputeBoundary(g, "G")

	groupUpdates := 0
	g.OnChange(func(c Change) {
		if c.ID == "G" && c.Op == ChangeUpdated {
			groupUpdates++
		}
	})

	bulk := BeginBulk(g)
	mustNode(t, g, "B", rect(90, 90, 20, 20), "")
	mustNode(t, g, "C", rect(140, 140, 20, 20), "")
	bulk.Place("B")
	bulk.Place("C")
	assert.Equal(t, 0, groupUpdates)

	assert.Equal(t, 1, bulk.End())
	assert.Equal(t, 1, groupUpdates)
	assert.Equal(t, []string{"A", "B", "C"}, Members(g, "G"))
	assert.Equal(t, rect(70, 70, 110, 110), bounds(t, g, "G"))

	assert.Equal(t, 0, bulk.End())
}

func TestBulkTouchRecomputesVacatedGroup(t *testing.T) {
	g := NewMemGraph()
	mustGroup(t, g, "G", rect(0, 0, 1, 1))
	mustNode(t, g, "A", rect(0, 0, 10, 10), "G")
	mustNode(t, g, "B", rect(50, 0, 10, 10), "G")
	RecomputeBoundary(g, "G")

	bulk := BeginBulk(g)
	g.SetBounds("B", rect(900, 900, 10, 10))
	bulk.Place("B")
	bulk.End()

	assert.Equal(t, []string{"A"}, Members(g, "G"))
	assert.Equal(t, rect(-20, -20, 50, 50), bounds(t, g, "G"))
}
