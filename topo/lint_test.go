// ABOUTME: Tests for document lint rules.
// ABOUTME: A clean serialized lab must produce no diagnostics; each broken fixture triggers its rule.
package topo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rules(diags []Diagnostic) []string {
	var out []string
	for _, d := range diags {
		out = append(out, d.Rule)
	}
	return out
}

func TestLintCleanLab(t *testing.T) {
	diags := Lint(Serialize(buildLab(t)))
	assert.Empty(t, diags)
	assert.False(t, HasErrors(diags))
}

func TestLintFindsProblems(t *testing.T) {
	doc := &Document{
		Nodes: []NodeRecord{
			{ID: "g", Type: TypeGroup, X: 0, Y: 0, Width: 10, Height: 10},
			{ID: "empty", Type: TypeGroup, Parent: "g"},
			{ID: "a", Type: "container", X: 100, Y: 100, Width: 50, Height: 50, Parent: "g"},
			{ID: "b", Type: "container", Parent: "a"},
		},
		Edges: []EdgeRecord{
			{ID: "e1", Source: "a", Target: "ghost"},
			{ID: "e2", Source: "b", Target: "b"},
			{ID: "e3", Source: "a", Target: "g"},
		},
		Groups: []GroupRecord{{ID: "g", Children: []string{"a", "b"}}},
	}

	diags := Lint(doc)
	assert.True(t, HasErrors(diags))
	assert.ElementsMatch(t, []string{
		"dangling_edge",
		"self_loop",
		"group_endpoint",
		"nested_group",
		"orphan_parent",
		"empty_group",
		"stale_bounds",
		"group_children",
	}, rules(diags))

	for _, d := range diags {
		if d.Rule == "dangling_edge" {
			assert.Equal(t, "e1", d.EdgeID)
			assert.Contains(t, d.Message, "ghost")
		}
	}
}

func TestLintWarningsOnly(t *testing.T) {
	doc := &Document{
		Nodes: []NodeRecord{{ID: "g", Type: TypeGroup, Width: 200, Height: 100}},
	}
	diags := Lint(doc)
	assert.Equal(t, []string{"empty_group"}, rules(diags))
	assert.False(t, HasErrors(diags))
}
