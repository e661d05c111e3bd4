// ABOUTME: Movement constraint policy answering whether the surface may start dragging an element.
// ABOUTME: Groups never move directly; members of a selected group move only with the group.
package topo

// CanMove reports whether element id may be dragged given the current selection.
// Unknown ids cannot move.
func CanMove(g Graph, id string, sel Selection) bool {
	if n, ok := g.Node(id); ok {
		if n.IsGroup() {
			return false
		}
		if n.Parent != "" && sel.Has(n.Parent) {
			return false
		}
		return true
	}
	_, ok := g.Edge(id)
	return ok
}
