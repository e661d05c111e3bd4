// ABOUTME: Containment resolver that links a dropped node to the group enclosing it.
// ABOUTME: First matching group in insertion order wins; both old and new groups get recomputed.
package topo

// ResolveContainment assigns nodeID to the first group whose box contains the
// node's box or its center, or clears the parent when no group matches. The
// newly assigned group and any previous group are recomputed. It returns the
// resulting parent id and whether it changed. Groups are never contained.
func ResolveContainment(g Graph, nodeID string) (string, bool) {
	prev, next, ok := resolveParent(g, nodeID)
	if !ok {
		return "", false
	}
	if next != "" {
		RecomputeBoundary(g, next)
	}
	if prev != "" && prev != next {
		RecomputeBoundary(g, prev)
	}
	return next, prev != next
}

// resolveParent updates the parent link without recomputing any boundary.
func resolveParent(g Graph, nodeID string) (prev, next string, ok bool) {
	n, found := g.Node(nodeID)
	if !found || n.IsGroup() {
		return "", "", false
	}

	next = containingGroup(g, n)
	g.SetParent(nodeID, next)
	return n.Parent, next, true
}

func containingGroup(g Graph, n Node) string {
	center := n.Bounds.Center()
	for _, group := range Groups(g) {
		if group.Bounds.ContainsRect(n.Bounds) || group.Bounds.ContainsPoint(center) {
			return group.ID
		}
	}
	return ""
}
