// ABOUTME: Group boundary engine that derives each group's box from its members plus padding.
// ABOUTME: Also centralizes z-order layering so groups always sit behind the nodes they contain.
package topo

// Padding is the margin added on every side of a group's member bounding box.
const Padding = 20.0

// Stacking order per element class.
const (
	ZGroup  = 0
	ZMember = 1
	ZEdge   = 2
)

// Groups returns every group node in insertion order.
func Groups(g Graph) []Node {
	var out []Node
	for _, n := range g.Nodes() {
		if n.IsGroup() {
			out = append(out, n)
		}
	}
	return out
}

// Members returns the ids of every node whose parent is groupID, in insertion order.
func Members(g Graph, groupID string) []string {
	var out []string
	for _, n := range g.Nodes() {
		if n.Parent == groupID {
			out = append(out, n.ID)
		}
	}
	return out
}

// RecomputeBoundary resizes a group to the union of its members' boxes
// expanded by Padding, then layers the group beneath its members.
// Unknown ids, non-group ids and memberless groups are left untouched and
// report false; memberless groups keep their last bounds.
func RecomputeBoundary(g Graph, groupID string) bool {
	group, ok := g.Node(groupID)
	if !ok || !group.IsGroup() {
		return false
	}

	members := Members(g, groupID)
	if len(members) == 0 {
		return false
	}

	box, ok := g.CellsBBox(members)
	if !ok {
		return false
	}
	g.SetBounds(groupID, box.Expand(Padding))

	g.SetZIndex(groupID, ZGroup)
	for _, id := range members {
		g.SetZIndex(id, ZMember)
	}
	return true
}

// RecomputeAll recomputes every group. Groups do not nest, so each group is
// independent and order does not matter.
func RecomputeAll(g Graph) int {
	n := 0
	for _, group := range Groups(g) {
		if RecomputeBoundary(g, group.ID) {
			n++
		}
	}
	return n
}

// EnforceLayering puts every group at ZGroup, every normal node at ZMember
// and every edge at ZEdge.
func EnforceLayering(g Graph) {
	for _, n := range g.Nodes() {
		if n.IsGroup() {
			g.SetZIndex(n.ID, ZGroup)
		} else {
			g.SetZIndex(n.ID, ZMember)
		}
	}
	for _, e := range g.Edges() {
		g.SetZIndex(e.ID, ZEdge)
	}
}
