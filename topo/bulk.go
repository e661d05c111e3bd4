// ABOUTME: Bulk operation scope that defers containment and boundary work until the scope closes.
// ABOUTME: Guarantees recomputation observes the final membership of paste, load, and multi-drop.
package topo

// Bulk collects placed nodes and stale groups during a multi-element
// mutation. Nothing is resolved until End is called.
type Bulk struct {
	g      Graph
	placed []string
	dirty  map[string]struct{}
	order  []string
	closed bool
}

// BeginBulk opens a bulk scope over g.
func BeginBulk(g Graph) *Bulk {
	return &Bulk{g: g, dirty: make(map[string]struct{})}
}

// Place records a node whose position has been finalized inside the scope.
func (b *Bulk) Place(nodeID string) {
	b.placed = append(b.placed, nodeID)
}

// Touch marks a group as needing recomputation when the scope closes.
func (b *Bulk) Touch(groupID string) {
	if groupID == "" {
		return
	}
	if _, ok := b.dirty[groupID]; ok {
		return
	}
	b.dirty[groupID] = struct{}{}
	b.order = append(b.order, groupID)
}

// End resolves containment for every placed node against the final layout,
// recomputes each affected group once, and enforces layering. It returns the
// number of groups that were resized. Calling End twice is a no-op.
func (b *Bulk) End() int {
	if b.closed {
		return 0
	}
	b.closed = true

	for _, id := range b.placed {
		prev, next, ok := resolveParent(b.g, id)
		if !ok {
			continue
		}
		b.Touch(prev)
		b.Touch(next)
	}

	resized := 0
	for _, id := range b.order {
		if RecomputeBoundary(b.g, id) {
			resized++
		}
	}
	EnforceLayering(b.g)
	return resized
}
