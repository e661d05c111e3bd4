// ABOUTME: Graph types for DOT export of topology documents: nodes, edges, and cluster subgraphs.
// ABOUTME: Nodes keep insertion order so exports follow the document's layout order.
package dot

// Graph is a DOT graph ready to be serialized.
type Graph struct {
	Name         string
	Directed     bool
	Nodes        []*Node
	Edges        []*Edge
	Attrs        map[string]string // graph-level attributes
	NodeDefaults map[string]string // node [...] defaults
	EdgeDefaults map[string]string // edge [...] defaults
	Subgraphs    []*Subgraph

	index map[string]*Node
}

// Node is a DOT node with key-value attributes.
type Node struct {
	ID    string
	Attrs map[string]string
}

// Edge links two node ids.
type Edge struct {
	ID    string
	From  string
	To    string
	Attrs map[string]string
}

// Subgraph is a cluster listing the ids of the nodes drawn inside it.
type Subgraph struct {
	ID      string
	Attrs   map[string]string
	NodeIDs []string
}

// AddNode appends a node. A node with an existing id replaces the earlier one in place.
func (g *Graph) AddNode(n *Node) {
	if g.index == nil {
		g.index = make(map[string]*Node)
	}
	if old, ok := g.index[n.ID]; ok {
		*old = *n
		return
	}
	g.index[n.ID] = n
	g.Nodes = append(g.Nodes, n)
}

// AddEdge appends an edge to the graph.
func (g *Graph) AddEdge(e *Edge) {
	g.Edges = append(g.Edges, e)
}

// FindNode returns the node with the given ID, or nil if not found.
func (g *Graph) FindNode(id string) *Node {
	return g.index[id]
}

// Clustered reports whether the node is drawn inside any subgraph.
func (g *Graph) Clustered(id string) bool {
	for _, sg := range g.Subgraphs {
		for _, nid := range sg.NodeIDs {
			if nid == id {
				return true
			}
		}
	}
	return false
}
