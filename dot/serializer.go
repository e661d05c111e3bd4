// ABOUTME: Serializer that renders a Graph as DOT source with deterministic output.
// ABOUTME: Clustered nodes are declared inside their subgraph; attributes are sorted by key.
package dot

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Serialize converts a Graph to a DOT-formatted string. Nodes and edges keep
// insertion order and attributes within each element are sorted by key.
func Serialize(g *Graph) string {
	var b strings.Builder

	kind, arrow := "graph", "--"
	if g.Directed {
		kind, arrow = "digraph", "->"
	}
	fmt.Fprintf(&b, "%s %s {\n", kind, quoteID(g.Name))

	if len(g.Attrs) > 0 {
		fmt.Fprintf(&b, "  graph [%s]\n", formatAttrs(g.Attrs))
	}
	if len(g.NodeDefaults) > 0 {
		fmt.Fprintf(&b, "  node [%s]\n", formatAttrs(g.NodeDefaults))
	}
	if len(g.EdgeDefaults) > 0 {
		fmt.Fprintf(&b, "  edge [%s]\n", formatAttrs(g.EdgeDefaults))
	}
	if len(g.Attrs) > 0 || len(g.NodeDefaults) > 0 || len(g.EdgeDefaults) > 0 {
		b.WriteString("\n")
	}

	loose := 0
	for _, n := range g.Nodes {
		if g.Clustered(n.ID) {
			continue
		}
		writeNode(&b, "  ", n)
		loose++
	}

	if loose > 0 && len(g.Subgraphs) > 0 {
		b.WriteString("\n")
	}

	for _, sg := range g.Subgraphs {
		fmt.Fprintf(&b, "  subgraph %s {\n", quoteID(sg.ID))
		for _, k := range sortedKeys(sg.Attrs) {
			fmt.Fprintf(&b, "    %s=%s\n", k, quoteValue(sg.Attrs[k]))
		}
		for _, nid := range sg.NodeIDs {
			if n := g.FindNode(nid); n != nil {
				writeNode(&b, "    ", n)
			} else {
				fmt.Fprintf(&b, "    %s\n", quoteID(nid))
			}
		}
		b.WriteString("  }\n")
	}

	if (len(g.Nodes) > 0 || len(g.Subgraphs) > 0) && len(g.Edges) > 0 {
		b.WriteString("\n")
	}

	for _, e := range g.Edges {
		if len(e.Attrs) > 0 {
			fmt.Fprintf(&b, "  %s %s %s [%s]\n", quoteID(e.From), arrow, quoteID(e.To), formatAttrs(e.Attrs))
		} else {
			fmt.Fprintf(&b, "  %s %s %s\n", quoteID(e.From), arrow, quoteID(e.To))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func writeNode(b *strings.Builder, indent string, n *Node) {
	if len(n.Attrs) > 0 {
		fmt.Fprintf(b, "%s%s [%s]\n", indent, quoteID(n.ID), formatAttrs(n.Attrs))
	} else {
		fmt.Fprintf(b, "%s%s\n", indent, quoteID(n.ID))
	}
}

// formatAttrs renders a map of key=value pairs as a comma-separated string with sorted keys.
func formatAttrs(attrs map[string]string) string {
	keys := sortedKeys(attrs)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, quoteValue(attrs[k])))
	}
	return strings.Join(parts, ", ")
}

func quoteID(id string) string {
	if isBareIdentifier(id) {
		return id
	}
	return quoteValue(id)
}

// quoteValue returns a DOT-safe representation of a value.
// Simple identifiers (lowercase letters, digits, underscores) and numbers are
// returned bare; everything else is double-quoted with escaping.
func quoteValue(val string) string {
	if val == "" {
		return `""`
	}
	if isBareIdentifier(val) {
		return val
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, ch := range val {
		switch ch {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// isBareIdentifier returns true if val can be written without quotes in DOT.
func isBareIdentifier(val string) bool {
	if val == "" {
		return false
	}
	if isNumeric(val) {
		return true
	}
	for i, ch := range val {
		if i == 0 && unicode.IsDigit(ch) {
			return false
		}
		if ch != '_' && !unicode.IsLower(ch) && !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// isNumeric returns true if val looks like a number (integer or float, possibly negative).
func isNumeric(val string) bool {
	if val == "" {
		return false
	}
	start := 0
	if val[0] == '-' {
		if len(val) == 1 {
			return false
		}
		start = 1
	}
	hasDot := false
	hasDigit := false
	for i := start; i < len(val); i++ {
		ch := val[i]
		switch {
		case ch == '.':
			if hasDot {
				return false
			}
			hasDot = true
		case ch >= '0' && ch <= '9':
			hasDigit = true
		default:
			return false
		}
	}
	return hasDigit
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
