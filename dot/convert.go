// ABOUTME: Converts a topology document into a DOT graph with groups rendered as clusters.
// ABOUTME: Positions are pinned so Graphviz neato reproduces the editor layout.
package dot

import (
	"regexp"
	"strconv"

	"github.com/2389-research/topoedit/topo"
)

// pointsPerInch converts canvas pixels to the inch units DOT uses for sizes.
const pointsPerInch = 72.0

// groupColor matches the dashed outline the editor draws around groups.
const groupColor = "#5F95FF"

var shapes = map[string]string{
	"container": "box",
	"switch":    "hexagon",
	"router":    "diamond",
	"firewall":  "octagon",
}

var unsafeClusterChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// ClusterID returns the subgraph id used for a group. Graphviz only draws
// subgraphs as boxes when their id starts with "cluster".
func ClusterID(groupID string) string {
	return "cluster_" + unsafeClusterChars.ReplaceAllString(groupID, "_")
}

// FromDocument builds an undirected DOT graph from doc. Edges whose endpoints
// are missing or are groups are left out.
func FromDocument(name string, doc *topo.Document) *Graph {
	g := &Graph{
		Name:         name,
		Attrs:        map[string]string{"overlap": "true", "splines": "true"},
		NodeDefaults: map[string]string{"fontname": "Helvetica", "style": "rounded"},
	}

	normals := make(map[string]bool)
	for _, rec := range doc.Nodes {
		if rec.IsGroup() {
			continue
		}
		normals[rec.ID] = true
		g.AddNode(&Node{ID: rec.ID, Attrs: nodeAttrs(rec)})
	}

	for _, rec := range doc.Nodes {
		if !rec.IsGroup() {
			continue
		}
		sg := &Subgraph{
			ID: ClusterID(rec.ID),
			Attrs: map[string]string{
				"label": groupLabel(rec),
				"style": "dashed",
				"color": groupColor,
			},
		}
		for _, m := range doc.Nodes {
			if m.Parent == rec.ID && normals[m.ID] {
				sg.NodeIDs = append(sg.NodeIDs, m.ID)
			}
		}
		g.Subgraphs = append(g.Subgraphs, sg)
	}

	for _, rec := range doc.Edges {
		if !normals[rec.Source] || !normals[rec.Target] || rec.Source == rec.Target {
			continue
		}
		g.AddEdge(&Edge{ID: rec.ID, From: rec.Source, To: rec.Target, Attrs: edgeAttrs(rec)})
	}
	return g
}

func nodeAttrs(rec topo.NodeRecord) map[string]string {
	// DOT's y axis points up; 0 - y keeps a zero from printing as "-0".
	attrs := map[string]string{
		"label":  nodeLabel(rec),
		"pos":    formatFloat(rec.X) + "," + formatFloat(0-rec.Y) + "!",
		"width":  formatInches(rec.Width),
		"height": formatInches(rec.Height),
	}
	if shape, ok := shapes[rec.Type]; ok {
		attrs["shape"] = shape
	} else {
		attrs["shape"] = "box"
	}
	return attrs
}

func nodeLabel(rec topo.NodeRecord) string {
	if l := rec.Attrs.Map("label").String("text"); l != "" {
		return l
	}
	if rec.Name != "" {
		return rec.Name
	}
	return rec.ID
}

func groupLabel(rec topo.NodeRecord) string {
	if l := rec.Attrs.Map("label").String("text"); l != "" {
		return l
	}
	if rec.Name != "" {
		return rec.Name
	}
	return topo.UnnamedGroup
}

func edgeAttrs(rec topo.EdgeRecord) map[string]string {
	line := rec.Attrs.Map("line")
	if rec.CustomStyle {
		line = rec.Attrs.Merge(rec.CustomAttrs).Map("line")
	}
	attrs := map[string]string{"id": rec.ID}
	if stroke := line.String("stroke"); stroke != "" {
		attrs["color"] = stroke
	}
	if w, ok := line.Float("strokeWidth"); ok {
		attrs["penwidth"] = formatFloat(w)
	}
	if line.String("strokeDasharray") != "" {
		attrs["style"] = "dashed"
	}
	return attrs
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatInches(px float64) string {
	return strconv.FormatFloat(px/pointsPerInch, 'f', 2, 64)
}
