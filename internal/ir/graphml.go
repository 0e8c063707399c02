// internal/ir/graphml.go
package ir

import (
	"fmt"
	"strings"
)

const graphmlHeader = `<?xml version="1.0" encoding="UTF-8"?>
<graphml xmlns="http://graphml.graphdrawing.org/xmlns"
         xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
         xsi:schemaLocation="http://graphml.graphdrawing.org/xmlns
         http://graphml.graphdrawing.org/xmlns/1.0/graphml.xsd">
  <key id="type" for="all" attr.name="type" attr.type="string"/>
  <key id="location" for="node" attr.name="location" attr.type="string"/>
`

// xmlEscape replaces special characters in attribute and key values
func xmlEscape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(s)
}

func indentXML(s string, level int) string {
	indent := strings.Repeat("  ", level)
	return indent + strings.ReplaceAll(s, "\n", "\n"+indent)
}

// GraphML renders the module as a GraphML document: one <node> per IR
// node with its ports, one <edge> per dataflow edge.
func (m *Module) GraphML() string {
	var sb strings.Builder
	sb.WriteString(graphmlHeader)
	sb.WriteString(`  <graph id="module" edgedefault="directed">` + "\n")
	for _, n := range m.AllNodes() {
		sb.WriteString(indentXML(m.nodeGraphML(n), 2))
		sb.WriteString("\n")
	}
	for _, e := range m.Edges {
		sb.WriteString(indentXML(m.edgeGraphML(e), 2))
		sb.WriteString("\n")
	}
	sb.WriteString("  </graph>\n</graphml>\n")
	return sb.String()
}

func (m *Module) nodeGraphML(n *Node) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<node id=%q>\n", xmlEscape(n.ID)))
	sb.WriteString(fmt.Sprintf("  <data key=\"type\">%s</data>\n", xmlEscape(n.Name)))
	if n.Location != "" {
		sb.WriteString(fmt.Sprintf("  <data key=\"location\">%s</data>\n", xmlEscape(n.Location)))
	}
	for _, p := range n.InPorts {
		sb.WriteString(fmt.Sprintf("  <port name=\"in%d\" type=%q/>\n", p.Index, xmlEscape(p.Type.String())))
	}
	for _, p := range n.OutPorts {
		sb.WriteString(fmt.Sprintf("  <port name=\"out%d\" type=%q/>\n", p.Index, xmlEscape(p.Type.String())))
	}
	sb.WriteString("</node>")
	return sb.String()
}

func (m *Module) edgeGraphML(e *Edge) string {
	srcSide := "out"
	if e.From.In {
		srcSide = "in"
	}
	dstSide := "in"
	if !e.To.In {
		dstSide = "out"
	}
	return fmt.Sprintf(
		"<edge source=%q target=%q sourceport=\"%s%d\" targetport=\"%s%d\">\n"+
			"  <data key=\"type\">%s</data>\n"+
			"</edge>",
		xmlEscape(e.From.NodeID), xmlEscape(e.To.NodeID),
		srcSide, e.From.Index, dstSide, e.To.Index,
		xmlEscape(e.To.Type.String()))
}
