package render

import (
	"fmt"
	"strings"

	"bytecraft/internal/callgraph"
	"bytecraft/internal/code"
	"bytecraft/internal/flow"
)

// CFGDOT renders the basic-block CFG of one method as DOT.
// Each basic block is a node; edges represent control flow.
// The entry block is highlighted, terminal and unreachable blocks are
// filled. Conditional edges use T/F colors and handler edges are dashed.
func CFGDOT(m *callgraph.Method, g *flow.CFG, t Theme) string {
	if len(g.Blocks) == 0 {
		return ""
	}
	reachable := g.Reachable()

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  nodesep=0.3;\n")
	b.WriteString("  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q, margin=\"0.08,0.04\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
	fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
		t.TextColor, dotEscape(m.ID()))
	b.WriteByte('\n')

	for _, blk := range g.Blocks {
		// One line per instruction, prefixed by its node index.
		var lines []string
		for i := blk.Start; i < blk.End && i < len(m.Body.Nodes); i++ {
			n := &m.Body.Nodes[i]
			switch n.Kind {
			case code.NodeInsn:
				lines = append(lines, dotEscape(fmt.Sprintf("%3d: %s", i, code.InstString(&n.Inst))))
			case code.NodeLabel:
				lines = append(lines, dotEscape(fmt.Sprintf("%s:", n.Label)))
			}
		}
		// Truncate long blocks.
		if len(lines) > 12 {
			kept := append(lines[:5:5], fmt.Sprintf("... (%d more)", len(lines)-10))
			lines = append(kept, lines[len(lines)-5:]...)
		}

		label := strings.Join(lines, "<br align=\"left\"/>")
		label += "<br align=\"left\"/>"

		attrs := ""
		if blk.IsEntry {
			attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.EdgeTaken)
		}
		switch {
		case !reachable[blk.ID]:
			attrs += fmt.Sprintf(", fillcolor=%q", t.DeadFill)
		case blk.IsTerm:
			attrs += fmt.Sprintf(", fillcolor=%q", t.StubFill)
		}
		fmt.Fprintf(&b, "  bb%d [label=<%s>%s];\n", blk.ID, label, attrs)
	}
	b.WriteByte('\n')

	for _, blk := range g.Blocks {
		from := fmt.Sprintf("bb%d", blk.ID)
		for _, s := range blk.Succs {
			to := fmt.Sprintf("bb%d", s.BlockID)
			switch s.Cond {
			case "T":
				fmt.Fprintf(&b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">T</font>>];\n",
					from, to, t.EdgeTaken, t.EdgeTaken)
			case "F":
				fmt.Fprintf(&b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">F</font>>];\n",
					from, to, t.EdgeFall, t.EdgeFall)
			default:
				fmt.Fprintf(&b, "  %s -> %s [color=%q];\n", from, to, t.EdgeDirect)
			}
		}
		for _, h := range blk.Handlers {
			fmt.Fprintf(&b, "  %s -> bb%d [color=%q, style=dashed];\n", from, g.Handler[h], t.EdgeHandler)
		}
	}

	b.WriteString("}\n")
	return b.String()
}
