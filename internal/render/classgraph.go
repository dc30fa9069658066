package render

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"bytecraft/internal/callgraph"
)

// ClassgraphDOT renders a class-level call graph where each owner class is
// one node and edges aggregate inter-class calls. maxNodes limits rendered
// classes (0 = all). Dynamic call sites have no owner and are left out.
func ClassgraphDOT(methods []*callgraph.Method, title string, t Theme, maxNodes int) string {
	ownerMethodCount := make(map[string]int)
	for _, m := range methods {
		ownerMethodCount[m.Owner]++
	}

	type classEdge struct {
		from, to string
	}
	classCounts := make(map[classEdge]int)
	for _, m := range methods {
		for _, c := range m.Calls() {
			if c.Owner == "" || c.Owner == m.Owner {
				continue
			}
			classCounts[classEdge{m.Owner, c.Owner}]++
		}
	}

	// Total edges touching each class.
	classInvolvement := make(map[string]int)
	for ce, count := range classCounts {
		classInvolvement[ce.from] += count
		classInvolvement[ce.to] += count
	}
	ranked := topNMap(classInvolvement, len(classInvolvement))
	if maxNodes > 0 && len(ranked) > maxNodes {
		ranked = ranked[:maxNodes]
	}
	renderSet := make(map[string]bool, len(ranked))
	for _, rc := range ranked {
		renderSet[rc.Name] = true
	}

	var b strings.Builder
	b.WriteString("digraph classgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.5;\n")
	b.WriteString("  ranksep=0.8;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=\"filled,rounded\", fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=10, fontcolor=%q, height=0.4, margin=\"0.15,0.08\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee, color=%q];\n", t.EdgeDirect)
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	maxMethods := 1
	for name := range renderSet {
		if c := ownerMethodCount[name]; c > maxMethods {
			maxMethods = c
		}
	}
	for _, rc := range ranked {
		name := rc.Name
		methods := ownerMethodCount[name]

		// Scale node height by method count (log scale).
		height := 0.4 + 0.3*math.Log2(float64(methods)+1)/math.Log2(float64(maxMethods)+1)

		if methods == 0 {
			// Referenced but not part of the input.
			fmt.Fprintf(&b, "  %s [label=%q, fillcolor=%q, fontcolor=%q, height=%.2f];\n",
				dotID(name), javaName(name), t.StubFill, t.ExternalText, height)
			continue
		}
		htmlLabel := fmt.Sprintf("<<font point-size=\"10\">%s</font><br/><font point-size=\"7\" color=\"%s\">%d methods</font>>",
			dotEscape(javaName(name)), t.ExternalText, methods)
		fmt.Fprintf(&b, "  %s [label=%s, height=%.2f];\n", dotID(name), htmlLabel, height)
	}
	b.WriteByte('\n')

	edges := make([]classEdge, 0, len(classCounts))
	maxEdgeCount := 1
	for ce, count := range classCounts {
		if !renderSet[ce.from] || !renderSet[ce.to] {
			continue
		}
		edges = append(edges, ce)
		if count > maxEdgeCount {
			maxEdgeCount = count
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})

	for _, ce := range edges {
		count := classCounts[ce]
		pw := 0.5 + 2.0*math.Log2(float64(count)+1)/math.Log2(float64(maxEdgeCount)+1)
		attrs := fmt.Sprintf("penwidth=%.1f", pw)
		if count > 1 {
			attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%d</font>>",
				t.ExternalText, count)
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(ce.from), dotID(ce.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}
