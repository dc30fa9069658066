package render

import (
	"fmt"
	"sort"
	"strings"

	"bytecraft/internal/callgraph"
)

// FindEntryPoints returns methods that no collected method calls.
// Static initializers run on their own and are always entry points.
func FindEntryPoints(methods []*callgraph.Method) []string {
	called := make(map[string]bool)
	for _, m := range methods {
		for _, c := range m.Calls() {
			if c.Callee != m.ID() {
				called[c.Callee] = true
			}
		}
	}

	var entries []string
	for _, m := range methods {
		if m.Name == "<clinit>" || !called[m.ID()] {
			entries = append(entries, m.ID())
		}
	}
	sort.Strings(entries)
	return entries
}

// ReachableSet performs BFS from entry points following call edges and
// returns the set of all reachable method IDs.
func ReachableSet(entryPoints []string, methods []*callgraph.Method) map[string]bool {
	adj := make(map[string][]string)
	for _, m := range methods {
		for _, c := range m.Calls() {
			adj[m.ID()] = append(adj[m.ID()], c.Callee)
		}
	}

	reachable := make(map[string]bool)
	queue := make([]string, 0, len(entryPoints))
	for _, ep := range entryPoints {
		if !reachable[ep] {
			reachable[ep] = true
			queue = append(queue, ep)
		}
	}

	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]
		for _, target := range adj[fn] {
			if !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}
	return reachable
}

// ReachabilityDOT renders the call graph filtered to the reachable set.
// Entry points are highlighted. Only edges between reachable methods are
// shown.
func ReachabilityDOT(methods []*callgraph.Method, reachable map[string]bool, entryPoints []string, title string, t Theme) string {
	entrySet := make(map[string]bool, len(entryPoints))
	for _, ep := range entryPoints {
		entrySet[ep] = true
	}

	owners := make(map[string]string, len(methods))
	for _, m := range methods {
		owners[m.ID()] = m.Owner
	}

	type key struct{ from, to string }
	edgeCount := make(map[key]int)
	var order []key
	for _, m := range methods {
		for _, c := range m.Calls() {
			k := key{m.ID(), c.Callee}
			if !reachable[k.from] || !reachable[k.to] {
				continue
			}
			if edgeCount[k] == 0 {
				order = append(order, k)
			}
			edgeCount[k]++
		}
	}

	refNodes := make(map[string]bool)
	for _, k := range order {
		refNodes[k.from] = true
		refNodes[k.to] = true
	}
	for _, ep := range entryPoints {
		refNodes[ep] = true
	}

	// Group by owner for clustering. Callees outside the input have none.
	ownerMethods := make(map[string][]string)
	var noOwner []string
	for _, name := range sortedKeys(refNodes) {
		if owner := owners[name]; owner != "" {
			ownerMethods[owner] = append(ownerMethods[owner], name)
		} else {
			noOwner = append(noOwner, name)
		}
	}

	var b strings.Builder
	b.WriteString("digraph reachable {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  compound=true;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.4;\n")
	b.WriteString("  ranksep=0.6;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=9, fontcolor=%q, height=0.3, margin=\"0.12,0.06\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee, color=%q];\n", t.EdgeDirect)
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	writeNode := func(name string) {
		id := dotID(name)
		label := truncLabel(name, 50)
		if entrySet[name] {
			fmt.Fprintf(&b, "    %s [label=%q, penwidth=1.5, color=%q];\n", id, label, t.EdgeVirtual)
		} else {
			fmt.Fprintf(&b, "    %s [label=%q];\n", id, label)
		}
	}

	for _, owner := range sortedKeys(ownerMethods) {
		names := ownerMethods[owner]
		if len(names) < 2 {
			noOwner = append(noOwner, names...)
			continue
		}
		fmt.Fprintf(&b, "  subgraph %s {\n", "cluster_"+dotID(owner))
		fmt.Fprintf(&b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.ClusterLabel, dotEscape(javaName(owner)))
		fmt.Fprintf(&b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, name := range names {
			writeNode(name)
		}
		b.WriteString("  }\n")
	}
	sort.Strings(noOwner)
	for _, name := range noOwner {
		b.WriteString("  ")
		writeNode(name)
	}
	b.WriteByte('\n')

	for _, k := range order {
		attrs := fmt.Sprintf("color=%q", t.EdgeDirect)
		if count := edgeCount[k]; count > 1 {
			attrs += fmt.Sprintf(", penwidth=%.1f", 0.5+float64(count)*0.1)
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(k.from), dotID(k.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}
