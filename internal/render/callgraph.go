package render

import (
	"fmt"
	"sort"
	"strings"

	"bytecraft/internal/callgraph"
	"bytecraft/internal/opcode"
)

// Call edge kinds, one per invoke instruction.
const (
	KindStatic    = "static"
	KindSpecial   = "special"
	KindVirtual   = "virtual"
	KindInterface = "interface"
	KindDynamic   = "dynamic"
)

// ClassifyCall returns the edge kind of a call site.
func ClassifyCall(c callgraph.CallSite) string {
	switch c.Op {
	case opcode.INVOKESTATIC:
		return KindStatic
	case opcode.INVOKESPECIAL:
		return KindSpecial
	case opcode.INVOKEINTERFACE:
		return KindInterface
	case opcode.INVOKEDYNAMIC:
		return KindDynamic
	default:
		return KindVirtual
	}
}

// edgeColor returns the DOT color for an edge kind.
func edgeColor(kind string, t Theme) string {
	switch kind {
	case KindStatic:
		return t.EdgeStatic
	case KindSpecial:
		return t.EdgeSpecial
	case KindInterface:
		return t.EdgeInterface
	case KindDynamic:
		return t.EdgeDynamic
	default:
		return t.EdgeVirtual
	}
}

// edgeStyle returns dot style attributes for an edge kind.
func edgeStyle(kind string) string {
	switch kind {
	case KindInterface:
		return "dotted"
	case KindDynamic:
		return "dashed"
	default:
		return "solid"
	}
}

type edgeKey struct {
	from, to, kind string
}

// callEdges counts call sites by caller, callee and kind.
func callEdges(methods []*callgraph.Method) (map[edgeKey]int, []edgeKey) {
	counts := make(map[edgeKey]int)
	var order []edgeKey
	for _, m := range methods {
		from := m.ID()
		for _, c := range m.Calls() {
			k := edgeKey{from, c.Callee, ClassifyCall(c)}
			if counts[k] == 0 {
				order = append(order, k)
			}
			counts[k]++
		}
	}
	return counts, order
}

// CallgraphDOT renders a call graph from collected methods as DOT.
// Methods are clustered by owner class. Callees outside the input are
// shown as plaintext nodes. maxNodes limits the number of method nodes
// rendered (0 = all).
func CallgraphDOT(methods []*callgraph.Method, title string, t Theme, maxNodes int) string {
	counts, order := callEdges(methods)

	// Identify referenced nodes (callers + callees).
	refNodes := make(map[string]bool)
	for _, k := range order {
		refNodes[k.from] = true
		refNodes[k.to] = true
	}

	// Filter to methods that participate in edges.
	var renderMethods []*callgraph.Method
	for _, m := range methods {
		if refNodes[m.ID()] {
			renderMethods = append(renderMethods, m)
		}
	}
	if maxNodes > 0 && len(renderMethods) > maxNodes {
		renderMethods = renderMethods[:maxNodes]
	}
	methodSet := make(map[string]bool, len(renderMethods))
	for _, m := range renderMethods {
		methodSet[m.ID()] = true
	}

	// Collect external nodes reachable from rendered methods.
	externalNodes := make(map[string]bool)
	for _, k := range order {
		if methodSet[k.from] && !methodSet[k.to] {
			externalNodes[k.to] = true
		}
	}

	ownerMethods := make(map[string][]*callgraph.Method)
	for _, m := range renderMethods {
		ownerMethods[m.Owner] = append(ownerMethods[m.Owner], m)
	}

	var b strings.Builder
	b.WriteString("digraph callgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  compound=true;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.4;\n")
	b.WriteString("  ranksep=0.6;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=9, fontcolor=%q, height=0.3, margin=\"0.12,0.06\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee];\n")
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	// Render clustered method nodes (grouped by owner).
	var singles []*callgraph.Method
	for _, owner := range sortedKeys(ownerMethods) {
		inOwner := ownerMethods[owner]
		if len(inOwner) < 2 {
			singles = append(singles, inOwner...)
			continue
		}
		fmt.Fprintf(&b, "  subgraph %s {\n", "cluster_"+dotID(owner))
		fmt.Fprintf(&b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.ClusterLabel, dotEscape(javaName(owner)))
		fmt.Fprintf(&b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, m := range inOwner {
			// Inside a cluster, strip owner prefix for shorter labels.
			label := truncLabel(stripMethodName(m.ID(), owner), 50)
			fmt.Fprintf(&b, "    %s [label=%q];\n", dotID(m.ID()), label)
		}
		b.WriteString("  }\n")
	}
	for _, m := range singles {
		fmt.Fprintf(&b, "  %s [label=%q];\n", dotID(m.ID()), truncLabel(m.ID(), 60))
	}
	b.WriteByte('\n')

	for _, name := range sortedKeys(externalNodes) {
		fmt.Fprintf(&b, "  %s [label=%q, shape=plaintext, style=\"\", fillcolor=none, fontcolor=%q, fontsize=8];\n",
			dotID(name), truncLabel(name, 50), t.ExternalText)
	}
	b.WriteByte('\n')

	for _, k := range order {
		if !methodSet[k.from] {
			continue
		}
		count := counts[k]
		color := edgeColor(k.kind, t)
		attrs := fmt.Sprintf("color=%q, style=%q", color, edgeStyle(k.kind))
		if count > 1 {
			attrs += fmt.Sprintf(", penwidth=%.1f", 0.5+float64(count)*0.1)
			if count > 2 {
				attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%dx</font>>", color, count)
			}
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(k.from), dotID(k.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}

// CallgraphStats holds summary statistics of a call graph.
type CallgraphStats struct {
	TotalMethods int            `json:"total_methods"`
	TotalEdges   int            `json:"total_edges"`
	UniqueOwners int            `json:"unique_owners"`
	KindCounts   map[string]int `json:"kind_counts"`
	TopCallers   []NameCount    `json:"top_callers"` // sorted desc
	TopCallees   []NameCount    `json:"top_callees"` // sorted desc
	TopOwners    []NameCount    `json:"top_owners"`  // sorted desc by method count
}

// NameCount pairs a name with a count.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ComputeStats computes call graph statistics from collected methods.
func ComputeStats(methods []*callgraph.Method) CallgraphStats {
	stats := CallgraphStats{
		TotalMethods: len(methods),
		KindCounts:   make(map[string]int),
	}

	callerCount := make(map[string]int)
	calleeCount := make(map[string]int)
	ownerCount := make(map[string]int)
	for _, m := range methods {
		ownerCount[m.Owner]++
		for _, c := range m.Calls() {
			stats.TotalEdges++
			stats.KindCounts[ClassifyCall(c)]++
			callerCount[m.ID()]++
			calleeCount[c.Callee]++
		}
	}
	stats.UniqueOwners = len(ownerCount)

	stats.TopCallers = topNMap(callerCount, 20)
	stats.TopCallees = topNMap(calleeCount, 20)
	stats.TopOwners = topNMap(ownerCount, 30)
	return stats
}

// topNMap returns the top N entries from a map, sorted descending by count
// and then by name.
func topNMap(m map[string]int, n int) []NameCount {
	entries := make([]NameCount, 0, len(m))
	for name, count := range m {
		entries = append(entries, NameCount{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
