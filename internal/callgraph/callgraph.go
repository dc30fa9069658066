// Package callgraph builds lattice call graphs and per-method control flow
// graphs from class files.
package callgraph

import (
	"github.com/zboralski/lattice"
)

// BuildCallGraph constructs a lattice.Graph from collected methods.
// Each method becomes a node. Each invoke instruction becomes an edge, so
// callees outside the input appear only as edge targets.
func BuildCallGraph(methods []*Method) *lattice.Graph {
	g := &lattice.Graph{}
	for _, m := range methods {
		caller := m.ID()
		g.Nodes = append(g.Nodes, caller)
		for _, c := range m.Calls() {
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: caller,
				Callee: c.Callee,
			})
		}
	}
	g.Dedup()
	return g
}
