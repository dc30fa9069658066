package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"bytecraft/internal/flow"
)

// BuildCFG constructs a lattice.CFGGraph from collected methods.
// Each method is partitioned by flow.BuildCFG and then mapped to lattice
// types.
func BuildCFG(methods []*Method) (*lattice.CFGGraph, error) {
	cg := &lattice.CFGGraph{}
	for _, m := range methods {
		lcfg, _, err := BuildFuncCFG(m)
		if err != nil {
			return nil, err
		}
		cg.Funcs = append(cg.Funcs, lcfg)
	}
	return cg, nil
}

// BuildFuncCFG builds a single-method lattice.FuncCFG.
// Returns the FuncCFG and the number of basic blocks (for filtering trivial methods).
func BuildFuncCFG(m *Method) (*lattice.FuncCFG, int, error) {
	g, err := flow.BuildCFG(&m.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("cfg %s: %w", m.ID(), err)
	}
	return convertFuncCFG(m, g), len(g.Blocks), nil
}

// convertFuncCFG maps a flow.CFG to a lattice.FuncCFG. Handler edges become
// successors with condition "E"; call sites land in the block holding
// their node.
func convertFuncCFG(m *Method, g *flow.CFG) *lattice.FuncCFG {
	calls := m.Calls()
	lcfg := &lattice.FuncCFG{Name: m.ID()}
	for _, db := range g.Blocks {
		lb := &lattice.BasicBlock{
			ID:    db.ID,
			Start: db.Start,
			End:   db.End,
			Term:  db.IsTerm,
		}

		for _, ds := range db.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: ds.BlockID,
				Cond:    ds.Cond,
			})
		}
		for _, h := range db.Handlers {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: g.Handler[h],
				Cond:    "E",
			})
		}

		for _, c := range calls {
			if c.Node >= db.Start && c.Node < db.End {
				lb.Calls = append(lb.Calls, lattice.CallSite{
					Offset: c.Node,
					Callee: c.Callee,
				})
			}
		}

		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}
