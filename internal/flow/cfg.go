// Package flow analyzes method bodies: control-flow graphs, maximum
// stack and local sizes, and typed stack map frames.
package flow

import (
	"sort"

	"bytecraft/internal/classfmt"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
)

// Block is a run of body nodes with a single entry point.
type Block struct {
	ID       int
	Start    int    // node index (inclusive)
	End      int    // node index (exclusive)
	Succs    []Succ // successor edges, handler edges excluded
	Handlers []int  // indices into Body.Handlers covering this block
	IsEntry  bool
	IsTerm   bool // ends with a return, athrow or ret
	Target   bool // needs a stack map frame: jump, switch or handler target, or follows an unconditional transfer
}

// Succ describes a control-flow successor edge.
type Succ struct {
	BlockID int
	Cond    string // "" = unconditional, "T" = taken, "F" = fallthrough, "S" = switch case
}

// CFG is a per-method control flow graph.
type CFG struct {
	Blocks  []Block
	Handler []int // block ID of each Body.Handlers entry
	blockOf map[int]int
}

// BlockAt returns the ID of the block starting at node index i.
func (g *CFG) BlockAt(i int) (int, bool) {
	id, ok := g.blockOf[i]
	return id, ok
}

// BuildCFG constructs a control flow graph from a method body.
// The algorithm:
//  1. Find block leaders: the entry, jump, switch and handler targets,
//     try range bounds, and the instruction after a terminator.
//  2. Partition nodes into blocks by leaders.
//  3. Compute successor and handler edges.
//
// A leader is the first node of the run of label, line and frame nodes
// in front of an instruction, so two labels at one offset share a block.
func BuildCFG(b *code.Body) (*CFG, error) {
	nodes := b.Nodes
	if len(nodes) == 0 {
		return &CFG{blockOf: map[int]int{}}, nil
	}

	// runStart[i] is the first node of the non-instruction run ending at i.
	runStart := make([]int, len(nodes)+1)
	for i := 0; i <= len(nodes); i++ {
		runStart[i] = i
		if i > 0 && nodes[i-1].Kind != code.NodeInsn {
			runStart[i] = runStart[i-1]
		}
	}
	// hasInsn[i] reports whether an instruction exists at or after node i.
	hasInsn := make([]bool, len(nodes)+1)
	for i := len(nodes) - 1; i >= 0; i-- {
		hasInsn[i] = hasInsn[i+1] || nodes[i].Kind == code.NodeInsn
	}
	labelAt := b.LabelNodes()
	leaderOf := func(l code.Label) (int, error) {
		i, ok := labelAt[l]
		if !ok {
			return 0, classfmt.Unresolved("", int(l))
		}
		return runStart[i], nil
	}

	// Pass 1: Identify block leaders.
	leaders := map[int]bool{0: true}
	targets := map[int]bool{0: false}
	mark := func(i int, target bool) {
		if i < len(nodes) && hasInsn[i] {
			leaders[i] = true
			if target {
				targets[i] = true
			}
		}
	}
	for i := range nodes {
		n := &nodes[i]
		if n.Kind != code.NodeInsn {
			continue
		}
		op := n.Inst.Op
		if !op.IsTerminator() {
			continue
		}
		mark(runStart[i+1], !op.FallsThrough())
		for _, l := range n.Inst.Labels() {
			t, err := leaderOf(l)
			if err != nil {
				return nil, err
			}
			if !hasInsn[t] {
				return nil, classfmt.Topology("", i, "branch to %s past the end of the code", l)
			}
			mark(t, true)
		}
	}
	handlerStart := make([]int, len(b.Handlers))
	handlerEnd := make([]int, len(b.Handlers))
	handlerTarget := make([]int, len(b.Handlers))
	for hi, h := range b.Handlers {
		var err error
		if handlerStart[hi], err = leaderOf(h.Start); err != nil {
			return nil, err
		}
		if handlerEnd[hi], err = leaderOf(h.End); err != nil {
			return nil, err
		}
		if handlerTarget[hi], err = leaderOf(h.Handler); err != nil {
			return nil, err
		}
		mark(handlerStart[hi], false)
		mark(handlerEnd[hi], false)
		mark(handlerTarget[hi], true)
	}

	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	// Pass 2: Partition into blocks.
	g := &CFG{Blocks: make([]Block, len(sorted)), blockOf: make(map[int]int, len(sorted))}
	for i, start := range sorted {
		end := len(nodes)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		g.Blocks[i] = Block{ID: i, Start: start, End: end, IsEntry: start == 0, Target: targets[start]}
		g.blockOf[start] = i
	}
	g.Handler = make([]int, len(b.Handlers))
	for hi := range b.Handlers {
		g.Handler[hi] = g.blockOf[handlerTarget[hi]]
	}

	// Pass 3: Compute successors.
	for i := range g.Blocks {
		blk := &g.Blocks[i]
		for hi := range b.Handlers {
			if handlerStart[hi] <= blk.Start && blk.Start < handlerEnd[hi] {
				blk.Handlers = append(blk.Handlers, hi)
			}
		}
		last := -1
		for j := blk.End - 1; j >= blk.Start; j-- {
			if nodes[j].Kind == code.NodeInsn {
				last = j
				break
			}
		}
		next, hasNext := g.blockOf[blk.End]
		if last < 0 {
			if hasNext {
				blk.Succs = append(blk.Succs, Succ{BlockID: next})
			}
			continue
		}
		in := &nodes[last].Inst
		op := in.Op
		target := func(l code.Label) int {
			t, _ := leaderOf(l)
			return g.blockOf[t]
		}
		switch {
		case op.IsConditional():
			blk.Succs = append(blk.Succs, Succ{BlockID: target(in.Target), Cond: "T"})
			if hasNext {
				blk.Succs = append(blk.Succs, Succ{BlockID: next, Cond: "F"})
			}
		case op == opcode.JSR || op == opcode.JSR_W:
			blk.Succs = append(blk.Succs, Succ{BlockID: target(in.Target), Cond: "T"})
			if hasNext {
				blk.Succs = append(blk.Succs, Succ{BlockID: next, Cond: "F"})
			}
		case op.IsJump():
			blk.Succs = append(blk.Succs, Succ{BlockID: target(in.Target)})
		case op.IsSwitch():
			blk.Succs = append(blk.Succs, Succ{BlockID: target(in.Default)})
			for _, l := range in.Targets {
				blk.Succs = append(blk.Succs, Succ{BlockID: target(l), Cond: "S"})
			}
		case !op.FallsThrough():
			blk.IsTerm = true
		default:
			if hasNext {
				blk.Succs = append(blk.Succs, Succ{BlockID: next})
			}
		}
	}
	return g, nil
}

// Reachable marks every block reachable from the entry through successor
// and handler edges.
func (g *CFG) Reachable() []bool {
	seen := make([]bool, len(g.Blocks))
	if len(g.Blocks) == 0 {
		return seen
	}
	stack := []int{0}
	seen[0] = true
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		blk := &g.Blocks[id]
		visit := func(s int) {
			if !seen[s] {
				seen[s] = true
				stack = append(stack, s)
			}
		}
		for _, s := range blk.Succs {
			visit(s.BlockID)
		}
		for _, h := range blk.Handlers {
			visit(g.Handler[h])
		}
	}
	return seen
}
