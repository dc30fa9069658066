package flow

import (
	"fmt"

	"bytecraft/internal/classfmt"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
)

// StackDelta returns the operand stack size change of in, in slots.
func StackDelta(in *code.Inst) (int, error) {
	if d, ok := in.Op.Delta(); ok {
		return d, nil
	}
	switch in.Op.Kind() {
	case opcode.KindLdc, opcode.KindLdcWide:
		switch in.Const.(type) {
		case int64, float64:
			return 2, nil
		}
		return 1, nil
	case opcode.KindField:
		size := code.TypeSize(in.Desc)
		switch in.Op {
		case opcode.GETSTATIC:
			return size, nil
		case opcode.PUTSTATIC:
			return -size, nil
		case opcode.GETFIELD:
			return size - 1, nil
		default:
			return -size - 1, nil
		}
	case opcode.KindMethod, opcode.KindInterface, opcode.KindIndy:
		args, err := code.ArgSlots(in.Desc)
		if err != nil {
			return 0, err
		}
		d := code.ReturnSlots(in.Desc) - args
		if in.Op != opcode.INVOKESTATIC && in.Op != opcode.INVOKEDYNAMIC {
			d--
		}
		return d, nil
	case opcode.KindMultiANewArray:
		return 1 - in.Int, nil
	}
	return 0, fmt.Errorf("no stack effect for %s", in.Op)
}

// localsUsed returns the highest local slot written or read by in, plus one.
func localsUsed(in *code.Inst) int {
	switch in.Op.Kind() {
	case opcode.KindVar:
		return in.Var + in.Op.LocalSize()
	case opcode.KindIinc:
		return in.Var + 1
	}
	return 0
}

// Maxs is the result of a maxs-only analysis.
type Maxs struct {
	MaxStack  int
	MaxLocals int
	CFG       *CFG
	Reachable []bool
}

// ComputeMaxs derives max_stack and max_locals for a body. Stack heights
// are propagated over reachable blocks only; locals count every reference
// in the body, the arguments and LocalVariableTable entries.
func ComputeMaxs(b *code.Body, desc string, static bool) (*Maxs, error) {
	g, err := BuildCFG(b)
	if err != nil {
		return nil, err
	}
	args, err := code.ArgSlots(desc)
	if err != nil {
		return nil, err
	}
	m := &Maxs{CFG: g, MaxLocals: args}
	if !static {
		m.MaxLocals++
	}
	for i := range b.Nodes {
		if b.Nodes[i].Kind == code.NodeInsn {
			m.MaxLocals = max(m.MaxLocals, localsUsed(&b.Nodes[i].Inst))
		}
	}
	for _, lv := range b.Locals {
		m.MaxLocals = max(m.MaxLocals, lv.Index+code.TypeSize(lv.Desc))
	}

	m.Reachable = make([]bool, len(g.Blocks))
	if len(g.Blocks) == 0 {
		return m, nil
	}
	height := make([]int, len(g.Blocks))
	work := []int{0}
	m.Reachable[0] = true
	push := func(id, h int) error {
		if m.Reachable[id] {
			if height[id] != h {
				return classfmt.Topology("", g.Blocks[id].Start, "stack height %d, previously %d", h, height[id])
			}
			return nil
		}
		m.Reachable[id] = true
		height[id] = h
		work = append(work, id)
		return nil
	}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		blk := &g.Blocks[id]
		h := height[id]
		for _, hi := range blk.Handlers {
			if err := push(g.Handler[hi], 1); err != nil {
				return nil, err
			}
		}
		var last *code.Inst
		for i := blk.Start; i < blk.End; i++ {
			n := &b.Nodes[i]
			if n.Kind != code.NodeInsn {
				continue
			}
			last = &n.Inst
			if n.Inst.Op == opcode.JSR || n.Inst.Op == opcode.JSR_W {
				// The return address exists only on the subroutine path.
				m.MaxStack = max(m.MaxStack, h+1)
				continue
			}
			d, err := StackDelta(&n.Inst)
			if err != nil {
				return nil, classfmt.In(fmt.Sprintf("insn %d", i), err)
			}
			h += d
			if h < 0 {
				return nil, classfmt.Topology("", i, "stack underflow")
			}
			m.MaxStack = max(m.MaxStack, h)
		}
		for _, s := range blk.Succs {
			sh := h
			if last != nil && (last.Op == opcode.JSR || last.Op == opcode.JSR_W) && s.Cond == "T" {
				sh = h + 1
			}
			if err := push(s.BlockID, sh); err != nil {
				// Subroutine paths may rejoin at other heights.
				if last != nil && last.Op.IsSubroutine() {
					continue
				}
				return nil, err
			}
		}
	}
	return m, nil
}
