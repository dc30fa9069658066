package flow

import (
	"fmt"
	"strings"

	"bytecraft/internal/classfmt"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
)

// Method is the input of a typed analysis.
type Method struct {
	Owner  string
	Name   string
	Desc   string
	Static bool
	Body   *code.Body
}

func (m Method) where() string { return m.Owner + "." + m.Name + m.Desc }

// BlockFrame is the expanded frame at the start of a block.
type BlockFrame struct {
	Block int
	Frame code.Frame
}

// Result is the outcome of Analyze.
type Result struct {
	MaxStack  int
	MaxLocals int
	Frames    []BlockFrame // blocks that need a frame, in block order
	Dead      []int        // unreachable blocks
	CFG       *CFG
}

// Block states of the work list.
const (
	unvisited = iota
	queued
	merged
)

// state is a frame in slot form: a Long or Double is followed by Top.
type state struct {
	locals []code.VType
	stack  []code.VType
}

func (s state) clone() state {
	return state{
		locals: append([]code.VType(nil), s.locals...),
		stack:  append([]code.VType(nil), s.stack...),
	}
}

type analyzer struct {
	m      Method
	h      Hierarchy
	g      *CFG
	in     []state
	status []int
	work   []int
	news   map[code.Label]string

	maxStack  int
	maxLocals int
}

// Analyze runs the typed work-list fixed point over m and derives maxs,
// the frames needed at block starts and the set of dead blocks. NEW
// instructions must be labelled (see code.Body.LabelNew).
func Analyze(m Method, h Hierarchy) (*Result, error) {
	if h == nil {
		h = ObjectHierarchy{}
	}
	g, err := BuildCFG(m.Body)
	if err != nil {
		return nil, classfmt.In(m.where(), err)
	}
	a := &analyzer{
		m:      m,
		h:      h,
		g:      g,
		in:     make([]state, len(g.Blocks)),
		status: make([]int, len(g.Blocks)),
		news:   make(map[code.Label]string),
	}
	for i := range m.Body.Nodes {
		n := &m.Body.Nodes[i]
		if n.Kind == code.NodeInsn && n.Inst.Op == opcode.NEW {
			l := m.Body.NewLabel(i)
			if l == code.NoLabel {
				return nil, fmt.Errorf("%s: new at node %d has no label", m.where(), i)
			}
			a.news[l] = n.Inst.Owner
		}
	}
	if err := a.run(); err != nil {
		return nil, classfmt.In(m.where(), err)
	}
	return a.result()
}

func (a *analyzer) run() error {
	if len(a.g.Blocks) == 0 {
		return nil
	}
	entry, err := code.InitialFrame(a.m.Owner, a.m.Name, a.m.Desc, a.m.Static)
	if err != nil {
		return err
	}
	a.in[0] = state{locals: code.Slots(entry.Locals)}
	a.status[0] = queued
	a.work = []int{0}
	a.maxLocals = len(a.in[0].locals)

	for len(a.work) > 0 {
		id := a.work[len(a.work)-1]
		a.work = a.work[:len(a.work)-1]
		a.status[id] = merged
		blk := &a.g.Blocks[id]
		s := a.in[id].clone()
		for i := blk.Start; i < blk.End; i++ {
			n := &a.m.Body.Nodes[i]
			if n.Kind != code.NodeInsn {
				continue
			}
			for _, hi := range blk.Handlers {
				typ := a.m.Body.Handlers[hi].Type
				if typ == "" {
					typ = "java/lang/Throwable"
				}
				hs := state{locals: append([]code.VType(nil), s.locals...), stack: []code.VType{code.ObjectType(typ)}}
				if err := a.merge(a.g.Handler[hi], hs, i); err != nil {
					return err
				}
			}
			if err := a.exec(&s, i, &n.Inst); err != nil {
				return err
			}
			a.maxStack = max(a.maxStack, len(s.stack))
			a.maxLocals = max(a.maxLocals, len(s.locals))
		}
		for _, succ := range blk.Succs {
			if err := a.merge(succ.BlockID, s, blk.End-1); err != nil {
				return err
			}
		}
	}
	return nil
}

// merge joins src into the entry state of block id, requeueing it when
// the stored state changes.
func (a *analyzer) merge(id int, src state, at int) error {
	if a.status[id] == unvisited {
		a.in[id] = src.clone()
		a.status[id] = queued
		a.work = append(a.work, id)
		return nil
	}
	dst := &a.in[id]
	if len(dst.stack) != len(src.stack) {
		return classfmt.Topology("", at, "stack depth %d merges with %d", len(src.stack), len(dst.stack))
	}
	changed := false
	for i := range dst.stack {
		j, ok, err := Join(dst.stack[i], src.stack[i], a.h)
		if err != nil {
			return err
		}
		if !ok {
			return classfmt.Topology("", at, "cannot merge stack types %s and %s", dst.stack[i], src.stack[i])
		}
		if j != dst.stack[i] {
			dst.stack[i] = j
			changed = true
		}
	}
	for len(dst.locals) < len(src.locals) {
		dst.locals = append(dst.locals, code.TopType)
	}
	for i := range dst.locals {
		y := code.TopType
		if i < len(src.locals) {
			y = src.locals[i]
		}
		j, ok, err := Join(dst.locals[i], y, a.h)
		if err != nil {
			return err
		}
		if !ok {
			j = code.TopType
		}
		if j != dst.locals[i] {
			dst.locals[i] = j
			changed = true
		}
	}
	if changed && a.status[id] == merged {
		a.status[id] = queued
		a.work = append(a.work, id)
	}
	return nil
}

func (a *analyzer) result() (*Result, error) {
	r := &Result{MaxStack: a.maxStack, MaxLocals: a.maxLocals, CFG: a.g}
	for i := range a.m.Body.Nodes {
		if a.m.Body.Nodes[i].Kind == code.NodeInsn {
			r.MaxLocals = max(r.MaxLocals, localsUsed(&a.m.Body.Nodes[i].Inst))
		}
	}
	for _, lv := range a.m.Body.Locals {
		r.MaxLocals = max(r.MaxLocals, lv.Index+code.TypeSize(lv.Desc))
	}
	for id := range a.g.Blocks {
		blk := &a.g.Blocks[id]
		if a.status[id] == unvisited {
			r.Dead = append(r.Dead, id)
			r.Frames = append(r.Frames, BlockFrame{Block: id, Frame: code.Frame{
				Kind:  code.FrameNew,
				Stack: []code.VType{code.ThrowableTop},
			}})
			r.MaxStack = max(r.MaxStack, 1)
			continue
		}
		if !blk.Target {
			continue
		}
		s := a.in[id]
		r.Frames = append(r.Frames, BlockFrame{Block: id, Frame: code.Frame{
			Kind:   code.FrameNew,
			Locals: code.List(code.TrimLocals(s.locals)),
			Stack:  code.List(s.stack),
		}})
	}
	return r, nil
}

// Join returns the least upper bound of two verification types. ok is
// false when the types have no common type other than Top.
func Join(x, y code.VType, h Hierarchy) (code.VType, bool, error) {
	if x == y {
		return x, true, nil
	}
	ref := func(t code.VType) bool { return t.Kind == code.Object || t.Kind == code.Null }
	if !ref(x) || !ref(y) {
		return code.TopType, false, nil
	}
	if x.Kind == code.Null {
		return y, true, nil
	}
	if y.Kind == code.Null {
		return x, true, nil
	}
	name, err := joinRef(x.Name, y.Name, h)
	if err != nil {
		return code.TopType, false, err
	}
	return code.ObjectType(name), true, nil
}

func joinRef(a, b string, h Hierarchy) (string, error) {
	if a == b {
		return a, nil
	}
	aArr, bArr := strings.HasPrefix(a, "["), strings.HasPrefix(b, "[")
	switch {
	case aArr && bArr:
		ea, eb := a[1:], b[1:]
		if !isRefDesc(ea) || !isRefDesc(eb) {
			return objectName, nil
		}
		j, err := joinRef(descName(ea), descName(eb), h)
		if err != nil {
			return "", err
		}
		return "[" + code.ClassDesc(j), nil
	case aArr || bArr:
		return objectName, nil
	}
	return h.CommonSuper(a, b)
}

func isRefDesc(d string) bool { return strings.HasPrefix(d, "L") || strings.HasPrefix(d, "[") }

func descName(d string) string {
	if strings.HasPrefix(d, "L") {
		return strings.TrimSuffix(d[1:], ";")
	}
	return d
}
