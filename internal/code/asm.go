package code

import (
	"fmt"
	"math"
	"sort"

	"bytecraft/internal/classfmt"
	"bytecraft/internal/constpool"
	"bytecraft/internal/opcode"
)

// MaxCodeSize is the largest method body the format can describe.
const MaxCodeSize = 65535

// Layout is the result of sizing a body: the byte offset of every node
// (label, line and frame nodes take the offset of the next instruction)
// and the resolved label offsets.
type Layout struct {
	Node    []int
	Size    int
	Offsets *Offsets
}

// At returns the byte offset of node i.
func (l *Layout) At(i int) int {
	if i >= len(l.Node) {
		return l.Size
	}
	return l.Node[i]
}

// Assembler lays out and encodes method bodies, interning operands in Pool.
type Assembler struct {
	Pool *constpool.Pool
}

// Layout computes node and label offsets for b.
func (a *Assembler) Layout(b *Body) (*Layout, error) {
	lay := &Layout{Node: make([]int, len(b.Nodes)), Offsets: NewOffsets()}
	off := 0
	for i := range b.Nodes {
		n := &b.Nodes[i]
		lay.Node[i] = off
		switch n.Kind {
		case NodeLabel:
			if !lay.Offsets.Place(n.Label, off) {
				return nil, fmt.Errorf("label %s marked twice", n.Label)
			}
		case NodeInsn:
			sz, err := a.size(&n.Inst, off)
			if err != nil {
				return nil, err
			}
			off += sz
		}
	}
	lay.Size = off
	return lay, nil
}

func (a *Assembler) size(in *Inst, off int) (int, error) {
	switch in.Op.Kind() {
	case opcode.KindNone:
		return 1, nil
	case opcode.KindByte, opcode.KindNewArray:
		return 2, nil
	case opcode.KindShort, opcode.KindField, opcode.KindMethod, opcode.KindType, opcode.KindJump:
		return 3, nil
	case opcode.KindVar:
		switch {
		case in.Var > math.MaxUint8:
			return 4, nil
		case in.Op != opcode.RET && in.Var <= 3:
			return 1, nil
		}
		return 2, nil
	case opcode.KindIinc:
		if in.Var > math.MaxUint8 || in.Int < math.MinInt8 || in.Int > math.MaxInt8 {
			return 6, nil
		}
		return 3, nil
	case opcode.KindLdc, opcode.KindLdcWide:
		wide, idx, err := a.ldc(in)
		if err != nil {
			return 0, err
		}
		if wide || idx > math.MaxUint8 {
			return 3, nil
		}
		return 2, nil
	case opcode.KindInterface, opcode.KindIndy, opcode.KindJumpWide:
		return 5, nil
	case opcode.KindMultiANewArray:
		return 4, nil
	case opcode.KindTableSwitch:
		return 1 + pad(off) + 12 + 4*len(in.Targets), nil
	case opcode.KindLookupSwitch:
		return 1 + pad(off) + 8 + 8*len(in.Keys), nil
	}
	return 0, fmt.Errorf("cannot assemble %s", in.Op)
}

// pad returns the switch alignment padding for an instruction at off,
// relative to the start of the body.
func pad(off int) int { return (4 - (off+1)%4) % 4 }

func (a *Assembler) ldc(in *Inst) (wide bool, idx uint16, err error) {
	switch in.Const.(type) {
	case int64, float64:
		wide = true
	}
	idx, err = a.Pool.InternConst(in.Const)
	return wide, idx, err
}

// Relax widens every branch whose offset does not fit in 16 bits: goto
// and jsr become goto_w and jsr_w, and a conditional branch becomes the
// inverted condition jumping over a goto_w. New labels come from labels.
// It returns the number of branches widened.
func (a *Assembler) Relax(b *Body, labels *Labels) (int, error) {
	widened := 0
	for {
		lay, err := a.Layout(b)
		if err != nil {
			return widened, err
		}
		var far []int
		for i := range b.Nodes {
			n := &b.Nodes[i]
			if n.Kind != NodeInsn || n.Inst.Op.Kind() != opcode.KindJump {
				continue
			}
			target, err := lay.Offsets.Resolve(n.Inst.Target)
			if err != nil {
				return widened, err
			}
			d := target - lay.Node[i]
			if d < math.MinInt16 || d > math.MaxInt16 {
				far = append(far, i)
			}
		}
		if len(far) == 0 {
			return widened, nil
		}
		widened += len(far)
		b.Nodes = a.widen(b.Nodes, far, labels)
	}
}

func (a *Assembler) widen(nodes []Node, far []int, labels *Labels) []Node {
	out := make([]Node, 0, len(nodes)+2*len(far))
	next := 0
	for i, n := range nodes {
		if next >= len(far) || far[next] != i {
			out = append(out, n)
			continue
		}
		next++
		if w, ok := opcode.Widen(n.Inst.Op); ok {
			n.Inst.Op = w
			out = append(out, n)
			continue
		}
		inv, _ := opcode.Invert(n.Inst.Op)
		skip := labels.New()
		out = append(out,
			Node{Kind: NodeInsn, Inst: Inst{Op: inv, Target: skip}},
			Node{Kind: NodeInsn, Inst: Inst{Op: opcode.GOTO_W, Target: n.Inst.Target}},
			Node{Kind: NodeLabel, Label: skip},
		)
	}
	return out
}

// Assemble encodes b. Branches must already fit their encodings; call
// Relax first.
func (a *Assembler) Assemble(b *Body) ([]byte, *Layout, error) {
	lay, err := a.Layout(b)
	if err != nil {
		return nil, nil, err
	}
	if lay.Size > MaxCodeSize {
		return nil, nil, classfmt.TooLarge("Code", "%d bytes", lay.Size)
	}
	if lay.Size == 0 {
		return nil, nil, fmt.Errorf("empty method body")
	}
	v := classfmt.NewVector(lay.Size)
	for i := range b.Nodes {
		n := &b.Nodes[i]
		if n.Kind != NodeInsn {
			continue
		}
		if err := a.emit(v, &n.Inst, lay.Node[i], lay); err != nil {
			return nil, nil, fmt.Errorf("insn %d (%s): %w", i, n.Inst.Op, err)
		}
	}
	if v.Len() != lay.Size {
		return nil, nil, fmt.Errorf("assembled %d bytes, laid out %d", v.Len(), lay.Size)
	}
	return v.Bytes(), lay, nil
}

func (a *Assembler) emit(v *classfmt.Vector, in *Inst, off int, lay *Layout) error {
	op := in.Op
	p := a.Pool
	switch op.Kind() {
	case opcode.KindNone:
		v.PutU8(uint8(op))
	case opcode.KindByte:
		if in.Int < math.MinInt8 || in.Int > math.MaxInt8 {
			return fmt.Errorf("bipush operand %d out of range", in.Int)
		}
		v.PutU8(uint8(op))
		v.PutU8(uint8(int8(in.Int)))
	case opcode.KindShort:
		if in.Int < math.MinInt16 || in.Int > math.MaxInt16 {
			return fmt.Errorf("sipush operand %d out of range", in.Int)
		}
		v.PutU8(uint8(op))
		v.PutU16(uint16(int16(in.Int)))
	case opcode.KindNewArray:
		v.PutU8(uint8(op))
		v.PutU8(uint8(in.Int))
	case opcode.KindVar:
		switch {
		case in.Var > math.MaxUint16 || in.Var < 0:
			return classfmt.TooLarge("Code", "local index %d", in.Var)
		case in.Var > math.MaxUint8:
			v.PutU8(uint8(opcode.WIDE))
			v.PutU8(uint8(op))
			v.PutU16(uint16(in.Var))
		default:
			if short, ok := opcode.ShortForm(op, in.Var); ok {
				v.PutU8(uint8(short))
				break
			}
			v.PutU8(uint8(op))
			v.PutU8(uint8(in.Var))
		}
	case opcode.KindIinc:
		if in.Var > math.MaxUint16 || in.Int < math.MinInt16 || in.Int > math.MaxInt16 {
			return classfmt.TooLarge("Code", "iinc %d %d", in.Var, in.Int)
		}
		if in.Var > math.MaxUint8 || in.Int < math.MinInt8 || in.Int > math.MaxInt8 {
			v.PutU8(uint8(opcode.WIDE))
			v.PutU8(uint8(op))
			v.PutU16(uint16(in.Var))
			v.PutU16(uint16(int16(in.Int)))
			break
		}
		v.PutU8(uint8(op))
		v.PutU8(uint8(in.Var))
		v.PutU8(uint8(int8(in.Int)))
	case opcode.KindLdc, opcode.KindLdcWide:
		wide, idx, err := a.ldc(in)
		if err != nil {
			return err
		}
		switch {
		case wide:
			v.PutU8(uint8(opcode.LDC2_W))
			v.PutU16(idx)
		case idx > math.MaxUint8:
			v.PutU8(uint8(opcode.LDC_W))
			v.PutU16(idx)
		default:
			v.PutU8(uint8(opcode.LDC))
			v.PutU8(uint8(idx))
		}
	case opcode.KindField:
		v.PutU8(uint8(op))
		v.PutU16(p.InternField(in.Owner, in.Name, in.Desc))
	case opcode.KindMethod:
		v.PutU8(uint8(op))
		v.PutU16(p.InternMethod(in.Owner, in.Name, in.Desc, in.Itf))
	case opcode.KindInterface:
		n, err := ArgSlots(in.Desc)
		if err != nil {
			return err
		}
		v.PutU8(uint8(op))
		v.PutU16(p.InternMethod(in.Owner, in.Name, in.Desc, true))
		v.PutU8(uint8(n + 1))
		v.PutU8(0)
	case opcode.KindIndy:
		idx, err := p.InternInvokeDynamic(in.Name, in.Desc, in.BSM, in.BSMArgs)
		if err != nil {
			return err
		}
		v.PutU8(uint8(op))
		v.PutU16(idx)
		v.PutU16(0)
	case opcode.KindType:
		v.PutU8(uint8(op))
		v.PutU16(p.InternClass(in.Owner))
	case opcode.KindMultiANewArray:
		v.PutU8(uint8(op))
		v.PutU16(p.InternClass(in.Owner))
		v.PutU8(uint8(in.Int))
	case opcode.KindJump:
		d, err := delta(lay, in.Target, off)
		if err != nil {
			return err
		}
		if d < math.MinInt16 || d > math.MaxInt16 {
			return fmt.Errorf("branch offset %d needs relaxation", d)
		}
		v.PutU8(uint8(op))
		v.PutU16(uint16(int16(d)))
	case opcode.KindJumpWide:
		d, err := delta(lay, in.Target, off)
		if err != nil {
			return err
		}
		v.PutU8(uint8(op))
		v.PutI32(int32(d))
	case opcode.KindTableSwitch:
		if int64(in.Max)-int64(in.Min)+1 != int64(len(in.Targets)) {
			return fmt.Errorf("tableswitch %d..%d with %d targets", in.Min, in.Max, len(in.Targets))
		}
		v.PutU8(uint8(op))
		putPad(v, off)
		d, err := delta(lay, in.Default, off)
		if err != nil {
			return err
		}
		v.PutI32(int32(d))
		v.PutI32(in.Min)
		v.PutI32(in.Max)
		for _, t := range in.Targets {
			d, err := delta(lay, t, off)
			if err != nil {
				return err
			}
			v.PutI32(int32(d))
		}
	case opcode.KindLookupSwitch:
		if len(in.Keys) != len(in.Targets) {
			return fmt.Errorf("lookupswitch with %d keys and %d targets", len(in.Keys), len(in.Targets))
		}
		v.PutU8(uint8(op))
		putPad(v, off)
		d, err := delta(lay, in.Default, off)
		if err != nil {
			return err
		}
		v.PutI32(int32(d))
		v.PutI32(int32(len(in.Keys)))
		order := make([]int, len(in.Keys))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(x, y int) bool { return in.Keys[order[x]] < in.Keys[order[y]] })
		for _, i := range order {
			d, err := delta(lay, in.Targets[i], off)
			if err != nil {
				return err
			}
			v.PutI32(in.Keys[i])
			v.PutI32(int32(d))
		}
	default:
		return fmt.Errorf("cannot assemble %s", op)
	}
	return nil
}

func delta(lay *Layout, l Label, off int) (int, error) {
	target, err := lay.Offsets.Resolve(l)
	if err != nil {
		return 0, err
	}
	return target - off, nil
}

func putPad(v *classfmt.Vector, off int) {
	for i := pad(off); i > 0; i-- {
		v.PutU8(0)
	}
}

// FillDead overwrites code with nop...athrow, keeping its length.
func FillDead(code []byte) {
	for i := range code {
		code[i] = byte(opcode.NOP)
	}
	if len(code) > 0 {
		code[len(code)-1] = byte(opcode.ATHROW)
	}
}
