package flow

import (
	"bytecraft/internal/classfmt"
	"bytecraft/internal/code"
	"bytecraft/internal/constpool"
	"bytecraft/internal/opcode"
)

// frameState wraps a state with the helpers the interpreter needs.
type frameState struct {
	*state
	at int
}

func (f frameState) push(t code.VType) {
	f.stack = append(f.stack, t)
	if t.Wide() {
		f.stack = append(f.stack, code.TopType)
	}
}

func (f frameState) pop(n int) error {
	if len(f.stack) < n {
		return classfmt.Topology("", f.at, "stack underflow")
	}
	f.stack = f.stack[:len(f.stack)-n]
	return nil
}

// popRef pops one slot and returns it.
func (f frameState) popRef() (code.VType, error) {
	if len(f.stack) < 1 {
		return code.TopType, classfmt.Topology("", f.at, "stack underflow")
	}
	t := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return t, nil
}

func (f frameState) local(n int) code.VType {
	if n < len(f.locals) {
		return f.locals[n]
	}
	return code.TopType
}

func (f frameState) setLocal(n int, t code.VType) {
	size := 1
	if t.Wide() {
		size = 2
	}
	for len(f.locals) < n+size {
		f.locals = append(f.locals, code.TopType)
	}
	if n > 0 && f.locals[n-1].Wide() {
		f.locals[n-1] = code.TopType
	}
	f.locals[n] = t
	if size == 2 {
		f.locals[n+1] = code.TopType
	}
}

// shuffle replaces the top n slots by the slots at the given positions
// (0 = deepest of the n).
func (f frameState) shuffle(n int, order ...int) error {
	if len(f.stack) < n {
		return classfmt.Topology("", f.at, "stack underflow")
	}
	top := append([]code.VType(nil), f.stack[len(f.stack)-n:]...)
	f.stack = f.stack[:len(f.stack)-n]
	for _, i := range order {
		f.stack = append(f.stack, top[i])
	}
	return nil
}

func constType(v any) code.VType {
	switch v.(type) {
	case int32, int:
		return code.IntType
	case float32:
		return code.FloatType
	case int64:
		return code.LongType
	case float64:
		return code.DoubleType
	case string:
		return code.ObjectType("java/lang/String")
	case constpool.Class:
		return code.ObjectType("java/lang/Class")
	case constpool.MethodType:
		return code.ObjectType("java/lang/invoke/MethodType")
	case constpool.Handle:
		return code.ObjectType("java/lang/invoke/MethodHandle")
	}
	return code.TopType
}

var convert = map[opcode.Op]struct {
	pop int
	to  code.VType
}{
	opcode.I2L: {1, code.LongType}, opcode.I2F: {1, code.FloatType}, opcode.I2D: {1, code.DoubleType},
	opcode.L2I: {2, code.IntType}, opcode.L2F: {2, code.FloatType}, opcode.L2D: {2, code.DoubleType},
	opcode.F2I: {1, code.IntType}, opcode.F2L: {1, code.LongType}, opcode.F2D: {1, code.DoubleType},
	opcode.D2I: {2, code.IntType}, opcode.D2L: {2, code.LongType}, opcode.D2F: {2, code.FloatType},
	opcode.I2B: {1, code.IntType}, opcode.I2C: {1, code.IntType}, opcode.I2S: {1, code.IntType},
	opcode.LCMP: {4, code.IntType}, opcode.FCMPL: {2, code.IntType}, opcode.FCMPG: {2, code.IntType},
	opcode.DCMPL: {4, code.IntType}, opcode.DCMPG: {4, code.IntType},
	opcode.ARRAYLENGTH: {1, code.IntType}, opcode.INSTANCEOF: {1, code.IntType},
	opcode.IALOAD: {2, code.IntType}, opcode.LALOAD: {2, code.LongType}, opcode.FALOAD: {2, code.FloatType},
	opcode.DALOAD: {2, code.DoubleType}, opcode.BALOAD: {2, code.IntType}, opcode.CALOAD: {2, code.IntType},
	opcode.SALOAD: {2, code.IntType},
}

// arith gives the result type of the i, l, f, d groups.
var arith = [4]code.VType{code.IntType, code.LongType, code.FloatType, code.DoubleType}

func (a *analyzer) exec(s *state, at int, in *code.Inst) error {
	f := frameState{state: s, at: at}
	op := in.Op
	if c, ok := convert[op]; ok {
		if err := f.pop(c.pop); err != nil {
			return err
		}
		f.push(c.to)
		return nil
	}
	switch {
	case op == opcode.NOP, op == opcode.GOTO, op == opcode.GOTO_W:
	case op == opcode.ACONST_NULL:
		f.push(code.NullType)
	case op >= opcode.ICONST_M1 && op <= opcode.ICONST_5, op == opcode.BIPUSH, op == opcode.SIPUSH:
		f.push(code.IntType)
	case op == opcode.LCONST_0, op == opcode.LCONST_1:
		f.push(code.LongType)
	case op >= opcode.FCONST_0 && op <= opcode.FCONST_2:
		f.push(code.FloatType)
	case op == opcode.DCONST_0, op == opcode.DCONST_1:
		f.push(code.DoubleType)
	case op == opcode.LDC, op == opcode.LDC_W, op == opcode.LDC2_W:
		f.push(constType(in.Const))
	case op == opcode.ALOAD:
		f.push(f.local(in.Var))
	case op.IsLoad():
		f.push(arith[op-opcode.ILOAD])
	case op.IsStore():
		var t code.VType
		if op == opcode.ASTORE {
			v, err := f.popRef()
			if err != nil {
				return err
			}
			t = v
		} else {
			t = arith[op-opcode.ISTORE]
			if err := f.pop(op.LocalSize()); err != nil {
				return err
			}
		}
		f.setLocal(in.Var, t)
	case op == opcode.AALOAD:
		if err := f.pop(1); err != nil {
			return err
		}
		arr, err := f.popRef()
		if err != nil {
			return err
		}
		f.push(elementType(arr))
	case op >= opcode.IASTORE && op <= opcode.SASTORE:
		d, _ := op.Delta()
		return f.pop(-d)
	case op == opcode.POP:
		return f.pop(1)
	case op == opcode.POP2:
		return f.pop(2)
	case op == opcode.DUP:
		return f.shuffle(1, 0, 0)
	case op == opcode.DUP_X1:
		return f.shuffle(2, 1, 0, 1)
	case op == opcode.DUP_X2:
		return f.shuffle(3, 2, 0, 1, 2)
	case op == opcode.DUP2:
		return f.shuffle(2, 0, 1, 0, 1)
	case op == opcode.DUP2_X1:
		return f.shuffle(3, 1, 2, 0, 1, 2)
	case op == opcode.DUP2_X2:
		return f.shuffle(4, 2, 3, 0, 1, 2, 3)
	case op == opcode.SWAP:
		return f.shuffle(2, 1, 0)
	case op >= opcode.IADD && op <= opcode.DREM:
		t := arith[(op-opcode.IADD)%4]
		if err := f.pop(2 * code.TypeSize(descOf(t))); err != nil {
			return err
		}
		f.push(t)
	case op >= opcode.INEG && op <= opcode.DNEG:
		t := arith[op-opcode.INEG]
		if err := f.pop(code.TypeSize(descOf(t))); err != nil {
			return err
		}
		f.push(t)
	case op >= opcode.ISHL && op <= opcode.LUSHR:
		t := arith[(op-opcode.ISHL)%2]
		if err := f.pop(1 + code.TypeSize(descOf(t))); err != nil {
			return err
		}
		f.push(t)
	case op >= opcode.IAND && op <= opcode.LXOR:
		t := arith[(op-opcode.IAND)%2]
		if err := f.pop(2 * code.TypeSize(descOf(t))); err != nil {
			return err
		}
		f.push(t)
	case op == opcode.IINC:
		f.setLocal(in.Var, code.IntType)
	case op >= opcode.IFEQ && op <= opcode.IFLE, op == opcode.IFNULL, op == opcode.IFNONNULL:
		return f.pop(1)
	case op >= opcode.IF_ICMPEQ && op <= opcode.IF_ACMPNE:
		return f.pop(2)
	case op.IsSubroutine():
		return classfmt.Topology("", at, "%s cannot be described by stack map frames", op)
	case op.IsSwitch(), op == opcode.ATHROW, op == opcode.MONITORENTER, op == opcode.MONITOREXIT:
		return f.pop(1)
	case op.IsReturn():
		d, _ := op.Delta()
		return f.pop(-d)
	case op == opcode.GETSTATIC:
		f.push(code.TypeOf(in.Desc))
	case op == opcode.PUTSTATIC:
		return f.pop(code.TypeSize(in.Desc))
	case op == opcode.GETFIELD:
		if err := f.pop(1); err != nil {
			return err
		}
		f.push(code.TypeOf(in.Desc))
	case op == opcode.PUTFIELD:
		return f.pop(code.TypeSize(in.Desc) + 1)
	case op >= opcode.INVOKEVIRTUAL && op <= opcode.INVOKEDYNAMIC:
		return a.invoke(f, in)
	case op == opcode.NEW:
		f.push(code.UninitType(a.m.Body.NewLabel(at)))
	case op == opcode.NEWARRAY:
		if err := f.pop(1); err != nil {
			return err
		}
		desc, ok := opcode.ArrayDescriptor(in.Int)
		if !ok {
			return classfmt.Topology("", at, "newarray type %d", in.Int)
		}
		f.push(code.ObjectType(desc))
	case op == opcode.ANEWARRAY:
		if err := f.pop(1); err != nil {
			return err
		}
		f.push(code.ObjectType("[" + code.ClassDesc(in.Owner)))
	case op == opcode.CHECKCAST:
		if err := f.pop(1); err != nil {
			return err
		}
		f.push(code.ObjectType(in.Owner))
	case op == opcode.MULTIANEWARRAY:
		if err := f.pop(in.Int); err != nil {
			return err
		}
		f.push(code.ObjectType(in.Owner))
	default:
		return classfmt.Topology("", at, "cannot interpret %s", op)
	}
	return nil
}

func (a *analyzer) invoke(f frameState, in *code.Inst) error {
	args, err := code.ArgSlots(in.Desc)
	if err != nil {
		return err
	}
	if err := f.pop(args); err != nil {
		return err
	}
	if in.Op != opcode.INVOKESTATIC && in.Op != opcode.INVOKEDYNAMIC {
		recv, err := f.popRef()
		if err != nil {
			return err
		}
		if in.Op == opcode.INVOKESPECIAL && in.Name == "<init>" {
			a.initialize(f, recv)
		}
	}
	if ret := in.Desc[len(in.Desc)-1:]; ret != "V" {
		i := lastParen(in.Desc)
		f.push(code.TypeOf(in.Desc[i+1:]))
	}
	return nil
}

// initialize replaces every copy of an uninitialized receiver by the
// initialized type once its constructor has run.
func (a *analyzer) initialize(f frameState, recv code.VType) {
	var done code.VType
	switch recv.Kind {
	case code.UninitializedThis:
		done = code.ObjectType(a.m.Owner)
	case code.Uninitialized:
		done = code.ObjectType(a.news[recv.Label])
	default:
		return
	}
	for i := range f.locals {
		if f.locals[i] == recv {
			f.locals[i] = done
		}
	}
	for i := range f.stack {
		if f.stack[i] == recv {
			f.stack[i] = done
		}
	}
}

func lastParen(desc string) int {
	for i := len(desc) - 1; i >= 0; i-- {
		if desc[i] == ')' {
			return i
		}
	}
	return -1
}

func elementType(arr code.VType) code.VType {
	if arr.Kind == code.Object && len(arr.Name) > 1 && arr.Name[0] == '[' {
		return code.TypeOf(arr.Name[1:])
	}
	if arr.Kind == code.Null {
		return code.NullType
	}
	return code.ObjectRoot
}

func descOf(t code.VType) string {
	if t.Wide() {
		return "J"
	}
	return "I"
}
