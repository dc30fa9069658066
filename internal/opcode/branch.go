package opcode

// Branch classification. These identify basic-block terminators and the
// shape of control transfer out of an instruction.

// IsJump reports whether op carries a single branch target.
func (op Op) IsJump() bool {
	k := op.Kind()
	return k == KindJump || k == KindJumpWide
}

// IsConditional reports whether op is a two-way branch (if*, if_*cmp*).
func (op Op) IsConditional() bool {
	return (op >= IFEQ && op <= IF_ACMPNE) || op == IFNULL || op == IFNONNULL
}

// IsSwitch reports whether op is tableswitch or lookupswitch.
func (op Op) IsSwitch() bool { return op == TABLESWITCH || op == LOOKUPSWITCH }

// IsReturn reports whether op is one of the *return instructions.
func (op Op) IsReturn() bool { return op >= IRETURN && op <= RETURN }

// IsSubroutine reports whether op is jsr, jsr_w or ret.
func (op Op) IsSubroutine() bool { return op == JSR || op == JSR_W || op == RET }

// FallsThrough reports whether control may continue to the next instruction.
func (op Op) FallsThrough() bool {
	switch {
	case op == GOTO, op == GOTO_W, op == ATHROW, op == RET:
		return false
	case op.IsSwitch(), op.IsReturn():
		return false
	}
	return true
}

// IsTerminator reports whether op ends a basic block.
func (op Op) IsTerminator() bool {
	return op.IsJump() || op.IsSwitch() || !op.FallsThrough()
}

var inverse = map[Op]Op{
	IFEQ: IFNE, IFNE: IFEQ,
	IFLT: IFGE, IFGE: IFLT,
	IFGT: IFLE, IFLE: IFGT,
	IF_ICMPEQ: IF_ICMPNE, IF_ICMPNE: IF_ICMPEQ,
	IF_ICMPLT: IF_ICMPGE, IF_ICMPGE: IF_ICMPLT,
	IF_ICMPGT: IF_ICMPLE, IF_ICMPLE: IF_ICMPGT,
	IF_ACMPEQ: IF_ACMPNE, IF_ACMPNE: IF_ACMPEQ,
	IFNULL: IFNONNULL, IFNONNULL: IFNULL,
}

// Invert returns the conditional branch with the opposite condition.
func Invert(op Op) (Op, bool) {
	inv, ok := inverse[op]
	return inv, ok
}

// Widen returns the 32-bit offset form of goto and jsr.
func Widen(op Op) (Op, bool) {
	switch op {
	case GOTO:
		return GOTO_W, true
	case JSR:
		return JSR_W, true
	}
	return op, false
}

// Narrow maps goto_w and jsr_w back to their canonical short forms.
func Narrow(op Op) Op {
	switch op {
	case GOTO_W:
		return GOTO
	case JSR_W:
		return JSR
	}
	return op
}

// Implicit splits an iload_0 style opcode into its general form and index.
func Implicit(op Op) (base Op, index int, ok bool) {
	switch {
	case op >= ILOAD_0 && op <= ALOAD_3:
		n := int(op - ILOAD_0)
		return ILOAD + Op(n/4), n % 4, true
	case op >= ISTORE_0 && op <= ASTORE_3:
		n := int(op - ISTORE_0)
		return ISTORE + Op(n/4), n % 4, true
	}
	return op, 0, false
}

// ShortForm returns the single-byte encoding of a load or store of local
// index 0..3.
func ShortForm(op Op, index int) (Op, bool) {
	if index < 0 || index > 3 {
		return op, false
	}
	switch {
	case op >= ILOAD && op <= ALOAD:
		return ILOAD_0 + Op(int(op-ILOAD)*4+index), true
	case op >= ISTORE && op <= ASTORE:
		return ISTORE_0 + Op(int(op-ISTORE)*4+index), true
	}
	return op, false
}

// IsLoad reports whether op is a general-form local load.
func (op Op) IsLoad() bool { return op >= ILOAD && op <= ALOAD }

// IsStore reports whether op is a general-form local store.
func (op Op) IsStore() bool { return op >= ISTORE && op <= ASTORE }

// LocalSize returns the number of slots a load or store of op moves.
func (op Op) LocalSize() int {
	switch op {
	case LLOAD, DLOAD, LSTORE, DSTORE:
		return 2
	}
	return 1
}

// Array types for newarray.
const (
	TBoolean = 4
	TChar    = 5
	TFloat   = 6
	TDouble  = 7
	TByte    = 8
	TShort   = 9
	TInt     = 10
	TLong    = 11
)

// ArrayDescriptor returns the array descriptor created by newarray atype.
func ArrayDescriptor(atype int) (string, bool) {
	switch atype {
	case TBoolean:
		return "[Z", true
	case TChar:
		return "[C", true
	case TFloat:
		return "[F", true
	case TDouble:
		return "[D", true
	case TByte:
		return "[B", true
	case TShort:
		return "[S", true
	case TInt:
		return "[I", true
	case TLong:
		return "[J", true
	}
	return "", false
}
