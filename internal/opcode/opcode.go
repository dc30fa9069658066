// Package opcode describes the JVM instruction set: opcode values,
// mnemonics, operand layouts and operand-stack size effects.
package opcode

import "fmt"

// Op is a JVM opcode.
type Op uint8

const (
	NOP             Op = 0x00
	ACONST_NULL     Op = 0x01
	ICONST_M1       Op = 0x02
	ICONST_0        Op = 0x03
	ICONST_1        Op = 0x04
	ICONST_2        Op = 0x05
	ICONST_3        Op = 0x06
	ICONST_4        Op = 0x07
	ICONST_5        Op = 0x08
	LCONST_0        Op = 0x09
	LCONST_1        Op = 0x0a
	FCONST_0        Op = 0x0b
	FCONST_1        Op = 0x0c
	FCONST_2        Op = 0x0d
	DCONST_0        Op = 0x0e
	DCONST_1        Op = 0x0f
	BIPUSH          Op = 0x10
	SIPUSH          Op = 0x11
	LDC             Op = 0x12
	LDC_W           Op = 0x13
	LDC2_W          Op = 0x14
	ILOAD           Op = 0x15
	LLOAD           Op = 0x16
	FLOAD           Op = 0x17
	DLOAD           Op = 0x18
	ALOAD           Op = 0x19
	ILOAD_0         Op = 0x1a
	ALOAD_3         Op = 0x2d
	IALOAD          Op = 0x2e
	LALOAD          Op = 0x2f
	FALOAD          Op = 0x30
	DALOAD          Op = 0x31
	AALOAD          Op = 0x32
	BALOAD          Op = 0x33
	CALOAD          Op = 0x34
	SALOAD          Op = 0x35
	ISTORE          Op = 0x36
	LSTORE          Op = 0x37
	FSTORE          Op = 0x38
	DSTORE          Op = 0x39
	ASTORE          Op = 0x3a
	ISTORE_0        Op = 0x3b
	ASTORE_3        Op = 0x4e
	IASTORE         Op = 0x4f
	LASTORE         Op = 0x50
	FASTORE         Op = 0x51
	DASTORE         Op = 0x52
	AASTORE         Op = 0x53
	BASTORE         Op = 0x54
	CASTORE         Op = 0x55
	SASTORE         Op = 0x56
	POP             Op = 0x57
	POP2            Op = 0x58
	DUP             Op = 0x59
	DUP_X1          Op = 0x5a
	DUP_X2          Op = 0x5b
	DUP2            Op = 0x5c
	DUP2_X1         Op = 0x5d
	DUP2_X2         Op = 0x5e
	SWAP            Op = 0x5f
	IADD            Op = 0x60
	LADD            Op = 0x61
	FADD            Op = 0x62
	DADD            Op = 0x63
	ISUB            Op = 0x64
	LSUB            Op = 0x65
	FSUB            Op = 0x66
	DSUB            Op = 0x67
	IMUL            Op = 0x68
	LMUL            Op = 0x69
	FMUL            Op = 0x6a
	DMUL            Op = 0x6b
	IDIV            Op = 0x6c
	LDIV            Op = 0x6d
	FDIV            Op = 0x6e
	DDIV            Op = 0x6f
	IREM            Op = 0x70
	LREM            Op = 0x71
	FREM            Op = 0x72
	DREM            Op = 0x73
	INEG            Op = 0x74
	LNEG            Op = 0x75
	FNEG            Op = 0x76
	DNEG            Op = 0x77
	ISHL            Op = 0x78
	LSHL            Op = 0x79
	ISHR            Op = 0x7a
	LSHR            Op = 0x7b
	IUSHR           Op = 0x7c
	LUSHR           Op = 0x7d
	IAND            Op = 0x7e
	LAND            Op = 0x7f
	IOR             Op = 0x80
	LOR             Op = 0x81
	IXOR            Op = 0x82
	LXOR            Op = 0x83
	IINC            Op = 0x84
	I2L             Op = 0x85
	I2F             Op = 0x86
	I2D             Op = 0x87
	L2I             Op = 0x88
	L2F             Op = 0x89
	L2D             Op = 0x8a
	F2I             Op = 0x8b
	F2L             Op = 0x8c
	F2D             Op = 0x8d
	D2I             Op = 0x8e
	D2L             Op = 0x8f
	D2F             Op = 0x90
	I2B             Op = 0x91
	I2C             Op = 0x92
	I2S             Op = 0x93
	LCMP            Op = 0x94
	FCMPL           Op = 0x95
	FCMPG           Op = 0x96
	DCMPL           Op = 0x97
	DCMPG           Op = 0x98
	IFEQ            Op = 0x99
	IFNE            Op = 0x9a
	IFLT            Op = 0x9b
	IFGE            Op = 0x9c
	IFGT            Op = 0x9d
	IFLE            Op = 0x9e
	IF_ICMPEQ       Op = 0x9f
	IF_ICMPNE       Op = 0xa0
	IF_ICMPLT       Op = 0xa1
	IF_ICMPGE       Op = 0xa2
	IF_ICMPGT       Op = 0xa3
	IF_ICMPLE       Op = 0xa4
	IF_ACMPEQ       Op = 0xa5
	IF_ACMPNE       Op = 0xa6
	GOTO            Op = 0xa7
	JSR             Op = 0xa8
	RET             Op = 0xa9
	TABLESWITCH     Op = 0xaa
	LOOKUPSWITCH    Op = 0xab
	IRETURN         Op = 0xac
	LRETURN         Op = 0xad
	FRETURN         Op = 0xae
	DRETURN         Op = 0xaf
	ARETURN         Op = 0xb0
	RETURN          Op = 0xb1
	GETSTATIC       Op = 0xb2
	PUTSTATIC       Op = 0xb3
	GETFIELD        Op = 0xb4
	PUTFIELD        Op = 0xb5
	INVOKEVIRTUAL   Op = 0xb6
	INVOKESPECIAL   Op = 0xb7
	INVOKESTATIC    Op = 0xb8
	INVOKEINTERFACE Op = 0xb9
	INVOKEDYNAMIC   Op = 0xba
	NEW             Op = 0xbb
	NEWARRAY        Op = 0xbc
	ANEWARRAY       Op = 0xbd
	ARRAYLENGTH     Op = 0xbe
	ATHROW          Op = 0xbf
	CHECKCAST       Op = 0xc0
	INSTANCEOF      Op = 0xc1
	MONITORENTER    Op = 0xc2
	MONITOREXIT     Op = 0xc3
	WIDE            Op = 0xc4
	MULTIANEWARRAY  Op = 0xc5
	IFNULL          Op = 0xc6
	IFNONNULL       Op = 0xc7
	GOTO_W          Op = 0xc8
	JSR_W           Op = 0xc9
)

// Kind is the operand layout of an instruction.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNone
	KindByte     // s1 immediate (bipush)
	KindShort    // s2 immediate (sipush)
	KindNewArray // u1 primitive array type
	KindVar      // u1 local index, u2 after wide
	KindImplicit // iload_0 style, index encoded in the opcode
	KindLdc      // u1 pool index
	KindLdcWide  // u2 pool index
	KindField
	KindMethod
	KindInterface // u2 index, u1 count, u1 zero
	KindIndy      // u2 index, two zero bytes
	KindType
	KindJump     // s2 offset
	KindJumpWide // s4 offset
	KindIinc
	KindTableSwitch
	KindLookupSwitch
	KindMultiANewArray
	KindWide
)

type info struct {
	name     string
	kind     Kind
	delta    int8
	variable bool
}

var table [256]info

func def(op Op, name string, kind Kind, delta int8) {
	table[op] = info{name: name, kind: kind, delta: delta}
}

func defVar(op Op, name string, kind Kind) {
	table[op] = info{name: name, kind: kind, variable: true}
}

func init() {
	def(NOP, "nop", KindNone, 0)
	def(ACONST_NULL, "aconst_null", KindNone, 1)
	for i, n := range []string{"iconst_m1", "iconst_0", "iconst_1", "iconst_2", "iconst_3", "iconst_4", "iconst_5"} {
		def(ICONST_M1+Op(i), n, KindNone, 1)
	}
	def(LCONST_0, "lconst_0", KindNone, 2)
	def(LCONST_1, "lconst_1", KindNone, 2)
	def(FCONST_0, "fconst_0", KindNone, 1)
	def(FCONST_1, "fconst_1", KindNone, 1)
	def(FCONST_2, "fconst_2", KindNone, 1)
	def(DCONST_0, "dconst_0", KindNone, 2)
	def(DCONST_1, "dconst_1", KindNone, 2)
	def(BIPUSH, "bipush", KindByte, 1)
	def(SIPUSH, "sipush", KindShort, 1)
	defVar(LDC, "ldc", KindLdc)
	defVar(LDC_W, "ldc_w", KindLdcWide)
	defVar(LDC2_W, "ldc2_w", KindLdcWide)

	prefixes := []string{"i", "l", "f", "d", "a"}
	sizes := []int8{1, 2, 1, 2, 1}
	for i, p := range prefixes {
		def(ILOAD+Op(i), p+"load", KindVar, sizes[i])
		def(ISTORE+Op(i), p+"store", KindVar, -sizes[i])
		for n := 0; n < 4; n++ {
			def(ILOAD_0+Op(i*4+n), fmt.Sprintf("%sload_%d", p, n), KindImplicit, sizes[i])
			def(ISTORE_0+Op(i*4+n), fmt.Sprintf("%sstore_%d", p, n), KindImplicit, -sizes[i])
		}
	}

	arrays := []struct {
		load, store   Op
		prefix        string
		loadD, storeD int8
	}{
		{IALOAD, IASTORE, "i", -1, -3},
		{LALOAD, LASTORE, "l", 0, -4},
		{FALOAD, FASTORE, "f", -1, -3},
		{DALOAD, DASTORE, "d", 0, -4},
		{AALOAD, AASTORE, "a", -1, -3},
		{BALOAD, BASTORE, "b", -1, -3},
		{CALOAD, CASTORE, "c", -1, -3},
		{SALOAD, SASTORE, "s", -1, -3},
	}
	for _, a := range arrays {
		def(a.load, a.prefix+"aload", KindNone, a.loadD)
		def(a.store, a.prefix+"astore", KindNone, a.storeD)
	}

	def(POP, "pop", KindNone, -1)
	def(POP2, "pop2", KindNone, -2)
	def(DUP, "dup", KindNone, 1)
	def(DUP_X1, "dup_x1", KindNone, 1)
	def(DUP_X2, "dup_x2", KindNone, 1)
	def(DUP2, "dup2", KindNone, 2)
	def(DUP2_X1, "dup2_x1", KindNone, 2)
	def(DUP2_X2, "dup2_x2", KindNone, 2)
	def(SWAP, "swap", KindNone, 0)

	// Arithmetic comes in i, l, f, d groups of four.
	for i, n := range []string{"add", "sub", "mul", "div", "rem"} {
		base := IADD + Op(i*4)
		def(base, "i"+n, KindNone, -1)
		def(base+1, "l"+n, KindNone, -2)
		def(base+2, "f"+n, KindNone, -1)
		def(base+3, "d"+n, KindNone, -2)
	}
	def(INEG, "ineg", KindNone, 0)
	def(LNEG, "lneg", KindNone, 0)
	def(FNEG, "fneg", KindNone, 0)
	def(DNEG, "dneg", KindNone, 0)
	def(ISHL, "ishl", KindNone, -1)
	def(LSHL, "lshl", KindNone, -1)
	def(ISHR, "ishr", KindNone, -1)
	def(LSHR, "lshr", KindNone, -1)
	def(IUSHR, "iushr", KindNone, -1)
	def(LUSHR, "lushr", KindNone, -1)
	def(IAND, "iand", KindNone, -1)
	def(LAND, "land", KindNone, -2)
	def(IOR, "ior", KindNone, -1)
	def(LOR, "lor", KindNone, -2)
	def(IXOR, "ixor", KindNone, -1)
	def(LXOR, "lxor", KindNone, -2)
	def(IINC, "iinc", KindIinc, 0)

	def(I2L, "i2l", KindNone, 1)
	def(I2F, "i2f", KindNone, 0)
	def(I2D, "i2d", KindNone, 1)
	def(L2I, "l2i", KindNone, -1)
	def(L2F, "l2f", KindNone, -1)
	def(L2D, "l2d", KindNone, 0)
	def(F2I, "f2i", KindNone, 0)
	def(F2L, "f2l", KindNone, 1)
	def(F2D, "f2d", KindNone, 1)
	def(D2I, "d2i", KindNone, -1)
	def(D2L, "d2l", KindNone, 0)
	def(D2F, "d2f", KindNone, -1)
	def(I2B, "i2b", KindNone, 0)
	def(I2C, "i2c", KindNone, 0)
	def(I2S, "i2s", KindNone, 0)
	def(LCMP, "lcmp", KindNone, -3)
	def(FCMPL, "fcmpl", KindNone, -1)
	def(FCMPG, "fcmpg", KindNone, -1)
	def(DCMPL, "dcmpl", KindNone, -3)
	def(DCMPG, "dcmpg", KindNone, -3)

	for i, n := range []string{"ifeq", "ifne", "iflt", "ifge", "ifgt", "ifle"} {
		def(IFEQ+Op(i), n, KindJump, -1)
	}
	for i, n := range []string{"if_icmpeq", "if_icmpne", "if_icmplt", "if_icmpge", "if_icmpgt", "if_icmple", "if_acmpeq", "if_acmpne"} {
		def(IF_ICMPEQ+Op(i), n, KindJump, -2)
	}
	def(GOTO, "goto", KindJump, 0)
	def(JSR, "jsr", KindJump, 1)
	def(RET, "ret", KindVar, 0)
	def(TABLESWITCH, "tableswitch", KindTableSwitch, -1)
	def(LOOKUPSWITCH, "lookupswitch", KindLookupSwitch, -1)
	def(IRETURN, "ireturn", KindNone, -1)
	def(LRETURN, "lreturn", KindNone, -2)
	def(FRETURN, "freturn", KindNone, -1)
	def(DRETURN, "dreturn", KindNone, -2)
	def(ARETURN, "areturn", KindNone, -1)
	def(RETURN, "return", KindNone, 0)

	defVar(GETSTATIC, "getstatic", KindField)
	defVar(PUTSTATIC, "putstatic", KindField)
	defVar(GETFIELD, "getfield", KindField)
	defVar(PUTFIELD, "putfield", KindField)
	defVar(INVOKEVIRTUAL, "invokevirtual", KindMethod)
	defVar(INVOKESPECIAL, "invokespecial", KindMethod)
	defVar(INVOKESTATIC, "invokestatic", KindMethod)
	defVar(INVOKEINTERFACE, "invokeinterface", KindInterface)
	defVar(INVOKEDYNAMIC, "invokedynamic", KindIndy)
	def(NEW, "new", KindType, 1)
	def(NEWARRAY, "newarray", KindNewArray, 0)
	def(ANEWARRAY, "anewarray", KindType, 0)
	def(ARRAYLENGTH, "arraylength", KindNone, 0)
	def(ATHROW, "athrow", KindNone, -1)
	def(CHECKCAST, "checkcast", KindType, 0)
	def(INSTANCEOF, "instanceof", KindType, 0)
	def(MONITORENTER, "monitorenter", KindNone, -1)
	def(MONITOREXIT, "monitorexit", KindNone, -1)
	def(WIDE, "wide", KindWide, 0)
	defVar(MULTIANEWARRAY, "multianewarray", KindMultiANewArray)
	def(IFNULL, "ifnull", KindJump, -1)
	def(IFNONNULL, "ifnonnull", KindJump, -1)
	def(GOTO_W, "goto_w", KindJumpWide, 0)
	def(JSR_W, "jsr_w", KindJumpWide, 1)
}

// Valid reports whether op is a defined opcode.
func (op Op) Valid() bool { return table[op].kind != KindInvalid }

// Kind returns the operand layout of op.
func (op Op) Kind() Kind { return table[op].kind }

func (op Op) String() string {
	if n := table[op].name; n != "" {
		return n
	}
	return fmt.Sprintf("op(0x%02x)", uint8(op))
}

// Delta returns the operand-stack size change of op in slots. ok is false
// for instructions whose effect depends on a descriptor or constant
// (field access, invocations, ldc, multianewarray).
func (op Op) Delta() (delta int, ok bool) {
	in := table[op]
	return int(in.delta), !in.variable && in.kind != KindInvalid
}

// Lookup returns the opcode with the given mnemonic.
func Lookup(name string) (Op, bool) {
	for i := range table {
		if table[i].name == name {
			return Op(i), true
		}
	}
	return 0, false
}
