package opcode

import "testing"

func TestNames(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{NOP, "nop"},
		{ICONST_M1, "iconst_m1"},
		{ALOAD_3, "aload_3"},
		{ISTORE_0, "istore_0"},
		{Op(0x49), "dstore_2"},
		{LMUL, "lmul"},
		{DREM, "drem"},
		{IF_ACMPNE, "if_acmpne"},
		{INVOKEDYNAMIC, "invokedynamic"},
		{JSR_W, "jsr_w"},
		{Op(0xca), "op(0xca)"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(0x%02x).String() = %q, want %q", uint8(tt.op), got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	op, ok := Lookup("tableswitch")
	if !ok || op != TABLESWITCH {
		t.Errorf("Lookup(tableswitch) = %v, %v", op, ok)
	}
	if _, ok := Lookup("frobnicate"); ok {
		t.Error("Lookup(frobnicate) should fail")
	}
}

func TestEveryDefinedOpcodeHasAName(t *testing.T) {
	n := 0
	for i := 0; i < 256; i++ {
		op := Op(i)
		if op.Valid() {
			n++
			if table[i].name == "" {
				t.Errorf("opcode 0x%02x has no name", i)
			}
		}
	}
	// 0x00..0xc9 inclusive.
	if n != 202 {
		t.Errorf("defined opcodes = %d, want 202", n)
	}
}

func TestDelta(t *testing.T) {
	tests := []struct {
		op   Op
		want int
		ok   bool
	}{
		{LCONST_0, 2, true},
		{LASTORE, -4, true},
		{LCMP, -3, true},
		{DUP2_X2, 2, true},
		{IF_ICMPLT, -2, true},
		{JSR, 1, true},
		{LSTORE, -2, true},
		{ISTORE_0 + 4, -2, true}, // lstore_0
		{INVOKEVIRTUAL, 0, false},
		{LDC, 0, false},
		{MULTIANEWARRAY, 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.op.Delta()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s.Delta() = %d, %v, want %d, %v", tt.op, got, ok, tt.want, tt.ok)
		}
	}
}

func TestInvertIsInvolution(t *testing.T) {
	for op := range inverse {
		inv, _ := Invert(op)
		back, ok := Invert(inv)
		if !ok || back != op {
			t.Errorf("Invert(Invert(%s)) = %s", op, back)
		}
		if !inv.IsConditional() {
			t.Errorf("Invert(%s) = %s, not conditional", op, inv)
		}
	}
	if _, ok := Invert(GOTO); ok {
		t.Error("goto has no inverse")
	}
}

func TestTerminators(t *testing.T) {
	for _, op := range []Op{GOTO, GOTO_W, ATHROW, RET, IRETURN, RETURN, TABLESWITCH, LOOKUPSWITCH} {
		if op.FallsThrough() {
			t.Errorf("%s should not fall through", op)
		}
		if !op.IsTerminator() {
			t.Errorf("%s should terminate a block", op)
		}
	}
	for _, op := range []Op{IFEQ, IFNULL, JSR} {
		if !op.FallsThrough() || !op.IsTerminator() {
			t.Errorf("%s: falls=%v term=%v", op, op.FallsThrough(), op.IsTerminator())
		}
	}
	if IADD.IsTerminator() || INVOKESTATIC.IsTerminator() {
		t.Error("iadd/invokestatic are not terminators")
	}
}

func TestImplicitShortForm(t *testing.T) {
	for i := 0; i < 4; i++ {
		for _, base := range []Op{ILOAD, LLOAD, FLOAD, DLOAD, ALOAD, ISTORE, LSTORE, FSTORE, DSTORE, ASTORE} {
			short, ok := ShortForm(base, i)
			if !ok {
				t.Fatalf("ShortForm(%s, %d) failed", base, i)
			}
			gotBase, gotIndex, ok := Implicit(short)
			if !ok || gotBase != base || gotIndex != i {
				t.Errorf("Implicit(%s) = %s, %d, want %s, %d", short, gotBase, gotIndex, base, i)
			}
		}
	}
	if _, ok := ShortForm(ILOAD, 4); ok {
		t.Error("iload 4 has no short form")
	}
}
