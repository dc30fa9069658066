package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytecraft/internal/classfmt"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
)

// builder assembles test bodies.
type builder struct {
	b  code.Body
	ls code.Labels
}

func (t *builder) label() code.Label { return t.ls.New() }

func (t *builder) mark(l code.Label) *builder { t.b.Mark(l); return t }

func (t *builder) op(ops ...opcode.Op) *builder {
	for _, op := range ops {
		t.b.Insn(code.Inst{Op: op})
	}
	return t
}

func (t *builder) v(op opcode.Op, n int) *builder {
	t.b.Insn(code.Inst{Op: op, Var: n})
	return t
}

func (t *builder) jump(op opcode.Op, l code.Label) *builder {
	t.b.Insn(code.Inst{Op: op, Target: l})
	return t
}

func (t *builder) typ(op opcode.Op, name string) *builder {
	t.b.Insn(code.Inst{Op: op, Owner: name})
	return t
}

func (t *builder) call(op opcode.Op, owner, name, desc string) *builder {
	t.b.Insn(code.Inst{Op: op, Owner: owner, Name: name, Desc: desc})
	return t
}

func TestBuildCFG(t *testing.T) {
	bt := &builder{}
	loop, done := bt.label(), bt.label()
	bt.op(opcode.ICONST_0).v(opcode.ISTORE, 0).
		mark(loop).v(opcode.ILOAD, 0).jump(opcode.IFNE, done).
		b.Insn(code.Inst{Op: opcode.IINC, Var: 0, Int: 1})
	bt.jump(opcode.GOTO, loop).
		mark(done).op(opcode.RETURN)

	g, err := BuildCFG(&bt.b)
	require.NoError(t, err)
	require.Len(t, g.Blocks, 4)

	assert.True(t, g.Blocks[0].IsEntry)
	assert.Equal(t, []Succ{{BlockID: 1}}, g.Blocks[0].Succs)
	assert.Equal(t, []Succ{{BlockID: 3, Cond: "T"}, {BlockID: 2, Cond: "F"}}, g.Blocks[1].Succs)
	assert.Equal(t, []Succ{{BlockID: 1}}, g.Blocks[2].Succs)
	assert.True(t, g.Blocks[3].IsTerm)

	assert.True(t, g.Blocks[1].Target)
	assert.False(t, g.Blocks[2].Target, "fallthrough of a conditional needs no frame")
	assert.True(t, g.Blocks[3].Target)
}

func TestBuildCFGSharedOffset(t *testing.T) {
	bt := &builder{}
	a, b := bt.label(), bt.label()
	bt.v(opcode.ILOAD, 0).jump(opcode.IFEQ, a).v(opcode.ILOAD, 0).jump(opcode.IFNE, b).
		mark(a).mark(b).op(opcode.RETURN)
	g, err := BuildCFG(&bt.b)
	require.NoError(t, err)
	require.Len(t, g.Blocks, 3, "two labels at one offset share a block")
}

func TestComputeMaxsIsTight(t *testing.T) {
	bt := &builder{}
	other, join := bt.label(), bt.label()
	bt.v(opcode.ILOAD, 0).jump(opcode.IFEQ, other).
		op(opcode.ICONST_1, opcode.ICONST_2, opcode.ICONST_3, opcode.IADD, opcode.IADD, opcode.POP).
		jump(opcode.GOTO, join).
		mark(other).op(opcode.LCONST_1).v(opcode.LSTORE, 3).
		mark(join).op(opcode.RETURN)

	m, err := ComputeMaxs(&bt.b, "(I)V", true)
	require.NoError(t, err)
	assert.Equal(t, 3, m.MaxStack, "deepest path pushes three ints")
	assert.Equal(t, 5, m.MaxLocals, "lstore 3 uses slots 3 and 4")
}

func TestComputeMaxsInvoke(t *testing.T) {
	bt := &builder{}
	bt.v(opcode.ALOAD, 0).v(opcode.LLOAD, 1).v(opcode.DLOAD, 3).
		call(opcode.INVOKEVIRTUAL, "pkg/A", "f", "(JD)J").
		op(opcode.LRETURN)
	m, err := ComputeMaxs(&bt.b, "(JD)J", false)
	require.NoError(t, err)
	assert.Equal(t, 5, m.MaxStack)
	assert.Equal(t, 5, m.MaxLocals)
}

func TestComputeMaxsSkipsDeadCode(t *testing.T) {
	bt := &builder{}
	end := bt.label()
	bt.jump(opcode.GOTO, end).
		op(opcode.LCONST_0, opcode.LCONST_0, opcode.POP2, opcode.POP2).
		mark(end).op(opcode.RETURN)
	m, err := ComputeMaxs(&bt.b, "()V", true)
	require.NoError(t, err)
	assert.Zero(t, m.MaxStack)
	assert.False(t, m.Reachable[1])
}

func TestStackDelta(t *testing.T) {
	tests := []struct {
		in   code.Inst
		want int
	}{
		{code.Inst{Op: opcode.GETFIELD, Desc: "J"}, 1},
		{code.Inst{Op: opcode.PUTFIELD, Desc: "D"}, -3},
		{code.Inst{Op: opcode.PUTSTATIC, Desc: "I"}, -1},
		{code.Inst{Op: opcode.INVOKESTATIC, Desc: "(IJ)V"}, -3},
		{code.Inst{Op: opcode.INVOKEINTERFACE, Desc: "()D"}, 1},
		{code.Inst{Op: opcode.INVOKEDYNAMIC, Desc: "(I)Ljava/lang/Object;"}, 0},
		{code.Inst{Op: opcode.LDC, Const: 1.5}, 2},
		{code.Inst{Op: opcode.LDC, Const: "s"}, 1},
		{code.Inst{Op: opcode.MULTIANEWARRAY, Int: 3}, -2},
	}
	for _, tt := range tests {
		got, err := StackDelta(&tt.in)
		require.NoError(t, err)
		if got != tt.want {
			t.Errorf("StackDelta(%s %s) = %d, want %d", tt.in.Op, tt.in.Desc, got, tt.want)
		}
	}
}

var shapes = Classes{
	"pkg/Base":  {Super: "java/lang/Object"},
	"pkg/A":     {Super: "pkg/Base"},
	"pkg/B":     {Super: "pkg/Base"},
	"pkg/C":     {Super: "pkg/A"},
	"pkg/Shape": {Super: "java/lang/Object", Interface: true},
}

func TestAnalyzeJoinsBranches(t *testing.T) {
	bt := &builder{}
	other, join := bt.label(), bt.label()
	bt.v(opcode.ILOAD, 0).jump(opcode.IFEQ, other).
		typ(opcode.NEW, "pkg/C").op(opcode.DUP).call(opcode.INVOKESPECIAL, "pkg/C", "<init>", "()V").
		v(opcode.ASTORE, 1).jump(opcode.GOTO, join).
		mark(other).
		typ(opcode.NEW, "pkg/B").op(opcode.DUP).call(opcode.INVOKESPECIAL, "pkg/B", "<init>", "()V").
		v(opcode.ASTORE, 1).
		mark(join).v(opcode.ALOAD, 1).op(opcode.ARETURN)
	bt.b.LabelNew(&bt.ls)

	r, err := Analyze(Method{Owner: "pkg/T", Name: "make", Desc: "(I)Lpkg/Base;", Static: true, Body: &bt.b}, shapes)
	require.NoError(t, err)
	assert.Equal(t, 2, r.MaxStack)
	assert.Equal(t, 2, r.MaxLocals)
	assert.Empty(t, r.Dead)

	require.Len(t, r.Frames, 2)
	assert.Equal(t, []code.VType{code.IntType}, r.Frames[0].Frame.Locals)
	assert.Equal(t, []code.VType{code.IntType, code.ObjectType("pkg/Base")}, r.Frames[1].Frame.Locals)
	assert.Empty(t, r.Frames[1].Frame.Stack)
}

func TestAnalyzeConstructorInitializesThis(t *testing.T) {
	bt := &builder{}
	l := bt.label()
	bt.v(opcode.ALOAD, 0).call(opcode.INVOKESPECIAL, "pkg/Base", "<init>", "()V").
		v(opcode.ILOAD, 1).jump(opcode.IFEQ, l).
		mark(l).op(opcode.RETURN)

	r, err := Analyze(Method{Owner: "pkg/A", Name: "<init>", Desc: "(Z)V", Body: &bt.b}, shapes)
	require.NoError(t, err)
	require.Len(t, r.Frames, 1)
	assert.Equal(t, []code.VType{code.ObjectType("pkg/A"), code.IntType}, r.Frames[0].Frame.Locals)
}

func TestAnalyzeStackDepthMismatch(t *testing.T) {
	bt := &builder{}
	l := bt.label()
	bt.v(opcode.ILOAD, 0).jump(opcode.IFEQ, l).op(opcode.ICONST_1).
		mark(l).op(opcode.RETURN)
	_, err := Analyze(Method{Owner: "pkg/T", Name: "m", Desc: "(I)V", Static: true, Body: &bt.b}, nil)
	assert.ErrorIs(t, err, classfmt.ErrVerificationTopology)
}

func TestAnalyzeUnjoinableStack(t *testing.T) {
	bt := &builder{}
	other, join := bt.label(), bt.label()
	bt.v(opcode.ILOAD, 0).jump(opcode.IFEQ, other).
		op(opcode.ICONST_1).jump(opcode.GOTO, join).
		mark(other).op(opcode.FCONST_1).
		mark(join).op(opcode.POP, opcode.RETURN)
	_, err := Analyze(Method{Owner: "pkg/T", Name: "m", Desc: "(I)V", Static: true, Body: &bt.b}, nil)
	assert.ErrorIs(t, err, classfmt.ErrVerificationTopology)
}

func TestAnalyzeDeadCode(t *testing.T) {
	bt := &builder{}
	end := bt.label()
	bt.jump(opcode.GOTO, end).
		op(opcode.ICONST_1, opcode.POP).
		mark(end).op(opcode.RETURN)
	r, err := Analyze(Method{Owner: "pkg/T", Name: "m", Desc: "()V", Static: true, Body: &bt.b}, nil)
	require.NoError(t, err)
	require.Equal(t, []int{1}, r.Dead)
	require.Len(t, r.Frames, 2)
	assert.Equal(t, 1, r.Frames[0].Block)
	assert.Empty(t, r.Frames[0].Frame.Locals)
	assert.Equal(t, []code.VType{code.ThrowableTop}, r.Frames[0].Frame.Stack)
	assert.Equal(t, 1, r.MaxStack)
}

func TestAnalyzeHandlerFrame(t *testing.T) {
	bt := &builder{}
	start, end, handler, done := bt.label(), bt.label(), bt.label(), bt.label()
	bt.mark(start).op(opcode.ICONST_1).v(opcode.ISTORE, 1)
	bt.b.Insn(code.Inst{Op: opcode.LDC, Const: "x"})
	bt.op(opcode.POP).
		mark(end).jump(opcode.GOTO, done).
		mark(handler).v(opcode.ASTORE, 2).
		mark(done).op(opcode.RETURN)
	bt.b.Handlers = []code.Handler{{Start: start, End: end, Handler: handler, Type: "java/lang/Exception"}}

	r, err := Analyze(Method{Owner: "pkg/T", Name: "m", Desc: "()V", Static: true, Body: &bt.b}, nil)
	require.NoError(t, err)

	var hf *code.Frame
	for i := range r.Frames {
		if r.CFG.Handler[0] == r.Frames[i].Block {
			hf = &r.Frames[i].Frame
		}
	}
	require.NotNil(t, hf)
	// Slot 1 is unset before the first instruction and int afterwards.
	assert.Empty(t, hf.Locals)
	assert.Equal(t, []code.VType{code.ObjectType("java/lang/Exception")}, hf.Stack)
}

func TestAnalyzeRejectsSubroutines(t *testing.T) {
	bt := &builder{}
	sub := bt.label()
	bt.jump(opcode.JSR, sub).op(opcode.RETURN).
		mark(sub).v(opcode.ASTORE, 0).v(opcode.RET, 0)
	_, err := Analyze(Method{Owner: "pkg/T", Name: "m", Desc: "()V", Static: true, Body: &bt.b}, nil)
	assert.ErrorIs(t, err, classfmt.ErrVerificationTopology)

	// Maxs still work for subroutines.
	m, err := ComputeMaxs(&bt.b, "()V", true)
	require.NoError(t, err)
	assert.Equal(t, 1, m.MaxStack)
}

func TestJoinIsCommutative(t *testing.T) {
	types := []code.VType{
		code.TopType, code.IntType, code.FloatType, code.LongType, code.NullType, code.UninitThis,
		code.UninitType(3),
		code.ObjectType("pkg/A"), code.ObjectType("pkg/B"), code.ObjectType("pkg/C"),
		code.ObjectType("pkg/Shape"), code.ObjectType("[Lpkg/C;"), code.ObjectType("[Lpkg/B;"),
		code.ObjectType("[I"), code.ObjectType("[[Lpkg/A;"), code.ObjectRoot,
	}
	for _, x := range types {
		for _, y := range types {
			xy, okXY, err := Join(x, y, shapes)
			require.NoError(t, err)
			yx, okYX, err := Join(y, x, shapes)
			require.NoError(t, err)
			assert.Equal(t, okXY, okYX, "%s | %s", x, y)
			assert.Equal(t, xy, yx, "%s | %s", x, y)
		}
	}
}

func TestJoinTable(t *testing.T) {
	tests := []struct {
		x, y, want code.VType
		ok         bool
	}{
		{code.ObjectType("pkg/C"), code.ObjectType("pkg/B"), code.ObjectType("pkg/Base"), true},
		{code.ObjectType("pkg/C"), code.ObjectType("pkg/A"), code.ObjectType("pkg/A"), true},
		{code.ObjectType("pkg/A"), code.ObjectType("pkg/Shape"), code.ObjectRoot, true},
		{code.NullType, code.ObjectType("pkg/A"), code.ObjectType("pkg/A"), true},
		{code.ObjectType("[Lpkg/C;"), code.ObjectType("[Lpkg/B;"), code.ObjectType("[Lpkg/Base;"), true},
		{code.ObjectType("[I"), code.ObjectType("[F"), code.ObjectRoot, true},
		{code.ObjectType("[I"), code.ObjectType("pkg/A"), code.ObjectRoot, true},
		{code.IntType, code.FloatType, code.TopType, false},
		{code.UninitThis, code.ObjectType("pkg/A"), code.TopType, false},
	}
	for _, tt := range tests {
		got, ok, err := Join(tt.x, tt.y, shapes)
		require.NoError(t, err)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Join(%s, %s) = %s, %v, want %s, %v", tt.x, tt.y, got, ok, tt.want, tt.ok)
		}
	}
}
