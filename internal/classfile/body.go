package classfile

import (
	"bytecraft/internal/code"
	"bytecraft/internal/constpool"
	"bytecraft/internal/opcode"
)

// BodyBuilder is a MethodVisitor that collects Code events into a
// code.Body. Events outside Code are dropped. The Writer embeds one per
// method; analysis tools use it on its own.
type BodyBuilder struct {
	Labels    *code.Labels
	Body      code.Body
	HasCode   bool
	MaxStack  int
	MaxLocals int
}

func (b *BodyBuilder) VisitAnnotationDefault() AnnotationVisitor { return nil }

func (b *BodyBuilder) VisitAnnotation(string, bool) AnnotationVisitor { return nil }

func (b *BodyBuilder) VisitParameterAnnotation(int, string, bool) AnnotationVisitor { return nil }

func (b *BodyBuilder) VisitAttribute(Attribute) {}

func (b *BodyBuilder) VisitCode(labels *code.Labels) {
	b.HasCode = true
	if labels == nil {
		labels = &code.Labels{}
	}
	b.Labels = labels
}

func (b *BodyBuilder) VisitFrame(f code.Frame) { b.Body.AddFrame(f.Clone()) }

func (b *BodyBuilder) VisitInsn(op opcode.Op) { b.Body.Insn(code.Inst{Op: op}) }

func (b *BodyBuilder) VisitIntInsn(op opcode.Op, operand int) {
	b.Body.Insn(code.Inst{Op: op, Int: operand})
}

func (b *BodyBuilder) VisitVarInsn(op opcode.Op, index int) {
	if base, n, ok := opcode.Implicit(op); ok {
		op, index = base, n
	}
	b.Body.Insn(code.Inst{Op: op, Var: index})
}

func (b *BodyBuilder) VisitTypeInsn(op opcode.Op, typ string) {
	b.Body.Insn(code.Inst{Op: op, Owner: typ})
}

func (b *BodyBuilder) VisitFieldInsn(op opcode.Op, owner, name, desc string) {
	b.Body.Insn(code.Inst{Op: op, Owner: owner, Name: name, Desc: desc})
}

func (b *BodyBuilder) VisitMethodInsn(op opcode.Op, owner, name, desc string, itf bool) {
	b.Body.Insn(code.Inst{Op: op, Owner: owner, Name: name, Desc: desc, Itf: itf || op == opcode.INVOKEINTERFACE})
}

func (b *BodyBuilder) VisitInvokeDynamicInsn(name, desc string, bsm constpool.Handle, args ...any) {
	b.Body.Insn(code.Inst{Op: opcode.INVOKEDYNAMIC, Name: name, Desc: desc, BSM: bsm, BSMArgs: append([]any(nil), args...)})
}

func (b *BodyBuilder) VisitJumpInsn(op opcode.Op, target code.Label) {
	b.Body.Insn(code.Inst{Op: opcode.Narrow(op), Target: target})
}

func (b *BodyBuilder) VisitLabel(l code.Label) { b.Body.Mark(l) }

func (b *BodyBuilder) VisitLdcInsn(value any) {
	b.Body.Insn(code.Inst{Op: opcode.LDC, Const: value})
}

func (b *BodyBuilder) VisitIincInsn(index, incr int) {
	b.Body.Insn(code.Inst{Op: opcode.IINC, Var: index, Int: incr})
}

func (b *BodyBuilder) VisitTableSwitchInsn(min, max int32, dflt code.Label, targets ...code.Label) {
	b.Body.Insn(code.Inst{
		Op:      opcode.TABLESWITCH,
		Min:     min,
		Max:     max,
		Default: dflt,
		Targets: append([]code.Label(nil), targets...),
	})
}

func (b *BodyBuilder) VisitLookupSwitchInsn(dflt code.Label, keys []int32, targets []code.Label) {
	b.Body.Insn(code.Inst{
		Op:      opcode.LOOKUPSWITCH,
		Default: dflt,
		Keys:    append([]int32(nil), keys...),
		Targets: append([]code.Label(nil), targets...),
	})
}

func (b *BodyBuilder) VisitMultiANewArrayInsn(desc string, dims int) {
	b.Body.Insn(code.Inst{Op: opcode.MULTIANEWARRAY, Owner: desc, Int: dims})
}

func (b *BodyBuilder) VisitTryCatchBlock(start, end, handler code.Label, typ string) {
	b.Body.Handlers = append(b.Body.Handlers, code.Handler{Start: start, End: end, Handler: handler, Type: typ})
}

func (b *BodyBuilder) VisitLocalVariable(name, desc, signature string, start, end code.Label, index int) {
	if desc != "" {
		b.Body.Locals = append(b.Body.Locals, code.LocalVar{Name: name, Desc: desc, Start: start, End: end, Index: index})
	}
	if signature != "" {
		b.Body.LocalTypes = append(b.Body.LocalTypes, code.LocalVar{Name: name, Desc: signature, Start: start, End: end, Index: index})
	}
}

func (b *BodyBuilder) VisitLineNumber(line int, start code.Label) { b.Body.Line(line, start) }

func (b *BodyBuilder) VisitMaxs(maxStack, maxLocals int) {
	b.MaxStack, b.MaxLocals = maxStack, maxLocals
}

func (b *BodyBuilder) VisitEnd() {}
