package classfile

import (
	"bytecraft/internal/code"
	"bytecraft/internal/constpool"
	"bytecraft/internal/opcode"
)

// ClassForwarder passes every event to Next. Transformations embed it and
// override the events they change. A nil Next drops events.
type ClassForwarder struct {
	Next ClassVisitor
}

func (f *ClassForwarder) Visit(version, access int, name, signature, super string, interfaces []string) {
	if f.Next != nil {
		f.Next.Visit(version, access, name, signature, super, interfaces)
	}
}

func (f *ClassForwarder) VisitSource(source, debug string) {
	if f.Next != nil {
		f.Next.VisitSource(source, debug)
	}
}

func (f *ClassForwarder) VisitOuterClass(owner, name, desc string) {
	if f.Next != nil {
		f.Next.VisitOuterClass(owner, name, desc)
	}
}

func (f *ClassForwarder) VisitAnnotation(desc string, visible bool) AnnotationVisitor {
	if f.Next != nil {
		return f.Next.VisitAnnotation(desc, visible)
	}
	return nil
}

func (f *ClassForwarder) VisitAttribute(attr Attribute) {
	if f.Next != nil {
		f.Next.VisitAttribute(attr)
	}
}

func (f *ClassForwarder) VisitInnerClass(name, outer, inner string, access int) {
	if f.Next != nil {
		f.Next.VisitInnerClass(name, outer, inner, access)
	}
}

func (f *ClassForwarder) VisitField(access int, name, desc, signature string, value any) FieldVisitor {
	if f.Next != nil {
		return f.Next.VisitField(access, name, desc, signature, value)
	}
	return nil
}

func (f *ClassForwarder) VisitMethod(access int, name, desc, signature string, exceptions []string) MethodVisitor {
	if f.Next != nil {
		return f.Next.VisitMethod(access, name, desc, signature, exceptions)
	}
	return nil
}

func (f *ClassForwarder) VisitEnd() {
	if f.Next != nil {
		f.Next.VisitEnd()
	}
}

// FieldForwarder passes every event to Next.
type FieldForwarder struct {
	Next FieldVisitor
}

func (f *FieldForwarder) VisitAnnotation(desc string, visible bool) AnnotationVisitor {
	if f.Next != nil {
		return f.Next.VisitAnnotation(desc, visible)
	}
	return nil
}

func (f *FieldForwarder) VisitAttribute(attr Attribute) {
	if f.Next != nil {
		f.Next.VisitAttribute(attr)
	}
}

func (f *FieldForwarder) VisitEnd() {
	if f.Next != nil {
		f.Next.VisitEnd()
	}
}

// MethodForwarder passes every event to Next.
type MethodForwarder struct {
	Next MethodVisitor
}

func (f *MethodForwarder) VisitAnnotationDefault() AnnotationVisitor {
	if f.Next != nil {
		return f.Next.VisitAnnotationDefault()
	}
	return nil
}

func (f *MethodForwarder) VisitAnnotation(desc string, visible bool) AnnotationVisitor {
	if f.Next != nil {
		return f.Next.VisitAnnotation(desc, visible)
	}
	return nil
}

func (f *MethodForwarder) VisitParameterAnnotation(param int, desc string, visible bool) AnnotationVisitor {
	if f.Next != nil {
		return f.Next.VisitParameterAnnotation(param, desc, visible)
	}
	return nil
}

func (f *MethodForwarder) VisitAttribute(attr Attribute) {
	if f.Next != nil {
		f.Next.VisitAttribute(attr)
	}
}

func (f *MethodForwarder) VisitCode(labels *code.Labels) {
	if f.Next != nil {
		f.Next.VisitCode(labels)
	}
}

func (f *MethodForwarder) VisitFrame(fr code.Frame) {
	if f.Next != nil {
		f.Next.VisitFrame(fr)
	}
}

func (f *MethodForwarder) VisitInsn(op opcode.Op) {
	if f.Next != nil {
		f.Next.VisitInsn(op)
	}
}

func (f *MethodForwarder) VisitIntInsn(op opcode.Op, operand int) {
	if f.Next != nil {
		f.Next.VisitIntInsn(op, operand)
	}
}

func (f *MethodForwarder) VisitVarInsn(op opcode.Op, index int) {
	if f.Next != nil {
		f.Next.VisitVarInsn(op, index)
	}
}

func (f *MethodForwarder) VisitTypeInsn(op opcode.Op, typ string) {
	if f.Next != nil {
		f.Next.VisitTypeInsn(op, typ)
	}
}

func (f *MethodForwarder) VisitFieldInsn(op opcode.Op, owner, name, desc string) {
	if f.Next != nil {
		f.Next.VisitFieldInsn(op, owner, name, desc)
	}
}

func (f *MethodForwarder) VisitMethodInsn(op opcode.Op, owner, name, desc string, itf bool) {
	if f.Next != nil {
		f.Next.VisitMethodInsn(op, owner, name, desc, itf)
	}
}

func (f *MethodForwarder) VisitInvokeDynamicInsn(name, desc string, bsm constpool.Handle, args ...any) {
	if f.Next != nil {
		f.Next.VisitInvokeDynamicInsn(name, desc, bsm, args...)
	}
}

func (f *MethodForwarder) VisitJumpInsn(op opcode.Op, target code.Label) {
	if f.Next != nil {
		f.Next.VisitJumpInsn(op, target)
	}
}

func (f *MethodForwarder) VisitLabel(l code.Label) {
	if f.Next != nil {
		f.Next.VisitLabel(l)
	}
}

func (f *MethodForwarder) VisitLdcInsn(value any) {
	if f.Next != nil {
		f.Next.VisitLdcInsn(value)
	}
}

func (f *MethodForwarder) VisitIincInsn(index, incr int) {
	if f.Next != nil {
		f.Next.VisitIincInsn(index, incr)
	}
}

func (f *MethodForwarder) VisitTableSwitchInsn(min, max int32, dflt code.Label, targets ...code.Label) {
	if f.Next != nil {
		f.Next.VisitTableSwitchInsn(min, max, dflt, targets...)
	}
}

func (f *MethodForwarder) VisitLookupSwitchInsn(dflt code.Label, keys []int32, targets []code.Label) {
	if f.Next != nil {
		f.Next.VisitLookupSwitchInsn(dflt, keys, targets)
	}
}

func (f *MethodForwarder) VisitMultiANewArrayInsn(desc string, dims int) {
	if f.Next != nil {
		f.Next.VisitMultiANewArrayInsn(desc, dims)
	}
}

func (f *MethodForwarder) VisitTryCatchBlock(start, end, handler code.Label, typ string) {
	if f.Next != nil {
		f.Next.VisitTryCatchBlock(start, end, handler, typ)
	}
}

func (f *MethodForwarder) VisitLocalVariable(name, desc, signature string, start, end code.Label, index int) {
	if f.Next != nil {
		f.Next.VisitLocalVariable(name, desc, signature, start, end, index)
	}
}

func (f *MethodForwarder) VisitLineNumber(line int, start code.Label) {
	if f.Next != nil {
		f.Next.VisitLineNumber(line, start)
	}
}

func (f *MethodForwarder) VisitMaxs(maxStack, maxLocals int) {
	if f.Next != nil {
		f.Next.VisitMaxs(maxStack, maxLocals)
	}
}

func (f *MethodForwarder) VisitEnd() {
	if f.Next != nil {
		f.Next.VisitEnd()
	}
}

// AnnotationForwarder passes every event to Next.
type AnnotationForwarder struct {
	Next AnnotationVisitor
}

func (f *AnnotationForwarder) Visit(name string, value any) {
	if f.Next != nil {
		f.Next.Visit(name, value)
	}
}

func (f *AnnotationForwarder) VisitEnum(name, desc, value string) {
	if f.Next != nil {
		f.Next.VisitEnum(name, desc, value)
	}
}

func (f *AnnotationForwarder) VisitAnnotation(name, desc string) AnnotationVisitor {
	if f.Next != nil {
		return f.Next.VisitAnnotation(name, desc)
	}
	return nil
}

func (f *AnnotationForwarder) VisitArray(name string) AnnotationVisitor {
	if f.Next != nil {
		return f.Next.VisitArray(name)
	}
	return nil
}

func (f *AnnotationForwarder) VisitEnd() {
	if f.Next != nil {
		f.Next.VisitEnd()
	}
}
