package classfile

import (
	"errors"
	"fmt"

	"bytecraft/internal/code"
	"bytecraft/internal/constpool"
	"bytecraft/internal/opcode"
)

// ErrEventOrder is wrapped by the value a Checked visitor panics with.
var ErrEventOrder = errors.New("visitor event out of grammar order")

// Checked wraps next so that any event out of grammar order, or an
// instruction event with an opcode of the wrong shape, panics with an error
// wrapping ErrEventOrder.
func Checked(next ClassVisitor) ClassVisitor {
	return &checkedClass{next: next}
}

func violation(format string, args ...any) {
	panic(fmt.Errorf("classfile: %s: %w", fmt.Sprintf(format, args...), ErrEventOrder))
}

const (
	classStart = iota
	classHeader
	classSource
	classOuter
	classAnnotations
	classMembers
	classEnded
)

type checkedClass struct {
	next  ClassVisitor
	state int
	open  int
	last  string
}

func (c *checkedClass) step(event string, from, to, next int) {
	if c.state < from || c.state > to {
		violation("%s after %s", event, c.lastOr())
	}
	c.state = next
	c.last = event
}

func (c *checkedClass) lastOr() string {
	if c.last == "" {
		return "start of class"
	}
	return c.last
}

func (c *checkedClass) Visit(version, access int, name, signature, super string, interfaces []string) {
	c.step("Visit", classStart, classStart, classHeader)
	if name == "" {
		violation("Visit with an empty class name")
	}
	c.next.Visit(version, access, name, signature, super, interfaces)
}

func (c *checkedClass) VisitSource(source, debug string) {
	c.step("VisitSource", classHeader, classHeader, classSource)
	c.next.VisitSource(source, debug)
}

func (c *checkedClass) VisitOuterClass(owner, name, desc string) {
	c.step("VisitOuterClass", classHeader, classSource, classOuter)
	c.next.VisitOuterClass(owner, name, desc)
}

func (c *checkedClass) VisitAnnotation(desc string, visible bool) AnnotationVisitor {
	c.step("VisitAnnotation", classHeader, classAnnotations, classAnnotations)
	return checkAnnotation(c.next.VisitAnnotation(desc, visible))
}

func (c *checkedClass) VisitAttribute(attr Attribute) {
	c.step("VisitAttribute", classHeader, classAnnotations, classAnnotations)
	if attr == nil {
		violation("VisitAttribute(nil)")
	}
	c.next.VisitAttribute(attr)
}

func (c *checkedClass) VisitInnerClass(name, outer, inner string, access int) {
	c.step("VisitInnerClass", classHeader, classMembers, classMembers)
	c.next.VisitInnerClass(name, outer, inner, access)
}

func (c *checkedClass) VisitField(access int, name, desc, signature string, value any) FieldVisitor {
	c.step("VisitField", classHeader, classMembers, classMembers)
	fv := c.next.VisitField(access, name, desc, signature, value)
	if fv == nil {
		return nil
	}
	c.open++
	return &checkedField{next: fv, owner: c}
}

func (c *checkedClass) VisitMethod(access int, name, desc, signature string, exceptions []string) MethodVisitor {
	c.step("VisitMethod", classHeader, classMembers, classMembers)
	mv := c.next.VisitMethod(access, name, desc, signature, exceptions)
	if mv == nil {
		return nil
	}
	c.open++
	return &checkedMethod{next: mv, owner: c, where: name + desc, placed: make(map[code.Label]bool)}
}

func (c *checkedClass) VisitEnd() {
	c.step("VisitEnd", classHeader, classMembers, classEnded)
	if c.open > 0 {
		violation("VisitEnd with %d fields or methods still open", c.open)
	}
	c.next.VisitEnd()
}

type checkedField struct {
	next  FieldVisitor
	owner *checkedClass
	ended bool
}

func (f *checkedField) live(event string) {
	if f.ended {
		violation("field %s after VisitEnd", event)
	}
}

func (f *checkedField) VisitAnnotation(desc string, visible bool) AnnotationVisitor {
	f.live("VisitAnnotation")
	return checkAnnotation(f.next.VisitAnnotation(desc, visible))
}

func (f *checkedField) VisitAttribute(attr Attribute) {
	f.live("VisitAttribute")
	f.next.VisitAttribute(attr)
}

func (f *checkedField) VisitEnd() {
	f.live("VisitEnd")
	f.ended = true
	f.owner.open--
	f.next.VisitEnd()
}

const (
	methodStart = iota
	methodDefault
	methodAnnotations
	methodCode
	methodMaxs
	methodEnded
)

type checkedMethod struct {
	next   MethodVisitor
	owner  *checkedClass
	where  string
	state  int
	labels *code.Labels
	placed map[code.Label]bool
	used   []code.Label
}

func (m *checkedMethod) step(event string, from, to, next int) {
	if m.state < from || m.state > to {
		violation("%s: %s out of order", m.where, event)
	}
	m.state = next
}

// insn checks an instruction event and the shape of its opcode.
func (m *checkedMethod) insn(event string, op opcode.Op, kinds ...opcode.Kind) {
	m.step(event, methodCode, methodCode, methodCode)
	for _, k := range kinds {
		if op.Kind() == k {
			return
		}
	}
	violation("%s: %s cannot carry %s", m.where, event, op)
}

func (m *checkedMethod) use(ls ...code.Label) {
	for _, l := range ls {
		if l < 0 || l >= code.Label(m.labels.Len()) {
			violation("%s: label %s not allocated from the method arena", m.where, l)
		}
		m.used = append(m.used, l)
	}
}

func (m *checkedMethod) VisitAnnotationDefault() AnnotationVisitor {
	m.step("VisitAnnotationDefault", methodStart, methodStart, methodDefault)
	return checkAnnotation(m.next.VisitAnnotationDefault())
}

func (m *checkedMethod) VisitAnnotation(desc string, visible bool) AnnotationVisitor {
	m.step("VisitAnnotation", methodStart, methodAnnotations, methodAnnotations)
	return checkAnnotation(m.next.VisitAnnotation(desc, visible))
}

func (m *checkedMethod) VisitParameterAnnotation(param int, desc string, visible bool) AnnotationVisitor {
	m.step("VisitParameterAnnotation", methodStart, methodAnnotations, methodAnnotations)
	if param < 0 {
		violation("%s: parameter %d", m.where, param)
	}
	return checkAnnotation(m.next.VisitParameterAnnotation(param, desc, visible))
}

func (m *checkedMethod) VisitAttribute(attr Attribute) {
	if m.state == methodCode {
		m.next.VisitAttribute(attr)
		return
	}
	m.step("VisitAttribute", methodStart, methodAnnotations, methodAnnotations)
	m.next.VisitAttribute(attr)
}

func (m *checkedMethod) VisitCode(labels *code.Labels) {
	m.step("VisitCode", methodStart, methodAnnotations, methodCode)
	if labels == nil {
		violation("%s: VisitCode without a label arena", m.where)
	}
	m.labels = labels
	m.next.VisitCode(labels)
}

func (m *checkedMethod) VisitFrame(f code.Frame) {
	m.step("VisitFrame", methodCode, methodCode, methodCode)
	for _, t := range append(append([]code.VType(nil), f.Locals...), f.Stack...) {
		if t.Kind == code.Uninitialized {
			m.use(t.Label)
		}
	}
	m.next.VisitFrame(f)
}

func (m *checkedMethod) VisitInsn(op opcode.Op) {
	m.insn("VisitInsn", op, opcode.KindNone)
	m.next.VisitInsn(op)
}

func (m *checkedMethod) VisitIntInsn(op opcode.Op, operand int) {
	m.insn("VisitIntInsn", op, opcode.KindByte, opcode.KindShort, opcode.KindNewArray)
	m.next.VisitIntInsn(op, operand)
}

func (m *checkedMethod) VisitVarInsn(op opcode.Op, index int) {
	m.insn("VisitVarInsn", op, opcode.KindVar, opcode.KindImplicit)
	if index < 0 {
		violation("%s: local index %d", m.where, index)
	}
	m.next.VisitVarInsn(op, index)
}

func (m *checkedMethod) VisitTypeInsn(op opcode.Op, typ string) {
	m.insn("VisitTypeInsn", op, opcode.KindType)
	m.next.VisitTypeInsn(op, typ)
}

func (m *checkedMethod) VisitFieldInsn(op opcode.Op, owner, name, desc string) {
	m.insn("VisitFieldInsn", op, opcode.KindField)
	m.next.VisitFieldInsn(op, owner, name, desc)
}

func (m *checkedMethod) VisitMethodInsn(op opcode.Op, owner, name, desc string, itf bool) {
	m.insn("VisitMethodInsn", op, opcode.KindMethod, opcode.KindInterface)
	m.next.VisitMethodInsn(op, owner, name, desc, itf)
}

func (m *checkedMethod) VisitInvokeDynamicInsn(name, desc string, bsm constpool.Handle, args ...any) {
	m.insn("VisitInvokeDynamicInsn", opcode.INVOKEDYNAMIC, opcode.KindIndy)
	m.next.VisitInvokeDynamicInsn(name, desc, bsm, args...)
}

func (m *checkedMethod) VisitJumpInsn(op opcode.Op, target code.Label) {
	m.insn("VisitJumpInsn", op, opcode.KindJump, opcode.KindJumpWide)
	m.use(target)
	m.next.VisitJumpInsn(op, target)
}

func (m *checkedMethod) VisitLabel(l code.Label) {
	m.step("VisitLabel", methodCode, methodCode, methodCode)
	m.use(l)
	if m.placed[l] {
		violation("%s: label %s visited twice", m.where, l)
	}
	m.placed[l] = true
	m.next.VisitLabel(l)
}

func (m *checkedMethod) VisitLdcInsn(value any) {
	m.insn("VisitLdcInsn", opcode.LDC, opcode.KindLdc)
	switch value.(type) {
	case int32, int, float32, int64, float64, string, constpool.Class, constpool.MethodType, constpool.Handle:
	default:
		violation("%s: ldc of %T", m.where, value)
	}
	m.next.VisitLdcInsn(value)
}

func (m *checkedMethod) VisitIincInsn(index, incr int) {
	m.insn("VisitIincInsn", opcode.IINC, opcode.KindIinc)
	m.next.VisitIincInsn(index, incr)
}

func (m *checkedMethod) VisitTableSwitchInsn(min, max int32, dflt code.Label, targets ...code.Label) {
	m.insn("VisitTableSwitchInsn", opcode.TABLESWITCH, opcode.KindTableSwitch)
	if max < min || int64(max)-int64(min)+1 != int64(len(targets)) {
		violation("%s: tableswitch %d..%d with %d targets", m.where, min, max, len(targets))
	}
	m.use(dflt)
	m.use(targets...)
	m.next.VisitTableSwitchInsn(min, max, dflt, targets...)
}

func (m *checkedMethod) VisitLookupSwitchInsn(dflt code.Label, keys []int32, targets []code.Label) {
	m.insn("VisitLookupSwitchInsn", opcode.LOOKUPSWITCH, opcode.KindLookupSwitch)
	if len(keys) != len(targets) {
		violation("%s: lookupswitch with %d keys and %d targets", m.where, len(keys), len(targets))
	}
	m.use(dflt)
	m.use(targets...)
	m.next.VisitLookupSwitchInsn(dflt, keys, targets)
}

func (m *checkedMethod) VisitMultiANewArrayInsn(desc string, dims int) {
	m.insn("VisitMultiANewArrayInsn", opcode.MULTIANEWARRAY, opcode.KindMultiANewArray)
	if dims < 1 {
		violation("%s: multianewarray with %d dimensions", m.where, dims)
	}
	m.next.VisitMultiANewArrayInsn(desc, dims)
}

func (m *checkedMethod) VisitTryCatchBlock(start, end, handler code.Label, typ string) {
	m.step("VisitTryCatchBlock", methodCode, methodCode, methodCode)
	m.use(start, end, handler)
	m.next.VisitTryCatchBlock(start, end, handler, typ)
}

func (m *checkedMethod) VisitLocalVariable(name, desc, signature string, start, end code.Label, index int) {
	m.step("VisitLocalVariable", methodCode, methodCode, methodCode)
	m.use(start, end)
	m.next.VisitLocalVariable(name, desc, signature, start, end, index)
}

func (m *checkedMethod) VisitLineNumber(line int, start code.Label) {
	m.step("VisitLineNumber", methodCode, methodCode, methodCode)
	m.use(start)
	m.next.VisitLineNumber(line, start)
}

func (m *checkedMethod) VisitMaxs(maxStack, maxLocals int) {
	m.step("VisitMaxs", methodCode, methodCode, methodMaxs)
	for _, l := range m.used {
		if !m.placed[l] {
			violation("%s: label %s used but never visited", m.where, l)
		}
	}
	m.next.VisitMaxs(maxStack, maxLocals)
}

func (m *checkedMethod) VisitEnd() {
	if m.state == methodCode {
		violation("%s: VisitEnd without VisitMaxs", m.where)
	}
	m.step("VisitEnd", methodStart, methodMaxs, methodEnded)
	m.owner.open--
	m.next.VisitEnd()
}

type checkedAnnotation struct {
	next  AnnotationVisitor
	ended bool
}

func checkAnnotation(av AnnotationVisitor) AnnotationVisitor {
	if av == nil {
		return nil
	}
	return &checkedAnnotation{next: av}
}

func (a *checkedAnnotation) live(event string) {
	if a.ended {
		violation("annotation %s after VisitEnd", event)
	}
}

func (a *checkedAnnotation) Visit(name string, value any) {
	a.live("Visit")
	a.next.Visit(name, value)
}

func (a *checkedAnnotation) VisitEnum(name, desc, value string) {
	a.live("VisitEnum")
	a.next.VisitEnum(name, desc, value)
}

func (a *checkedAnnotation) VisitAnnotation(name, desc string) AnnotationVisitor {
	a.live("VisitAnnotation")
	return checkAnnotation(a.next.VisitAnnotation(name, desc))
}

func (a *checkedAnnotation) VisitArray(name string) AnnotationVisitor {
	a.live("VisitArray")
	return checkAnnotation(a.next.VisitArray(name))
}

func (a *checkedAnnotation) VisitEnd() {
	a.live("VisitEnd")
	a.ended = true
	a.next.VisitEnd()
}
