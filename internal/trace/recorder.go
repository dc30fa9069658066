// Package trace records class file event streams as flat event lists, so
// two streams can be printed, compared and stored.
package trace

import (
	"fmt"
	"strings"

	"bytecraft/internal/classfile"
	"bytecraft/internal/code"
	"bytecraft/internal/constpool"
	"bytecraft/internal/opcode"
)

// Event is one recorded visitor call. Labels are renumbered per method in
// order of first appearance, so streams from different producers compare
// equal when they describe the same code.
type Event struct {
	Depth int    `cbor:"1,keyasint" json:"depth"`
	Scope string `cbor:"2,keyasint" json:"scope"`
	Kind  string `cbor:"3,keyasint" json:"kind"`
	Args  string `cbor:"4,keyasint,omitempty" json:"args,omitempty"`
}

func (e Event) String() string {
	s := strings.Repeat("  ", e.Depth) + e.Scope + "." + e.Kind
	if e.Args != "" {
		s += " " + e.Args
	}
	return s
}

// Recorder is a ClassVisitor that records every event it receives.
type Recorder struct {
	Events []Event
}

// Record reads a class and returns its events.
func Record(data []byte, opts classfile.ReadOptions) ([]Event, error) {
	r, err := classfile.NewReader(data)
	if err != nil {
		return nil, err
	}
	rec := &Recorder{}
	if err := r.Accept(rec, opts); err != nil {
		return nil, err
	}
	return rec.Events, nil
}

func (r *Recorder) add(depth int, scope, kind, format string, args ...any) {
	e := Event{Depth: depth, Scope: scope, Kind: kind}
	if format != "" {
		e.Args = fmt.Sprintf(format, args...)
	}
	r.Events = append(r.Events, e)
}

func (r *Recorder) Visit(version, access int, name, signature, super string, interfaces []string) {
	r.add(0, "class", "Visit", "%d %#x %s sig=%q super=%s itf=%v", version, access, name, signature, super, interfaces)
}

func (r *Recorder) VisitSource(source, debug string) {
	r.add(0, "class", "VisitSource", "%q %q", source, debug)
}

func (r *Recorder) VisitOuterClass(owner, name, desc string) {
	r.add(0, "class", "VisitOuterClass", "%s %s %s", owner, name, desc)
}

func (r *Recorder) VisitAnnotation(desc string, visible bool) classfile.AnnotationVisitor {
	r.add(0, "class", "VisitAnnotation", "%s visible=%t", desc, visible)
	return &annotationRecorder{r: r, depth: 1}
}

func (r *Recorder) VisitAttribute(attr classfile.Attribute) {
	r.add(0, "class", "VisitAttribute", "%s", attrString(attr))
}

func (r *Recorder) VisitInnerClass(name, outer, inner string, access int) {
	r.add(0, "class", "VisitInnerClass", "%s %s %s %#x", name, outer, inner, access)
}

func (r *Recorder) VisitField(access int, name, desc, signature string, value any) classfile.FieldVisitor {
	r.add(0, "class", "VisitField", "%#x %s %s sig=%q value=%s", access, name, desc, signature, valueString(value))
	return &fieldRecorder{r: r}
}

func (r *Recorder) VisitMethod(access int, name, desc, signature string, exceptions []string) classfile.MethodVisitor {
	r.add(0, "class", "VisitMethod", "%#x %s%s sig=%q throws=%v", access, name, desc, signature, exceptions)
	return &methodRecorder{r: r, canon: make(map[code.Label]int)}
}

func (r *Recorder) VisitEnd() { r.add(0, "class", "VisitEnd", "") }

type fieldRecorder struct {
	r *Recorder
}

func (f *fieldRecorder) VisitAnnotation(desc string, visible bool) classfile.AnnotationVisitor {
	f.r.add(1, "field", "VisitAnnotation", "%s visible=%t", desc, visible)
	return &annotationRecorder{r: f.r, depth: 2}
}

func (f *fieldRecorder) VisitAttribute(attr classfile.Attribute) {
	f.r.add(1, "field", "VisitAttribute", "%s", attrString(attr))
}

func (f *fieldRecorder) VisitEnd() { f.r.add(1, "field", "VisitEnd", "") }

type methodRecorder struct {
	r     *Recorder
	canon map[code.Label]int
}

func (m *methodRecorder) add(kind, format string, args ...any) {
	m.r.add(1, "method", kind, format, args...)
}

// label returns the canonical name of l.
func (m *methodRecorder) label(l code.Label) string {
	n, ok := m.canon[l]
	if !ok {
		n = len(m.canon)
		m.canon[l] = n
	}
	return fmt.Sprintf("L%d", n)
}

func (m *methodRecorder) labelList(ls []code.Label) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = m.label(l)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (m *methodRecorder) types(ts []code.VType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		if t.Kind == code.Uninitialized {
			parts[i] = "uninit(" + m.label(t.Label) + ")"
			continue
		}
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (m *methodRecorder) VisitAnnotationDefault() classfile.AnnotationVisitor {
	m.add("VisitAnnotationDefault", "")
	return &annotationRecorder{r: m.r, depth: 2}
}

func (m *methodRecorder) VisitAnnotation(desc string, visible bool) classfile.AnnotationVisitor {
	m.add("VisitAnnotation", "%s visible=%t", desc, visible)
	return &annotationRecorder{r: m.r, depth: 2}
}

func (m *methodRecorder) VisitParameterAnnotation(param int, desc string, visible bool) classfile.AnnotationVisitor {
	m.add("VisitParameterAnnotation", "%d %s visible=%t", param, desc, visible)
	return &annotationRecorder{r: m.r, depth: 2}
}

func (m *methodRecorder) VisitAttribute(attr classfile.Attribute) {
	m.add("VisitAttribute", "%s", attrString(attr))
}

func (m *methodRecorder) VisitCode(*code.Labels) { m.add("VisitCode", "") }

func (m *methodRecorder) VisitFrame(f code.Frame) {
	if f.Kind == code.FrameChop {
		m.add("VisitFrame", "%s %d", f.Kind, f.Chop)
		return
	}
	m.add("VisitFrame", "%s %s %s", f.Kind, m.types(f.Locals), m.types(f.Stack))
}

func (m *methodRecorder) VisitInsn(op opcode.Op) { m.add("VisitInsn", "%s", op) }

func (m *methodRecorder) VisitIntInsn(op opcode.Op, operand int) {
	m.add("VisitIntInsn", "%s %d", op, operand)
}

func (m *methodRecorder) VisitVarInsn(op opcode.Op, index int) {
	m.add("VisitVarInsn", "%s %d", op, index)
}

func (m *methodRecorder) VisitTypeInsn(op opcode.Op, typ string) {
	m.add("VisitTypeInsn", "%s %s", op, typ)
}

func (m *methodRecorder) VisitFieldInsn(op opcode.Op, owner, name, desc string) {
	m.add("VisitFieldInsn", "%s %s.%s %s", op, owner, name, desc)
}

func (m *methodRecorder) VisitMethodInsn(op opcode.Op, owner, name, desc string, itf bool) {
	m.add("VisitMethodInsn", "%s %s.%s%s itf=%t", op, owner, name, desc, itf)
}

func (m *methodRecorder) VisitInvokeDynamicInsn(name, desc string, bsm constpool.Handle, args ...any) {
	vals := make([]string, len(args))
	for i, a := range args {
		vals[i] = valueString(a)
	}
	m.add("VisitInvokeDynamicInsn", "%s%s %s [%s]", name, desc, bsm, strings.Join(vals, ", "))
}

func (m *methodRecorder) VisitJumpInsn(op opcode.Op, target code.Label) {
	m.add("VisitJumpInsn", "%s %s", op, m.label(target))
}

func (m *methodRecorder) VisitLabel(l code.Label) { m.add("VisitLabel", "%s", m.label(l)) }

func (m *methodRecorder) VisitLdcInsn(value any) { m.add("VisitLdcInsn", "%s", valueString(value)) }

func (m *methodRecorder) VisitIincInsn(index, incr int) {
	m.add("VisitIincInsn", "%d %d", index, incr)
}

func (m *methodRecorder) VisitTableSwitchInsn(min, max int32, dflt code.Label, targets ...code.Label) {
	m.add("VisitTableSwitchInsn", "%d..%d default=%s %s", min, max, m.label(dflt), m.labelList(targets))
}

func (m *methodRecorder) VisitLookupSwitchInsn(dflt code.Label, keys []int32, targets []code.Label) {
	m.add("VisitLookupSwitchInsn", "default=%s %v %s", m.label(dflt), keys, m.labelList(targets))
}

func (m *methodRecorder) VisitMultiANewArrayInsn(desc string, dims int) {
	m.add("VisitMultiANewArrayInsn", "%s %d", desc, dims)
}

func (m *methodRecorder) VisitTryCatchBlock(start, end, handler code.Label, typ string) {
	m.add("VisitTryCatchBlock", "%s %s %s %s", m.label(start), m.label(end), m.label(handler), typ)
}

func (m *methodRecorder) VisitLocalVariable(name, desc, signature string, start, end code.Label, index int) {
	m.add("VisitLocalVariable", "%s %s sig=%q %s %s %d", name, desc, signature, m.label(start), m.label(end), index)
}

func (m *methodRecorder) VisitLineNumber(line int, start code.Label) {
	m.add("VisitLineNumber", "%d %s", line, m.label(start))
}

func (m *methodRecorder) VisitMaxs(maxStack, maxLocals int) {
	m.add("VisitMaxs", "%d %d", maxStack, maxLocals)
}

func (m *methodRecorder) VisitEnd() { m.add("VisitEnd", "") }

type annotationRecorder struct {
	r     *Recorder
	depth int
}

func (a *annotationRecorder) add(kind, format string, args ...any) {
	a.r.add(a.depth, "annotation", kind, format, args...)
}

func (a *annotationRecorder) Visit(name string, value any) {
	a.add("Visit", "%s=%s", name, valueString(value))
}

func (a *annotationRecorder) VisitEnum(name, desc, value string) {
	a.add("VisitEnum", "%s=%s.%s", name, desc, value)
}

func (a *annotationRecorder) VisitAnnotation(name, desc string) classfile.AnnotationVisitor {
	a.add("VisitAnnotation", "%s=@%s", name, desc)
	return &annotationRecorder{r: a.r, depth: a.depth + 1}
}

func (a *annotationRecorder) VisitArray(name string) classfile.AnnotationVisitor {
	a.add("VisitArray", "%s", name)
	return &annotationRecorder{r: a.r, depth: a.depth + 1}
}

func (a *annotationRecorder) VisitEnd() { a.add("VisitEnd", "") }

// valueString renders a constant with its Go type, so int32 5 and int64 5
// stay distinct.
func valueString(v any) string {
	if v == nil {
		return "nil"
	}
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("string %q", x)
	case float32, float64:
		return fmt.Sprintf("%T %g", x, x)
	}
	return fmt.Sprintf("%T %v", v, v)
}

func attrString(a classfile.Attribute) string {
	if raw, ok := a.(*classfile.RawAttribute); ok {
		return fmt.Sprintf("%s raw %x", raw.AttrName, raw.Data)
	}
	return fmt.Sprintf("%s %+v", a.Name(), a)
}
