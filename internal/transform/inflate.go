package transform

import (
	"bytecraft/internal/classfile"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
)

// Inflate inserts n nops after the first forward conditional jump of the
// class, pushing its target far enough away to force branch widening when
// n is large. With upgrade set, classes older than V1_6 are raised to V1_6
// so the writer emits stack map frames for them.
func Inflate(next classfile.ClassVisitor, n int, upgrade bool) *Inflater {
	return &Inflater{ClassForwarder: classfile.ClassForwarder{Next: next}, n: n, upgrade: upgrade}
}

// Inflater is the visitor returned by Inflate.
type Inflater struct {
	classfile.ClassForwarder
	n       int
	upgrade bool
	done    bool
}

// Inflated reports whether the nops have been inserted.
func (c *Inflater) Inflated() bool { return c.done }

func (c *Inflater) Visit(version, access int, name, signature, super string, interfaces []string) {
	if c.upgrade && version&0xFFFF < classfile.V1_6 {
		version = classfile.V1_6
	}
	c.ClassForwarder.Visit(version, access, name, signature, super, interfaces)
}

func (c *Inflater) VisitMethod(access int, name, desc, signature string, exceptions []string) classfile.MethodVisitor {
	mv := c.ClassForwarder.VisitMethod(access, name, desc, signature, exceptions)
	if mv == nil || c.n <= 0 {
		return mv
	}
	return &inflateMethod{MethodForwarder: classfile.MethodForwarder{Next: mv}, c: c, seen: make(map[code.Label]bool)}
}

type inflateMethod struct {
	classfile.MethodForwarder
	c    *Inflater
	seen map[code.Label]bool
}

func (m *inflateMethod) VisitLabel(l code.Label) {
	m.MethodForwarder.VisitLabel(l)
	m.seen[l] = true
}

func (m *inflateMethod) VisitJumpInsn(op opcode.Op, target code.Label) {
	m.MethodForwarder.VisitJumpInsn(op, target)
	if op == opcode.GOTO || m.c.done || m.seen[target] {
		return
	}
	m.c.done = true
	for i := 0; i < m.c.n; i++ {
		m.MethodForwarder.VisitInsn(opcode.NOP)
	}
}
