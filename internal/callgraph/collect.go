package callgraph

import (
	"bytecraft/internal/classfile"
	"bytecraft/internal/code"
	"bytecraft/internal/opcode"
)

// Method holds the data needed to build call graph and CFG for one method.
type Method struct {
	Owner  string
	Name   string
	Desc   string
	Access int
	Body   code.Body
}

// ID names a method as Owner.Name+Desc.
func ID(owner, name, desc string) string { return owner + "." + name + desc }

func (m *Method) ID() string { return ID(m.Owner, m.Name, m.Desc) }

// CallSite is an invoke instruction inside a method body.
type CallSite struct {
	Node   int // index into Body.Nodes
	Op     opcode.Op
	Owner  string // empty for dynamic call sites
	Callee string
}

// Calls returns the invoke instructions of m in body order. Dynamic call
// sites are named "indy:" plus their name and descriptor.
func (m *Method) Calls() []CallSite {
	var out []CallSite
	for i := range m.Body.Nodes {
		n := &m.Body.Nodes[i]
		if n.Kind != code.NodeInsn {
			continue
		}
		in := &n.Inst
		switch in.Op {
		case opcode.INVOKEVIRTUAL, opcode.INVOKESPECIAL, opcode.INVOKESTATIC, opcode.INVOKEINTERFACE:
			out = append(out, CallSite{Node: i, Op: in.Op, Owner: in.Owner, Callee: ID(in.Owner, in.Name, in.Desc)})
		case opcode.INVOKEDYNAMIC:
			out = append(out, CallSite{Node: i, Op: in.Op, Callee: "indy:" + in.Name + in.Desc})
		}
	}
	return out
}

// Collector is a ClassVisitor that keeps the body of every method with
// code. Everything else is dropped.
type Collector struct {
	classfile.ClassForwarder
	Methods []*Method

	owner string
}

// Collect reads a class and returns its methods with code.
func Collect(data []byte) ([]*Method, error) {
	r, err := classfile.NewReader(data)
	if err != nil {
		return nil, err
	}
	c := &Collector{}
	if err := r.Accept(c, classfile.ReadOptions{SkipDebug: true, SkipFrames: true}); err != nil {
		return nil, err
	}
	return c.Methods, nil
}

func (c *Collector) Visit(version, access int, name, signature, super string, interfaces []string) {
	c.owner = name
}

func (c *Collector) VisitMethod(access int, name, desc, signature string, exceptions []string) classfile.MethodVisitor {
	return &methodCollector{c: c, m: &Method{Owner: c.owner, Name: name, Desc: desc, Access: access}}
}

type methodCollector struct {
	classfile.BodyBuilder
	c *Collector
	m *Method
}

func (mc *methodCollector) VisitEnd() {
	if !mc.HasCode {
		return
	}
	mc.m.Body = mc.Body
	mc.c.Methods = append(mc.c.Methods, mc.m)
}
