package code

import (
	"bytecraft/internal/constpool"
	"bytecraft/internal/opcode"
)

// Inst is one instruction in canonical form. Loads and stores use the
// general opcode (ILOAD, not ILOAD_0), every constant load uses LDC and
// wide variants are chosen by the assembler. GOTO_W and JSR_W only appear
// once a branch has been relaxed.
//
// Operand use by kind:
//
//	bipush, sipush, newarray   Int
//	loads, stores, ret         Var
//	iinc                       Var, Int (increment)
//	ldc                        Const
//	field, method, invoke      Owner, Name, Desc, Itf
//	new, anewarray, checkcast  Owner (internal name or array descriptor)
//	multianewarray             Owner, Int (dimensions)
//	invokedynamic              Name, Desc, BSM, BSMArgs
//	jumps                      Target
//	tableswitch                Min, Max, Default, Targets
//	lookupswitch               Keys, Default, Targets
type Inst struct {
	Op opcode.Op

	Int int
	Var int

	Owner string
	Name  string
	Desc  string
	Itf   bool

	Const   any
	BSM     constpool.Handle
	BSMArgs []any

	Target  Label
	Default Label
	Min     int32
	Max     int32
	Keys    []int32
	Targets []Label
}

// Labels returns every label the instruction refers to.
func (in *Inst) Labels() []Label {
	switch {
	case in.Op.IsJump():
		return []Label{in.Target}
	case in.Op.IsSwitch():
		out := make([]Label, 0, len(in.Targets)+1)
		out = append(out, in.Default)
		return append(out, in.Targets...)
	}
	return nil
}

// NodeKind discriminates Body entries.
type NodeKind uint8

const (
	NodeInsn NodeKind = iota
	NodeLabel
	NodeLine
	NodeFrame
)

// Node is one entry of a buffered method body. A line number or frame node
// applies to the position of the next instruction.
type Node struct {
	Kind  NodeKind
	Inst  Inst
	Label Label // NodeLabel; NodeLine start label
	Line  int
	Frame *Frame
}

// Handler is an exception table entry. An empty Type catches everything.
type Handler struct {
	Start, End, Handler Label
	Type                string
}

// LocalVar is a LocalVariableTable or LocalVariableTypeTable entry.
type LocalVar struct {
	Name       string
	Desc       string
	Start, End Label
	Index      int
}

// Body is a method's code buffered in event order.
type Body struct {
	Nodes      []Node
	Handlers   []Handler
	Locals     []LocalVar
	LocalTypes []LocalVar
	MaxStack   int
	MaxLocals  int
}

func (b *Body) Insn(in Inst) {
	b.Nodes = append(b.Nodes, Node{Kind: NodeInsn, Inst: in})
}

func (b *Body) Mark(l Label) {
	b.Nodes = append(b.Nodes, Node{Kind: NodeLabel, Label: l})
}

func (b *Body) Line(line int, start Label) {
	b.Nodes = append(b.Nodes, Node{Kind: NodeLine, Line: line, Label: start})
}

func (b *Body) AddFrame(f Frame) {
	b.Nodes = append(b.Nodes, Node{Kind: NodeFrame, Frame: &f})
}

// HasFrames reports whether the body carries any frame nodes.
func (b *Body) HasFrames() bool {
	for i := range b.Nodes {
		if b.Nodes[i].Kind == NodeFrame {
			return true
		}
	}
	return false
}

// StripFrames removes every frame node.
func (b *Body) StripFrames() {
	out := b.Nodes[:0]
	for _, n := range b.Nodes {
		if n.Kind != NodeFrame {
			out = append(out, n)
		}
	}
	b.Nodes = out
}

// InsnCount returns the number of instruction nodes.
func (b *Body) InsnCount() int {
	n := 0
	for i := range b.Nodes {
		if b.Nodes[i].Kind == NodeInsn {
			n++
		}
	}
	return n
}

// LabelNodes maps each marked label to its node index.
func (b *Body) LabelNodes() map[Label]int {
	m := make(map[Label]int)
	for i := range b.Nodes {
		if b.Nodes[i].Kind == NodeLabel {
			m[b.Nodes[i].Label] = i
		}
	}
	return m
}

// LabelNew inserts a label before every NEW that is not already preceded
// by one, so Uninitialized types always have a label to refer to.
func (b *Body) LabelNew(labels *Labels) {
	out := make([]Node, 0, len(b.Nodes))
	for i, n := range b.Nodes {
		if n.Kind == NodeInsn && n.Inst.Op == opcode.NEW && !labelledBefore(b.Nodes, i) {
			out = append(out, Node{Kind: NodeLabel, Label: labels.New()})
		}
		out = append(out, n)
	}
	b.Nodes = out
}

// labelledBefore reports whether a label node sits directly before node i,
// ignoring line and frame nodes.
func labelledBefore(nodes []Node, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch nodes[j].Kind {
		case NodeLabel:
			return true
		case NodeInsn:
			return false
		}
	}
	return false
}

// NewLabel returns the label marking the NEW instruction at node i, or
// NoLabel when none precedes it.
func (b *Body) NewLabel(i int) Label {
	for j := i - 1; j >= 0; j-- {
		switch b.Nodes[j].Kind {
		case NodeLabel:
			return b.Nodes[j].Label
		case NodeInsn:
			return NoLabel
		}
	}
	return NoLabel
}
