package code

import (
	"fmt"
	"strings"
)

// VKind is the kind of a verification type.
type VKind uint8

const (
	Top VKind = iota
	Integer
	Float
	Double
	Long
	Null
	UninitializedThis
	Object
	Uninitialized
)

// VType is a verification type. Object carries an internal name or array
// descriptor in Name; Uninitialized carries the label of its NEW.
type VType struct {
	Kind  VKind
	Name  string
	Label Label
}

var (
	TopType      = VType{Kind: Top}
	IntType      = VType{Kind: Integer}
	FloatType    = VType{Kind: Float}
	LongType     = VType{Kind: Long}
	DoubleType   = VType{Kind: Double}
	NullType     = VType{Kind: Null}
	UninitThis   = VType{Kind: UninitializedThis}
	ObjectRoot   = ObjectType("java/lang/Object")
	ThrowableTop = ObjectType("java/lang/Throwable")
)

func ObjectType(name string) VType { return VType{Kind: Object, Name: name} }

func UninitType(l Label) VType { return VType{Kind: Uninitialized, Label: l} }

// Wide reports whether the type occupies two slots.
func (t VType) Wide() bool { return t.Kind == Long || t.Kind == Double }

// IsReference reports whether t is an object, array, null or
// uninitialized value.
func (t VType) IsReference() bool {
	switch t.Kind {
	case Null, UninitializedThis, Object, Uninitialized:
		return true
	}
	return false
}

func (t VType) String() string {
	switch t.Kind {
	case Top:
		return "top"
	case Integer:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	case Long:
		return "long"
	case Null:
		return "null"
	case UninitializedThis:
		return "uninit_this"
	case Object:
		return t.Name
	case Uninitialized:
		return "uninit(" + t.Label.String() + ")"
	}
	return fmt.Sprintf("vtype(%d)", t.Kind)
}

// FrameKind is the encoding of a stack map frame.
type FrameKind uint8

const (
	// FrameNew is an expanded frame: complete locals and stack.
	FrameNew FrameKind = iota
	FrameFull
	FrameAppend
	FrameChop
	FrameSame
	FrameSame1
)

func (k FrameKind) String() string {
	switch k {
	case FrameNew:
		return "new"
	case FrameFull:
		return "full"
	case FrameAppend:
		return "append"
	case FrameChop:
		return "chop"
	case FrameSame:
		return "same"
	case FrameSame1:
		return "same1"
	}
	return fmt.Sprintf("frame(%d)", k)
}

// Frame is a stack map frame in list form: a Long or Double is a single
// entry. Append carries the added locals in Locals, Same1 its single stack
// entry in Stack, and Chop the number of removed locals in Chop.
type Frame struct {
	Kind   FrameKind
	Locals []VType
	Stack  []VType
	Chop   int
}

func (f Frame) String() string {
	var b strings.Builder
	b.WriteString(f.Kind.String())
	if f.Kind == FrameChop {
		fmt.Fprintf(&b, " %d", f.Chop)
		return b.String()
	}
	b.WriteString(" [")
	writeTypes(&b, f.Locals)
	b.WriteString("] [")
	writeTypes(&b, f.Stack)
	b.WriteString("]")
	return b.String()
}

func writeTypes(b *strings.Builder, ts []VType) {
	for i, t := range ts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.String())
	}
}

// Clone returns a deep copy.
func (f Frame) Clone() Frame {
	return Frame{
		Kind:   f.Kind,
		Locals: append([]VType(nil), f.Locals...),
		Stack:  append([]VType(nil), f.Stack...),
		Chop:   f.Chop,
	}
}

// Slots expands a list-form type sequence so each Long or Double is
// followed by a Top for its second slot.
func Slots(list []VType) []VType {
	out := make([]VType, 0, len(list))
	for _, t := range list {
		out = append(out, t)
		if t.Wide() {
			out = append(out, TopType)
		}
	}
	return out
}

// List folds a slot sequence back into list form, dropping the Top after
// each Long or Double.
func List(slots []VType) []VType {
	out := make([]VType, 0, len(slots))
	for i := 0; i < len(slots); i++ {
		t := slots[i]
		out = append(out, t)
		if t.Wide() && i+1 < len(slots) && slots[i+1].Kind == Top {
			i++
		}
	}
	return out
}

// TrimLocals drops trailing Top slots, which a frame need not declare.
// A Top that is the second half of a wide value is kept by List.
func TrimLocals(slots []VType) []VType {
	n := len(slots)
	for n > 0 && slots[n-1].Kind == Top {
		if n >= 2 && slots[n-2].Wide() {
			break
		}
		n--
	}
	return slots[:n]
}

// SlotCount returns the number of slots a list-form sequence occupies.
func SlotCount(list []VType) int {
	n := 0
	for _, t := range list {
		n++
		if t.Wide() {
			n++
		}
	}
	return n
}

// Expand applies a compressed frame to the previous expanded frame and
// returns the new expanded frame. prev must be FrameNew.
func Expand(prev, f Frame) (Frame, error) {
	switch f.Kind {
	case FrameNew, FrameFull:
		return Frame{Kind: FrameNew, Locals: append([]VType(nil), f.Locals...), Stack: append([]VType(nil), f.Stack...)}, nil
	case FrameSame:
		return Frame{Kind: FrameNew, Locals: append([]VType(nil), prev.Locals...)}, nil
	case FrameSame1:
		if len(f.Stack) != 1 {
			return Frame{}, fmt.Errorf("same_locals_1_stack_item frame with %d stack entries", len(f.Stack))
		}
		return Frame{Kind: FrameNew, Locals: append([]VType(nil), prev.Locals...), Stack: []VType{f.Stack[0]}}, nil
	case FrameAppend:
		if len(f.Locals) < 1 || len(f.Locals) > 3 {
			return Frame{}, fmt.Errorf("append frame with %d locals", len(f.Locals))
		}
		locals := append(append([]VType(nil), prev.Locals...), f.Locals...)
		return Frame{Kind: FrameNew, Locals: locals}, nil
	case FrameChop:
		if f.Chop < 1 || f.Chop > 3 || f.Chop > len(prev.Locals) {
			return Frame{}, fmt.Errorf("chop frame removes %d of %d locals", f.Chop, len(prev.Locals))
		}
		return Frame{Kind: FrameNew, Locals: append([]VType(nil), prev.Locals[:len(prev.Locals)-f.Chop]...)}, nil
	}
	return Frame{}, fmt.Errorf("unknown frame kind %d", f.Kind)
}

// Compress returns the smallest encoding of cur relative to prev. Both are
// expanded list-form frames.
func Compress(prev, cur Frame) Frame {
	switch len(cur.Stack) {
	case 0:
		if equalTypes(prev.Locals, cur.Locals) {
			return Frame{Kind: FrameSame}
		}
		d := len(cur.Locals) - len(prev.Locals)
		switch {
		case d > 0 && d <= 3 && equalTypes(prev.Locals, cur.Locals[:len(prev.Locals)]):
			return Frame{Kind: FrameAppend, Locals: append([]VType(nil), cur.Locals[len(prev.Locals):]...)}
		case d < 0 && d >= -3 && equalTypes(prev.Locals[:len(cur.Locals)], cur.Locals):
			return Frame{Kind: FrameChop, Chop: -d}
		}
	case 1:
		if equalTypes(prev.Locals, cur.Locals) {
			return Frame{Kind: FrameSame1, Stack: []VType{cur.Stack[0]}}
		}
	}
	c := cur.Clone()
	c.Kind = FrameFull
	return c
}

func equalTypes(a, b []VType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
