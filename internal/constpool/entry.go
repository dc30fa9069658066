// Package constpool models the class file constant pool: a deduplicating
// table of literals and symbolic references addressed by 1-based index.
package constpool

import (
	"fmt"
	"math"
)

// Tag identifies the kind of a constant pool entry.
type Tag uint8

const (
	TagUTF8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagInvokeDynamic      Tag = 18
)

func (t Tag) String() string {
	switch t {
	case TagUTF8:
		return "Utf8"
	case TagInteger:
		return "Integer"
	case TagFloat:
		return "Float"
	case TagLong:
		return "Long"
	case TagDouble:
		return "Double"
	case TagClass:
		return "Class"
	case TagString:
		return "String"
	case TagFieldref:
		return "Fieldref"
	case TagMethodref:
		return "Methodref"
	case TagInterfaceMethodref:
		return "InterfaceMethodref"
	case TagNameAndType:
		return "NameAndType"
	case TagMethodHandle:
		return "MethodHandle"
	case TagMethodType:
		return "MethodType"
	case TagInvokeDynamic:
		return "InvokeDynamic"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Wide reports whether entries of this tag occupy two index slots.
func (t Tag) Wide() bool { return t == TagLong || t == TagDouble }

// Entry is one constant. It is comparable: two entries are the same constant
// exactly when they are ==. Numeric values are stored as raw bits so float
// NaN payloads and -0.0 keep their identity.
//
// Field use by tag:
//
//	Utf8                  Str
//	Integer, Float        Bits (low 32)
//	Long, Double          Bits
//	Class, String, MethodType   Ref1 (Utf8 index)
//	*ref                  Ref1 class, Ref2 NameAndType
//	NameAndType           Ref1 name, Ref2 descriptor
//	MethodHandle          Ref1 reference kind, Ref2 member ref
//	InvokeDynamic         Ref1 bootstrap method, Ref2 NameAndType
type Entry struct {
	Tag  Tag
	Str  string
	Bits uint64
	Ref1 uint16
	Ref2 uint16
}

func (e Entry) String() string {
	switch e.Tag {
	case TagUTF8:
		return fmt.Sprintf("Utf8 %q", e.Str)
	case TagInteger:
		return fmt.Sprintf("Integer %d", int32(e.Bits))
	case TagFloat:
		return fmt.Sprintf("Float %v", math.Float32frombits(uint32(e.Bits)))
	case TagLong:
		return fmt.Sprintf("Long %d", int64(e.Bits))
	case TagDouble:
		return fmt.Sprintf("Double %v", math.Float64frombits(e.Bits))
	case TagClass, TagString, TagMethodType:
		return fmt.Sprintf("%s #%d", e.Tag, e.Ref1)
	default:
		return fmt.Sprintf("%s #%d:#%d", e.Tag, e.Ref1, e.Ref2)
	}
}

// Class is an ldc class literal: an internal name or array descriptor.
type Class struct {
	Name string
}

// MethodType is an ldc method type constant.
type MethodType struct {
	Desc string
}

// Method handle reference kinds.
const (
	RefGetField         = 1
	RefGetStatic        = 2
	RefPutField         = 3
	RefPutStatic        = 4
	RefInvokeVirtual    = 5
	RefInvokeStatic     = 6
	RefInvokeSpecial    = 7
	RefNewInvokeSpecial = 8
	RefInvokeInterface  = 9
)

// Handle is a method handle constant.
type Handle struct {
	Kind  uint8
	Owner string
	Name  string
	Desc  string
	Itf   bool
}

func (h Handle) String() string {
	return fmt.Sprintf("%s.%s%s (%d)", h.Owner, h.Name, h.Desc, h.Kind)
}

// Bootstrap is a BootstrapMethods entry in index form.
type Bootstrap struct {
	Method uint16
	Args   []uint16
}

func (b Bootstrap) key() string {
	s := fmt.Sprint(b.Method)
	for _, a := range b.Args {
		s += fmt.Sprintf(",%d", a)
	}
	return s
}
