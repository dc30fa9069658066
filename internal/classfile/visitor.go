// Package classfile reads and writes class files as a stream of
// structural events.
//
// Event order for a class:
//
//	Visit [VisitSource] [VisitOuterClass] (VisitAnnotation | VisitAttribute)*
//	(VisitInnerClass | VisitField | VisitMethod)* VisitEnd
//
// and for a method:
//
//	[VisitAnnotationDefault] (VisitAnnotation | VisitParameterAnnotation | VisitAttribute)*
//	[VisitCode (VisitFrame | Visit*Insn | VisitLabel | VisitTryCatchBlock |
//	VisitLocalVariable | VisitLineNumber | VisitAttribute)* VisitMaxs] VisitEnd
//
// Returning nil from VisitField, VisitMethod or any annotation visit skips
// that sub-stream.
package classfile

import (
	"bytecraft/internal/code"
	"bytecraft/internal/constpool"
	"bytecraft/internal/opcode"
)

// Access flags.
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccVolatile     = 0x0040
	AccBridge       = 0x0040
	AccVarargs      = 0x0080
	AccTransient    = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000

	// Pseudo flags for the Deprecated and Synthetic attributes. They are
	// never written into access_flags.
	AccDeprecated         = 0x20000
	AccSyntheticAttribute = 0x40000

	pseudoFlags = AccDeprecated | AccSyntheticAttribute
)

// Class file versions.
const (
	V1_1 = 3<<16 | 45
	V1_5 = 49
	V1_6 = 50
	V1_7 = 51
	V1_8 = 52
)

// Attribute is a named attribute handled outside the reader and writer.
type Attribute interface {
	Name() string
}

// RawAttribute carries an attribute no codec claimed, byte for byte.
type RawAttribute struct {
	AttrName string
	Data     []byte
}

func (a *RawAttribute) Name() string { return a.AttrName }

// TypeValue is a class literal in an annotation element, as a field
// descriptor.
type TypeValue struct {
	Desc string
}

// ClassVisitor receives the events of one class.
type ClassVisitor interface {
	Visit(version, access int, name, signature, super string, interfaces []string)
	VisitSource(source, debug string)
	VisitOuterClass(owner, name, desc string)
	VisitAnnotation(desc string, visible bool) AnnotationVisitor
	VisitAttribute(attr Attribute)
	VisitInnerClass(name, outer, inner string, access int)
	VisitField(access int, name, desc, signature string, value any) FieldVisitor
	VisitMethod(access int, name, desc, signature string, exceptions []string) MethodVisitor
	VisitEnd()
}

// FieldVisitor receives the events of one field.
type FieldVisitor interface {
	VisitAnnotation(desc string, visible bool) AnnotationVisitor
	VisitAttribute(attr Attribute)
	VisitEnd()
}

// MethodVisitor receives the events of one method. Labels passed to the
// instruction events are allocated from the arena given to VisitCode.
type MethodVisitor interface {
	VisitAnnotationDefault() AnnotationVisitor
	VisitAnnotation(desc string, visible bool) AnnotationVisitor
	VisitParameterAnnotation(param int, desc string, visible bool) AnnotationVisitor
	VisitAttribute(attr Attribute)
	VisitCode(labels *code.Labels)
	VisitFrame(f code.Frame)
	VisitInsn(op opcode.Op)
	VisitIntInsn(op opcode.Op, operand int)
	VisitVarInsn(op opcode.Op, index int)
	VisitTypeInsn(op opcode.Op, typ string)
	VisitFieldInsn(op opcode.Op, owner, name, desc string)
	VisitMethodInsn(op opcode.Op, owner, name, desc string, itf bool)
	VisitInvokeDynamicInsn(name, desc string, bsm constpool.Handle, args ...any)
	VisitJumpInsn(op opcode.Op, target code.Label)
	VisitLabel(l code.Label)
	VisitLdcInsn(value any)
	VisitIincInsn(index, incr int)
	VisitTableSwitchInsn(min, max int32, dflt code.Label, targets ...code.Label)
	VisitLookupSwitchInsn(dflt code.Label, keys []int32, targets []code.Label)
	VisitMultiANewArrayInsn(desc string, dims int)
	VisitTryCatchBlock(start, end, handler code.Label, typ string)
	VisitLocalVariable(name, desc, signature string, start, end code.Label, index int)
	VisitLineNumber(line int, start code.Label)
	VisitMaxs(maxStack, maxLocals int)
	VisitEnd()
}

// AnnotationVisitor receives annotation element values. Names are empty
// for array elements.
type AnnotationVisitor interface {
	Visit(name string, value any)
	VisitEnum(name, desc, value string)
	VisitAnnotation(name, desc string) AnnotationVisitor
	VisitArray(name string) AnnotationVisitor
	VisitEnd()
}
